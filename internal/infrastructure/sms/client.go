package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// ErrRejected marks a message a carrier refused. Sending it again gives the same answer.
var ErrRejected = errors.New("sms rejected by carrier")

// ErrNoCarriers is returned when no carrier is configured
var ErrNoCarriers = errors.New("no sms carriers configured")

// Sender delivers a single text message
type Sender interface {
	Name() string
	Send(ctx context.Context, phone, text string) error
}

// HubtelConfig holds Hubtel API credentials
type HubtelConfig struct {
	ClientID     string
	ClientSecret string
	SenderID     string
	BaseURL      string
}

// HubtelSender sends SMS through the Hubtel quick-send API
type HubtelSender struct {
	config     HubtelConfig
	httpClient *http.Client
}

func NewHubtelSender(cfg HubtelConfig) *HubtelSender {
	return &HubtelSender{
		config:     cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (h *HubtelSender) Name() string { return "hubtel" }

type hubtelResponse struct {
	MessageID string `json:"messageId"`
	Status    int    `json:"status"`
	Message   string `json:"message"`
}

func (h *HubtelSender) Send(ctx context.Context, phone, text string) error {
	q := url.Values{}
	q.Set("clientid", h.config.ClientID)
	q.Set("clientsecret", h.config.ClientSecret)
	q.Set("from", h.config.SenderID)
	q.Set("to", phone)
	q.Set("content", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.config.BaseURL+"/v1/messages/send?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	var resp hubtelResponse
	if err := doJSON(h.httpClient, req, &resp); err != nil {
		return fmt.Errorf("hubtel: %w", err)
	}
	if resp.Status != 0 {
		return fmt.Errorf("hubtel: %w: status %d: %s", ErrRejected, resp.Status, resp.Message)
	}
	return nil
}

// MNotifyConfig holds mNotify API credentials
type MNotifyConfig struct {
	APIKey   string
	SenderID string
	BaseURL  string
}

// MNotifySender sends SMS through the mNotify quick SMS API
type MNotifySender struct {
	config     MNotifyConfig
	httpClient *http.Client
}

func NewMNotifySender(cfg MNotifyConfig) *MNotifySender {
	return &MNotifySender{
		config:     cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (m *MNotifySender) Name() string { return "mnotify" }

type mnotifyRequest struct {
	Recipient    []string `json:"recipient"`
	Sender       string   `json:"sender"`
	Message      string   `json:"message"`
	IsSchedule   bool     `json:"is_schedule"`
	ScheduleDate string   `json:"schedule_date"`
}

type mnotifyResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (m *MNotifySender) Send(ctx context.Context, phone, text string) error {
	body, err := json.Marshal(mnotifyRequest{
		Recipient: []string{phone},
		Sender:    m.config.SenderID,
		Message:   text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := m.config.BaseURL + "/api/sms/quick?key=" + url.QueryEscape(m.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp mnotifyResponse
	if err := doJSON(m.httpClient, req, &resp); err != nil {
		return fmt.Errorf("mnotify: %w", err)
	}
	if resp.Status != "success" {
		return fmt.Errorf("mnotify: %w: code %s: %s", ErrRejected, resp.Code, resp.Message)
	}
	return nil
}

func doJSON(client *http.Client, req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if rejectedStatus(resp.StatusCode) {
		return fmt.Errorf("%w: status %d, body: %s", ErrRejected, resp.StatusCode, string(respBody))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d, body: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// rejectedStatus reports client errors that a retry cannot fix
func rejectedStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return false
	}
	return code >= 400 && code < 500
}

// FallbackSender tries each carrier in order until one accepts the message
type FallbackSender struct {
	senders []Sender
	logger  zerolog.Logger
}

func NewFallbackSender(logger zerolog.Logger, senders ...Sender) *FallbackSender {
	return &FallbackSender{senders: senders, logger: logger}
}

func (f *FallbackSender) Name() string { return "fallback" }

func (f *FallbackSender) Send(ctx context.Context, phone, text string) error {
	if len(f.senders) == 0 {
		return ErrNoCarriers
	}

	var errs []error
	rejected := 0
	for _, s := range f.senders {
		err := s.Send(ctx, phone, text)
		if err == nil {
			return nil
		}
		f.logger.Warn().Err(err).Str("carrier", s.Name()).Msg("sms carrier failed, trying next")
		errs = append(errs, err)
		if errors.Is(err, ErrRejected) {
			rejected++
		}
	}

	// one carrier being down is worth a retry, every carrier refusing is not
	if rejected == len(errs) {
		return fmt.Errorf("all sms carriers failed: %w", errors.Join(errs...))
	}
	return fmt.Errorf("all sms carriers failed: %v", errors.Join(errs...))
}
