package paypal

import (
	"context"
	"fmt"
	"sync"

	ppsdk "github.com/plutov/paypal/v4"
)

// Order statuses reported by the Orders v2 API
const (
	StatusCompleted = "COMPLETED"
	StatusApproved  = "APPROVED"
)

// Config holds PayPal REST configuration
type Config struct {
	ClientID  string
	Secret    string
	BaseURL   string // overrides the sandbox or live API base
	Live      bool
	ReturnURL string
	CancelURL string
	BrandName string
}

// Order is a created checkout order and the link the payer must visit
type Order struct {
	ID          string
	Status      string
	ApprovalURL string
}

// Capture is the result of capturing an approved order
type Capture struct {
	OrderID string
	Status  string
}

// Client is a thin wrapper over the Orders v2 API
type Client struct {
	config Config
	api    *ppsdk.Client
	mu     sync.Mutex
	authed bool
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = ppsdk.APIBaseSandBox
		if cfg.Live {
			cfg.BaseURL = ppsdk.APIBaseLive
		}
	}
	api, err := ppsdk.NewClient(cfg.ClientID, cfg.Secret, cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create paypal client: %w", err)
	}
	return &Client{config: cfg, api: api}, nil
}

// ensureToken fetches the first access token; the SDK refreshes it afterwards
func (c *Client) ensureToken(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.authed {
		return nil
	}
	if _, err := c.api.GetAccessToken(ctx); err != nil {
		return fmt.Errorf("paypal authentication failed: %w", err)
	}
	c.authed = true
	return nil
}

// CreateOrder creates a CAPTURE-intent order. value is the decimal amount string, e.g. "287.50".
func (c *Client) CreateOrder(ctx context.Context, referenceID, currency, value, description string) (*Order, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	units := []ppsdk.PurchaseUnitRequest{
		{
			ReferenceID: referenceID,
			Description: description,
			Amount: &ppsdk.PurchaseUnitAmount{
				Currency: currency,
				Value:    value,
			},
		},
	}
	appCtx := &ppsdk.ApplicationContext{
		BrandName: c.config.BrandName,
		ReturnURL: c.config.ReturnURL,
		CancelURL: c.config.CancelURL,
	}

	order, err := c.api.CreateOrder(ctx, ppsdk.OrderIntentCapture, units, nil, appCtx)
	if err != nil {
		return nil, err
	}

	result := &Order{ID: order.ID, Status: order.Status}
	for _, link := range order.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			result.ApprovalURL = link.Href
			break
		}
	}
	return result, nil
}

// CaptureOrder captures the funds of an approved order
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Capture, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	resp, err := c.api.CaptureOrder(ctx, orderID, ppsdk.CaptureOrderRequest{})
	if err != nil {
		return nil, err
	}
	return &Capture{OrderID: resp.ID, Status: resp.Status}, nil
}
