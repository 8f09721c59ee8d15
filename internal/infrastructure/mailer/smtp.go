package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// ErrRejected marks a message the relay or the address refused permanently
var ErrRejected = errors.New("email rejected")

// Config holds SMTP settings
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Attachment is a file on disk to attach
type Attachment struct {
	Path string
	Name string
}

// Message is one outbound HTML email
type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// SMTPMailer sends email through an SMTP relay
type SMTPMailer struct {
	config Config
}

func NewSMTPMailer(cfg Config) *SMTPMailer {
	return &SMTPMailer{config: cfg}
}

// Build assembles the MIME message without sending it
func (m *SMTPMailer) Build(msg Message) (*mail.Msg, error) {
	out := mail.NewMsg()
	if err := out.From(m.config.From); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", m.config.From, err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextHTML, msg.HTML)

	for _, a := range msg.Attachments {
		if a.Name != "" {
			out.AttachFile(a.Path, mail.WithFileName(a.Name))
		} else {
			out.AttachFile(a.Path)
		}
	}
	return out, nil
}

// Send delivers msg, dialing a fresh connection per message
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	out, err := m.Build(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}

	opts := []mail.Option{
		mail.WithPort(m.config.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(15 * time.Second),
	}
	if m.config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.config.Username),
			mail.WithPassword(m.config.Password),
		)
	}

	client, err := mail.NewClient(m.config.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, out); err != nil {
		if permanentSendError(err) {
			return fmt.Errorf("%w: %s: %w", ErrRejected, msg.To, err)
		}
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}
	return nil
}

// permanentSendError reports 5xx answers to the recipient or encoding checks
func permanentSendError(err error) bool {
	var se *mail.SendError
	if !errors.As(err, &se) || se.IsTemp() {
		return false
	}
	switch se.Reason {
	case mail.ErrGetRcpts, mail.ErrSMTPRcptTo, mail.ErrNoUnencoded:
		return true
	}
	return false
}
