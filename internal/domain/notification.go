package domain

import (
	"context"
	"errors"
)

// ErrUndeliverable marks a notification that can never be delivered as configured,
// such as a missing channel or a recipient refused by every provider
var ErrUndeliverable = errors.New("notification undeliverable")

// SMS template types
const (
	SMSTemplatePaymentReceived = "payment_received"
	SMSTemplatePaymentFailed   = "payment_failed"
	SMSTemplatePaymentOverdue  = "payment_overdue"
)

// Attachment is a file attached to an email, read from Path
type Attachment struct {
	Path string `json:"path"`
	Name string `json:"name,omitempty"`
}

// Email is an outbound HTML email
type Email struct {
	To          string       `json:"to"`
	Subject     string       `json:"subject"`
	HTML        string       `json:"html"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// SMS is an outbound text message
type SMS struct {
	Phone        string            `json:"phone"`
	Text         string            `json:"text"`
	TemplateType string            `json:"template_type"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Notifier delivers emails and text messages
type Notifier interface {
	SendEmail(ctx context.Context, email Email) error
	SendSMS(ctx context.Context, sms SMS) error
}
