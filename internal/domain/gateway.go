package domain

import "time"

// GatewayPayload is the decoded gateway response stored on a payment.
// Exactly one variant is set, matching Gateway.
type GatewayPayload struct {
	Gateway PaymentMethod  `bson:"gateway" json:"gateway"`
	Stripe  *StripePayload `bson:"stripe,omitempty" json:"stripe,omitempty"`
	PayPal  *PayPalPayload `bson:"paypal,omitempty" json:"paypal,omitempty"`
}

// StripePayload captures the fields of a PaymentIntent event we keep
type StripePayload struct {
	EventID         string    `bson:"event_id,omitempty" json:"event_id,omitempty"`
	EventType       string    `bson:"event_type,omitempty" json:"event_type,omitempty"`
	PaymentIntentID string    `bson:"payment_intent_id" json:"payment_intent_id"`
	Status          string    `bson:"status" json:"status"`
	AmountMinor     int64     `bson:"amount_minor" json:"amount_minor"`
	Currency        string    `bson:"currency" json:"currency"`
	FailureMessage  string    `bson:"failure_message,omitempty" json:"failure_message,omitempty"`
	ReceivedAt      time.Time `bson:"received_at" json:"received_at"`
}

// PayPalPayload captures the fields of an order capture we keep
type PayPalPayload struct {
	OrderID    string    `bson:"order_id" json:"order_id"`
	Status     string    `bson:"status" json:"status"`
	CaptureID  string    `bson:"capture_id,omitempty" json:"capture_id,omitempty"`
	PayerEmail string    `bson:"payer_email,omitempty" json:"payer_email,omitempty"`
	ReceivedAt time.Time `bson:"received_at" json:"received_at"`
}

// WebhookEventType is the normalized meaning of a gateway callback
type WebhookEventType string

const (
	WebhookPaymentSucceeded WebhookEventType = "succeeded"
	WebhookPaymentFailed    WebhookEventType = "failed"
	WebhookUnknown          WebhookEventType = "unknown"
)

// WebhookEvent is a verified gateway callback
type WebhookEvent struct {
	ID            string
	Gateway       PaymentMethod
	Type          WebhookEventType
	RawType       string
	TransactionID string
	Payload       *GatewayPayload
}
