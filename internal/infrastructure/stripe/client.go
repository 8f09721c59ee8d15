package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	stripesdk "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

// Payment intent event types handled by the service
const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
)

// Client wraps the Stripe API for payment intents and webhook verification
type Client struct {
	api           *client.API
	webhookSecret string
}

// NewClient creates a Stripe client. backends may be nil to use the live API.
func NewClient(secretKey, webhookSecret string, backends *stripesdk.Backends) *Client {
	return &Client{
		api:           client.New(secretKey, backends),
		webhookSecret: webhookSecret,
	}
}

// CreatePaymentIntent creates an intent for amountMinor in the smallest currency unit
func (c *Client) CreatePaymentIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*stripesdk.PaymentIntent, error) {
	params := &stripesdk.PaymentIntentParams{
		Amount:   stripesdk.Int64(amountMinor),
		Currency: stripesdk.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripesdk.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripesdk.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	intent, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, describe(err)
	}
	return intent, nil
}

// GetPaymentIntent fetches the current state of an intent
func (c *Client) GetPaymentIntent(ctx context.Context, id string) (*stripesdk.PaymentIntent, error) {
	params := &stripesdk.PaymentIntentParams{}
	params.Context = ctx

	intent, err := c.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, describe(err)
	}
	return intent, nil
}

// ConstructEvent verifies the Stripe-Signature header against the raw body.
// The body is not parsed unless the signature is valid.
func (c *Client) ConstructEvent(payload []byte, signature string) (stripesdk.Event, error) {
	return webhook.ConstructEvent(payload, signature, c.webhookSecret)
}

// PaymentIntentFromEvent decodes the payment intent carried by a verified event
func PaymentIntentFromEvent(event stripesdk.Event) (*stripesdk.PaymentIntent, error) {
	if event.Data == nil {
		return nil, fmt.Errorf("event %s has no data", event.ID)
	}
	var intent stripesdk.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, fmt.Errorf("failed to decode payment intent from event %s: %w", event.ID, err)
	}
	return &intent, nil
}

// describe keeps the upstream message of Stripe API errors
func describe(err error) error {
	if stripeErr, ok := err.(*stripesdk.Error); ok {
		if stripeErr.Code != "" {
			return fmt.Errorf("%s (%s)", stripeErr.Msg, stripeErr.Code)
		}
		return fmt.Errorf("%s", stripeErr.Msg)
	}
	return err
}
