package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/freightdesk/internal/service"
	"github.com/mansoorceksport/freightdesk/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// WebhookService applies verified gateway callbacks
type WebhookService interface {
	ConfirmWebhookEvent(ctx context.Context, rawBody []byte, signature string) (*service.WebhookAck, error)
}

// WebhookHandler handles external payment webhooks
type WebhookHandler struct {
	webhooks WebhookService
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(webhooks WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// StripeWebhook handles POST /payments/stripe/webhook
// This is a public endpoint; the raw body is passed untouched to signature verification.
func (h *WebhookHandler) StripeWebhook(c *fiber.Ctx) error {
	raw := append([]byte(nil), c.Body()...)

	ack, err := h.webhooks.ConfirmWebhookEvent(c.UserContext(), raw, c.Get("Stripe-Signature"))
	if err != nil {
		return err
	}
	telemetry.AddSpanEvent(c, "webhook.handled",
		attribute.String("webhook.event_id", ack.EventID),
		attribute.String("webhook.outcome", ack.Outcome),
	)
	return c.JSON(fiber.Map{
		"success":  true,
		"received": true,
		"data":     ack,
	})
}
