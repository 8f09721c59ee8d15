package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/freightdesk/internal/domain"
	"github.com/mansoorceksport/freightdesk/internal/service"
	"github.com/stretchr/testify/assert"
)

type fakeWebhookService struct {
	body      []byte
	signature string
	err       error
}

func (f *fakeWebhookService) ConfirmWebhookEvent(_ context.Context, rawBody []byte, signature string) (*service.WebhookAck, error) {
	f.body, f.signature = rawBody, signature
	if f.err != nil {
		return nil, f.err
	}
	return &service.WebhookAck{EventID: "evt_1", Outcome: "processed"}, nil
}

func TestStripeWebhook(t *testing.T) {
	svc := &fakeWebhookService{}
	app := newTestApp()
	app.Post("/payments/stripe/webhook", NewWebhookHandler(svc).StripeWebhook)

	// key order and spacing must reach the verifier untouched
	payload := `{"id": "evt_1",  "type":"payment_intent.succeeded"}`
	status, env, _ := doRequest(t, app, "POST", "/payments/stripe/webhook", payload, map[string]string{
		"Stripe-Signature": "t=1,v1=abc",
	})

	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)
	assert.Equal(t, payload, string(svc.body))
	assert.Equal(t, "t=1,v1=abc", svc.signature)
	assert.JSONEq(t, `{"event_id":"evt_1","outcome":"processed"}`, string(env.Data))
}

func TestStripeWebhookRejected(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"bad signature", domain.NewSignatureError(errors.New("no valid signature")), fiber.StatusBadRequest},
		{"store down", domain.NewPersistenceError("update payment", errors.New("timeout")), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp()
			app.Post("/payments/stripe/webhook", NewWebhookHandler(&fakeWebhookService{err: tt.err}).StripeWebhook)

			status, env, _ := doRequest(t, app, "POST", "/payments/stripe/webhook", `{}`, nil)
			assert.Equal(t, tt.status, status)
			assert.False(t, env.Success)
		})
	}
}
