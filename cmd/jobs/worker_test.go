package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mansoorceksport/freightdesk/internal/domain"
	"github.com/mansoorceksport/freightdesk/internal/infrastructure/rabbitmq"
	"github.com/mansoorceksport/freightdesk/internal/service"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// publisherFunc captures what the API would have queued
type publisherFunc func(ctx context.Context, queue, messageID string, body []byte) error

func (f publisherFunc) Publish(ctx context.Context, queue, messageID string, body []byte) error {
	return f(ctx, queue, messageID, body)
}

func queuedSMS(t *testing.T) []byte {
	t.Helper()
	var body []byte
	queued := service.NewQueuedNotifier(publisherFunc(func(ctx context.Context, queue, messageID string, b []byte) error {
		body = b
		return nil
	}), "notifications")
	require.NoError(t, queued.SendSMS(context.Background(), domain.SMS{Phone: "+233200000001", Text: "Payment received"}))
	return body
}

func TestDeliveryHandler(t *testing.T) {
	body := queuedSMS(t)

	tests := []struct {
		name          string
		notifier      domain.Notifier
		body          []byte
		wantErr       bool
		wantPermanent bool
	}{
		{
			name:     "delivered",
			notifier: service.NewDirectNotifier(nil, smsFunc(func(ctx context.Context, phone, text string) error { return nil })),
			body:     body,
		},
		{
			name:          "worker without sms carriers",
			notifier:      service.NewDirectNotifier(nil, nil),
			body:          body,
			wantErr:       true,
			wantPermanent: true,
		},
		{
			name:     "carrier outage is retried",
			notifier: service.NewDirectNotifier(nil, smsFunc(func(ctx context.Context, phone, text string) error { return errors.New("status 503") })),
			body:     body,
			wantErr:  true,
		},
		{
			name:          "malformed job",
			notifier:      service.NewDirectNotifier(nil, nil),
			body:          []byte("{"),
			wantErr:       true,
			wantPermanent: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := deliveryHandler(tt.notifier)(context.Background(), amqp.Delivery{Body: tt.body})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantPermanent, errors.Is(err, rabbitmq.ErrPermanent))
		})
	}
}

func TestQueuedSMSIsAJob(t *testing.T) {
	var job service.NotificationJob
	require.NoError(t, json.Unmarshal(queuedSMS(t), &job))
	assert.Equal(t, service.JobKindSMS, job.Kind)
	assert.NotEmpty(t, job.ID)
}

type smsFunc func(ctx context.Context, phone, text string) error

func (f smsFunc) Name() string { return "func" }

func (f smsFunc) Send(ctx context.Context, phone, text string) error {
	return f(ctx, phone, text)
}
