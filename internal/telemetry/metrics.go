package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "freightdesk-payments"

// PaymentMetrics records payment lifecycle counters.
// A nil *PaymentMetrics is valid and records nothing.
type PaymentMetrics struct {
	created       metric.Int64Counter
	completed     metric.Int64Counter
	failed        metric.Int64Counter
	webhooks      metric.Int64Counter
	notifyFailure metric.Int64Counter
}

// NewPaymentMetrics registers the counters on the global meter provider
func NewPaymentMetrics() (*PaymentMetrics, error) {
	meter := otel.Meter(meterName)

	created, err := meter.Int64Counter("payments_created_total",
		metric.WithDescription("Payments created"))
	if err != nil {
		return nil, err
	}
	completed, err := meter.Int64Counter("payments_completed_total",
		metric.WithDescription("Payments moved to completed"))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("payments_failed_total",
		metric.WithDescription("Payments moved to failed"))
	if err != nil {
		return nil, err
	}
	webhooks, err := meter.Int64Counter("payment_webhooks_total",
		metric.WithDescription("Gateway webhook deliveries by outcome"))
	if err != nil {
		return nil, err
	}
	notifyFailure, err := meter.Int64Counter("notifications_failed_total",
		metric.WithDescription("Email and SMS deliveries that failed"))
	if err != nil {
		return nil, err
	}

	return &PaymentMetrics{
		created:       created,
		completed:     completed,
		failed:        failed,
		webhooks:      webhooks,
		notifyFailure: notifyFailure,
	}, nil
}

func (m *PaymentMetrics) PaymentCreated(ctx context.Context, currency string) {
	if m == nil {
		return
	}
	m.created.Add(ctx, 1, metric.WithAttributes(attribute.String("currency", currency)))
}

func (m *PaymentMetrics) PaymentCompleted(ctx context.Context, method string) {
	if m == nil {
		return
	}
	m.completed.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_method", method)))
}

func (m *PaymentMetrics) PaymentFailed(ctx context.Context, method string) {
	if m == nil {
		return
	}
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_method", method)))
}

// WebhookReceived counts a delivery; outcome is processed, duplicate, ignored or unmatched
func (m *PaymentMetrics) WebhookReceived(ctx context.Context, gateway, outcome string) {
	if m == nil {
		return
	}
	m.webhooks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("gateway", gateway),
		attribute.String("outcome", outcome),
	))
}

func (m *PaymentMetrics) NotificationFailed(ctx context.Context, channel string) {
	if m == nil {
		return
	}
	m.notifyFailure.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", channel)))
}
