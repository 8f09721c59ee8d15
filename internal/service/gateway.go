package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mansoorceksport/freightdesk/internal/config"
	"github.com/mansoorceksport/freightdesk/internal/domain"
	paypalgw "github.com/mansoorceksport/freightdesk/internal/infrastructure/paypal"
	stripegw "github.com/mansoorceksport/freightdesk/internal/infrastructure/stripe"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	stripesdk "github.com/stripe/stripe-go/v74"
)

// IntentResult is a created gateway transaction
type IntentResult struct {
	TransactionID string
	ClientSecret  string // Stripe
	ApprovalURL   string // PayPal
	Payload       *domain.GatewayPayload
}

// CaptureResult is the outcome of a synchronous capture
type CaptureResult struct {
	TransactionID string
	Status        string
	Completed     bool
	Payload       *domain.GatewayPayload
}

// Gateway creates and captures payments with one processor.
// Amounts are decimals in currency units; conversion happens inside the adapter.
type Gateway interface {
	Name() domain.PaymentMethod
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*IntentResult, error)
	Capture(ctx context.Context, transactionID string) (*CaptureResult, error)
}

// WebhookVerifier authenticates a raw webhook body and decodes it
type WebhookVerifier interface {
	VerifyWebhook(rawBody []byte, signature string) (*domain.WebhookEvent, error)
}

// Gateways maps gateway names to adapters
type Gateways map[domain.PaymentMethod]Gateway

// Get returns the adapter for method
func (g Gateways) Get(method domain.PaymentMethod) (Gateway, error) {
	gw, ok := g[method]
	if !ok {
		return nil, domain.NewValidationError("payment gateway %q is not available", method)
	}
	return gw, nil
}

// NewGateways builds the gateway registry and the Stripe webhook verifier.
// Processors without credentials are replaced by mocks for development.
func NewGateways(stripeCfg config.StripeConfig, paypalCfg config.PayPalConfig, brand string, logger zerolog.Logger) (Gateways, WebhookVerifier, error) {
	gateways := Gateways{}

	var verifier WebhookVerifier = disabledVerifier{}
	if stripeCfg.SecretKey == "" {
		logger.Warn().Msg("using mock Stripe gateway (no credentials configured)")
		gateways[domain.PaymentMethodStripe] = &MockStripeGateway{}
	} else {
		client := stripegw.NewClient(stripeCfg.SecretKey, stripeCfg.WebhookSecret, nil)
		gateways[domain.PaymentMethodStripe] = NewStripeGateway(client)
	}
	if stripeCfg.WebhookSecret != "" {
		verifier = NewStripeGateway(stripegw.NewClient(stripeCfg.SecretKey, stripeCfg.WebhookSecret, nil))
	} else {
		logger.Warn().Msg("Stripe webhook secret missing, webhooks will be rejected")
	}

	if paypalCfg.ClientID == "" || paypalCfg.Secret == "" {
		logger.Warn().Msg("using mock PayPal gateway (no credentials configured)")
		gateways[domain.PaymentMethodPayPal] = &MockPayPalGateway{}
	} else {
		client, err := paypalgw.NewClient(paypalgw.Config{
			ClientID:  paypalCfg.ClientID,
			Secret:    paypalCfg.Secret,
			Live:      paypalCfg.Live,
			ReturnURL: paypalCfg.ReturnURL,
			CancelURL: paypalCfg.CancelURL,
			BrandName: brand,
		})
		if err != nil {
			return nil, nil, err
		}
		gateways[domain.PaymentMethodPayPal] = NewPayPalGateway(client)
	}

	return gateways, verifier, nil
}

// StripeGateway adapts the Stripe client to Gateway and WebhookVerifier
type StripeGateway struct {
	client *stripegw.Client
	now    func() time.Time
}

func NewStripeGateway(client *stripegw.Client) *StripeGateway {
	return &StripeGateway{client: client, now: func() time.Time { return time.Now().UTC() }}
}

func (g *StripeGateway) Name() domain.PaymentMethod { return domain.PaymentMethodStripe }

func (g *StripeGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*IntentResult, error) {
	minor := stripegw.ToMinorUnits(amount, currency)
	intent, err := g.client.CreatePaymentIntent(ctx, minor, currency, metadata)
	if err != nil {
		return nil, err
	}
	return &IntentResult{
		TransactionID: intent.ID,
		ClientSecret:  intent.ClientSecret,
		Payload:       g.payload(intent, "", ""),
	}, nil
}

func (g *StripeGateway) Capture(ctx context.Context, transactionID string) (*CaptureResult, error) {
	intent, err := g.client.GetPaymentIntent(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return &CaptureResult{
		TransactionID: intent.ID,
		Status:        string(intent.Status),
		Completed:     intent.Status == stripesdk.PaymentIntentStatusSucceeded,
		Payload:       g.payload(intent, "", ""),
	}, nil
}

// VerifyWebhook checks the signature before anything in the body is read
func (g *StripeGateway) VerifyWebhook(rawBody []byte, signature string) (*domain.WebhookEvent, error) {
	event, err := g.client.ConstructEvent(rawBody, signature)
	if err != nil {
		return nil, domain.NewSignatureError(err)
	}

	out := &domain.WebhookEvent{
		ID:      event.ID,
		Gateway: domain.PaymentMethodStripe,
		Type:    domain.WebhookUnknown,
		RawType: string(event.Type),
	}

	switch string(event.Type) {
	case stripegw.EventPaymentIntentSucceeded:
		out.Type = domain.WebhookPaymentSucceeded
	case stripegw.EventPaymentIntentFailed:
		out.Type = domain.WebhookPaymentFailed
	default:
		return out, nil
	}

	intent, err := stripegw.PaymentIntentFromEvent(event)
	if err != nil {
		return nil, domain.NewValidationError("malformed payment intent event: %v", err)
	}
	out.TransactionID = intent.ID
	out.Payload = g.payload(intent, event.ID, string(event.Type))
	return out, nil
}

func (g *StripeGateway) payload(intent *stripesdk.PaymentIntent, eventID, eventType string) *domain.GatewayPayload {
	p := &domain.StripePayload{
		EventID:         eventID,
		EventType:       eventType,
		PaymentIntentID: intent.ID,
		Status:          string(intent.Status),
		AmountMinor:     intent.Amount,
		Currency:        string(intent.Currency),
		ReceivedAt:      g.now(),
	}
	if intent.LastPaymentError != nil {
		p.FailureMessage = intent.LastPaymentError.Msg
	}
	return &domain.GatewayPayload{Gateway: domain.PaymentMethodStripe, Stripe: p}
}

// PayPalGateway adapts the PayPal Orders client to Gateway
type PayPalGateway struct {
	client *paypalgw.Client
	now    func() time.Time
}

func NewPayPalGateway(client *paypalgw.Client) *PayPalGateway {
	return &PayPalGateway{client: client, now: func() time.Time { return time.Now().UTC() }}
}

func (g *PayPalGateway) Name() domain.PaymentMethod { return domain.PaymentMethodPayPal }

func (g *PayPalGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*IntentResult, error) {
	order, err := g.client.CreateOrder(ctx, metadata["invoice_number"], strings.ToUpper(currency), amount.StringFixed(2), metadata["description"])
	if err != nil {
		return nil, err
	}
	return &IntentResult{
		TransactionID: order.ID,
		ApprovalURL:   order.ApprovalURL,
		Payload:       paypalPayload(order.ID, order.Status, g.now()),
	}, nil
}

func (g *PayPalGateway) Capture(ctx context.Context, transactionID string) (*CaptureResult, error) {
	capture, err := g.client.CaptureOrder(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return &CaptureResult{
		TransactionID: capture.OrderID,
		Status:        capture.Status,
		Completed:     capture.Status == paypalgw.StatusCompleted,
		Payload:       paypalPayload(capture.OrderID, capture.Status, g.now()),
	}, nil
}

func paypalPayload(orderID, status string, at time.Time) *domain.GatewayPayload {
	return &domain.GatewayPayload{
		Gateway: domain.PaymentMethodPayPal,
		PayPal:  &domain.PayPalPayload{OrderID: orderID, Status: status, ReceivedAt: at},
	}
}

// MockStripeGateway is a Stripe stand-in for development
type MockStripeGateway struct{}

func (m *MockStripeGateway) Name() domain.PaymentMethod { return domain.PaymentMethodStripe }

func (m *MockStripeGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*IntentResult, error) {
	id := "pi_mock_" + ulid.Make().String()
	return &IntentResult{
		TransactionID: id,
		ClientSecret:  id + "_secret_" + ulid.Make().String()[:10],
		Payload: &domain.GatewayPayload{
			Gateway: domain.PaymentMethodStripe,
			Stripe: &domain.StripePayload{
				PaymentIntentID: id,
				Status:          string(stripesdk.PaymentIntentStatusRequiresPaymentMethod),
				AmountMinor:     stripegw.ToMinorUnits(amount, currency),
				Currency:        strings.ToLower(currency),
				ReceivedAt:      time.Now().UTC(),
			},
		},
	}, nil
}

func (m *MockStripeGateway) Capture(ctx context.Context, transactionID string) (*CaptureResult, error) {
	return &CaptureResult{
		TransactionID: transactionID,
		Status:        string(stripesdk.PaymentIntentStatusSucceeded),
		Completed:     true,
	}, nil
}

// MockPayPalGateway is a PayPal stand-in for development.
// Orders whose id contains "DECLINED" fail to capture.
type MockPayPalGateway struct{}

func (m *MockPayPalGateway) Name() domain.PaymentMethod { return domain.PaymentMethodPayPal }

func (m *MockPayPalGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*IntentResult, error) {
	id := "MOCK-" + ulid.Make().String()
	return &IntentResult{
		TransactionID: id,
		ApprovalURL:   fmt.Sprintf("https://www.sandbox.paypal.com/checkoutnow?token=%s", id),
		Payload:       paypalPayload(id, "CREATED", time.Now().UTC()),
	}, nil
}

func (m *MockPayPalGateway) Capture(ctx context.Context, transactionID string) (*CaptureResult, error) {
	status := paypalgw.StatusCompleted
	if strings.Contains(transactionID, "DECLINED") {
		status = "DECLINED"
	}
	return &CaptureResult{
		TransactionID: transactionID,
		Status:        status,
		Completed:     status == paypalgw.StatusCompleted,
		Payload:       paypalPayload(transactionID, status, time.Now().UTC()),
	}, nil
}

// disabledVerifier rejects every webhook when no signing secret is configured
type disabledVerifier struct{}

func (disabledVerifier) VerifyWebhook([]byte, string) (*domain.WebhookEvent, error) {
	return nil, domain.NewSignatureError(fmt.Errorf("webhook signing secret is not configured"))
}
