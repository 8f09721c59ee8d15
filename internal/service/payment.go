package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mansoorceksport/freightdesk/internal/domain"
	"github.com/mansoorceksport/freightdesk/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// WebhookDedupeTTL is how long a processed gateway event id is remembered
const WebhookDedupeTTL = 72 * time.Hour

// Sequence names on the counters collection
const (
	paymentSequence = "payments"
	invoiceSequence = "invoices"
)

// Webhook outcomes reported in the acknowledgement and the webhook counter
const (
	WebhookOutcomeProcessed = "processed"
	WebhookOutcomeDuplicate = "duplicate"
	WebhookOutcomeIgnored   = "ignored"
	WebhookOutcomeUnmatched = "unmatched"
)

// InvoiceRenderer produces the invoice document for a client
type InvoiceRenderer interface {
	Render(ctx context.Context, invoice *domain.Invoice, client *domain.Client) (*RenderedInvoice, error)
}

// EventDeduper remembers gateway event ids that were already handled
type EventDeduper interface {
	ClaimEvent(ctx context.Context, gateway, eventID string, ttl time.Duration) (bool, error)
	ReleaseEvent(ctx context.Context, gateway, eventID string) error
}

// AnalyticsInvalidator drops cached dashboard aggregates after ledger writes
type AnalyticsInvalidator interface {
	InvalidateAnalytics(ctx context.Context) error
}

// PaymentDeps are the collaborators of PaymentService. Events and Cache are optional.
type PaymentDeps struct {
	Payments      domain.PaymentRepository
	Invoices      domain.InvoiceRepository
	Clients       domain.ClientRepository
	Sequences     domain.SequenceRepository
	Gateways      Gateways
	Webhooks      WebhookVerifier
	Renderer      InvoiceRenderer
	Notifications *NotificationService
	Events        EventDeduper
	Cache         AnalyticsInvalidator
	Metrics       *telemetry.PaymentMetrics
	Logger        zerolog.Logger

	TaxRate decimal.Decimal
	DueDays int
	Terms   string
	Now     func() time.Time
}

// PaymentService drives payments from creation through gateway confirmation
type PaymentService struct {
	payments      domain.PaymentRepository
	invoices      domain.InvoiceRepository
	clients       domain.ClientRepository
	sequences     domain.SequenceRepository
	gateways      Gateways
	webhooks      WebhookVerifier
	renderer      InvoiceRenderer
	notifications *NotificationService
	events        EventDeduper
	cache         AnalyticsInvalidator
	metrics       *telemetry.PaymentMetrics
	logger        zerolog.Logger

	taxRate decimal.Decimal
	dueDays int
	terms   string
	now     func() time.Time
}

func NewPaymentService(deps PaymentDeps) *PaymentService {
	s := &PaymentService{
		payments:      deps.Payments,
		invoices:      deps.Invoices,
		clients:       deps.Clients,
		sequences:     deps.Sequences,
		gateways:      deps.Gateways,
		webhooks:      deps.Webhooks,
		renderer:      deps.Renderer,
		notifications: deps.Notifications,
		events:        deps.Events,
		cache:         deps.Cache,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		taxRate:       deps.TaxRate,
		dueDays:       deps.DueDays,
		terms:         deps.Terms,
		now:           deps.Now,
	}
	if s.taxRate.IsZero() {
		s.taxRate = domain.DefaultTaxRate
	}
	if s.dueDays <= 0 {
		s.dueDays = 30
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.webhooks == nil {
		s.webhooks = disabledVerifier{}
	}
	return s
}

// ItemInput is one requested invoice line
type ItemInput struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CreatePaymentInput is the request to bill a client
type CreatePaymentInput struct {
	ClientID    string      `json:"client_id"`
	Items       []ItemInput `json:"items"`
	ShipmentID  string      `json:"shipment_id"`
	QuoteID     string      `json:"quote_id"`
	Currency    string      `json:"currency"`
	Description string      `json:"description"`
	DueDate     *time.Time  `json:"due_date"`
	Notes       string      `json:"notes"`
}

// CreatePayment validates the items, persists the payment and its draft invoice,
// renders the invoice and emails it. Email failure leaves the invoice in draft.
func (s *PaymentService) CreatePayment(ctx context.Context, caller domain.Caller, input CreatePaymentInput) (*domain.Payment, *domain.Invoice, error) {
	clientID := strings.TrimSpace(input.ClientID)
	if !caller.IsAdmin() {
		if clientID != "" && clientID != caller.ID {
			return nil, nil, domain.NewForbiddenError("clients can only create payments for themselves")
		}
		clientID = caller.ID
	}
	if clientID == "" {
		return nil, nil, domain.NewValidationError("client_id is required")
	}
	if len(input.Items) == 0 {
		return nil, nil, domain.NewValidationError("at least one item is required")
	}

	items := make([]domain.LineItem, 0, len(input.Items))
	for _, in := range input.Items {
		item, err := domain.NewLineItem(in.Description, in.Quantity, in.UnitPrice)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, item)
	}

	now := s.now()
	dueDate := now.AddDate(0, 0, s.dueDays)
	if input.DueDate != nil {
		if !input.DueDate.After(now) {
			return nil, nil, domain.NewValidationError("due_date must be in the future")
		}
		dueDate = input.DueDate.UTC()
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	if len(currency) != 3 {
		return nil, nil, domain.NewValidationError("currency must be a 3 letter ISO code")
	}

	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return nil, nil, loadError("client", err)
	}

	_, _, total := domain.CalculateTotals(items, s.taxRate)

	year := now.Year()
	paymentSeq, err := s.sequences.Next(ctx, paymentSequence, year)
	if err != nil {
		return nil, nil, domain.NewPersistenceError("allocate invoice number", err)
	}
	invoiceSeq, err := s.sequences.Next(ctx, invoiceSequence, year)
	if err != nil {
		return nil, nil, domain.NewPersistenceError("allocate invoice number", err)
	}

	payment := &domain.Payment{
		InvoiceNumber: domain.FormatInvoiceNumber(year, paymentSeq),
		ClientID:      client.ID,
		ShipmentID:    strings.TrimSpace(input.ShipmentID),
		QuoteID:       strings.TrimSpace(input.QuoteID),
		Amount:        total,
		Currency:      currency,
		Description:   describeItems(input.Description, items),
		Items:         items,
		Status:        domain.PaymentStatusPending,
		Method:        domain.PaymentMethodPending,
		DueDate:       dueDate,
		Notes:         input.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, nil, domain.NewPersistenceError("create payment", err)
	}

	invoice := &domain.Invoice{
		InvoiceNumber: domain.FormatInvoiceNumber(year, invoiceSeq),
		PaymentID:     payment.ID,
		ClientID:      client.ID,
		IssueDate:     now,
		DueDate:       dueDate,
		Items:         items,
		TaxRate:       s.taxRate,
		Currency:      currency,
		Notes:         input.Notes,
		Terms:         s.terms,
		Status:        domain.InvoiceStatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	invoice.Recalculate()
	if err := s.invoices.Create(ctx, invoice); err != nil {
		return nil, nil, domain.NewPersistenceError("create invoice", err)
	}

	log := s.logger.With().Str("payment_id", payment.ID).Str("invoice_number", invoice.InvoiceNumber).Logger()

	rendered, err := s.renderer.Render(ctx, invoice, client)
	if err != nil {
		return nil, nil, domain.NewPersistenceError("render invoice", err)
	}
	invoice.PDFURL = rendered.Location()
	if err := s.invoices.Update(ctx, invoice); err != nil {
		return nil, nil, domain.NewPersistenceError("update invoice", err)
	}

	if err := s.notifications.SendInvoice(ctx, client, payment, invoice, rendered.Path); err != nil {
		log.Warn().Err(err).Msg("invoice email failed, invoice stays draft")
	} else {
		invoice.MarkSent(s.now())
		if err := s.invoices.Update(ctx, invoice); err != nil {
			log.Error().Err(err).Msg("failed to record invoice as sent")
		}
	}

	s.metrics.PaymentCreated(ctx, currency)
	s.invalidateAnalytics(ctx)
	log.Info().Str("amount", payment.Amount.StringFixed(2)).Msg("payment created")

	return payment, invoice, nil
}

// TransactionResult is what the client needs to finish paying with a gateway
type TransactionResult struct {
	PaymentID     string               `json:"payment_id"`
	Gateway       domain.PaymentMethod `json:"gateway"`
	TransactionID string               `json:"transaction_id"`
	ClientSecret  string               `json:"client_secret,omitempty"`
	ApprovalURL   string               `json:"approval_url,omitempty"`
}

// InitiateGatewayTransaction opens a gateway transaction for the payment and moves it to processing.
// Initiating again while processing replaces the outstanding transaction id.
func (s *PaymentService) InitiateGatewayTransaction(ctx context.Context, caller domain.Caller, paymentID string, gatewayName string) (*TransactionResult, error) {
	method, err := domain.ParseGateway(gatewayName)
	if err != nil {
		return nil, err
	}
	gw, err := s.gateways.Get(method)
	if err != nil {
		return nil, err
	}

	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, loadError("payment", err)
	}
	if err := domain.AuthorizeOwner(caller, payment.ClientID); err != nil {
		return nil, err
	}
	if payment.Status != domain.PaymentStatusPending && payment.Status != domain.PaymentStatusProcessing {
		return nil, domain.NewConflictError(fmt.Sprintf("payment is %s and cannot be paid", payment.Status), domain.ErrInvalidTransition)
	}

	intent, err := gw.CreateIntent(ctx, payment.Amount, payment.Currency, map[string]string{
		"payment_id":     payment.ID,
		"client_id":      payment.ClientID,
		"invoice_number": payment.InvoiceNumber,
		"description":    payment.Description,
	})
	if err != nil {
		return nil, domain.NewGatewayError(method, err)
	}

	expected := payment.Status
	now := s.now()
	if expected == domain.PaymentStatusPending {
		if err := domain.TransitionPayment(payment, domain.PaymentStatusProcessing, now); err != nil {
			return nil, domain.NewConflictError("cannot initiate payment", err)
		}
	} else {
		s.logger.Info().
			Str("payment_id", payment.ID).
			Str("previous_transaction_id", payment.GatewayTransactionID).
			Msg("replacing outstanding gateway transaction")
	}
	payment.Method = method
	payment.GatewayTransactionID = intent.TransactionID
	payment.GatewayResponse = intent.Payload
	payment.UpdatedAt = now

	if err := s.payments.Update(ctx, payment, expected); err != nil {
		return nil, updateError(err)
	}

	return &TransactionResult{
		PaymentID:     payment.ID,
		Gateway:       method,
		TransactionID: intent.TransactionID,
		ClientSecret:  intent.ClientSecret,
		ApprovalURL:   intent.ApprovalURL,
	}, nil
}

// WebhookAck is returned to the gateway for every accepted delivery
type WebhookAck struct {
	EventID string `json:"event_id,omitempty"`
	Outcome string `json:"outcome"`
}

// ConfirmWebhookEvent verifies a raw gateway callback and applies it.
// Nothing is parsed or written before the signature is verified.
func (s *PaymentService) ConfirmWebhookEvent(ctx context.Context, rawBody []byte, signature string) (*WebhookAck, error) {
	event, err := s.webhooks.VerifyWebhook(rawBody, signature)
	if err != nil {
		s.metrics.WebhookReceived(ctx, "unknown", "rejected")
		if domain.KindOf(err) == domain.KindSignature {
			return nil, err
		}
		return nil, domain.NewSignatureError(err)
	}

	log := s.logger.With().
		Str("gateway", string(event.Gateway)).
		Str("event_id", event.ID).
		Str("event_type", event.RawType).
		Logger()

	ack := &WebhookAck{EventID: event.ID}
	if event.Type == domain.WebhookUnknown {
		ack.Outcome = WebhookOutcomeIgnored
		s.metrics.WebhookReceived(ctx, string(event.Gateway), ack.Outcome)
		log.Debug().Msg("ignoring unhandled webhook event type")
		return ack, nil
	}

	claimed := false
	if s.events != nil && event.ID != "" {
		ok, err := s.events.ClaimEvent(ctx, string(event.Gateway), event.ID, WebhookDedupeTTL)
		if err != nil {
			// the status guard below still prevents double completion
			log.Warn().Err(err).Msg("webhook dedupe unavailable")
		} else if !ok {
			ack.Outcome = WebhookOutcomeDuplicate
			s.metrics.WebhookReceived(ctx, string(event.Gateway), ack.Outcome)
			log.Info().Msg("duplicate webhook delivery acknowledged")
			return ack, nil
		} else {
			claimed = true
		}
	}

	outcome, err := s.applyWebhook(ctx, event, log)
	if err != nil {
		if claimed {
			if relErr := s.events.ReleaseEvent(ctx, string(event.Gateway), event.ID); relErr != nil {
				log.Warn().Err(relErr).Msg("failed to release webhook claim")
			}
		}
		return nil, err
	}

	ack.Outcome = outcome
	s.metrics.WebhookReceived(ctx, string(event.Gateway), outcome)
	return ack, nil
}

func (s *PaymentService) applyWebhook(ctx context.Context, event *domain.WebhookEvent, log zerolog.Logger) (string, error) {
	payment, err := s.payments.GetByGatewayTransactionID(ctx, event.TransactionID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Info().Str("transaction_id", event.TransactionID).Msg("webhook for unknown transaction acknowledged")
		return WebhookOutcomeUnmatched, nil
	}
	if err != nil {
		return "", domain.NewPersistenceError("load payment", err)
	}

	var changed bool
	switch event.Type {
	case domain.WebhookPaymentSucceeded:
		changed, err = s.complete(ctx, payment, event.Payload)
	case domain.WebhookPaymentFailed:
		changed, err = s.fail(ctx, payment, event.Payload)
	}
	if err != nil {
		return "", err
	}
	if !changed {
		return WebhookOutcomeDuplicate, nil
	}
	return WebhookOutcomeProcessed, nil
}

// CaptureOrder completes an approved order synchronously. A capture the gateway
// does not report as completed marks the payment failed and returns a declined error.
func (s *PaymentService) CaptureOrder(ctx context.Context, caller domain.Caller, orderID string) (*domain.Payment, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, domain.NewValidationError("order_id is required")
	}

	payment, err := s.payments.GetByGatewayTransactionID(ctx, orderID)
	if err != nil {
		return nil, loadError("payment", err)
	}
	if err := domain.AuthorizeOwner(caller, payment.ClientID); err != nil {
		return nil, err
	}
	if payment.Status == domain.PaymentStatusCompleted {
		return payment, nil
	}
	if payment.Status != domain.PaymentStatusProcessing {
		return nil, domain.NewConflictError(fmt.Sprintf("payment is %s and cannot be captured", payment.Status), domain.ErrInvalidTransition)
	}

	gw, err := s.gateways.Get(payment.Method)
	if err != nil {
		return nil, err
	}
	capture, err := gw.Capture(ctx, orderID)
	if err != nil {
		return nil, domain.NewGatewayError(payment.Method, err)
	}

	if capture.Completed {
		if _, err := s.complete(ctx, payment, capture.Payload); err != nil {
			return nil, err
		}
		return payment, nil
	}

	if _, err := s.fail(ctx, payment, capture.Payload); err != nil {
		return nil, err
	}
	return nil, domain.NewDeclinedError(fmt.Sprintf("payment was not completed (gateway status %s)", capture.Status))
}

// complete moves a payment to completed and runs the paid side effects.
// It reports false when the payment was already completed.
func (s *PaymentService) complete(ctx context.Context, payment *domain.Payment, payload *domain.GatewayPayload) (bool, error) {
	log := s.logger.With().Str("payment_id", payment.ID).Logger()

	if payment.Status == domain.PaymentStatusCompleted {
		return false, s.finishCompletion(ctx, payment)
	}

	expected := payment.Status
	if err := domain.TransitionPayment(payment, domain.PaymentStatusCompleted, s.now()); err != nil {
		log.Warn().Err(err).Msg("gateway success ignored")
		return false, nil
	}
	if payload != nil {
		payment.GatewayResponse = payload
	}

	if err := s.payments.Update(ctx, payment, expected); err != nil {
		if !errors.Is(err, domain.ErrStatusConflict) {
			return false, updateError(err)
		}
		current, getErr := s.payments.GetByID(ctx, payment.ID)
		if getErr != nil {
			return false, loadError("payment", getErr)
		}
		*payment = *current
		if current.Status == domain.PaymentStatusCompleted {
			return false, s.finishCompletion(ctx, payment)
		}
		return false, updateError(err)
	}

	s.metrics.PaymentCompleted(ctx, string(payment.Method))
	log.Info().Str("method", string(payment.Method)).Msg("payment completed")

	if err := s.finishCompletion(ctx, payment); err != nil {
		return true, err
	}
	s.invalidateAnalytics(ctx)
	return true, nil
}

// finishCompletion marks the invoice paid and sends the receipt if it has not gone out yet.
// Safe to repeat for an already completed payment.
func (s *PaymentService) finishCompletion(ctx context.Context, payment *domain.Payment) error {
	invoice, err := s.invoices.GetByPaymentID(ctx, payment.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.logger.Warn().Str("payment_id", payment.ID).Msg("completed payment has no invoice")
	case err != nil:
		return domain.NewPersistenceError("load invoice", err)
	default:
		paidAt := s.now()
		if payment.PaidAt != nil {
			paidAt = *payment.PaidAt
		}
		if invoice.MarkPaid(paidAt) {
			if err := s.invoices.Update(ctx, invoice); err != nil {
				return domain.NewPersistenceError("update invoice", err)
			}
		}
	}

	if !payment.ReceiptSent {
		s.sendReceipt(ctx, payment)
	}
	return nil
}

func (s *PaymentService) sendReceipt(ctx context.Context, payment *domain.Payment) {
	log := s.logger.With().Str("payment_id", payment.ID).Logger()

	client, err := s.clients.GetByID(ctx, payment.ClientID)
	if err != nil {
		log.Warn().Err(err).Msg("cannot load client for receipt")
		return
	}

	if err := s.notifications.SendReceipt(ctx, client, payment); err != nil {
		log.Warn().Err(err).Msg("receipt email failed")
	} else if err := s.payments.MarkReceiptSent(ctx, payment.ID); err != nil {
		log.Warn().Err(err).Msg("failed to flag receipt as sent")
	} else {
		payment.ReceiptSent = true
	}

	if err := s.notifications.SendPaymentSMS(ctx, client, domain.SMSTemplatePaymentReceived, payment, 0); err != nil {
		log.Warn().Err(err).Msg("payment sms failed")
	}
}

// fail moves a processing payment to failed and notifies the client.
// It reports false when nothing changed.
func (s *PaymentService) fail(ctx context.Context, payment *domain.Payment, payload *domain.GatewayPayload) (bool, error) {
	log := s.logger.With().Str("payment_id", payment.ID).Logger()

	if payment.Status == domain.PaymentStatusFailed {
		return false, nil
	}
	expected := payment.Status
	if err := domain.TransitionPayment(payment, domain.PaymentStatusFailed, s.now()); err != nil {
		log.Warn().Err(err).Msg("gateway failure ignored")
		return false, nil
	}
	if payload != nil {
		payment.GatewayResponse = payload
	}

	if err := s.payments.Update(ctx, payment, expected); err != nil {
		if !errors.Is(err, domain.ErrStatusConflict) {
			return false, updateError(err)
		}
		current, getErr := s.payments.GetByID(ctx, payment.ID)
		if getErr != nil {
			return false, loadError("payment", getErr)
		}
		*payment = *current
		return false, nil
	}

	s.metrics.PaymentFailed(ctx, string(payment.Method))
	log.Info().Str("method", string(payment.Method)).Msg("payment failed")

	client, err := s.clients.GetByID(ctx, payment.ClientID)
	if err != nil {
		log.Warn().Err(err).Msg("cannot load client for failure notice")
		return true, nil
	}
	if err := s.notifications.SendPaymentFailed(ctx, client, payment); err != nil {
		log.Warn().Err(err).Msg("payment failed email failed")
	}
	if err := s.notifications.SendPaymentSMS(ctx, client, domain.SMSTemplatePaymentFailed, payment, 0); err != nil {
		log.Warn().Err(err).Msg("payment sms failed")
	}
	s.invalidateAnalytics(ctx)
	return true, nil
}

// GetPayment returns the payment and its invoice. The invoice is nil when missing.
func (s *PaymentService) GetPayment(ctx context.Context, caller domain.Caller, paymentID string) (*domain.Payment, *domain.Invoice, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, nil, loadError("payment", err)
	}
	if err := domain.AuthorizeOwner(caller, payment.ClientID); err != nil {
		return nil, nil, err
	}

	invoice, err := s.invoices.GetByPaymentID(ctx, payment.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, domain.NewPersistenceError("load invoice", err)
	}
	return payment, invoice, nil
}

// ListPaymentsQuery pages through payments
type ListPaymentsQuery struct {
	ClientID string
	Status   string
	Page     int
	Limit    int
}

// PaymentPage is one page of payments
type PaymentPage struct {
	Payments []*domain.Payment
	Page     int
	Limit    int
	Total    int64
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListPayments pages through payments, newest first. Clients only ever see their own.
func (s *PaymentService) ListPayments(ctx context.Context, caller domain.Caller, query ListPaymentsQuery) (*PaymentPage, error) {
	filter := domain.PaymentFilter{ClientID: strings.TrimSpace(query.ClientID)}
	if !caller.IsAdmin() {
		filter.ClientID = caller.ID
	}
	if query.Status != "" {
		status, err := parsePaymentStatus(query.Status)
		if err != nil {
			return nil, err
		}
		filter.Statuses = []domain.PaymentStatus{status}
	}

	page, limit := query.Page, query.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	payments, total, err := s.payments.List(ctx, filter, (page-1)*limit, limit)
	if err != nil {
		return nil, domain.NewPersistenceError("list payments", err)
	}
	return &PaymentPage{Payments: payments, Page: page, Limit: limit, Total: total}, nil
}

// CancelPayment cancels a pending payment and voids its invoice
func (s *PaymentService) CancelPayment(ctx context.Context, caller domain.Caller, paymentID string) (*domain.Payment, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, loadError("payment", err)
	}
	if err := domain.AuthorizeOwner(caller, payment.ClientID); err != nil {
		return nil, err
	}

	expected := payment.Status
	now := s.now()
	if err := domain.TransitionPayment(payment, domain.PaymentStatusCancelled, now); err != nil {
		return nil, domain.NewConflictError(fmt.Sprintf("payment is %s and cannot be cancelled", expected), err)
	}
	if err := s.payments.Update(ctx, payment, expected); err != nil {
		return nil, updateError(err)
	}

	invoice, err := s.invoices.GetByPaymentID(ctx, payment.ID)
	if err == nil && invoice.MarkCancelled(now) {
		err = s.invoices.Update(ctx, invoice)
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Error().Err(err).Str("payment_id", payment.ID).Msg("failed to cancel invoice")
	}

	s.invalidateAnalytics(ctx)
	return payment, nil
}

func (s *PaymentService) invalidateAnalytics(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAnalytics(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate analytics cache")
	}
}

func describeItems(description string, items []domain.LineItem) string {
	if d := strings.TrimSpace(description); d != "" {
		return d
	}
	if len(items) == 1 {
		return items[0].Description
	}
	return fmt.Sprintf("%s and %d more", items[0].Description, len(items)-1)
}

func parsePaymentStatus(value string) (domain.PaymentStatus, error) {
	status := domain.PaymentStatus(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case domain.PaymentStatusPending, domain.PaymentStatusProcessing, domain.PaymentStatusCompleted,
		domain.PaymentStatusFailed, domain.PaymentStatusRefunded, domain.PaymentStatusCancelled:
		return status, nil
	}
	return "", domain.NewValidationError("unknown payment status %q", value)
}

func loadError(resource string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewNotFoundError(resource)
	}
	return domain.NewPersistenceError("load "+resource, err)
}

func updateError(err error) error {
	switch {
	case errors.Is(err, domain.ErrStatusConflict):
		return domain.NewConflictError("payment was modified concurrently, retry the request", err)
	case errors.Is(err, domain.ErrNotFound):
		return domain.NewNotFoundError("payment")
	default:
		return domain.NewPersistenceError("update payment", err)
	}
}
