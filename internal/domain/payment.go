package domain

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
)

// PaymentMethod identifies how a payment was settled. Gateways share the same names.
type PaymentMethod string

const (
	PaymentMethodPending PaymentMethod = "pending"
	PaymentMethodStripe  PaymentMethod = "stripe"
	PaymentMethodPayPal  PaymentMethod = "paypal"
)

// ParseGateway validates a caller-supplied gateway name
func ParseGateway(name string) (PaymentMethod, error) {
	switch PaymentMethod(strings.ToLower(strings.TrimSpace(name))) {
	case PaymentMethodStripe:
		return PaymentMethodStripe, nil
	case PaymentMethodPayPal:
		return PaymentMethodPayPal, nil
	default:
		return "", NewValidationError("unsupported payment gateway %q", name)
	}
}

const DefaultCurrency = "USD"

// paymentTransitions lists every legal status change. Nothing leaves completed
// except a refund, and failed, refunded and cancelled are terminal.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusCancelled},
	PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusCompleted:  {PaymentStatusRefunded},
}

// CanTransition reports whether a payment may move from one status to another
func CanTransition(from, to PaymentStatus) bool {
	for _, allowed := range paymentTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// LineItem is a single billed line. Total is always Quantity x UnitPrice.
type LineItem struct {
	Description string          `bson:"description" json:"description"`
	Quantity    decimal.Decimal `bson:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `bson:"unit_price" json:"unit_price"`
	Total       decimal.Decimal `bson:"total" json:"total"`
}

// NewLineItem validates the input and computes the line total
func NewLineItem(description string, quantity, unitPrice decimal.Decimal) (LineItem, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return LineItem{}, NewValidationError("item description is required")
	}
	if !quantity.IsPositive() {
		return LineItem{}, NewValidationError("item %q: quantity must be greater than zero", description)
	}
	if unitPrice.IsNegative() {
		return LineItem{}, NewValidationError("item %q: unit price cannot be negative", description)
	}
	return LineItem{
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Total:       quantity.Mul(unitPrice).Round(2),
	}, nil
}

// Payment is one billable transaction
type Payment struct {
	ID                   string          `bson:"_id" json:"id"`
	InvoiceNumber        string          `bson:"invoice_number" json:"invoice_number"`
	ClientID             string          `bson:"client_id" json:"client_id"`
	ShipmentID           string          `bson:"shipment_id,omitempty" json:"shipment_id,omitempty"`
	QuoteID              string          `bson:"quote_id,omitempty" json:"quote_id,omitempty"`
	Amount               decimal.Decimal `bson:"amount" json:"amount"`
	Currency             string          `bson:"currency" json:"currency"`
	Description          string          `bson:"description" json:"description"`
	Items                []LineItem      `bson:"items" json:"items"`
	Status               PaymentStatus   `bson:"status" json:"status"`
	Method               PaymentMethod   `bson:"payment_method" json:"payment_method"`
	GatewayTransactionID string          `bson:"gateway_transaction_id,omitempty" json:"gateway_transaction_id,omitempty"`
	GatewayResponse      *GatewayPayload `bson:"gateway_response,omitempty" json:"gateway_response,omitempty"`
	DueDate              time.Time       `bson:"due_date" json:"due_date"`
	PaidAt               *time.Time      `bson:"paid_at,omitempty" json:"paid_at,omitempty"`
	ReceiptSent          bool            `bson:"receipt_sent" json:"receipt_sent"`
	Notes                string          `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt            time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `bson:"updated_at" json:"updated_at"`
}

// IsOverdue is true only for pending payments past their due date
func (p *Payment) IsOverdue(now time.Time) bool {
	return p.Status == PaymentStatusPending && now.After(p.DueDate)
}

// DaysOverdue returns whole days past the due date, or 0 when not overdue
func (p *Payment) DaysOverdue(now time.Time) int {
	if !p.IsOverdue(now) {
		return 0
	}
	return int(math.Ceil(now.Sub(p.DueDate).Hours() / 24))
}

// TransitionPayment is the single place payment status changes.
// It rejects illegal transitions and stamps paid_at on completion.
func TransitionPayment(p *Payment, to PaymentStatus, now time.Time) error {
	if !CanTransition(p.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, to)
	}
	p.Status = to
	p.UpdatedAt = now
	if to == PaymentStatusCompleted {
		paidAt := now
		p.PaidAt = &paidAt
	}
	return nil
}

// FormatInvoiceNumber renders INV-<year>-<5 digit sequence>
func FormatInvoiceNumber(year int, seq int64) string {
	return fmt.Sprintf("INV-%d-%05d", year, seq)
}

// PaymentFilter narrows payment queries. Zero values are ignored.
type PaymentFilter struct {
	ClientID    string
	Statuses    []PaymentStatus
	PaidFrom    *time.Time // inclusive
	PaidTo      *time.Time // exclusive
	UpdatedFrom *time.Time
	UpdatedTo   *time.Time
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	DueBefore   *time.Time
}

// PaymentRepository persists payments
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	GetByID(ctx context.Context, id string) (*Payment, error)
	GetByGatewayTransactionID(ctx context.Context, transactionID string) (*Payment, error)
	// Update writes the payment only if its stored status still equals expectedStatus,
	// returning ErrStatusConflict otherwise.
	Update(ctx context.Context, payment *Payment, expectedStatus PaymentStatus) error
	MarkReceiptSent(ctx context.Context, id string) error
	List(ctx context.Context, filter PaymentFilter, offset, limit int) ([]*Payment, int64, error)
	Find(ctx context.Context, filter PaymentFilter) ([]*Payment, error)
}

// SequenceRepository hands out per-year counters for human-readable numbers
type SequenceRepository interface {
	Next(ctx context.Context, name string, year int) (int64, error)
}
