package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the delivery/payment state of an invoice document
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusViewed    InvoiceStatus = "viewed"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// DefaultTaxRate is the flat tax percentage applied to every invoice
var DefaultTaxRate = decimal.NewFromInt(15)

var hundred = decimal.NewFromInt(100)

// Invoice is the billing document issued for exactly one payment
type Invoice struct {
	ID            string          `bson:"_id" json:"id"`
	InvoiceNumber string          `bson:"invoice_number" json:"invoice_number"`
	PaymentID     string          `bson:"payment_id" json:"payment_id"`
	ClientID      string          `bson:"client_id" json:"client_id"`
	IssueDate     time.Time       `bson:"issue_date" json:"issue_date"`
	DueDate       time.Time       `bson:"due_date" json:"due_date"`
	Items         []LineItem      `bson:"items" json:"items"`
	Subtotal      decimal.Decimal `bson:"subtotal" json:"subtotal"`
	TaxRate       decimal.Decimal `bson:"tax_rate" json:"tax_rate"`
	TaxAmount     decimal.Decimal `bson:"tax_amount" json:"tax_amount"`
	TotalAmount   decimal.Decimal `bson:"total_amount" json:"total_amount"`
	Currency      string          `bson:"currency" json:"currency"`
	Notes         string          `bson:"notes,omitempty" json:"notes,omitempty"`
	Terms         string          `bson:"terms,omitempty" json:"terms,omitempty"`
	Status        InvoiceStatus   `bson:"status" json:"status"`
	SentAt        *time.Time      `bson:"sent_at,omitempty" json:"sent_at,omitempty"`
	ViewedAt      *time.Time      `bson:"viewed_at,omitempty" json:"viewed_at,omitempty"`
	PaidAt        *time.Time      `bson:"paid_at,omitempty" json:"paid_at,omitempty"`
	PDFURL        string          `bson:"pdf_url,omitempty" json:"pdf_url,omitempty"`
	CreatedAt     time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `bson:"updated_at" json:"updated_at"`
}

// CalculateTotals returns subtotal, tax and total for the items at taxRate percent
func CalculateTotals(items []LineItem, taxRate decimal.Decimal) (subtotal, tax, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Quantity.Mul(item.UnitPrice))
	}
	subtotal = subtotal.Round(2)
	tax = subtotal.Mul(taxRate).Div(hundred).Round(2)
	total = subtotal.Add(tax)
	return subtotal, tax, total
}

// Recalculate refreshes line totals and the invoice totals. Call before every persist.
func (i *Invoice) Recalculate() {
	for idx := range i.Items {
		i.Items[idx].Total = i.Items[idx].Quantity.Mul(i.Items[idx].UnitPrice).Round(2)
	}
	i.Subtotal, i.TaxAmount, i.TotalAmount = CalculateTotals(i.Items, i.TaxRate)
}

// MarkPaid moves the invoice to paid; already paid or cancelled invoices are left alone
func (i *Invoice) MarkPaid(at time.Time) bool {
	if i.Status == InvoiceStatusPaid || i.Status == InvoiceStatusCancelled {
		return false
	}
	i.Status = InvoiceStatusPaid
	i.PaidAt = &at
	i.UpdatedAt = at
	return true
}

// MarkSent records a successful invoice email
func (i *Invoice) MarkSent(at time.Time) {
	if i.Status != InvoiceStatusDraft {
		return
	}
	i.Status = InvoiceStatusSent
	i.SentAt = &at
	i.UpdatedAt = at
}

// MarkOverdue flags an unpaid, delivered or draft invoice as overdue
func (i *Invoice) MarkOverdue(at time.Time) bool {
	switch i.Status {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusViewed:
		i.Status = InvoiceStatusOverdue
		i.UpdatedAt = at
		return true
	}
	return false
}

// MarkCancelled voids an unpaid invoice
func (i *Invoice) MarkCancelled(at time.Time) bool {
	if i.Status == InvoiceStatusPaid || i.Status == InvoiceStatusCancelled {
		return false
	}
	i.Status = InvoiceStatusCancelled
	i.UpdatedAt = at
	return true
}

// InvoiceRepository persists invoices
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *Invoice) error
	GetByID(ctx context.Context, id string) (*Invoice, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*Invoice, error)
	Update(ctx context.Context, invoice *Invoice) error
}
