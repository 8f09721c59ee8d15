package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionPayment(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		from    PaymentStatus
		to      PaymentStatus
		wantErr bool
	}{
		{"pending to processing", PaymentStatusPending, PaymentStatusProcessing, false},
		{"pending to cancelled", PaymentStatusPending, PaymentStatusCancelled, false},
		{"processing to completed", PaymentStatusProcessing, PaymentStatusCompleted, false},
		{"processing to failed", PaymentStatusProcessing, PaymentStatusFailed, false},
		{"completed to refunded", PaymentStatusCompleted, PaymentStatusRefunded, false},
		{"completed to completed", PaymentStatusCompleted, PaymentStatusCompleted, true},
		{"completed to failed", PaymentStatusCompleted, PaymentStatusFailed, true},
		{"failed to completed", PaymentStatusFailed, PaymentStatusCompleted, true},
		{"failed to pending", PaymentStatusFailed, PaymentStatusPending, true},
		{"cancelled to processing", PaymentStatusCancelled, PaymentStatusProcessing, true},
		{"refunded to completed", PaymentStatusRefunded, PaymentStatusCompleted, true},
		{"processing to cancelled", PaymentStatusProcessing, PaymentStatusCancelled, true},
		{"pending to completed", PaymentStatusPending, PaymentStatusCompleted, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Payment{Status: tt.from}
			err := TransitionPayment(p, tt.to, now)

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidTransition))
				assert.Equal(t, tt.from, p.Status, "status must not change on rejected transition")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, p.Status)
			assert.Equal(t, now, p.UpdatedAt)
		})
	}
}

func TestTransitionPayment_StampsPaidAt(t *testing.T) {
	now := time.Now().UTC()
	p := &Payment{Status: PaymentStatusProcessing}

	require.NoError(t, TransitionPayment(p, PaymentStatusCompleted, now))
	require.NotNil(t, p.PaidAt)
	assert.Equal(t, now, *p.PaidAt)

	failed := &Payment{Status: PaymentStatusProcessing}
	require.NoError(t, TransitionPayment(failed, PaymentStatusFailed, now))
	assert.Nil(t, failed.PaidAt)
}

func TestIsOverdue(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-72 * time.Hour)
	future := now.Add(72 * time.Hour)

	statuses := []PaymentStatus{
		PaymentStatusPending, PaymentStatusProcessing, PaymentStatusCompleted,
		PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusCancelled,
	}

	for _, status := range statuses {
		t.Run(string(status), func(t *testing.T) {
			late := &Payment{Status: status, DueDate: past}
			early := &Payment{Status: status, DueDate: future}

			assert.Equal(t, status == PaymentStatusPending, late.IsOverdue(now))
			assert.False(t, early.IsOverdue(now))
			assert.Equal(t, 0, early.DaysOverdue(now))
		})
	}

	p := &Payment{Status: PaymentStatusPending, DueDate: past}
	assert.Equal(t, 3, p.DaysOverdue(now))

	exact := &Payment{Status: PaymentStatusPending, DueDate: now}
	assert.False(t, exact.IsOverdue(now), "due date equal to now is not overdue")
}

func TestFormatInvoiceNumber(t *testing.T) {
	assert.Equal(t, "INV-2024-00001", FormatInvoiceNumber(2024, 1))
	assert.Equal(t, "INV-2024-00042", FormatInvoiceNumber(2024, 42))
	assert.Equal(t, "INV-2025-12345", FormatInvoiceNumber(2025, 12345))
}

func TestNewLineItem(t *testing.T) {
	item, err := NewLineItem("  Freight  ", decimal.NewFromInt(3), decimal.RequireFromString("19.99"))
	require.NoError(t, err)
	assert.Equal(t, "Freight", item.Description)
	assert.True(t, item.Total.Equal(decimal.RequireFromString("59.97")))

	_, err = NewLineItem("", decimal.NewFromInt(1), decimal.NewFromInt(1))
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = NewLineItem("Zero", decimal.Zero, decimal.NewFromInt(1))
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = NewLineItem("Negative", decimal.NewFromInt(1), decimal.NewFromInt(-5))
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestParseGateway(t *testing.T) {
	g, err := ParseGateway(" Stripe ")
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodStripe, g)

	g, err = ParseGateway("paypal")
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodPayPal, g)

	_, err = ParseGateway("pending")
	assert.Equal(t, KindValidation, KindOf(err))
}
