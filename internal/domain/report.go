package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MethodTotal is an amount and count grouped by payment method
type MethodTotal struct {
	Method PaymentMethod   `json:"payment_method"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// DailyReport summarizes one UTC calendar day
type DailyReport struct {
	Date             string          `json:"date"`
	CompletedCount   int             `json:"completed_count"`
	CompletedAmount  decimal.Decimal `json:"completed_amount"`
	FailedCount      int             `json:"failed_count"`
	PendingCount     int             `json:"pending_count"`
	ByMethod         []MethodTotal   `json:"by_method"`
	ReportEmailed    bool            `json:"report_emailed"`
	ReportEmailError string          `json:"report_email_error,omitempty"`
}

// ReminderError records one payment whose reminder could not be delivered
type ReminderError struct {
	Payment string `json:"payment"`
	Error   string `json:"error"`
}

// ReminderResult is the outcome of an overdue reminder batch
type ReminderResult struct {
	RemindersSent int             `json:"reminders_sent"`
	TotalOverdue  int             `json:"total_overdue"`
	Errors        []ReminderError `json:"errors"`
}

// SweepResult is the outcome of the weekly overdue sweep
type SweepResult struct {
	Scanned       int      `json:"scanned"`
	MarkedOverdue int      `json:"marked_overdue"`
	Errors        []string `json:"errors,omitempty"`
}

// DayTotal is an amount and count for one calendar day (YYYY-MM-DD)
type DayTotal struct {
	Date   string          `json:"date"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// ClientTotal is revenue attributed to one client
type ClientTotal struct {
	ClientID   string          `json:"client_id"`
	ClientName string          `json:"client_name"`
	Count      int             `json:"count"`
	Amount     decimal.Decimal `json:"amount"`
}

// MonthlyReport summarizes completed payments for one month
type MonthlyReport struct {
	Year        int             `json:"year"`
	Month       int             `json:"month"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	TotalCount  int             `json:"total_count"`
	ByDay       []DayTotal      `json:"by_day"`
	ByMethod    []MethodTotal   `json:"by_method"`
	TopClients  []ClientTotal   `json:"top_clients"`
}

// AnalyticsReport is the rolling-window payment dashboard
type AnalyticsReport struct {
	WindowDays   int                   `json:"window_days"`
	From         time.Time             `json:"from"`
	To           time.Time             `json:"to"`
	StatusCounts map[PaymentStatus]int `json:"status_counts"`
	Revenue      decimal.Decimal       `json:"revenue"`
	RevenueByDay []DayTotal            `json:"revenue_by_day"`
	ByMethod     []MethodTotal         `json:"by_method"`
	ByClient     []ClientTotal         `json:"by_client"`
	SuccessRate  float64               `json:"success_rate"`
}
