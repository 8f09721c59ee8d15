package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"time"

	"github.com/mansoorceksport/freightdesk/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// DefaultAnalyticsWindow is used when no window is requested
const DefaultAnalyticsWindow = 30

const topClientLimit = 10

// CSVHeader is the first row of every export
var CSVHeader = []string{"Invoice Number", "Client", "Amount", "Currency", "Payment Method", "Status", "Paid Date", "Description"}

// AnalyticsCache stores computed analytics windows
type AnalyticsCache interface {
	GetAnalytics(ctx context.Context, windowDays int, dest interface{}) error
	SetAnalytics(ctx context.Context, windowDays int, value interface{}, ttl time.Duration) error
}

// ReconciliationService runs the read-side reports and the overdue batch jobs
type ReconciliationService struct {
	payments      domain.PaymentRepository
	invoices      domain.InvoiceRepository
	clients       domain.ClientRepository
	notifications *NotificationService
	cache         AnalyticsCache
	cacheTTL      time.Duration
	opsEmail      string
	logger        zerolog.Logger
	now           func() time.Time
}

// NewReconciliationService creates the service. cache may be nil.
func NewReconciliationService(
	payments domain.PaymentRepository,
	invoices domain.InvoiceRepository,
	clients domain.ClientRepository,
	notifications *NotificationService,
	cache AnalyticsCache,
	cacheTTL time.Duration,
	opsEmail string,
	logger zerolog.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		payments:      payments,
		invoices:      invoices,
		clients:       clients,
		notifications: notifications,
		cache:         cache,
		cacheTTL:      cacheTTL,
		opsEmail:      opsEmail,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, used by tests
func (s *ReconciliationService) WithClock(now func() time.Time) *ReconciliationService {
	s.now = now
	return s
}

func utcDay(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// DailyReconciliation aggregates the UTC day containing date and emails the summary
// to the operations address. It never modifies payments.
func (s *ReconciliationService) DailyReconciliation(ctx context.Context, date time.Time) (*domain.DailyReport, error) {
	start, end := utcDay(date)

	var completed, failed, pending []*domain.Payment
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		completed, err = s.payments.Find(gCtx, domain.PaymentFilter{
			Statuses: []domain.PaymentStatus{domain.PaymentStatusCompleted},
			PaidFrom: &start,
			PaidTo:   &end,
		})
		return err
	})
	g.Go(func() error {
		var err error
		failed, err = s.payments.Find(gCtx, domain.PaymentFilter{
			Statuses:    []domain.PaymentStatus{domain.PaymentStatusFailed},
			UpdatedFrom: &start,
			UpdatedTo:   &end,
		})
		return err
	})
	g.Go(func() error {
		var err error
		pending, err = s.payments.Find(gCtx, domain.PaymentFilter{
			Statuses:    []domain.PaymentStatus{domain.PaymentStatusPending},
			CreatedFrom: &start,
			CreatedTo:   &end,
		})
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, domain.NewPersistenceError("load payments for reconciliation", err)
	}

	report := &domain.DailyReport{
		Date:            start.Format("2006-01-02"),
		CompletedCount:  len(completed),
		CompletedAmount: sumAmounts(completed),
		FailedCount:     len(failed),
		PendingCount:    len(pending),
		ByMethod:        groupByMethod(completed),
	}

	if s.opsEmail != "" {
		if err := s.notifications.SendDailyReport(ctx, s.opsEmail, report); err != nil {
			s.logger.Warn().Err(err).Str("date", report.Date).Msg("daily report email failed")
			report.ReportEmailError = err.Error()
		} else {
			report.ReportEmailed = true
		}
	}

	s.logger.Info().
		Str("date", report.Date).
		Int("completed", report.CompletedCount).
		Str("completed_amount", report.CompletedAmount.StringFixed(2)).
		Int("failed", report.FailedCount).
		Msg("daily reconciliation finished")
	return report, nil
}

func (s *ReconciliationService) overduePayments(ctx context.Context) ([]*domain.Payment, error) {
	now := s.now()
	payments, err := s.payments.Find(ctx, domain.PaymentFilter{
		Statuses:  []domain.PaymentStatus{domain.PaymentStatusPending},
		DueBefore: &now,
	})
	if err != nil {
		return nil, domain.NewPersistenceError("load overdue payments", err)
	}
	return payments, nil
}

// SendOverdueReminders emails every overdue payment's client. A failed reminder is
// recorded in the result and the batch carries on.
func (s *ReconciliationService) SendOverdueReminders(ctx context.Context) (*domain.ReminderResult, error) {
	overdue, err := s.overduePayments(ctx)
	if err != nil {
		return nil, err
	}

	clients, err := s.clientsFor(ctx, overdue)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := &domain.ReminderResult{TotalOverdue: len(overdue), Errors: []domain.ReminderError{}}
	for _, p := range overdue {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		client, ok := clients[p.ClientID]
		if !ok {
			result.Errors = append(result.Errors, domain.ReminderError{Payment: p.InvoiceNumber, Error: "client not found"})
			continue
		}

		days := p.DaysOverdue(now)
		if err := s.notifications.SendOverdueReminder(ctx, client, p, days); err != nil {
			s.logger.Warn().Err(err).Str("payment_id", p.ID).Msg("overdue reminder failed")
			result.Errors = append(result.Errors, domain.ReminderError{Payment: p.InvoiceNumber, Error: err.Error()})
			continue
		}
		result.RemindersSent++

		if err := s.notifications.SendPaymentSMS(ctx, client, domain.SMSTemplatePaymentOverdue, p, days); err != nil {
			s.logger.Warn().Err(err).Str("payment_id", p.ID).Msg("overdue sms failed")
		}
	}

	s.logger.Info().
		Int("sent", result.RemindersSent).
		Int("overdue", result.TotalOverdue).
		Int("errors", len(result.Errors)).
		Msg("overdue reminders finished")
	return result, nil
}

// WeeklyOverdueSweep flags the invoices of overdue payments as overdue.
// Payment status is not touched.
func (s *ReconciliationService) WeeklyOverdueSweep(ctx context.Context) (*domain.SweepResult, error) {
	overdue, err := s.overduePayments(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := &domain.SweepResult{Scanned: len(overdue)}
	for _, p := range overdue {
		invoice, err := s.invoices.GetByPaymentID(ctx, p.ID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", p.InvoiceNumber, err))
			continue
		}
		if !invoice.MarkOverdue(now) {
			continue
		}
		if err := s.invoices.Update(ctx, invoice); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", p.InvoiceNumber, err))
			continue
		}
		result.MarkedOverdue++
	}

	s.logger.Info().Int("scanned", result.Scanned).Int("marked", result.MarkedOverdue).Msg("overdue sweep finished")
	return result, nil
}

// MonthlyRevenueReport totals completed payments paid in the given UTC month
func (s *ReconciliationService) MonthlyRevenueReport(ctx context.Context, year, month int) (*domain.MonthlyReport, error) {
	if month < 1 || month > 12 {
		return nil, domain.NewValidationError("month must be between 1 and 12")
	}
	if year < 2000 || year > 9999 {
		return nil, domain.NewValidationError("invalid year %d", year)
	}

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	completed, err := s.payments.Find(ctx, domain.PaymentFilter{
		Statuses: []domain.PaymentStatus{domain.PaymentStatusCompleted},
		PaidFrom: &start,
		PaidTo:   &end,
	})
	if err != nil {
		return nil, domain.NewPersistenceError("load monthly payments", err)
	}

	byClient, err := s.groupByClient(ctx, completed)
	if err != nil {
		return nil, err
	}
	if len(byClient) > topClientLimit {
		byClient = byClient[:topClientLimit]
	}

	return &domain.MonthlyReport{
		Year:        year,
		Month:       month,
		TotalAmount: sumAmounts(completed),
		TotalCount:  len(completed),
		ByDay:       groupByDay(completed),
		ByMethod:    groupByMethod(completed),
		TopClients:  byClient,
	}, nil
}

// Analytics summarizes payments created in the last windowDays days.
// Results are cached briefly when a cache is configured.
func (s *ReconciliationService) Analytics(ctx context.Context, windowDays int) (*domain.AnalyticsReport, error) {
	if windowDays == 0 {
		windowDays = DefaultAnalyticsWindow
	}
	if windowDays < 1 || windowDays > 366 {
		return nil, domain.NewValidationError("window must be between 1 and 366 days")
	}

	if s.cache != nil {
		var cached domain.AnalyticsReport
		if err := s.cache.GetAnalytics(ctx, windowDays, &cached); err == nil {
			return &cached, nil
		}
	}

	to := s.now()
	from := to.AddDate(0, 0, -windowDays)
	payments, err := s.payments.Find(ctx, domain.PaymentFilter{CreatedFrom: &from, CreatedTo: &to})
	if err != nil {
		return nil, domain.NewPersistenceError("load payments for analytics", err)
	}

	statusCounts := map[domain.PaymentStatus]int{}
	var completed []*domain.Payment
	for _, p := range payments {
		statusCounts[p.Status]++
		if p.Status == domain.PaymentStatusCompleted {
			completed = append(completed, p)
		}
	}

	byClient, err := s.groupByClient(ctx, completed)
	if err != nil {
		return nil, err
	}

	report := &domain.AnalyticsReport{
		WindowDays:   windowDays,
		From:         from,
		To:           to,
		StatusCounts: statusCounts,
		Revenue:      sumAmounts(completed),
		RevenueByDay: groupByDay(completed),
		ByMethod:     groupByMethod(completed),
		ByClient:     byClient,
		SuccessRate:  successRate(statusCounts),
	}

	if s.cache != nil {
		if err := s.cache.SetAnalytics(ctx, windowDays, report, s.cacheTTL); err != nil {
			s.logger.Warn().Err(err).Msg("failed to cache analytics")
		}
	}
	return report, nil
}

// ExportToCSV writes completed payments paid within [from, to) as CSV, ordered by
// invoice number. Nil bounds are open.
func (s *ReconciliationService) ExportToCSV(ctx context.Context, from, to *time.Time) ([]byte, error) {
	if from != nil && to != nil && !to.After(*from) {
		return nil, domain.NewValidationError("end date must be after start date")
	}

	payments, err := s.payments.Find(ctx, domain.PaymentFilter{
		Statuses: []domain.PaymentStatus{domain.PaymentStatusCompleted},
		PaidFrom: from,
		PaidTo:   to,
	})
	if err != nil {
		return nil, domain.NewPersistenceError("load payments for export", err)
	}
	sort.SliceStable(payments, func(i, j int) bool {
		return payments[i].InvoiceNumber < payments[j].InvoiceNumber
	})

	clients, err := s.clientsFor(ctx, payments)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(CSVHeader); err != nil {
		return nil, err
	}
	for _, p := range payments {
		clientName := p.ClientID
		if c, ok := clients[p.ClientID]; ok {
			clientName = c.DisplayName()
		}
		paidDate := ""
		if p.PaidAt != nil {
			paidDate = p.PaidAt.UTC().Format("2006-01-02")
		}
		record := []string{
			p.InvoiceNumber,
			clientName,
			p.Amount.StringFixed(2),
			p.Currency,
			string(p.Method),
			string(p.Status),
			paidDate,
			p.Description,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *ReconciliationService) clientsFor(ctx context.Context, payments []*domain.Payment) (map[string]*domain.Client, error) {
	if len(payments) == 0 {
		return map[string]*domain.Client{}, nil
	}
	seen := map[string]bool{}
	var ids []string
	for _, p := range payments {
		if !seen[p.ClientID] {
			seen[p.ClientID] = true
			ids = append(ids, p.ClientID)
		}
	}
	clients, err := s.clients.GetByIDs(ctx, ids)
	if err != nil {
		return nil, domain.NewPersistenceError("load clients", err)
	}
	return clients, nil
}

func (s *ReconciliationService) groupByClient(ctx context.Context, payments []*domain.Payment) ([]domain.ClientTotal, error) {
	clients, err := s.clientsFor(ctx, payments)
	if err != nil {
		return nil, err
	}

	totals := map[string]*domain.ClientTotal{}
	for _, p := range payments {
		t, ok := totals[p.ClientID]
		if !ok {
			t = &domain.ClientTotal{ClientID: p.ClientID, ClientName: p.ClientID, Amount: decimal.Zero}
			if c, found := clients[p.ClientID]; found {
				t.ClientName = c.DisplayName()
			}
			totals[p.ClientID] = t
		}
		t.Count++
		t.Amount = t.Amount.Add(p.Amount)
	}

	out := make([]domain.ClientTotal, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].ClientID < out[j].ClientID
	})
	return out, nil
}

func sumAmounts(payments []*domain.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}

func groupByMethod(payments []*domain.Payment) []domain.MethodTotal {
	totals := map[domain.PaymentMethod]*domain.MethodTotal{}
	for _, p := range payments {
		t, ok := totals[p.Method]
		if !ok {
			t = &domain.MethodTotal{Method: p.Method, Amount: decimal.Zero}
			totals[p.Method] = t
		}
		t.Count++
		t.Amount = t.Amount.Add(p.Amount)
	}

	out := make([]domain.MethodTotal, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Method < out[j].Method })
	return out
}

// groupByDay buckets completed payments by their UTC paid date
func groupByDay(payments []*domain.Payment) []domain.DayTotal {
	totals := map[string]*domain.DayTotal{}
	for _, p := range payments {
		at := p.UpdatedAt
		if p.PaidAt != nil {
			at = *p.PaidAt
		}
		day := at.UTC().Format("2006-01-02")
		t, ok := totals[day]
		if !ok {
			t = &domain.DayTotal{Date: day, Amount: decimal.Zero}
			totals[day] = t
		}
		t.Count++
		t.Amount = t.Amount.Add(p.Amount)
	}

	out := make([]domain.DayTotal, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// successRate is completed / (completed + failed) as a percentage
func successRate(counts map[domain.PaymentStatus]int) float64 {
	completed := counts[domain.PaymentStatusCompleted]
	settled := completed + counts[domain.PaymentStatusFailed]
	if settled == 0 {
		return 0
	}
	rate := decimal.NewFromInt(int64(completed)).Mul(hundredPercent).Div(decimal.NewFromInt(int64(settled))).Round(2)
	f, _ := rate.Float64()
	return f
}

var hundredPercent = decimal.NewFromInt(100)
