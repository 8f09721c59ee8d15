package handler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/freightdesk/internal/domain"
	"github.com/mansoorceksport/freightdesk/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReportService struct {
	date   time.Time
	year   int
	month  int
	days   int
	from   *time.Time
	to     *time.Time
	called string
}

func (f *fakeReportService) DailyReconciliation(_ context.Context, date time.Time) (*domain.DailyReport, error) {
	f.date, f.called = date, "daily"
	return &domain.DailyReport{Date: date.Format(dateLayout), CompletedCount: 3}, nil
}

func (f *fakeReportService) SendOverdueReminders(context.Context) (*domain.ReminderResult, error) {
	f.called = "reminders"
	return &domain.ReminderResult{
		RemindersSent: 4,
		TotalOverdue:  5,
		Errors:        []domain.ReminderError{{Payment: "INV-2024-00003", Error: "mailbox unavailable"}},
	}, nil
}

func (f *fakeReportService) WeeklyOverdueSweep(context.Context) (*domain.SweepResult, error) {
	f.called = "sweep"
	return &domain.SweepResult{Scanned: 2, MarkedOverdue: 2}, nil
}

func (f *fakeReportService) MonthlyRevenueReport(_ context.Context, year, month int) (*domain.MonthlyReport, error) {
	f.year, f.month, f.called = year, month, "monthly"
	return &domain.MonthlyReport{Year: year, Month: month}, nil
}

func (f *fakeReportService) Analytics(_ context.Context, windowDays int) (*domain.AnalyticsReport, error) {
	f.days, f.called = windowDays, "analytics"
	return &domain.AnalyticsReport{WindowDays: windowDays}, nil
}

func (f *fakeReportService) ExportToCSV(_ context.Context, from, to *time.Time) ([]byte, error) {
	f.from, f.to, f.called = from, to, "export"
	return []byte("Invoice Number,Client\nINV-2024-00001,\"Acme Freight, Inc.\"\n"), nil
}

func newReportApp(svc *fakeReportService, caller domain.Caller) *fiber.App {
	h := NewReportHandler(svc)
	h.now = func() time.Time { return time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC) }

	app := newTestApp()
	reports := app.Group("/payment-reports", asCaller(caller), middleware.RequireRole(domain.RoleAdmin))
	reports.Post("/reconcile", h.Reconcile)
	reports.Post("/send-reminders", h.SendReminders)
	reports.Post("/overdue-sweep", h.OverdueSweep)
	reports.Get("/reports/monthly", h.Monthly)
	reports.Get("/export", h.Export)
	reports.Get("/analytics", h.Analytics)
	return app
}

var testAdmin = domain.Caller{ID: "admin_1", Role: domain.RoleAdmin}

func TestReportsRequireAdmin(t *testing.T) {
	svc := &fakeReportService{}
	app := newReportApp(svc, testClient)

	status, _, _ := doRequest(t, app, "POST", "/payment-reports/send-reminders", nil, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Empty(t, svc.called)
}

func TestReconcileHandler(t *testing.T) {
	svc := &fakeReportService{}
	app := newReportApp(svc, testAdmin)

	status, _, _ := doRequest(t, app, "POST", "/payment-reports/reconcile?date=2024-03-01", nil, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), svc.date)

	status, env, _ := doRequest(t, app, "POST", "/payment-reports/reconcile", nil, nil)
	assert.Equal(t, fiber.StatusOK, status)
	var report domain.DailyReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, "2024-06-15", report.Date)

	status, _, _ = doRequest(t, app, "POST", "/payment-reports/reconcile?date=03/01/2024", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestSendRemindersHandler(t *testing.T) {
	app := newReportApp(&fakeReportService{}, testAdmin)

	status, env, _ := doRequest(t, app, "POST", "/payment-reports/send-reminders", nil, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "sent 4 of 5 reminders", env.Message)

	var result domain.ReminderResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "INV-2024-00003", result.Errors[0].Payment)
}

func TestOverdueSweepHandler(t *testing.T) {
	svc := &fakeReportService{}
	app := newReportApp(svc, testAdmin)

	status, _, _ := doRequest(t, app, "POST", "/payment-reports/overdue-sweep", nil, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "sweep", svc.called)
}

func TestMonthlyHandler(t *testing.T) {
	svc := &fakeReportService{}
	app := newReportApp(svc, testAdmin)

	status, _, _ := doRequest(t, app, "GET", "/payment-reports/reports/monthly?year=2024&month=2", nil, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 2024, svc.year)
	assert.Equal(t, 2, svc.month)

	doRequest(t, app, "GET", "/payment-reports/reports/monthly", nil, nil)
	assert.Equal(t, 2024, svc.year)
	assert.Equal(t, 6, svc.month)

	status, _, _ = doRequest(t, app, "GET", "/payment-reports/reports/monthly?year=2024&month=13", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestAnalyticsHandler(t *testing.T) {
	svc := &fakeReportService{}
	app := newReportApp(svc, testAdmin)

	doRequest(t, app, "GET", "/payment-reports/analytics", nil, nil)
	assert.Equal(t, 30, svc.days)

	doRequest(t, app, "GET", "/payment-reports/analytics?days=7", nil, nil)
	assert.Equal(t, 7, svc.days)

	status, _, _ := doRequest(t, app, "GET", "/payment-reports/analytics?days=0", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestExportHandler(t *testing.T) {
	svc := &fakeReportService{}
	app := newReportApp(svc, testAdmin)

	req := "/payment-reports/export?start_date=2024-06-01&end_date=2024-06-30"
	status, _, body := doRequest(t, app, "GET", req, nil, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(body), `"Acme Freight, Inc."`)

	require.NotNil(t, svc.from)
	require.NotNil(t, svc.to)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), *svc.from)
	// end_date is inclusive
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), *svc.to)

	doRequest(t, app, "GET", "/payment-reports/export", nil, nil)
	assert.Nil(t, svc.from)
	assert.Nil(t, svc.to)

	status, _, _ = doRequest(t, app, "GET", "/payment-reports/export?start_date=June", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}
