package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/freightdesk/internal/domain"
)

const dateLayout = "2006-01-02"

// ReportService is the admin reporting surface
type ReportService interface {
	DailyReconciliation(ctx context.Context, date time.Time) (*domain.DailyReport, error)
	SendOverdueReminders(ctx context.Context) (*domain.ReminderResult, error)
	WeeklyOverdueSweep(ctx context.Context) (*domain.SweepResult, error)
	MonthlyRevenueReport(ctx context.Context, year, month int) (*domain.MonthlyReport, error)
	Analytics(ctx context.Context, windowDays int) (*domain.AnalyticsReport, error)
	ExportToCSV(ctx context.Context, from, to *time.Time) ([]byte, error)
}

// ReportHandler handles admin reconciliation and reporting endpoints
type ReportHandler struct {
	reports ReportService
	now     func() time.Time
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reports ReportService) *ReportHandler {
	return &ReportHandler{reports: reports, now: time.Now}
}

// Reconcile handles POST /payment-reports/reconcile?date=YYYY-MM-DD
func (h *ReportHandler) Reconcile(c *fiber.Ctx) error {
	date := h.now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			return domain.NewValidationError("date must be formatted as YYYY-MM-DD")
		}
		date = parsed
	}

	report, err := h.reports.DailyReconciliation(c.UserContext(), date)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, report)
}

// SendReminders handles POST /payment-reports/send-reminders
func (h *ReportHandler) SendReminders(c *fiber.Ctx) error {
	result, err := h.reports.SendOverdueReminders(c.UserContext())
	if err != nil {
		return err
	}
	return okMessage(c, fiber.StatusOK, fmt.Sprintf("sent %d of %d reminders", result.RemindersSent, result.TotalOverdue), result)
}

// OverdueSweep handles POST /payment-reports/overdue-sweep
func (h *ReportHandler) OverdueSweep(c *fiber.Ctx) error {
	result, err := h.reports.WeeklyOverdueSweep(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, result)
}

// Monthly handles GET /payment-reports/reports/monthly?year=&month=
// Defaults to the current month.
func (h *ReportHandler) Monthly(c *fiber.Ctx) error {
	now := h.now().UTC()
	year := c.QueryInt("year", now.Year())
	month := c.QueryInt("month", int(now.Month()))
	if month < 1 || month > 12 {
		return domain.NewValidationError("month must be between 1 and 12")
	}
	if year < 2000 || year > 9999 {
		return domain.NewValidationError("year %d is out of range", year)
	}

	report, err := h.reports.MonthlyRevenueReport(c.UserContext(), year, month)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, report)
}

// Analytics handles GET /payment-reports/analytics?days=30
func (h *ReportHandler) Analytics(c *fiber.Ctx) error {
	days := c.QueryInt("days", 30)
	if days < 1 || days > 366 {
		return domain.NewValidationError("days must be between 1 and 366")
	}

	report, err := h.reports.Analytics(c.UserContext(), days)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, report)
}

// Export handles GET /payment-reports/export?start_date=&end_date=
// end_date is inclusive.
func (h *ReportHandler) Export(c *fiber.Ctx) error {
	from, err := parseDateParam(c, "start_date")
	if err != nil {
		return err
	}
	to, err := parseDateParam(c, "end_date")
	if err != nil {
		return err
	}
	if to != nil {
		end := to.AddDate(0, 0, 1)
		to = &end
	}

	data, err := h.reports.ExportToCSV(c.UserContext(), from, to)
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("payments-%s.csv", h.now().UTC().Format(dateLayout))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(data)
}

func parseDateParam(c *fiber.Ctx, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, domain.NewValidationError("%s must be formatted as YYYY-MM-DD", name)
	}
	return &t, nil
}
