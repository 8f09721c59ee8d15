package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mansoorceksport/freightdesk/internal/domain"
	"github.com/mansoorceksport/freightdesk/internal/infrastructure/mailer"
	"github.com/mansoorceksport/freightdesk/internal/infrastructure/sms"
	"github.com/mansoorceksport/freightdesk/internal/telemetry"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// CompanyInfo is printed on invoices and emails
type CompanyInfo struct {
	Name    string
	Address string
	Email   string
	Phone   string
}

type messageData struct {
	Company       CompanyInfo
	ClientName    string
	InvoiceNumber string
	Description   string
	Amount        string
	Currency      string
	DueDate       string
	Method        string
	PaidAt        string
	DaysOverdue   int
	Report        *domain.DailyReport
}

type smsData struct {
	Company       string
	InvoiceNumber string
	Amount        string
	Currency      string
	DaysOverdue   int
}

// NotificationService renders payment messages and hands them to a Notifier
type NotificationService struct {
	notifier  domain.Notifier
	templates *templates
	company   CompanyInfo
	metrics   *telemetry.PaymentMetrics
	logger    zerolog.Logger
}

func NewNotificationService(notifier domain.Notifier, company CompanyInfo, metrics *telemetry.PaymentMetrics, logger zerolog.Logger) (*NotificationService, error) {
	t, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &NotificationService{
		notifier:  notifier,
		templates: t,
		company:   company,
		metrics:   metrics,
		logger:    logger,
	}, nil
}

func (n *NotificationService) paymentData(client *domain.Client, p *domain.Payment) messageData {
	data := messageData{
		Company:       n.company,
		ClientName:    client.DisplayName(),
		InvoiceNumber: p.InvoiceNumber,
		Description:   p.Description,
		Amount:        p.Amount.StringFixed(2),
		Currency:      p.Currency,
		DueDate:       p.DueDate.Format("January 2, 2006"),
		Method:        string(p.Method),
	}
	if p.PaidAt != nil {
		data.PaidAt = p.PaidAt.Format("January 2, 2006 15:04 MST")
	}
	return data
}

func (n *NotificationService) sendEmail(ctx context.Context, to, subject, template string, data messageData, attachments ...domain.Attachment) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("recipient has no email address")
	}
	html, err := n.templates.renderEmail(template, data)
	if err != nil {
		return err
	}
	err = n.notifier.SendEmail(ctx, domain.Email{To: to, Subject: subject, HTML: html, Attachments: attachments})
	if err != nil {
		n.metrics.NotificationFailed(ctx, "email")
	}
	return err
}

// SendInvoice emails the rendered invoice document to the client
func (n *NotificationService) SendInvoice(ctx context.Context, client *domain.Client, p *domain.Payment, inv *domain.Invoice, pdfPath string) error {
	data := n.paymentData(client, p)
	data.InvoiceNumber = inv.InvoiceNumber
	data.Amount = inv.TotalAmount.StringFixed(2)

	var attachments []domain.Attachment
	if pdfPath != "" {
		attachments = append(attachments, domain.Attachment{Path: pdfPath, Name: filepath.Base(pdfPath)})
	}
	subject := fmt.Sprintf("Invoice %s from %s", inv.InvoiceNumber, n.company.Name)
	return n.sendEmail(ctx, client.Email, subject, "invoice", data, attachments...)
}

func (n *NotificationService) SendReceipt(ctx context.Context, client *domain.Client, p *domain.Payment) error {
	subject := fmt.Sprintf("Payment received for %s", p.InvoiceNumber)
	return n.sendEmail(ctx, client.Email, subject, "receipt", n.paymentData(client, p))
}

func (n *NotificationService) SendPaymentFailed(ctx context.Context, client *domain.Client, p *domain.Payment) error {
	subject := fmt.Sprintf("Payment failed for %s", p.InvoiceNumber)
	return n.sendEmail(ctx, client.Email, subject, "payment_failed", n.paymentData(client, p))
}

func (n *NotificationService) SendOverdueReminder(ctx context.Context, client *domain.Client, p *domain.Payment, daysOverdue int) error {
	data := n.paymentData(client, p)
	data.DaysOverdue = daysOverdue
	subject := fmt.Sprintf("Reminder: invoice %s is overdue", p.InvoiceNumber)
	return n.sendEmail(ctx, client.Email, subject, "overdue", data)
}

func (n *NotificationService) SendDailyReport(ctx context.Context, to string, report *domain.DailyReport) error {
	data := messageData{Company: n.company, Report: report}
	subject := fmt.Sprintf("Daily payment reconciliation %s", report.Date)
	return n.sendEmail(ctx, to, subject, "daily_report", data)
}

// SendPaymentSMS texts the client when they opted in; otherwise it does nothing
func (n *NotificationService) SendPaymentSMS(ctx context.Context, client *domain.Client, templateType string, p *domain.Payment, daysOverdue int) error {
	if !client.WantsSMS() {
		return nil
	}
	text, err := n.templates.renderSMS(templateType, smsData{
		Company:       n.company.Name,
		InvoiceNumber: p.InvoiceNumber,
		Amount:        p.Amount.StringFixed(2),
		Currency:      p.Currency,
		DaysOverdue:   daysOverdue,
	})
	if err != nil {
		return err
	}
	err = n.notifier.SendSMS(ctx, domain.SMS{
		Phone:        client.Phone,
		Text:         text,
		TemplateType: templateType,
		Metadata: map[string]string{
			"payment_id":     p.ID,
			"invoice_number": p.InvoiceNumber,
		},
	})
	if err != nil {
		n.metrics.NotificationFailed(ctx, "sms")
	}
	return err
}

// EmailSender delivers one email message
type EmailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// DirectNotifier delivers synchronously through SMTP and the SMS carriers
type DirectNotifier struct {
	email EmailSender
	sms   sms.Sender
}

func NewDirectNotifier(email EmailSender, smsSender sms.Sender) *DirectNotifier {
	return &DirectNotifier{email: email, sms: smsSender}
}

func (d *DirectNotifier) SendEmail(ctx context.Context, email domain.Email) error {
	if d.email == nil {
		return fmt.Errorf("%w: email delivery is not configured", domain.ErrUndeliverable)
	}
	msg := mailer.Message{To: email.To, Subject: email.Subject, HTML: email.HTML}
	for _, a := range email.Attachments {
		msg.Attachments = append(msg.Attachments, mailer.Attachment{Path: a.Path, Name: a.Name})
	}
	err := d.email.Send(ctx, msg)
	if errors.Is(err, mailer.ErrRejected) {
		return fmt.Errorf("%w: %w", domain.ErrUndeliverable, err)
	}
	return err
}

func (d *DirectNotifier) SendSMS(ctx context.Context, message domain.SMS) error {
	if d.sms == nil {
		return fmt.Errorf("%w: sms delivery is not configured", domain.ErrUndeliverable)
	}
	err := d.sms.Send(ctx, message.Phone, message.Text)
	if errors.Is(err, sms.ErrRejected) || errors.Is(err, sms.ErrNoCarriers) {
		return fmt.Errorf("%w: %w", domain.ErrUndeliverable, err)
	}
	return err
}

// LogNotifier only logs messages. Used when no SMTP relay is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) SendEmail(ctx context.Context, email domain.Email) error {
	l.logger.Info().Str("to", email.To).Str("subject", email.Subject).Int("attachments", len(email.Attachments)).Msg("email (not sent)")
	return nil
}

func (l *LogNotifier) SendSMS(ctx context.Context, message domain.SMS) error {
	l.logger.Info().Str("phone", message.Phone).Str("template", message.TemplateType).Msg("sms (not sent)")
	return nil
}

// Notification job kinds
const (
	JobKindEmail = "email"
	JobKindSMS   = "sms"
)

// ErrMalformedJob marks a queued job that can never be delivered
var ErrMalformedJob = errors.New("malformed notification job")

// NotificationJob is the queued form of one email or SMS
type NotificationJob struct {
	ID        string        `json:"id"`
	Kind      string        `json:"kind"`
	Email     *domain.Email `json:"email,omitempty"`
	SMS       *domain.SMS   `json:"sms,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// JobPublisher publishes a message body to a queue
type JobPublisher interface {
	Publish(ctx context.Context, queue string, messageID string, body []byte) error
}

// QueuedNotifier defers delivery to the notification worker through the queue
type QueuedNotifier struct {
	publisher JobPublisher
	queue     string
}

func NewQueuedNotifier(publisher JobPublisher, queue string) *QueuedNotifier {
	return &QueuedNotifier{publisher: publisher, queue: queue}
}

func (q *QueuedNotifier) SendEmail(ctx context.Context, email domain.Email) error {
	return q.publish(ctx, NotificationJob{Kind: JobKindEmail, Email: &email})
}

func (q *QueuedNotifier) SendSMS(ctx context.Context, message domain.SMS) error {
	return q.publish(ctx, NotificationJob{Kind: JobKindSMS, SMS: &message})
}

func (q *QueuedNotifier) publish(ctx context.Context, job NotificationJob) error {
	job.ID = ulid.Make().String()
	job.CreatedAt = time.Now().UTC()

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal notification job: %w", err)
	}
	if err := q.publisher.Publish(ctx, q.queue, job.ID, body); err != nil {
		return fmt.Errorf("enqueue %s notification: %w", job.Kind, err)
	}
	return nil
}

// DeliverJob decodes a queued job and delivers it through notifier
func DeliverJob(ctx context.Context, body []byte, notifier domain.Notifier) error {
	var job NotificationJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}

	switch {
	case job.Kind == JobKindEmail && job.Email != nil:
		return notifier.SendEmail(ctx, *job.Email)
	case job.Kind == JobKindSMS && job.SMS != nil:
		return notifier.SendSMS(ctx, *job.SMS)
	default:
		return fmt.Errorf("%w: kind %q", ErrMalformedJob, job.Kind)
	}
}
