package service

import (
	"bytes"
	"fmt"
	"html/template"
	texttemplate "text/template"

	"github.com/mansoorceksport/freightdesk/internal/domain"
)

const layoutTemplate = `{{define "layout"}}<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif; color: #222;">
<h2 style="color: #0b3d91;">{{.Company.Name}}</h2>
{{template "content" .}}
<hr>
<p style="font-size: 12px; color: #777;">{{.Company.Name}}{{if .Company.Address}} | {{.Company.Address}}{{end}}{{if .Company.Phone}} | {{.Company.Phone}}{{end}}<br>
Questions? Contact {{.Company.Email}}</p>
</body></html>{{end}}`

var emailTemplates = map[string]string{
	"invoice": `{{define "content"}}
<p>Dear {{.ClientName}},</p>
<p>Please find attached invoice <strong>{{.InvoiceNumber}}</strong> for {{.Description}}.</p>
<table cellpadding="4">
<tr><td>Amount due</td><td><strong>{{.Amount}} {{.Currency}}</strong></td></tr>
<tr><td>Due date</td><td>{{.DueDate}}</td></tr>
</table>
<p>You can pay online by card (Stripe) or PayPal from your account dashboard.</p>
{{end}}`,
	"receipt": `{{define "content"}}
<p>Dear {{.ClientName}},</p>
<p>We have received your payment for invoice <strong>{{.InvoiceNumber}}</strong>. Thank you.</p>
<table cellpadding="4">
<tr><td>Amount paid</td><td><strong>{{.Amount}} {{.Currency}}</strong></td></tr>
<tr><td>Payment method</td><td>{{.Method}}</td></tr>
<tr><td>Paid on</td><td>{{.PaidAt}}</td></tr>
</table>
{{end}}`,
	"payment_failed": `{{define "content"}}
<p>Dear {{.ClientName}},</p>
<p>Your payment for invoice <strong>{{.InvoiceNumber}}</strong> ({{.Amount}} {{.Currency}}) could not be completed.</p>
<p>Please try again or choose another payment method.</p>
{{end}}`,
	"overdue": `{{define "content"}}
<p>Dear {{.ClientName}},</p>
<p>Invoice <strong>{{.InvoiceNumber}}</strong> for {{.Amount}} {{.Currency}} was due on {{.DueDate}} and is now
<strong>{{.DaysOverdue}} day{{if ne .DaysOverdue 1}}s{{end}} overdue</strong>.</p>
<p>Please arrange payment at your earliest convenience.</p>
{{end}}`,
	"daily_report": `{{define "content"}}
<p>Daily reconciliation for <strong>{{.Report.Date}}</strong> (UTC)</p>
<table cellpadding="4" border="1" style="border-collapse: collapse;">
<tr><td>Completed payments</td><td>{{.Report.CompletedCount}}</td></tr>
<tr><td>Completed amount</td><td>{{.Report.CompletedAmount.StringFixed 2}}</td></tr>
<tr><td>Failed payments</td><td>{{.Report.FailedCount}}</td></tr>
<tr><td>Pending payments</td><td>{{.Report.PendingCount}}</td></tr>
</table>
{{if .Report.ByMethod}}<h4>By payment method</h4>
<table cellpadding="4" border="1" style="border-collapse: collapse;">
<tr><th>Method</th><th>Count</th><th>Amount</th></tr>
{{range .Report.ByMethod}}<tr><td>{{.Method}}</td><td>{{.Count}}</td><td>{{.Amount.StringFixed 2}}</td></tr>
{{end}}</table>{{end}}
{{end}}`,
}

var smsTemplates = map[string]string{
	domain.SMSTemplatePaymentReceived: "{{.Company}}: payment of {{.Amount}} {{.Currency}} for {{.InvoiceNumber}} received. Thank you.",
	domain.SMSTemplatePaymentFailed:   "{{.Company}}: payment for {{.InvoiceNumber}} ({{.Amount}} {{.Currency}}) failed. Please try again.",
	domain.SMSTemplatePaymentOverdue:  "{{.Company}}: invoice {{.InvoiceNumber}} ({{.Amount}} {{.Currency}}) is {{.DaysOverdue}} days overdue. Please pay as soon as possible.",
}

// templates holds the parsed email and SMS templates
type templates struct {
	email map[string]*template.Template
	sms   map[string]*texttemplate.Template
}

func parseTemplates() (*templates, error) {
	t := &templates{
		email: make(map[string]*template.Template, len(emailTemplates)),
		sms:   make(map[string]*texttemplate.Template, len(smsTemplates)),
	}
	for name, body := range emailTemplates {
		tmpl, err := template.New(name).Parse(layoutTemplate)
		if err == nil {
			tmpl, err = tmpl.Parse(body)
		}
		if err != nil {
			return nil, fmt.Errorf("parse email template %s: %w", name, err)
		}
		t.email[name] = tmpl
	}
	for name, body := range smsTemplates {
		tmpl, err := texttemplate.New(name).Parse(body)
		if err != nil {
			return nil, fmt.Errorf("parse sms template %s: %w", name, err)
		}
		t.sms[name] = tmpl
	}
	return t, nil
}

func (t *templates) renderEmail(name string, data any) (string, error) {
	tmpl, ok := t.email[name]
	if !ok {
		return "", fmt.Errorf("unknown email template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render email %s: %w", name, err)
	}
	return buf.String(), nil
}

func (t *templates) renderSMS(name string, data any) (string, error) {
	tmpl, ok := t.sms[name]
	if !ok {
		return "", fmt.Errorf("unknown sms template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render sms %s: %w", name, err)
	}
	return buf.String(), nil
}
