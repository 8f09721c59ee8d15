package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/mansoorceksport/freightdesk/internal/domain"
	"github.com/rs/zerolog"
)

// RenderedInvoice is where a rendered invoice document ended up
type RenderedInvoice struct {
	Path string // local file, used as the email attachment
	URL  string // object store URL, empty when uploads are disabled
}

// Location is the URL when the document was uploaded, otherwise the local path
func (r *RenderedInvoice) Location() string {
	if r.URL != "" {
		return r.URL
	}
	return r.Path
}

// PDFInvoiceRenderer writes invoices as PDF files and optionally uploads them
type PDFInvoiceRenderer struct {
	outputDir string
	company   CompanyInfo
	documents domain.DocumentStore
	logger    zerolog.Logger
}

// NewPDFInvoiceRenderer creates a renderer. documents may be nil to keep invoices local only.
func NewPDFInvoiceRenderer(outputDir string, company CompanyInfo, documents domain.DocumentStore, logger zerolog.Logger) *PDFInvoiceRenderer {
	return &PDFInvoiceRenderer{
		outputDir: outputDir,
		company:   company,
		documents: documents,
		logger:    logger,
	}
}

// Render produces <outputDir>/<invoice number>.pdf
func (r *PDFInvoiceRenderer) Render(ctx context.Context, invoice *domain.Invoice, client *domain.Client) (*RenderedInvoice, error) {
	data, err := invoicePDF(invoiceDocument{Invoice: invoice, Client: client, Company: r.company})
	if err != nil {
		return nil, fmt.Errorf("failed to generate invoice pdf: %w", err)
	}

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create invoice directory: %w", err)
	}
	filename := invoiceFilename(invoice.InvoiceNumber)
	path := filepath.Join(r.outputDir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write invoice pdf: %w", err)
	}

	rendered := &RenderedInvoice{Path: path}
	if r.documents != nil {
		url, err := r.documents.Put(ctx, &domain.Document{
			Key:         fmt.Sprintf("invoices/%d/%s", invoice.IssueDate.Year(), filename),
			Body:        data,
			ContentType: "application/pdf",
			Metadata: map[string]string{
				"invoice-number": invoice.InvoiceNumber,
				"payment-id":     invoice.PaymentID,
				"client-id":      invoice.ClientID,
			},
		})
		if err != nil {
			return nil, err
		}
		rendered.URL = url
	}

	r.logger.Debug().Str("invoice_number", invoice.InvoiceNumber).Str("location", rendered.Location()).Msg("invoice rendered")
	return rendered, nil
}

func invoiceFilename(number string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, number)
	return safe + ".pdf"
}

type invoiceDocument struct {
	Invoice *domain.Invoice
	Client  *domain.Client
	Company CompanyInfo
}

const (
	colDescription = 95.0
	colQuantity    = 25.0
	colUnitPrice   = 35.0
	colTotal       = 35.0
	rowHeight      = 7.0
)

// invoicePDF lays out an A4 invoice. Output only varies with the invoice issue date.
func invoicePDF(doc invoiceDocument) ([]byte, error) {
	inv := doc.Invoice

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(inv.IssueDate)
	pdf.SetModificationDate(inv.IssueDate)
	pdf.SetTitle("Invoice "+inv.InvoiceNumber, true)
	pdf.SetAuthor(doc.Company.Name, true)
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// header
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(120, 10, tr(doc.Company.Name), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(70, 10, "INVOICE", "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, line := range []string{doc.Company.Address, doc.Company.Email, doc.Company.Phone} {
		if line != "" {
			pdf.CellFormat(120, 5, tr(line), "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(6)

	// metadata
	pdf.SetFont("Helvetica", "", 10)
	meta := [][2]string{
		{"Invoice number", inv.InvoiceNumber},
		{"Issue date", inv.IssueDate.Format("2006-01-02")},
		{"Due date", inv.DueDate.Format("2006-01-02")},
		{"Currency", inv.Currency},
	}
	for _, m := range meta {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(35, 6, m[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(80, 6, tr(m[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	// client block
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 7, "Bill to", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	if doc.Client != nil {
		pdf.CellFormat(0, 5, tr(doc.Client.DisplayName()), "", 1, "L", false, 0, "")
		if doc.Client.CompanyName != "" && doc.Client.Name != "" {
			pdf.CellFormat(0, 5, tr("Attn: "+doc.Client.Name), "", 1, "L", false, 0, "")
		}
		for _, line := range []string{doc.Client.Email, doc.Client.Phone} {
			if line != "" {
				pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
			}
		}
	}
	pdf.Ln(6)

	// item table
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 236, 245)
	pdf.CellFormat(colDescription, rowHeight, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(colQuantity, rowHeight, "Qty", "1", 0, "R", true, 0, "")
	pdf.CellFormat(colUnitPrice, rowHeight, "Unit price", "1", 0, "R", true, 0, "")
	pdf.CellFormat(colTotal, rowHeight, "Total", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range inv.Items {
		pdf.CellFormat(colDescription, rowHeight, tr(truncate(item.Description, 55)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colQuantity, rowHeight, item.Quantity.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colUnitPrice, rowHeight, item.UnitPrice.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colTotal, rowHeight, item.Total.StringFixed(2), "1", 1, "R", false, 0, "")
	}

	// totals footer
	labelWidth := colDescription + colQuantity + colUnitPrice
	totals := [][2]string{
		{"Subtotal", inv.Subtotal.StringFixed(2)},
		{fmt.Sprintf("Tax (%s%%)", inv.TaxRate.String()), inv.TaxAmount.StringFixed(2)},
		{"Total " + inv.Currency, inv.TotalAmount.StringFixed(2)},
	}
	for i, t := range totals {
		if i == len(totals)-1 {
			pdf.SetFont("Helvetica", "B", 11)
		}
		pdf.CellFormat(labelWidth, rowHeight, t[0], "", 0, "R", false, 0, "")
		pdf.CellFormat(colTotal, rowHeight, t[1], "1", 1, "R", false, 0, "")
	}

	if inv.Notes != "" {
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 6, "Notes", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr(inv.Notes), "", "L", false)
	}
	if inv.Terms != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(0, 5, tr(inv.Terms), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
