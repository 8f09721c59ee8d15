package service

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mansoorceksport/freightdesk/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memDocuments struct {
	docs []*domain.Document
}

func (m *memDocuments) Put(ctx context.Context, doc *domain.Document) (string, error) {
	m.docs = append(m.docs, doc)
	return "https://files.test/" + doc.Key, nil
}

func rendererInvoice() *domain.Invoice {
	issued := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	item, _ := domain.NewLineItem("Container haulage Tema to Kumasi, 40ft reefer with temperature logging and escort", decimal.NewFromInt(2), decimal.NewFromInt(100))
	inv := &domain.Invoice{
		InvoiceNumber: "INV-2024-00001",
		PaymentID:     "pay_001",
		ClientID:      "client_1",
		IssueDate:     issued,
		DueDate:       issued.AddDate(0, 0, 30),
		Items:         []domain.LineItem{item},
		TaxRate:       domain.DefaultTaxRate,
		Currency:      "EUR",
		Notes:         "Deliver to gate 4",
		Terms:         "Net 30",
	}
	inv.Recalculate()
	return inv
}

func TestPDFInvoiceRendererWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "invoices")
	r := NewPDFInvoiceRenderer(dir, testCompany, nil, zerolog.Nop())

	client := &domain.Client{ID: "client_1", Name: "Zoë Asante", CompanyName: "Acme Freight", Email: "ama@acme.test"}
	rendered, err := r.Render(context.Background(), rendererInvoice(), client)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "INV-2024-00001.pdf"), rendered.Path)
	assert.Empty(t, rendered.URL)
	assert.Equal(t, rendered.Path, rendered.Location())

	data, err := os.ReadFile(rendered.Path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestPDFInvoiceRendererIsStable(t *testing.T) {
	client := &domain.Client{ID: "client_1", Name: "Ama"}
	first, err := invoicePDF(invoiceDocument{Invoice: rendererInvoice(), Client: client, Company: testCompany})
	require.NoError(t, err)
	second, err := invoicePDF(invoiceDocument{Invoice: rendererInvoice(), Client: client, Company: testCompany})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPDFInvoiceRendererUploads(t *testing.T) {
	documents := &memDocuments{}
	r := NewPDFInvoiceRenderer(t.TempDir(), testCompany, documents, zerolog.Nop())

	rendered, err := r.Render(context.Background(), rendererInvoice(), &domain.Client{ID: "client_1", Name: "Ama"})
	require.NoError(t, err)
	assert.Equal(t, "https://files.test/invoices/2024/INV-2024-00001.pdf", rendered.URL)
	assert.Equal(t, rendered.URL, rendered.Location())

	require.Len(t, documents.docs, 1)
	doc := documents.docs[0]
	assert.Equal(t, "invoices/2024/INV-2024-00001.pdf", doc.Key)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.True(t, bytes.HasPrefix(doc.Body, []byte("%PDF")))
	assert.Equal(t, map[string]string{
		"invoice-number": "INV-2024-00001",
		"payment-id":     "pay_001",
		"client-id":      "client_1",
	}, doc.Metadata)
}

func TestInvoiceFilename(t *testing.T) {
	assert.Equal(t, "INV-2024-00001.pdf", invoiceFilename("INV-2024-00001"))
	assert.Equal(t, "___etc_passwd.pdf", invoiceFilename("../etc/passwd"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	long := strings.Repeat("é", 20)
	got := truncate(long, 10)
	assert.Equal(t, 10, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
}
