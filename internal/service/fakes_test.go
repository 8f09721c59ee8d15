package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/mansoorceksport/freightdesk/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// In-memory repositories shared by the service tests

type memPayments struct {
	mu       sync.Mutex
	byID     map[string]*domain.Payment
	nextID   int
	writes   int
	failFind error
}

func newMemPayments() *memPayments {
	return &memPayments{byID: map[string]*domain.Payment{}}
}

func clonePayment(p *domain.Payment) *domain.Payment {
	c := *p
	c.Items = append([]domain.LineItem(nil), p.Items...)
	if p.PaidAt != nil {
		t := *p.PaidAt
		c.PaidAt = &t
	}
	return &c
}

func (m *memPayments) Create(ctx context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.InvoiceNumber == p.InvoiceNumber {
			return fmt.Errorf("duplicate invoice number %s", p.InvoiceNumber)
		}
	}
	if p.ID == "" {
		m.nextID++
		p.ID = fmt.Sprintf("pay_%03d", m.nextID)
	}
	m.byID[p.ID] = clonePayment(p)
	m.writes++
	return nil
}

func (m *memPayments) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePayment(p), nil
}

func (m *memPayments) GetByGatewayTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if transactionID != "" && p.GatewayTransactionID == transactionID {
			return clonePayment(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPayments) Update(ctx context.Context, p *domain.Payment, expected domain.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Status != expected {
		return domain.ErrStatusConflict
	}
	m.byID[p.ID] = clonePayment(p)
	m.writes++
	return nil
}

func (m *memPayments) MarkReceiptSent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.ReceiptSent = true
	m.writes++
	return nil
}

func (m *memPayments) matching(filter domain.PaymentFilter) []*domain.Payment {
	in := func(t time.Time, from, to *time.Time) bool {
		if from != nil && t.Before(*from) {
			return false
		}
		if to != nil && !t.Before(*to) {
			return false
		}
		return true
	}

	var out []*domain.Payment
	for _, p := range m.byID {
		if filter.ClientID != "" && p.ClientID != filter.ClientID {
			continue
		}
		if len(filter.Statuses) > 0 {
			found := false
			for _, s := range filter.Statuses {
				found = found || p.Status == s
			}
			if !found {
				continue
			}
		}
		if filter.PaidFrom != nil || filter.PaidTo != nil {
			if p.PaidAt == nil || !in(*p.PaidAt, filter.PaidFrom, filter.PaidTo) {
				continue
			}
		}
		if !in(p.UpdatedAt, filter.UpdatedFrom, filter.UpdatedTo) || !in(p.CreatedAt, filter.CreatedFrom, filter.CreatedTo) {
			continue
		}
		if filter.DueBefore != nil && !p.DueDate.Before(*filter.DueBefore) {
			continue
		}
		out = append(out, clonePayment(p))
	}
	return out
}

func (m *memPayments) List(ctx context.Context, filter domain.PaymentFilter, offset, limit int) ([]*domain.Payment, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.matching(filter)
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if offset >= len(all) {
		return []*domain.Payment{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *memPayments) Find(ctx context.Context, filter domain.PaymentFilter) ([]*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFind != nil {
		return nil, m.failFind
	}
	all := m.matching(filter)
	sort.Slice(all, func(i, j int) bool { return all[i].InvoiceNumber < all[j].InvoiceNumber })
	return all, nil
}

func (m *memPayments) put(p *domain.Payment) *domain.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[p.ID] = clonePayment(p)
	return p
}

func (m *memPayments) get(id string) *domain.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clonePayment(m.byID[id])
}

func (m *memPayments) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

type memInvoices struct {
	mu     sync.Mutex
	byID   map[string]*domain.Invoice
	nextID int
}

func newMemInvoices() *memInvoices {
	return &memInvoices{byID: map[string]*domain.Invoice{}}
}

func (m *memInvoices) Create(ctx context.Context, inv *domain.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv.ID == "" {
		m.nextID++
		inv.ID = fmt.Sprintf("inv_%03d", m.nextID)
	}
	inv.Recalculate()
	c := *inv
	m.byID[inv.ID] = &c
	return nil
}

func (m *memInvoices) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *inv
	return &c, nil
}

func (m *memInvoices) GetByPaymentID(ctx context.Context, paymentID string) (*domain.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.byID {
		if inv.PaymentID == paymentID {
			c := *inv
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memInvoices) Update(ctx context.Context, inv *domain.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[inv.ID]; !ok {
		return domain.ErrNotFound
	}
	inv.Recalculate()
	c := *inv
	m.byID[inv.ID] = &c
	return nil
}

func (m *memInvoices) forPayment(paymentID string) *domain.Invoice {
	inv, err := m.GetByPaymentID(context.Background(), paymentID)
	if err != nil {
		return nil
	}
	return inv
}

type memClients struct {
	mu   sync.Mutex
	byID map[string]*domain.Client
	next int
}

func newMemClients(clients ...*domain.Client) *memClients {
	m := &memClients{byID: map[string]*domain.Client{}}
	for _, c := range clients {
		m.byID[c.ID] = c
	}
	return m
}

func (m *memClients) Create(ctx context.Context, c *domain.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	c.ID = fmt.Sprintf("client_new_%d", m.next)
	cp := *c
	m.byID[c.ID] = &cp
	return nil
}

func (m *memClients) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memClients) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Client, error) {
	out := map[string]*domain.Client{}
	for _, id := range ids {
		if c, err := m.GetByID(ctx, id); err == nil {
			out[id] = c
		}
	}
	return out, nil
}

func (m *memClients) find(match func(*domain.Client) bool) (*domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byID {
		if match(c) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memClients) GetByEmail(ctx context.Context, email string) (*domain.Client, error) {
	return m.find(func(c *domain.Client) bool { return c.Email == email })
}

func (m *memClients) GetByFirebaseUID(ctx context.Context, uid string) (*domain.Client, error) {
	return m.find(func(c *domain.Client) bool { return c.FirebaseUID != "" && c.FirebaseUID == uid })
}

func (m *memClients) Update(ctx context.Context, c *domain.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[c.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *c
	m.byID[c.ID] = &cp
	return nil
}

type memSequences struct {
	mu       sync.Mutex
	counters map[string]int64
}

func newMemSequences() *memSequences {
	return &memSequences{counters: map[string]int64{}}
}

func (m *memSequences) Next(ctx context.Context, name string, year int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s:%d", name, year)
	m.counters[key]++
	return m.counters[key], nil
}

// recordingNotifier captures deliveries. Emails to addresses in failEmail fail.
type recordingNotifier struct {
	mu        sync.Mutex
	emails    []domain.Email
	sms       []domain.SMS
	failEmail map[string]bool
	failAll   bool
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{failEmail: map[string]bool{}}
}

func (r *recordingNotifier) SendEmail(ctx context.Context, email domain.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll || r.failEmail[email.To] {
		return fmt.Errorf("smtp: mailbox unavailable for %s", email.To)
	}
	r.emails = append(r.emails, email)
	return nil
}

func (r *recordingNotifier) SendSMS(ctx context.Context, sms domain.SMS) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sms = append(r.sms, sms)
	return nil
}

func (r *recordingNotifier) subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.emails {
		out = append(out, e.Subject)
	}
	return out
}

func (r *recordingNotifier) countSubject(prefix string) int {
	n := 0
	for _, s := range r.subjects() {
		if strings.HasPrefix(s, prefix) {
			n++
		}
	}
	return n
}

type stubRenderer struct {
	err   error
	calls int
}

func (s *stubRenderer) Render(ctx context.Context, inv *domain.Invoice, client *domain.Client) (*RenderedInvoice, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &RenderedInvoice{Path: "/tmp/invoices/" + inv.InvoiceNumber + ".pdf"}, nil
}

// stubGateway returns fixed intents and captures
type stubGateway struct {
	name        domain.PaymentMethod
	nextID      int
	createErr   error
	captureErr  error
	captureStat string
	lastAmount  decimal.Decimal
	lastMeta    map[string]string
}

func (g *stubGateway) Name() domain.PaymentMethod { return g.name }

func (g *stubGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*IntentResult, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.nextID++
	g.lastAmount = amount
	g.lastMeta = metadata
	id := fmt.Sprintf("%s_tx_%d", g.name, g.nextID)
	res := &IntentResult{TransactionID: id}
	if g.name == domain.PaymentMethodStripe {
		res.ClientSecret = id + "_secret"
	} else {
		res.ApprovalURL = "https://paypal.test/approve/" + id
	}
	return res, nil
}

func (g *stubGateway) Capture(ctx context.Context, id string) (*CaptureResult, error) {
	if g.captureErr != nil {
		return nil, g.captureErr
	}
	return &CaptureResult{
		TransactionID: id,
		Status:        g.captureStat,
		Completed:     g.captureStat == "COMPLETED",
		Payload: &domain.GatewayPayload{
			Gateway: g.name,
			PayPal:  &domain.PayPalPayload{OrderID: id, Status: g.captureStat},
		},
	}, nil
}

// stubVerifier accepts signature "valid" and returns the queued event
type stubVerifier struct {
	event  *domain.WebhookEvent
	parsed int
}

func (v *stubVerifier) VerifyWebhook(raw []byte, signature string) (*domain.WebhookEvent, error) {
	if signature != "valid" {
		return nil, fmt.Errorf("no signatures found matching the expected signature")
	}
	v.parsed++
	return v.event, nil
}

type memDeduper struct {
	mu      sync.Mutex
	claimed map[string]bool
}

func newMemDeduper() *memDeduper {
	return &memDeduper{claimed: map[string]bool{}}
}

func (d *memDeduper) ClaimEvent(ctx context.Context, gateway, eventID string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := gateway + ":" + eventID
	if d.claimed[key] {
		return false, nil
	}
	d.claimed[key] = true
	return true, nil
}

func (d *memDeduper) ReleaseEvent(ctx context.Context, gateway, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.claimed, gateway+":"+eventID)
	return nil
}

type mockAuthClient struct {
	tokens map[string]*auth.Token
}

func (m *mockAuthClient) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	if token, ok := m.tokens[idToken]; ok {
		return token, nil
	}
	return nil, fmt.Errorf("invalid mock token")
}

var testCompany = CompanyInfo{Name: "FreightDesk Logistics", Email: "billing@freightdesk.test", Address: "1 Harbour Road, Tema"}

func newTestNotifications(notifier domain.Notifier) *NotificationService {
	n, err := NewNotificationService(notifier, testCompany, nil, zerolog.Nop())
	if err != nil {
		panic(err)
	}
	return n
}
