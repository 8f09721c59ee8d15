package handler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/freightdesk/internal/domain"
	"github.com/mansoorceksport/freightdesk/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePaymentService struct {
	caller    domain.Caller
	input     service.CreatePaymentInput
	paymentID string
	gateway   string
	orderID   string
	query     service.ListPaymentsQuery
	err       error
}

func samplePayment() *domain.Payment {
	return &domain.Payment{
		ID:            "pay_1",
		InvoiceNumber: "INV-2024-00001",
		ClientID:      "client_1",
		Amount:        decimal.RequireFromString("287.50"),
		Currency:      "USD",
		Status:        domain.PaymentStatusPending,
		Method:        domain.PaymentMethodPending,
		DueDate:       time.Date(2024, 4, 9, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakePaymentService) CreatePayment(_ context.Context, caller domain.Caller, input service.CreatePaymentInput) (*domain.Payment, *domain.Invoice, error) {
	f.caller, f.input = caller, input
	if f.err != nil {
		return nil, nil, f.err
	}
	return samplePayment(), &domain.Invoice{ID: "inv_1", InvoiceNumber: "INV-2024-00001", PaymentID: "pay_1"}, nil
}

func (f *fakePaymentService) InitiateGatewayTransaction(_ context.Context, caller domain.Caller, paymentID string, gateway string) (*service.TransactionResult, error) {
	f.caller, f.paymentID, f.gateway = caller, paymentID, gateway
	if f.err != nil {
		return nil, f.err
	}
	return &service.TransactionResult{
		PaymentID:     paymentID,
		Gateway:       domain.PaymentMethod(gateway),
		TransactionID: "txn_1",
		ClientSecret:  "secret_1",
	}, nil
}

func (f *fakePaymentService) CaptureOrder(_ context.Context, caller domain.Caller, orderID string) (*domain.Payment, error) {
	f.caller, f.orderID = caller, orderID
	if f.err != nil {
		return nil, f.err
	}
	p := samplePayment()
	p.Status = domain.PaymentStatusCompleted
	return p, nil
}

func (f *fakePaymentService) GetPayment(_ context.Context, caller domain.Caller, paymentID string) (*domain.Payment, *domain.Invoice, error) {
	f.caller, f.paymentID = caller, paymentID
	if f.err != nil {
		return nil, nil, f.err
	}
	return samplePayment(), nil, nil
}

func (f *fakePaymentService) ListPayments(_ context.Context, caller domain.Caller, query service.ListPaymentsQuery) (*service.PaymentPage, error) {
	f.caller, f.query = caller, query
	if f.err != nil {
		return nil, f.err
	}
	return &service.PaymentPage{
		Payments: []*domain.Payment{samplePayment()},
		Page:     query.Page,
		Limit:    query.Limit,
		Total:    21,
	}, nil
}

func (f *fakePaymentService) CancelPayment(_ context.Context, caller domain.Caller, paymentID string) (*domain.Payment, error) {
	f.caller, f.paymentID = caller, paymentID
	if f.err != nil {
		return nil, f.err
	}
	p := samplePayment()
	p.Status = domain.PaymentStatusCancelled
	return p, nil
}

var testClient = domain.Caller{ID: "client_1", Role: domain.RoleClient}

func newPaymentApp(svc *fakePaymentService) *fiber.App {
	h := NewPaymentHandler(svc)
	app := newTestApp()
	payments := app.Group("/payments", asCaller(testClient))
	payments.Post("/create", h.Create)
	payments.Post("/stripe/create-intent", h.CreateStripeIntent)
	payments.Post("/paypal/create-order", h.CreatePayPalOrder)
	payments.Post("/paypal/capture-order", h.CapturePayPalOrder)
	payments.Get("/", h.List)
	payments.Get("/:id", h.Get)
	payments.Post("/:id/cancel", h.Cancel)
	return app
}

func TestPaymentHandlerCreate(t *testing.T) {
	svc := &fakePaymentService{}
	app := newPaymentApp(svc)

	status, env, _ := doRequest(t, app, "POST", "/payments/create", map[string]interface{}{
		"items": []map[string]interface{}{
			{"description": "Line haul, Accra to Kumasi", "quantity": "2", "unit_price": "100.00"},
		},
		"shipment_id": "shp_9",
	}, nil)

	assert.Equal(t, fiber.StatusCreated, status)
	assert.True(t, env.Success)
	assert.Equal(t, testClient, svc.caller)
	require.Len(t, svc.input.Items, 1)
	assert.True(t, decimal.RequireFromString("100").Equal(svc.input.Items[0].UnitPrice))
	assert.Equal(t, "shp_9", svc.input.ShipmentID)

	var data PaymentResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "pay_1", data.Payment.ID)
	assert.Equal(t, "inv_1", data.Invoice.ID)
}

func TestPaymentHandlerCreateErrors(t *testing.T) {
	t.Run("malformed body", func(t *testing.T) {
		app := newPaymentApp(&fakePaymentService{})
		status, env, _ := doRequest(t, app, "POST", "/payments/create", "{not json", nil)
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.False(t, env.Success)
	})

	t.Run("validation from service", func(t *testing.T) {
		app := newPaymentApp(&fakePaymentService{err: domain.NewValidationError("items must not be empty")})
		status, env, _ := doRequest(t, app, "POST", "/payments/create", map[string]interface{}{}, nil)
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, "items must not be empty", env.Message)
	})
}

func TestPaymentHandlerInitiate(t *testing.T) {
	svc := &fakePaymentService{}
	app := newPaymentApp(svc)

	status, env, _ := doRequest(t, app, "POST", "/payments/stripe/create-intent", InitiateRequest{PaymentID: "pay_1"}, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "stripe", svc.gateway)
	assert.Equal(t, "pay_1", svc.paymentID)

	var result service.TransactionResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "secret_1", result.ClientSecret)

	status, _, _ = doRequest(t, app, "POST", "/payments/paypal/create-order", InitiateRequest{PaymentID: "pay_2"}, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "paypal", svc.gateway)
	assert.Equal(t, "pay_2", svc.paymentID)

	svc.paymentID = ""
	status, _, _ = doRequest(t, app, "POST", "/payments/stripe/create-intent", InitiateRequest{}, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Empty(t, svc.paymentID)
}

func TestPaymentHandlerInitiateConflict(t *testing.T) {
	app := newPaymentApp(&fakePaymentService{err: domain.NewConflictError("payment is completed and cannot be paid", domain.ErrInvalidTransition)})
	status, env, _ := doRequest(t, app, "POST", "/payments/stripe/create-intent", InitiateRequest{PaymentID: "pay_1"}, nil)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Contains(t, env.Message, "cannot be paid")
}

func TestPaymentHandlerCapture(t *testing.T) {
	svc := &fakePaymentService{}
	app := newPaymentApp(svc)

	status, env, _ := doRequest(t, app, "POST", "/payments/paypal/capture-order", CaptureRequest{OrderID: "ORDER-1"}, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ORDER-1", svc.orderID)
	assert.Equal(t, "payment completed", env.Message)

	declined := newPaymentApp(&fakePaymentService{err: domain.NewDeclinedError("order was not completed")})
	status, _, _ = doRequest(t, declined, "POST", "/payments/paypal/capture-order", CaptureRequest{OrderID: "ORDER-2"}, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestPaymentHandlerList(t *testing.T) {
	svc := &fakePaymentService{}
	app := newPaymentApp(svc)

	status, env, _ := doRequest(t, app, "GET", "/payments?page=2&limit=10&status=pending&client_id=client_9", nil, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, service.ListPaymentsQuery{ClientID: "client_9", Status: "pending", Page: 2, Limit: 10}, svc.query)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, Pagination{Page: 2, Limit: 10, Total: 21, Pages: 3}, *env.Pagination)

	var payments []domain.Payment
	require.NoError(t, json.Unmarshal(env.Data, &payments))
	assert.Len(t, payments, 1)

	doRequest(t, app, "GET", "/payments", nil, nil)
	assert.Equal(t, 1, svc.query.Page)
	assert.Equal(t, 20, svc.query.Limit)
}

func TestPaymentHandlerGetAndCancel(t *testing.T) {
	svc := &fakePaymentService{}
	app := newPaymentApp(svc)

	status, _, _ := doRequest(t, app, "GET", "/payments/pay_7", nil, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "pay_7", svc.paymentID)

	status, env, _ := doRequest(t, app, "POST", "/payments/pay_8/cancel", nil, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "pay_8", svc.paymentID)
	assert.Equal(t, "payment cancelled", env.Message)

	notFound := newPaymentApp(&fakePaymentService{err: domain.NewNotFoundError("payment")})
	status, env, _ = doRequest(t, notFound, "GET", "/payments/missing", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "payment not found", env.Message)

	forbidden := newPaymentApp(&fakePaymentService{err: domain.NewForbiddenError("payment belongs to another client")})
	status, _, _ = doRequest(t, forbidden, "GET", "/payments/pay_9", nil, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
}
