package handler

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/freightdesk/internal/domain"
	"github.com/mansoorceksport/freightdesk/internal/middleware"
	"github.com/mansoorceksport/freightdesk/internal/service"
	"github.com/mansoorceksport/freightdesk/internal/telemetry"
)

// PaymentService is the payment workflow used by PaymentHandler
type PaymentService interface {
	CreatePayment(ctx context.Context, caller domain.Caller, input service.CreatePaymentInput) (*domain.Payment, *domain.Invoice, error)
	InitiateGatewayTransaction(ctx context.Context, caller domain.Caller, paymentID string, gateway string) (*service.TransactionResult, error)
	CaptureOrder(ctx context.Context, caller domain.Caller, orderID string) (*domain.Payment, error)
	GetPayment(ctx context.Context, caller domain.Caller, paymentID string) (*domain.Payment, *domain.Invoice, error)
	ListPayments(ctx context.Context, caller domain.Caller, query service.ListPaymentsQuery) (*service.PaymentPage, error)
	CancelPayment(ctx context.Context, caller domain.Caller, paymentID string) (*domain.Payment, error)
}

// PaymentHandler handles payment-related API endpoints
type PaymentHandler struct {
	payments PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// PaymentResponse is a payment together with its invoice
type PaymentResponse struct {
	Payment *domain.Payment `json:"payment"`
	Invoice *domain.Invoice `json:"invoice,omitempty"`
}

// InitiateRequest selects the payment to pay
type InitiateRequest struct {
	PaymentID string `json:"payment_id"`
}

// CaptureRequest identifies an approved PayPal order
type CaptureRequest struct {
	OrderID string `json:"order_id"`
}

// Create handles POST /payments/create
func (h *PaymentHandler) Create(c *fiber.Ctx) error {
	var req service.CreatePaymentInput
	if err := c.BodyParser(&req); err != nil {
		return domain.NewValidationError("invalid request body")
	}

	payment, invoice, err := h.payments.CreatePayment(c.UserContext(), middleware.GetCaller(c), req)
	if err != nil {
		return err
	}
	telemetry.SetSpanAttribute(c, "payment.id", payment.ID)
	return ok(c, fiber.StatusCreated, PaymentResponse{Payment: payment, Invoice: invoice})
}

// CreateStripeIntent handles POST /payments/stripe/create-intent
func (h *PaymentHandler) CreateStripeIntent(c *fiber.Ctx) error {
	return h.initiate(c, string(domain.PaymentMethodStripe))
}

// CreatePayPalOrder handles POST /payments/paypal/create-order
func (h *PaymentHandler) CreatePayPalOrder(c *fiber.Ctx) error {
	return h.initiate(c, string(domain.PaymentMethodPayPal))
}

func (h *PaymentHandler) initiate(c *fiber.Ctx, gateway string) error {
	var req InitiateRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewValidationError("invalid request body")
	}
	if strings.TrimSpace(req.PaymentID) == "" {
		return domain.NewValidationError("payment_id is required")
	}

	telemetry.SetSpanAttribute(c, "payment.id", req.PaymentID)
	result, err := h.payments.InitiateGatewayTransaction(c.UserContext(), middleware.GetCaller(c), req.PaymentID, gateway)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, result)
}

// CapturePayPalOrder handles POST /payments/paypal/capture-order
func (h *PaymentHandler) CapturePayPalOrder(c *fiber.Ctx) error {
	var req CaptureRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewValidationError("invalid request body")
	}

	payment, err := h.payments.CaptureOrder(c.UserContext(), middleware.GetCaller(c), req.OrderID)
	if err != nil {
		return err
	}
	return okMessage(c, fiber.StatusOK, "payment completed", payment)
}

// List handles GET /payments
func (h *PaymentHandler) List(c *fiber.Ctx) error {
	page, err := h.payments.ListPayments(c.UserContext(), middleware.GetCaller(c), service.ListPaymentsQuery{
		ClientID: c.Query("client_id"),
		Status:   c.Query("status"),
		Page:     c.QueryInt("page", 1),
		Limit:    c.QueryInt("limit", 20),
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       page.Payments,
		"pagination": NewPagination(page.Page, page.Limit, page.Total),
	})
}

// Get handles GET /payments/:id
func (h *PaymentHandler) Get(c *fiber.Ctx) error {
	payment, invoice, err := h.payments.GetPayment(c.UserContext(), middleware.GetCaller(c), c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, PaymentResponse{Payment: payment, Invoice: invoice})
}

// Cancel handles POST /payments/:id/cancel
func (h *PaymentHandler) Cancel(c *fiber.Ctx) error {
	payment, err := h.payments.CancelPayment(c.UserContext(), middleware.GetCaller(c), c.Params("id"))
	if err != nil {
		return err
	}
	return okMessage(c, fiber.StatusOK, "payment cancelled", payment)
}
