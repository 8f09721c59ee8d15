package telemetry

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func statusAttr(span sdktrace.ReadOnlySpan) int64 {
	for _, kv := range span.Attributes() {
		if kv.Key == attribute.Key("http.status_code") {
			return kv.Value.AsInt64()
		}
	}
	return 0
}

func TestFiberMiddlewareRecordsRenderedStatus(t *testing.T) {
	recorder := withRecorder(t)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"success": false, "message": err.Error()})
		},
	})
	app.Use(FiberMiddleware())
	app.Post("/payments/:id/cancel", func(c *fiber.Ctx) error {
		SetSpanAttribute(c, "payment.id", c.Params("id"))
		return fiber.ErrConflict
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusBadGateway)
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/payments/pay_1/cancel", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))

	resp, err = app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "POST /payments/pay_1/cancel", spans[0].Name())
	assert.Equal(t, int64(fiber.StatusConflict), statusAttr(spans[0]))
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("payment.id", "pay_1"))
	assert.Len(t, spans[0].Events(), 1) // recorded error

	assert.Equal(t, int64(fiber.StatusBadGateway), statusAttr(spans[1]))
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestBasicAuthHeaders(t *testing.T) {
	assert.Nil(t, BasicAuthHeaders("", ""))
	assert.Equal(t, map[string]string{"Authorization": "Basic MTIzOnNlY3JldA=="}, BasicAuthHeaders("123", "secret"))
}
