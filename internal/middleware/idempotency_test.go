package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdempotentApp(t *testing.T) (*fiber.App, *int, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	calls := 0
	app := fiber.New()
	app.Use(IdempotencyMiddleware(client, time.Hour, zerolog.Nop()))
	app.Post("/payments/create", func(c *fiber.Ctx) error {
		calls++
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "call": calls})
	})
	app.Post("/payments/fail", func(c *fiber.Ctx) error {
		calls++
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false})
	})
	app.Get("/payments", func(c *fiber.Ctx) error {
		calls++
		return c.JSON(fiber.Map{"success": true})
	})
	return app, &calls, mr
}

func send(t *testing.T, app *fiber.App, method, path string, headers map[string]string) (int, string, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body), resp.Header.Get(ReplayHeader)
}

func TestIdempotencyReplaysResponse(t *testing.T) {
	app, calls, _ := newIdempotentApp(t)
	headers := map[string]string{IdempotencyKeyHeader: "req-1"}

	status, body, replay := send(t, app, "POST", "/payments/create", headers)
	assert.Equal(t, fiber.StatusCreated, status)
	assert.Empty(t, replay)

	status2, body2, replay2 := send(t, app, "POST", "/payments/create", headers)
	assert.Equal(t, fiber.StatusCreated, status2)
	assert.Equal(t, body, body2)
	assert.Equal(t, "true", replay2)
	assert.Equal(t, 1, *calls)
}

func TestIdempotencyCorrelationIDFallback(t *testing.T) {
	app, calls, _ := newIdempotentApp(t)
	headers := map[string]string{CorrelationIDHeader: "corr-1"}

	send(t, app, "POST", "/payments/create", headers)
	_, _, replay := send(t, app, "POST", "/payments/create", headers)
	assert.Equal(t, "true", replay)
	assert.Equal(t, 1, *calls)
}

func TestIdempotencySkips(t *testing.T) {
	app, calls, mr := newIdempotentApp(t)

	// no key
	send(t, app, "POST", "/payments/create", nil)
	send(t, app, "POST", "/payments/create", nil)
	assert.Equal(t, 2, *calls)

	// errors are not cached
	headers := map[string]string{IdempotencyKeyHeader: "req-err"}
	send(t, app, "POST", "/payments/fail", headers)
	send(t, app, "POST", "/payments/fail", headers)
	assert.Equal(t, 4, *calls)

	// reads are never cached
	send(t, app, "GET", "/payments", map[string]string{IdempotencyKeyHeader: "req-get"})
	send(t, app, "GET", "/payments", map[string]string{IdempotencyKeyHeader: "req-get"})
	assert.Equal(t, 6, *calls)

	assert.Empty(t, mr.Keys())
}

func TestIdempotencyExpires(t *testing.T) {
	app, calls, mr := newIdempotentApp(t)
	headers := map[string]string{IdempotencyKeyHeader: "req-ttl"}

	send(t, app, "POST", "/payments/create", headers)
	mr.FastForward(2 * time.Hour)
	_, _, replay := send(t, app, "POST", "/payments/create", headers)
	assert.Empty(t, replay)
	assert.Equal(t, 2, *calls)
}
