package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Idempotency headers, X-Idempotency-Key wins when both are sent
const (
	IdempotencyKeyHeader = "X-Idempotency-Key"
	CorrelationIDHeader  = "X-Correlation-ID"
	ReplayHeader         = "X-Idempotent-Replay"
)

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyMiddleware replays the stored response when a mutating request repeats
// an idempotency key within ttl. Keys are scoped to the caller and route.
func IdempotencyMiddleware(redisClient *redis.Client, ttl time.Duration, logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPatch && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		requestKey := c.Get(IdempotencyKeyHeader)
		if requestKey == "" {
			requestKey = c.Get(CorrelationIDHeader)
		}
		if requestKey == "" {
			return c.Next()
		}

		clientID, _ := c.Locals(ClientIDKey).(string)
		key := fmt.Sprintf("idempotency:%s:%s:%s", clientID, c.Path(), requestKey)
		ctx := c.UserContext()

		if raw, err := redisClient.Get(ctx, key).Bytes(); err == nil {
			var cached cachedResponse
			if err := json.Unmarshal(raw, &cached); err == nil {
				c.Set(ReplayHeader, "true")
				c.Set(fiber.HeaderContentType, cached.ContentType)
				return c.Status(cached.Status).Send(cached.Body)
			}
		} else if err != redis.Nil {
			logger.Warn().Err(err).Msg("idempotency lookup failed")
		}

		if err := c.Next(); err != nil {
			return err
		}

		status := c.Response().StatusCode()
		if status < 200 || status >= 300 {
			return nil
		}
		body := c.Response().Body()
		if len(body) == 0 {
			return nil
		}

		data, err := json.Marshal(cachedResponse{
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), body...),
		})
		if err != nil {
			return nil
		}
		setCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := redisClient.Set(setCtx, key, data, ttl).Err(); err != nil {
			logger.Warn().Err(err).Msg("failed to store idempotent response")
		}
		return nil
	}
}
