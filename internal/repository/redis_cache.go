package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	webhookEventKeyPrefix = "webhook:event:"
	analyticsKeyPrefix    = "payments:analytics:"
)

var ErrCacheMiss = fmt.Errorf("cache miss")

// RedisCacheRepository holds short-lived payment state in Redis
type RedisCacheRepository struct {
	client *redis.Client
}

// NewRedisCacheRepository creates a new Redis cache repository
func NewRedisCacheRepository(client *redis.Client) *RedisCacheRepository {
	return &RedisCacheRepository{
		client: client,
	}
}

// ClaimEvent records a gateway event id. It returns false when the id was already claimed.
func (r *RedisCacheRepository) ClaimEvent(ctx context.Context, gateway, eventID string, ttl time.Duration) (bool, error) {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.ClaimEvent",
		trace.WithAttributes(
			attribute.String("webhook.gateway", gateway),
			attribute.String("webhook.event_id", eventID),
		),
	)
	defer span.End()

	claimed, err := r.client.SetNX(ctx, webhookEventKeyPrefix+gateway+":"+eventID, time.Now().UTC().Unix(), ttl).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("redis setnx error: %w", err)
	}
	span.SetAttributes(attribute.Bool("webhook.duplicate", !claimed))
	return claimed, nil
}

// ReleaseEvent forgets a claimed event id so a redelivery is processed again
func (r *RedisCacheRepository) ReleaseEvent(ctx context.Context, gateway, eventID string) error {
	return r.Delete(ctx, webhookEventKeyPrefix+gateway+":"+eventID)
}

// AnalyticsKey is the cache key for an analytics window
func AnalyticsKey(windowDays int) string {
	return fmt.Sprintf("%s%d", analyticsKeyPrefix, windowDays)
}

// Get retrieves a value from cache by key with OTel tracing
func (r *RedisCacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Get",
		trace.WithAttributes(attribute.String("cache.key", key)),
	)
	defer span.End()

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			span.SetAttributes(attribute.String("cache.result", "miss"))
			return ErrCacheMiss
		}
		span.RecordError(err)
		return fmt.Errorf("redis get error: %w", err)
	}

	span.SetAttributes(attribute.String("cache.result", "hit"))
	if err := json.Unmarshal(data, dest); err != nil {
		span.RecordError(err)
		return fmt.Errorf("unmarshal error: %w", err)
	}

	return nil
}

// Set stores a value in cache with TTL and OTel tracing
func (r *RedisCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Set",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_seconds", int64(ttl.Seconds())),
		),
	)
	defer span.End()

	data, err := json.Marshal(value)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("marshal error: %w", err)
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis set error: %w", err)
	}

	return nil
}

// Delete removes keys from cache with OTel tracing
func (r *RedisCacheRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Delete",
		trace.WithAttributes(attribute.Int("cache.key_count", len(keys))),
	)
	defer span.End()

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis delete error: %w", err)
	}

	return nil
}

// InvalidateAnalytics drops every cached analytics window after the ledger changes
func (r *RedisCacheRepository) InvalidateAnalytics(ctx context.Context) error {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.InvalidateAnalytics")
	defer span.End()

	var keys []string
	iter := r.client.Scan(ctx, 0, analyticsKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis scan error: %w", err)
	}

	span.SetAttributes(attribute.Int("cache.matched_keys", len(keys)))
	return r.Delete(ctx, keys...)
}

// GetAnalytics loads a cached analytics window into dest, or returns ErrCacheMiss
func (r *RedisCacheRepository) GetAnalytics(ctx context.Context, windowDays int, dest interface{}) error {
	return r.Get(ctx, AnalyticsKey(windowDays), dest)
}

// SetAnalytics caches an analytics window
func (r *RedisCacheRepository) SetAnalytics(ctx context.Context, windowDays int, value interface{}, ttl time.Duration) error {
	return r.Set(ctx, AnalyticsKey(windowDays), value, ttl)
}
