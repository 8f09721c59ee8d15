package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// ErrPermanent marks a message that must not be redelivered
var ErrPermanent = errors.New("permanent failure")

// DefaultMaxAttempts is how often a message is tried before it is dropped
const DefaultMaxAttempts = 5

// RetryHeader counts the attempts already made on a republished message
const RetryHeader = "x-retry-count"

// HandlerFunc handles one delivery. A failed message goes back to the tail of its
// queue until it has been tried MaxAttempts times; errors wrapping ErrPermanent
// drop it at once. Dropped messages reach the queue's dead-letter exchange if one is set.
type HandlerFunc func(ctx context.Context, delivery amqp.Delivery) error

// republisher is the part of *amqp.Channel used to retry a message
type republisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Consumer handles the connection and consumption of messages from RabbitMQ
type Consumer struct {
	conn        *amqp.Connection
	logger      zerolog.Logger
	handlers    map[string]HandlerFunc
	done        chan error
	maxAttempts int
}

func NewConsumer(url string, logger zerolog.Logger) (*Consumer, error) {
	logger = logger.With().Str("component", "rabbitmq_consumer").Logger()

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	logger.Info().Msg("connected to RabbitMQ")

	return &Consumer{
		conn:        conn,
		logger:      logger,
		handlers:    make(map[string]HandlerFunc),
		done:        make(chan error, 1),
		maxAttempts: DefaultMaxAttempts,
	}, nil
}

// SetMaxAttempts changes the attempt limit. Values below 1 are ignored.
func (c *Consumer) SetMaxAttempts(n int) {
	if n >= 1 {
		c.maxAttempts = n
	}
}

// RegisterHandler registers a handler function for a specific queue
func (c *Consumer) RegisterHandler(queueName string, handler HandlerFunc) {
	c.handlers[queueName] = handler
}

// Start consumes every registered queue until ctx is cancelled or a queue fails
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered, consumer will not start")
	}

	for queueName, handler := range c.handlers {
		go c.consumeQueue(ctx, queueName, handler)
	}

	select {
	case err := <-c.done:
		return err
	case <-ctx.Done():
		return nil
	}
}

func (c *Consumer) fail(err error) {
	select {
	case c.done <- err:
	default:
	}
}

func (c *Consumer) consumeQueue(ctx context.Context, queueName string, handler HandlerFunc) {
	log := c.logger.With().Str("queue", queueName).Logger()

	ch, err := c.conn.Channel()
	if err != nil {
		c.fail(fmt.Errorf("failed to open a channel: %w", err))
		return
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		c.fail(fmt.Errorf("failed to declare queue %s: %w", queueName, err))
		return
	}

	// One unacked message at a time per consumer
	if err := ch.Qos(1, 0, false); err != nil {
		c.fail(fmt.Errorf("failed to set QoS: %w", err))
		return
	}

	msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		c.fail(fmt.Errorf("failed to register a consumer: %w", err))
		return
	}

	log.Info().Msg("started consuming")

	for {
		select {
		case d, ok := <-msgs:
			if !ok {
				c.fail(fmt.Errorf("delivery channel for %s closed", queueName))
				return
			}
			c.handle(ctx, log, ch, d, handler)
		case <-ctx.Done():
			log.Info().Msg("context cancelled, stopping consumer")
			return
		}
	}
}

func (c *Consumer) handle(ctx context.Context, log zerolog.Logger, pub republisher, d amqp.Delivery, handler HandlerFunc) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("panic recovered in message handler")
			// Do not requeue to avoid panic loops
			_ = d.Nack(false, false)
		}
	}()

	err := handler(ctx, d)
	if err == nil {
		_ = d.Ack(false)
		return
	}

	attempt := deliveryAttempts(d) + 1
	log = log.With().Err(err).Str("message_id", d.MessageId).Int("attempt", attempt).Logger()
	switch {
	case errors.Is(err, ErrPermanent):
		log.Error().Msg("dropping message")
		_ = d.Nack(false, false)
	case attempt >= c.maxAttempts:
		log.Error().Msg("retries exhausted, dropping message")
		_ = d.Nack(false, false)
	default:
		// back to the tail of the queue so other messages are not held up
		if pubErr := pub.PublishWithContext(ctx, d.Exchange, d.RoutingKey, false, false, retryPublishing(d, attempt)); pubErr != nil {
			log.Error().AnErr("publish_error", pubErr).Msg("handler failed, requeueing in place")
			_ = d.Nack(false, true)
			return
		}
		log.Warn().Msg("handler failed, retry scheduled")
		_ = d.Ack(false)
	}
}

// deliveryAttempts is the number of failed attempts recorded on d, either by
// RetryHeader or by the x-delivery-count header of quorum queues
func deliveryAttempts(d amqp.Delivery) int {
	attempts := headerInt(d.Headers, RetryHeader)
	if n := headerInt(d.Headers, "x-delivery-count"); n > attempts {
		attempts = n
	}
	return attempts
}

func headerInt(headers amqp.Table, key string) int {
	switch v := headers[key].(type) {
	case int:
		return v
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}

func retryPublishing(d amqp.Delivery, attempts int) amqp.Publishing {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[RetryHeader] = int32(attempts)

	return amqp.Publishing{
		Headers:       headers,
		ContentType:   d.ContentType,
		DeliveryMode:  amqp.Persistent,
		CorrelationId: d.CorrelationId,
		MessageId:     d.MessageId,
		Timestamp:     d.Timestamp,
		Type:          d.Type,
		Body:          d.Body,
	}
}

// Close gracefully closes the connection
func (c *Consumer) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error().Err(err).Msg("failed to close connection")
		}
	}
}
