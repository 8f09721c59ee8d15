package rabbitmq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Publisher holds the connection and channel for publishing messages to RabbitMQ
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  zerolog.Logger
}

// NewPublisher dials url and opens a publishing channel
func NewPublisher(url string, logger zerolog.Logger) (*Publisher, error) {
	logger = logger.With().Str("component", "rabbitmq_publisher").Logger()

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		if connErr := conn.Close(); connErr != nil {
			logger.Error().Err(connErr).Msg("failed to close connection after channel failure")
		}
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	logger.Info().Msg("connected to RabbitMQ")

	return &Publisher{
		conn:    conn,
		channel: ch,
		logger:  logger,
	}, nil
}

// DeclareQueue makes sure a durable queue exists before messages are routed to it
func (p *Publisher) DeclareQueue(name string) error {
	_, err := p.channel.QueueDeclare(name, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	return nil
}

// Publish sends a persistent JSON message to queue through the default exchange
func (p *Publisher) Publish(ctx context.Context, queue string, messageID string, body []byte) error {
	err := p.channel.PublishWithContext(ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Body:         body,
		},
	)
	if err != nil {
		p.logger.Error().Err(err).Str("queue", queue).Msg("failed to publish message")
		return err
	}

	p.logger.Debug().Str("queue", queue).Str("message_id", messageID).Msg("message published")
	return nil
}

// Close gracefully closes the channel and the connection
func (p *Publisher) Close() {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Error().Err(err).Msg("failed to close channel")
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.logger.Error().Err(err).Msg("failed to close connection")
		}
	}
}
