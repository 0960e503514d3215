package queue

import (
	"context"
	"encoding/json"
	"fmt"

	exchangeapp "github.com/autoparts/backend/internal/application/exchange"
	"github.com/autoparts/backend/internal/domain/exchange"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher submits exchange jobs to the topic exchange
type Publisher struct {
	conn   *Connection
	logger *zap.Logger
}

// NewPublisher creates a new Publisher
func NewPublisher(conn *Connection, logger *zap.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// Ensure Publisher implements JobPublisher
var _ exchangeapp.JobPublisher = (*Publisher)(nil)

// Publish serializes the job and publishes it persistently under the
// routing key of its type.
func (p *Publisher) Publish(ctx context.Context, job exchange.Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = p.conn.Channel().PublishWithContext(ctx,
		p.conn.cfg.Exchange,
		RoutingKey(job.Type),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.RequestID,
			Timestamp:    job.CreatedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s job: %w", job.Type, err)
	}

	p.logger.Info("exchange job published",
		zap.String("type", job.Type.String()),
		zap.String("object_key", job.ObjectKey),
		zap.String("request_id", job.RequestID),
	)
	return nil
}

// PublishRaw publishes a pre-serialized payload under an arbitrary routing
// key. Used for the versioned integration push contracts.
func (p *Publisher) PublishRaw(ctx context.Context, routingKey string, body []byte) error {
	err := p.conn.Channel().PublishWithContext(ctx,
		p.conn.cfg.Exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", routingKey, err)
	}
	return nil
}
