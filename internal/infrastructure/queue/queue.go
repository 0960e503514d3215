// Package queue wires the exchange job pipeline to RabbitMQ: one topic
// exchange with a durable queue per job purpose, each paired with a
// dead-letter queue on a separate dead-letter exchange.
package queue

import (
	"fmt"

	"github.com/autoparts/backend/internal/domain/exchange"
	"github.com/autoparts/backend/internal/infrastructure/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueName returns the durable queue name for a job type
func QueueName(t exchange.JobType) string {
	return "exchange." + t.String()
}

// DeadLetterQueueName returns the paired dead-letter queue name
func DeadLetterQueueName(t exchange.JobType) string {
	return QueueName(t) + ".dlq"
}

// RoutingKey returns the routing key a job type is published under
func RoutingKey(t exchange.JobType) string {
	return t.String()
}

// DeadLetterRoutingKey returns the routing key rejected messages are
// re-published under on the dead-letter exchange.
func DeadLetterRoutingKey(t exchange.JobType) string {
	return t.String() + ".dead"
}

// Connection wraps an AMQP connection and the channel used for topology and
// publishing.
type Connection struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     *config.AMQPConfig
}

// Dial connects to the broker and opens a channel
func Dial(cfg *config.AMQPConfig) (*Connection, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return &Connection{conn: conn, channel: channel, cfg: cfg}, nil
}

// Channel returns the shared channel
func (c *Connection) Channel() *amqp.Channel {
	return c.channel
}

// NewChannel opens a dedicated channel, one per consumer
func (c *Connection) NewChannel() (*amqp.Channel, error) {
	return c.conn.Channel()
}

// Close closes the channel and connection
func (c *Connection) Close() error {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	return c.conn.Close()
}

// DeclareTopology declares the exchanges, queues and bindings for every job
// type. Declaration is idempotent; every process declares on startup.
func (c *Connection) DeclareTopology() error {
	if err := c.channel.ExchangeDeclare(c.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %q: %w", c.cfg.Exchange, err)
	}
	if err := c.channel.ExchangeDeclare(c.cfg.DeadLetter, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead-letter exchange %q: %w", c.cfg.DeadLetter, err)
	}

	for _, t := range exchange.AllJobTypes() {
		args := amqp.Table{
			"x-dead-letter-exchange":    c.cfg.DeadLetter,
			"x-dead-letter-routing-key": DeadLetterRoutingKey(t),
		}
		if _, err := c.channel.QueueDeclare(QueueName(t), true, false, false, false, args); err != nil {
			return fmt.Errorf("failed to declare queue %q: %w", QueueName(t), err)
		}
		if err := c.channel.QueueBind(QueueName(t), RoutingKey(t), c.cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %q: %w", QueueName(t), err)
		}

		if _, err := c.channel.QueueDeclare(DeadLetterQueueName(t), true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare dead-letter queue %q: %w", DeadLetterQueueName(t), err)
		}
		if err := c.channel.QueueBind(DeadLetterQueueName(t), DeadLetterRoutingKey(t), c.cfg.DeadLetter, false, nil); err != nil {
			return fmt.Errorf("failed to bind dead-letter queue %q: %w", DeadLetterQueueName(t), err)
		}
	}
	return nil
}
