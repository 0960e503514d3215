package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/autoparts/backend/internal/domain/exchange"
	"github.com/autoparts/backend/internal/infrastructure/config"
	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// JobHandler processes one exchange job. A non-nil error after the retry
// budget is exhausted sends the message to the dead-letter queue.
type JobHandler func(ctx context.Context, job exchange.Job) error

// Consumer runs one worker goroutine per subscribed queue. Retries happen
// at this level, never inside handler logic: a failing delivery is retried
// with exponential backoff and finally rejected without requeue so the
// broker dead-letters it.
type Consumer struct {
	conn   *Connection
	cfg    *config.AMQPConfig
	logger *zap.Logger

	mu       sync.Mutex
	channels []*amqp.Channel
	wg       sync.WaitGroup
}

// NewConsumer creates a new Consumer
func NewConsumer(conn *Connection, cfg *config.AMQPConfig, logger *zap.Logger) *Consumer {
	return &Consumer{conn: conn, cfg: cfg, logger: logger}
}

// Subscribe starts consuming the queue of the given job type with the
// handler on a dedicated channel and goroutine.
func (c *Consumer) Subscribe(ctx context.Context, jobType exchange.JobType, handler JobHandler) error {
	ch, err := c.conn.NewChannel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries, err := ch.Consume(QueueName(jobType), "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to consume %q: %w", QueueName(jobType), err)
	}

	c.mu.Lock()
	c.channels = append(c.channels, ch)
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		log := c.logger.With(zap.String("queue", QueueName(jobType)))
		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					return
				}
				c.handleDelivery(ctx, log, delivery, handler)
			}
		}
	}()

	c.logger.Info("consumer started", zap.String("queue", QueueName(jobType)))
	return nil
}

// Stop closes all consumer channels and waits for in-flight handlers
func (c *Consumer) Stop() {
	c.mu.Lock()
	for _, ch := range c.channels {
		_ = ch.Close()
	}
	c.channels = nil
	c.mu.Unlock()
	c.wg.Wait()
}

// handleDelivery runs the handler with the retry budget, then acks or
// rejects the delivery. Reject without requeue routes the message to the
// dead-letter queue instead of looping forever.
func (c *Consumer) handleDelivery(ctx context.Context, log *zap.Logger, delivery amqp.Delivery, handler JobHandler) {
	var job exchange.Job
	if err := json.Unmarshal(delivery.Body, &job); err != nil {
		log.Error("undecodable message, dead-lettering",
			zap.Error(err),
			zap.String("message_id", delivery.MessageId),
		)
		_ = delivery.Nack(false, false)
		return
	}

	err := c.runWithRetry(ctx, log, job, handler)
	if err != nil {
		log.Error("job failed after all attempts, dead-lettering",
			zap.Error(err),
			zap.String("request_id", job.RequestID),
			zap.String("object_key", job.ObjectKey),
		)
		_ = delivery.Nack(false, false)
		return
	}
	_ = delivery.Ack(false)
}

// runWithRetry executes the handler up to MaxAttempts times with
// exponential backoff between attempts.
func (c *Consumer) runWithRetry(ctx context.Context, log *zap.Logger, job exchange.Job, handler JobHandler) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.RetryDelay
	bo.Multiplier = c.cfg.RetryMultiplier
	bo.MaxInterval = c.cfg.RetryMaxDelay
	bo.RandomizationFactor = 0.1
	bo.Reset()

	var err error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		err = c.safeHandle(ctx, job, handler)
		if err == nil {
			return nil
		}
		if attempt == c.cfg.MaxAttempts {
			break
		}

		wait := bo.NextBackOff()
		log.Warn("job attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.String("request_id", job.RequestID),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}

// safeHandle converts a handler panic into an error so a poison message
// cannot kill the worker.
func (c *Consumer) safeHandle(ctx context.Context, job exchange.Job, handler JobHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, job)
}
