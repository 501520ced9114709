package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"crm-service/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// MessageHandler processes one delivery body. A returned error retries the
// delivery once before it is dead-lettered.
type MessageHandler func(ctx context.Context, data json.RawMessage) error

// Consumer reads one queue bound to one routing key
type Consumer struct {
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	handler    MessageHandler
	logger     *zap.Logger
}

// NewConsumer declares queueName, bound to routingKey, and its dead-letter queue
func NewConsumer(url, queueName, routingKey string, logger *zap.Logger) (*Consumer, error) {
	conn, ch, err := Dial(url, queueName+"-consumer")
	if err != nil {
		return nil, err
	}

	q, err := declareQueue(ch, queueName, routingKey)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", q.Name),
		zap.String("dead_letter_exchange", DeadLetterExchange),
	)

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming consumes until ctx is cancelled or the channel closes
func (c *Consumer) StartConsuming(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(c.queue.Name, "crm-worker", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.process(ctx, msg)
		}
	}
}

// process runs the handler on one delivery. Success acks; an error or panic
// requeues a first delivery and dead-letters a redelivered one.
func (c *Consumer) process(ctx context.Context, msg amqp091.Delivery) {
	log := c.logger.With(
		zap.String("queue", c.queue.Name),
		zap.String("message_id", msg.MessageId),
		zap.Bool("redelivered", msg.Redelivered),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Handler panic recovered", zap.Any("panic", r))
			c.reject(log, msg)
		}
	}()

	if err := c.handler(logger.WithLogger(ctx, log), msg.Body); err != nil {
		log.Error("Handler error", zap.String("routing_key", c.routingKey), zap.Error(err))
		c.reject(log, msg)
		return
	}

	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack message", zap.Error(err))
	}
}

func (c *Consumer) reject(log *zap.Logger, msg amqp091.Delivery) {
	requeue := !msg.Redelivered
	if !requeue {
		log.Warn("Dead-lettering message after retry")
	}
	if err := msg.Nack(false, requeue); err != nil {
		log.Error("Failed to nack message", zap.Error(err))
	}
}
