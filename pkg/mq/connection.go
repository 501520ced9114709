package mq

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	// ExchangeName is the topic exchange carrying CRM events
	ExchangeName = "events"
	// DeadLetterExchange receives deliveries that failed twice
	DeadLetterExchange = "events.dlx"
)

// Routing keys published by the CRM
const (
	RoutingNotificationCreated = "notification.created"
)

const heartbeat = 10 * time.Second

// Dial connects to the broker under a connection name, opens a channel and
// declares the exchanges.
func Dial(url, name string) (*amqp091.Connection, *amqp091.Channel, error) {
	conn, err := amqp091.DialConfig(url, amqp091.Config{
		Heartbeat:  heartbeat,
		Locale:     "en_US",
		Properties: amqp091.Table{"connection_name": name},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareExchanges(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

func declareExchanges(ch *amqp091.Channel) error {
	for _, name := range []string{ExchangeName, DeadLetterExchange} {
		if err := ch.ExchangeDeclare(name, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare exchange %s: %w", name, err)
		}
	}
	return nil
}

// declareQueue declares a durable queue bound to routingKey whose rejected
// deliveries go to <name>.dlq through the dead-letter exchange.
func declareQueue(ch *amqp091.Channel, name, routingKey string) (amqp091.Queue, error) {
	dlq, err := ch.QueueDeclare(name+".dlq", true, false, false, false, nil)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare dead-letter queue: %w", err)
	}
	if err := ch.QueueBind(dlq.Name, routingKey, DeadLetterExchange, false, nil); err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to bind dead-letter queue: %w", err)
	}

	q, err := ch.QueueDeclare(name, true, false, false, false, amqp091.Table{
		"x-dead-letter-exchange": DeadLetterExchange,
	})
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, routingKey, ExchangeName, false, nil); err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to bind queue: %w", err)
	}
	return q, nil
}
