package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// Publisher publishes JSON events to the events exchange. Safe for
// concurrent use.
type Publisher struct {
	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
	appID   string
}

// NewPublisher dials url; appID is stamped on every message
func NewPublisher(url, appID string) (*Publisher, error) {
	conn, ch, err := Dial(url, appID+"-publisher")
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, channel: ch, appID: appID}, nil
}

func (p *Publisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// Connected reports whether both the connection and the channel are open
func (p *Publisher) Connected() bool {
	if p == nil || p.conn == nil || p.channel == nil {
		return false
	}
	return !p.conn.IsClosed() && !p.channel.IsClosed()
}

// Publish sends payload as a persistent message under routingKey
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", routingKey, err)
	}

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         routingKey,
		AppId:        p.appID,
		Body:         body,
	}

	// channels do not support concurrent publishes
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.channel.PublishWithContext(ctx, ExchangeName, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("publishing %s: %w", routingKey, err)
	}
	return nil
}
