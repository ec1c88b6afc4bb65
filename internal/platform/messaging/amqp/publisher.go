// Package amqp binds the messaging contract to RabbitMQ. Each channel is a
// durable topic exchange; the partition key is used as routing key and is
// also sent as a header.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"composite/internal/platform/messaging"
	"composite/pkg/platform/sentinel"
)

// Publisher serializes publishes on a single AMQP channel, which keeps
// submission order for every routing key.
type Publisher struct {
	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *slog.Logger
	closed bool
}

// Dial connects and declares one exchange per channel name.
func Dial(url string, exchanges []string, logger *slog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	for _, ex := range exchanges {
		if err := ch.ExchangeDeclare(ex, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}
	return &Publisher{conn: conn, ch: ch, logger: logger}, nil
}

func (p *Publisher) Publish(ctx context.Context, channel string, msg messaging.Message) error {
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return sentinel.ErrClosed
	}
	if !p.Healthy() {
		return fmt.Errorf("publish to %s: rabbitmq connection lost: %w", channel, sentinel.ErrUnavailable)
	}
	err := p.ch.PublishWithContext(ctx, channel, msg.Key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.Headers[messaging.HeaderEventID],
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         msg.Value,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// Healthy reports whether the connection is still open. The broker may drop
// it at any time; Publish checks it before every hand-off.
func (p *Publisher) Healthy() bool {
	return !p.conn.IsClosed() && !p.ch.IsClosed()
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.ch.Close(); err != nil && p.logger != nil {
		p.logger.Warn("close rabbitmq channel", "error", err)
	}
	return p.conn.Close()
}
