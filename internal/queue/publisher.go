// Package queue publishes booking events to RabbitMQ.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const DefaultExchange = "propertybook.events"

var ErrClosed = errors.New("publisher closed")

// Publisher owns one connection and one channel to the broker. Events go to a
// durable topic exchange with the event type as routing key, so consumers
// bind queues to patterns such as "payment.*".
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	closed   bool
	log      *zap.Logger
	now      func() time.Time
}

func NewPublisher(url, exchange string, log *zap.Logger) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	p := &Publisher{conn: conn, exchange: exchange, log: log, now: time.Now}
	if err := p.openChannel(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return p, nil
}

func (p *Publisher) openChannel() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		p.exchange, // name
		"topic",    // kind
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	); err != nil {
		_ = ch.Close()
		return fmt.Errorf("rabbitmq exchange declare: %w", err)
	}
	p.ch = ch
	return nil
}

// Publish sends payload as a persistent JSON message. A channel closed by the
// broker is reopened once before giving up.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	msg, err := buildMessage(payload, p.now())
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.ch == nil || p.ch.IsClosed() {
		if p.conn.IsClosed() {
			return fmt.Errorf("rabbitmq: %w", amqp.ErrClosed)
		}
		if err := p.openChannel(); err != nil {
			return err
		}
		p.log.Info("rabbitmq channel reopened", zap.String("exchange", p.exchange))
	}

	if err := p.ch.PublishWithContext(ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		msg,
	); err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", routingKey, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.ch != nil {
		_ = p.ch.Close()
	}
	return p.conn.Close()
}

func buildMessage(payload any, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    now.UTC(),
		Body:         body,
	}, nil
}
