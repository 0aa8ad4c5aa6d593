package events

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dpup/trailguide/server/internal/lib/geo"
	"github.com/dpup/trailguide/server/internal/lib/navigation"
)

var _ Publisher = (*RabbitMQPublisher)(nil)

// Channel is the subset of *amqp.Channel used by the publisher
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher fans navigation events out on a durable exchange, routing
// key = event type
type RabbitMQPublisher struct {
	ch       Channel
	conn     *amqp.Connection
	exchange string
	now      func() time.Time
}

// DialRabbitMQ connects to url and declares the fanout exchange
func DialRabbitMQ(url, exchange string) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq connect: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	p, err := NewRabbitMQPublisher(ch, exchange)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewRabbitMQPublisher declares the exchange on an open channel
func NewRabbitMQPublisher(ch Channel, exchange string) (*RabbitMQPublisher, error) {
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &RabbitMQPublisher{ch: ch, exchange: exchange, now: time.Now}, nil
}

// Publish sends one message per event, stopping at the first failure
func (p *RabbitMQPublisher) Publish(ctx context.Context, sessionID string, location geo.Point, events []navigation.Event) error {
	if len(events) == 0 {
		return nil
	}

	at := p.now()
	bodies, err := Encode(sessionID, location, events, at)
	if err != nil {
		return err
	}

	for i, body := range bodies {
		err := p.ch.PublishWithContext(ctx, p.exchange, string(events[i].Type()), false, false, amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   at,
			Body:        body,
		})
		if err != nil {
			return fmt.Errorf("publish %s: %w", events[i].Type(), err)
		}
	}
	return nil
}

// Close closes the channel and, when DialRabbitMQ opened it, the connection
func (p *RabbitMQPublisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
