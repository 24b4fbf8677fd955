package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/rabbitmq/amqp091-go"

	"github.com/goliatone/go-channels/core"
)

// wireChannel is the slice of *amqp091.Channel the publisher uses. Kept as
// an interface so tests can run against a recorded broker.
type wireChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	Confirm(noWait bool) error
	PublishWithConfirm(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) (confirmation, error)
	Close() error
}

// confirmation resolves once the broker acks or nacks the delivery.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

type wireConnection interface {
	openChannel() (wireChannel, error)
	close() error
}

type amqpConnection struct {
	conn *amqp091.Connection
}

func (c amqpConnection) openChannel() (wireChannel, error) {
	channel, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	return amqpChannel{channel: channel}, nil
}

func (c amqpConnection) close() error {
	return c.conn.Close()
}

type amqpChannel struct {
	channel *amqp091.Channel
}

func (c amqpChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error {
	return c.channel.ExchangeDeclare(name, kind, durable, autoDelete, internal, noWait, args)
}

func (c amqpChannel) Confirm(noWait bool) error {
	return c.channel.Confirm(noWait)
}

func (c amqpChannel) PublishWithConfirm(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) (confirmation, error) {
	return c.channel.PublishWithDeferredConfirmWithContext(ctx, exchange, key, mandatory, immediate, msg)
}

func (c amqpChannel) Close() error {
	return c.channel.Close()
}

// AMQPPublisher delivers outbox events to a RabbitMQ topic exchange. Each
// publish runs on a fresh channel in confirm mode and returns only after
// the broker acks the delivery; exchanges are declared once per publisher
// lifetime.
type AMQPPublisher struct {
	conn     wireConnection
	exchange string
	logger   core.Logger
	now      func() time.Time

	mu       sync.Mutex
	declared map[string]struct{}
}

func NewAMQPPublisher(url string, cfg core.Config, logger core.Logger) (*AMQPPublisher, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("relay: broker url is required")
	}
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("relay: dial broker: %w", err)
	}
	return newPublisher(amqpConnection{conn: conn}, cfg.Outbox.Exchange, logger), nil
}

func newPublisher(conn wireConnection, exchange string, logger core.Logger) *AMQPPublisher {
	exchange = strings.TrimSpace(exchange)
	if exchange == "" {
		exchange = "chat"
	}
	return &AMQPPublisher{
		conn:     conn,
		exchange: exchange,
		logger:   glog.Ensure(logger),
		now:      func() time.Time { return time.Now().UTC() },
		declared: map[string]struct{}{},
	}
}

func (p *AMQPPublisher) Publish(ctx context.Context, event core.OutboxEvent) error {
	if p == nil || p.conn == nil {
		return fmt.Errorf("relay: publisher is not configured")
	}
	exchange := strings.TrimSpace(event.Exchange)
	if exchange == "" {
		exchange = p.exchange
	}
	routingKey := strings.TrimSpace(event.RoutingKey)
	if routingKey == "" {
		routingKey = strings.TrimSpace(event.EventType)
	}
	if routingKey == "" {
		return fmt.Errorf("relay: event %s has no routing key", event.ID)
	}

	body, err := json.Marshal(eventEnvelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       event.Payload,
		OccurredAt:    event.OccurredAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("relay: encode event %s: %w", event.ID, err)
	}

	channel, err := p.conn.openChannel()
	if err != nil {
		return fmt.Errorf("relay: open channel: %w", err)
	}
	defer func() { _ = channel.Close() }()

	if err := p.ensureExchange(channel, exchange); err != nil {
		return err
	}
	if err := channel.Confirm(false); err != nil {
		return fmt.Errorf("relay: enable confirms: %w", err)
	}

	confirm, err := channel.PublishWithConfirm(ctx, exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    event.ID,
		Type:         event.EventType,
		Timestamp:    p.now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("relay: publish event %s: %w", event.ID, err)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("relay: confirm event %s: %w", event.ID, err)
	}
	if !acked {
		return fmt.Errorf("relay: event %s nacked by broker", event.ID)
	}

	if fl, ok := p.logger.(core.FieldsLogger); ok {
		fl.WithFields(map[string]any{
			"event_id":    event.ID,
			"event_type":  event.EventType,
			"exchange":    exchange,
			"routing_key": routingKey,
		}).Debug("event published")
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	return p.conn.close()
}

func (p *AMQPPublisher) ensureExchange(channel wireChannel, exchange string) error {
	p.mu.Lock()
	_, done := p.declared[exchange]
	p.mu.Unlock()
	if done {
		return nil
	}
	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("relay: declare exchange %s: %w", exchange, err)
	}
	p.mu.Lock()
	p.declared[exchange] = struct{}{}
	p.mu.Unlock()
	return nil
}

type eventEnvelope struct {
	ID            string         `json:"id"`
	AggregateType string         `json:"aggregate_type,omitempty"`
	AggregateID   string         `json:"aggregate_id"`
	EventType     string         `json:"event_type"`
	Payload       map[string]any `json:"payload"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

var _ core.EventPublisher = (*AMQPPublisher)(nil)
