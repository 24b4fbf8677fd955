package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/goliatone/go-channels/core"
)

type recordedPublish struct {
	Exchange   string
	RoutingKey string
	Publishing amqp091.Publishing
}

type stubConfirmation struct {
	acked bool
	err   error
}

func (c stubConfirmation) WaitContext(_ context.Context) (bool, error) {
	return c.acked, c.err
}

type stubChannel struct {
	declared   []string
	confirmed  bool
	publishes  []recordedPublish
	publishErr error
	nack       bool
	confirmErr error
	closed     bool
}

func (c *stubChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error {
	if kind != "topic" || !durable {
		return fmt.Errorf("unexpected exchange declaration: kind=%s durable=%v", kind, durable)
	}
	c.declared = append(c.declared, name)
	return nil
}

func (c *stubChannel) Confirm(noWait bool) error {
	c.confirmed = true
	return nil
}

func (c *stubChannel) PublishWithConfirm(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) (confirmation, error) {
	if c.publishErr != nil {
		return nil, c.publishErr
	}
	c.publishes = append(c.publishes, recordedPublish{Exchange: exchange, RoutingKey: key, Publishing: msg})
	return stubConfirmation{acked: !c.nack, err: c.confirmErr}, nil
}

func (c *stubChannel) Close() error {
	c.closed = true
	return nil
}

type stubConnection struct {
	mu       sync.Mutex
	channels []*stubChannel
	openErr  error
	next     *stubChannel
	closed   bool
}

func (c *stubConnection) openChannel() (wireChannel, error) {
	if c.openErr != nil {
		return nil, c.openErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	channel := c.next
	if channel == nil {
		channel = &stubChannel{}
	}
	c.next = nil
	c.channels = append(c.channels, channel)
	return channel, nil
}

func (c *stubConnection) close() error {
	c.closed = true
	return nil
}

func testEvent() core.OutboxEvent {
	return core.OutboxEvent{
		ID:            "evt-1",
		AggregateType: "chat_session",
		AggregateID:   "m-1:chat-42",
		EventType:     core.EventTypeChatIncoming,
		Payload:       map[string]any{"text": "hola"},
		RoutingKey:    "telegram",
		OccurredAt:    time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestPublisherDeliversPersistentJSONMessage(t *testing.T) {
	conn := &stubConnection{}
	publisher := newPublisher(conn, "chat", nil)

	if err := publisher.Publish(context.Background(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(conn.channels) != 1 {
		t.Fatalf("expected 1 channel, got %d", len(conn.channels))
	}
	channel := conn.channels[0]
	if !channel.confirmed {
		t.Fatalf("expected confirm mode enabled")
	}
	if !channel.closed {
		t.Fatalf("expected channel closed after publish")
	}
	if len(channel.publishes) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(channel.publishes))
	}

	published := channel.publishes[0]
	if published.Exchange != "chat" {
		t.Fatalf("expected chat exchange, got %q", published.Exchange)
	}
	if published.RoutingKey != "telegram" {
		t.Fatalf("expected telegram routing key, got %q", published.RoutingKey)
	}
	if published.Publishing.DeliveryMode != amqp091.Persistent {
		t.Fatalf("expected persistent delivery mode")
	}
	if published.Publishing.ContentType != "application/json" {
		t.Fatalf("expected json content type, got %q", published.Publishing.ContentType)
	}
	if published.Publishing.MessageId != "evt-1" {
		t.Fatalf("expected message id evt-1, got %q", published.Publishing.MessageId)
	}

	var envelope map[string]any
	if err := json.Unmarshal(published.Publishing.Body, &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope["event_type"] != core.EventTypeChatIncoming {
		t.Fatalf("expected chat.incoming event type, got %v", envelope["event_type"])
	}
	payload, ok := envelope["payload"].(map[string]any)
	if !ok || payload["text"] != "hola" {
		t.Fatalf("expected payload text hola, got %v", envelope["payload"])
	}
}

func TestPublisherPrefersEventExchangeAndDeclaresOnce(t *testing.T) {
	conn := &stubConnection{}
	publisher := newPublisher(conn, "chat", nil)

	event := testEvent()
	event.Exchange = "notifications"
	if err := publisher.Publish(context.Background(), event); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	event.ID = "evt-2"
	if err := publisher.Publish(context.Background(), event); err != nil {
		t.Fatalf("second publish: %v", err)
	}

	if conn.channels[0].publishes[0].Exchange != "notifications" {
		t.Fatalf("expected event exchange override, got %q", conn.channels[0].publishes[0].Exchange)
	}
	if len(conn.channels[0].declared) != 1 {
		t.Fatalf("expected first channel to declare exchange, got %v", conn.channels[0].declared)
	}
	if len(conn.channels[1].declared) != 0 {
		t.Fatalf("expected no re-declaration on second channel, got %v", conn.channels[1].declared)
	}
}

func TestPublisherFallsBackToEventTypeRoutingKey(t *testing.T) {
	conn := &stubConnection{}
	publisher := newPublisher(conn, "chat", nil)

	event := testEvent()
	event.RoutingKey = ""
	if err := publisher.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if conn.channels[0].publishes[0].RoutingKey != core.EventTypeChatIncoming {
		t.Fatalf("expected event type routing key, got %q", conn.channels[0].publishes[0].RoutingKey)
	}

	event.EventType = ""
	if err := publisher.Publish(context.Background(), event); err == nil {
		t.Fatalf("expected missing routing key rejection")
	}
}

func TestPublisherSurfacesBrokerFailure(t *testing.T) {
	conn := &stubConnection{next: &stubChannel{publishErr: fmt.Errorf("channel closed")}}
	publisher := newPublisher(conn, "chat", nil)

	err := publisher.Publish(context.Background(), testEvent())
	if err == nil {
		t.Fatalf("expected publish failure")
	}
}

func TestPublisherFailsWhenBrokerNacks(t *testing.T) {
	conn := &stubConnection{next: &stubChannel{nack: true}}
	publisher := newPublisher(conn, "chat", nil)

	err := publisher.Publish(context.Background(), testEvent())
	if err == nil || !strings.Contains(err.Error(), "nacked") {
		t.Fatalf("expected nack error, got %v", err)
	}
}

func TestPublisherFailsWhenConfirmWaitErrors(t *testing.T) {
	conn := &stubConnection{next: &stubChannel{confirmErr: fmt.Errorf("connection dropped")}}
	publisher := newPublisher(conn, "chat", nil)

	err := publisher.Publish(context.Background(), testEvent())
	if err == nil || !strings.Contains(err.Error(), "confirm event evt-1") {
		t.Fatalf("expected confirm error, got %v", err)
	}
}

type countingRelay struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *countingRelay) DispatchPending(_ context.Context, _ int) (core.DispatchStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return core.DispatchStats{}, r.err
}

func (r *countingRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestRunnerDrainsOnIntervalUntilContextEnds(t *testing.T) {
	relay := &countingRelay{}
	runner, err := NewRunner(relay, RunnerConfig{Interval: 5 * time.Millisecond, BatchSize: 10}, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	if err := runner.Run(ctx); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if relay.count() == 0 {
		t.Fatalf("expected at least one dispatch cycle")
	}
}

func TestRunnerKeepsTickingThroughDispatchErrors(t *testing.T) {
	relay := &countingRelay{err: fmt.Errorf("broker unavailable")}
	runner, err := NewRunner(relay, RunnerConfig{Interval: 5 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	_ = runner.Run(ctx)
	if relay.count() < 2 {
		t.Fatalf("expected loop to continue after errors, got %d cycles", relay.count())
	}
}
