package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-channels/core"
)

type OutboxStore struct {
	db   *bun.DB
	repo repository.Repository[*chatOutboxRecord]
	now  func() time.Time
}

func NewOutboxStore(db *bun.DB) (*OutboxStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*chatOutboxRecord](db, outboxHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid outbox repository wiring: %w", err)
		}
	}
	return &OutboxStore{db: db, repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *OutboxStore) Enqueue(ctx context.Context, event core.OutboxEvent) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: outbox store is not configured")
	}
	return enqueueOutboxEvent(ctx, s.db, s.now(), event)
}

func (s *OutboxStore) ClaimBatch(ctx context.Context, limit int) ([]core.OutboxEvent, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: outbox store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	now := s.now()
	var records []chatOutboxRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := `
WITH claimed AS (
	SELECT id
	FROM chat_outbox
	WHERE status = ?
	  AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
	ORDER BY occurred_at ASC
	LIMIT ?
)
UPDATE chat_outbox
SET status = ?, updated_at = ?
WHERE id IN (SELECT id FROM claimed)
  AND status = ?
RETURNING
	id,
	aggregate_type,
	aggregate_id,
	event_type,
	payload,
	exchange,
	routing_key,
	status,
	attempts,
	last_error,
	occurred_at,
	next_attempt_at,
	created_at,
	updated_at
`
		return tx.NewRaw(
			query,
			core.OutboxStatusPending,
			now,
			limit,
			core.OutboxStatusClaimed,
			now,
			core.OutboxStatusPending,
		).Scan(ctx, &records)
	})
	if err != nil {
		return nil, err
	}

	events := make([]core.OutboxEvent, 0, len(records))
	for _, record := range records {
		events = append(events, record.toDomain())
	}
	return events, nil
}

func (s *OutboxStore) Ack(ctx context.Context, eventID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: outbox store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return fmt.Errorf("sqlstore: event id is required")
	}
	_, err := s.db.NewUpdate().
		Model((*chatOutboxRecord)(nil)).
		Set("status = ?", core.OutboxStatusDelivered).
		Set("last_error = ?", "").
		Set("next_attempt_at = NULL").
		Set("updated_at = ?", s.now()).
		Where("id = ?", eventID).
		Exec(ctx)
	return err
}

func (s *OutboxStore) Retry(ctx context.Context, eventID string, cause error, nextAttemptAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: outbox store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return fmt.Errorf("sqlstore: event id is required")
	}
	status := core.OutboxStatusPending
	var next *time.Time
	if !nextAttemptAt.IsZero() {
		nextValue := nextAttemptAt.UTC()
		next = &nextValue
	} else {
		status = core.OutboxStatusFailed
	}

	lastError := ""
	if cause != nil {
		lastError = strings.TrimSpace(cause.Error())
	}
	_, err := s.db.NewUpdate().
		Model((*chatOutboxRecord)(nil)).
		Set("status = ?", status).
		Set("attempts = attempts + 1").
		Set("next_attempt_at = ?", next).
		Set("last_error = ?", lastError).
		Set("updated_at = ?", s.now()).
		Where("id = ?", eventID).
		Exec(ctx)
	return err
}

func enqueueOutboxEvent(ctx context.Context, idb bun.IDB, now time.Time, event core.OutboxEvent) error {
	if strings.TrimSpace(event.EventType) == "" {
		return fmt.Errorf("sqlstore: outbox event type is required")
	}
	if strings.TrimSpace(event.AggregateID) == "" {
		return fmt.Errorf("sqlstore: outbox aggregate id is required")
	}

	id := strings.TrimSpace(event.ID)
	if id == "" {
		id = uuid.NewString()
	}
	occurredAt := event.OccurredAt.UTC()
	if occurredAt.IsZero() {
		occurredAt = now
	}
	record := &chatOutboxRecord{
		ID:            id,
		AggregateType: strings.TrimSpace(event.AggregateType),
		AggregateID:   strings.TrimSpace(event.AggregateID),
		EventType:     strings.TrimSpace(event.EventType),
		Payload:       copyAnyMap(event.Payload),
		Exchange:      strings.TrimSpace(event.Exchange),
		RoutingKey:    strings.TrimSpace(event.RoutingKey),
		Status:        core.OutboxStatusPending,
		Attempts:      0,
		LastError:     "",
		OccurredAt:    occurredAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if record.Payload == nil {
		record.Payload = map[string]any{}
	}

	_, err := idb.NewInsert().Model(record).Exec(ctx)
	return err
}

var _ core.OutboxStore = (*OutboxStore)(nil)
