package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-channels/core"
)

type SessionStore struct {
	db   *bun.DB
	repo repository.Repository[*chatSessionRecord]
	now  func() time.Time
}

func NewSessionStore(db *bun.DB) (*SessionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*chatSessionRecord](db, sessionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid session repository wiring: %w", err)
		}
	}
	return &SessionStore{db: db, repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *SessionStore) AppendMessage(ctx context.Context, in core.AppendMessageInput) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: session store is not configured")
	}
	return appendSessionMessage(ctx, s.db, s.now(), in)
}

func (s *SessionStore) GetBySession(ctx context.Context, merchantID, sessionID, channel string) (core.ChatSession, error) {
	if s == nil || s.db == nil {
		return core.ChatSession{}, fmt.Errorf("sqlstore: session store is not configured")
	}
	record, err := findSessionRecord(ctx, s.db, merchantID, sessionID, channel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isNoRowsError(err) {
			return core.ChatSession{}, fmt.Errorf("%w: %s/%s", core.ErrSessionNotFound, strings.TrimSpace(merchantID), strings.TrimSpace(sessionID))
		}
		return core.ChatSession{}, err
	}
	return record.toDomain(), nil
}

func (s *SessionStore) ListByMerchant(ctx context.Context, merchantID string) ([]core.ChatSession, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: session store is not configured")
	}
	merchantID = strings.TrimSpace(merchantID)
	if merchantID == "" {
		return nil, fmt.Errorf("sqlstore: merchant id is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("merchant_id", "=", merchantID),
		repository.OrderBy("updated_at DESC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.ChatSession, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *SessionStore) RateMessage(ctx context.Context, merchantID, sessionID, channel, messageID string, rating int) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: session store is not configured")
	}
	if rating < -1 || rating > 1 {
		return fmt.Errorf("sqlstore: rating must be -1, 0, or 1")
	}
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return fmt.Errorf("sqlstore: message id is required")
	}

	record, err := findSessionRecord(ctx, s.db, merchantID, sessionID, channel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isNoRowsError(err) {
			return fmt.Errorf("%w: %s/%s", core.ErrSessionNotFound, strings.TrimSpace(merchantID), strings.TrimSpace(sessionID))
		}
		return err
	}

	found := false
	for i := range record.Messages {
		if record.Messages[i].ID == messageID {
			record.Messages[i].Rating = rating
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("sqlstore: message not found: %s", messageID)
	}

	record.UpdatedAt = s.now()
	_, err = s.db.NewUpdate().
		Model(record).
		Where("id = ?", record.ID).
		Exec(ctx)
	return err
}

func findSessionRecord(ctx context.Context, idb bun.IDB, merchantID, sessionID, channel string) (*chatSessionRecord, error) {
	record := &chatSessionRecord{}
	err := idb.NewSelect().
		Model(record).
		Where("merchant_id = ?", strings.TrimSpace(merchantID)).
		Where("session_id = ?", strings.TrimSpace(sessionID)).
		Where("channel = ?", strings.TrimSpace(channel)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// appendSessionMessage upserts the (merchant, session, channel) row and
// appends one message to its transcript. It runs against either the base
// connection or an open transaction.
func appendSessionMessage(ctx context.Context, idb bun.IDB, now time.Time, in core.AppendMessageInput) error {
	if strings.TrimSpace(in.MerchantID) == "" || strings.TrimSpace(in.SessionID) == "" {
		return fmt.Errorf("sqlstore: merchant id and session id are required")
	}

	message := in.Message
	if strings.TrimSpace(message.ID) == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = now
	}

	record, err := findSessionRecord(ctx, idb, in.MerchantID, in.SessionID, in.Channel)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) && !isNoRowsError(err) {
			return err
		}
		fresh := &chatSessionRecord{
			ID:         uuid.NewString(),
			MerchantID: strings.TrimSpace(in.MerchantID),
			SessionID:  strings.TrimSpace(in.SessionID),
			Channel:    strings.TrimSpace(in.Channel),
			Messages:   []chatMessageRecord{messageRecordFromDomain(message)},
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		_, err := idb.NewInsert().Model(fresh).Exec(ctx)
		return err
	}

	record.Messages = append(record.Messages, messageRecordFromDomain(message))
	record.UpdatedAt = now
	_, err = idb.NewUpdate().
		Model(record).
		Where("id = ?", record.ID).
		Exec(ctx)
	return err
}

var _ core.SessionStore = (*SessionStore)(nil)
