package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-channels/core"
)

// ClaimStore backs inbound dedupe with a webhook_claims table. The primary
// key makes Claim an insert race that exactly one delivery wins; expired
// rows are removed first so a lapsed key can be claimed again.
type ClaimStore struct {
	db  *bun.DB
	now func() time.Time
}

func NewClaimStore(db *bun.DB) (*ClaimStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &ClaimStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *ClaimStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: claim store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return false, fmt.Errorf("sqlstore: claim key is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := s.now()

	if _, err := s.db.NewDelete().
		Model((*webhookClaimRecord)(nil)).
		Where("key = ?", key).
		Where("expires_at <= ?", now).
		Exec(ctx); err != nil {
		return false, err
	}

	record := &webhookClaimRecord{
		Key:       key,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	result, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (key) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// Purge removes every expired claim row. Intended for a periodic sweep so
// the table does not grow without bound.
func (s *ClaimStore) Purge(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: claim store is not configured")
	}
	result, err := s.db.NewDelete().
		Model((*webhookClaimRecord)(nil)).
		Where("expires_at <= ?", s.now()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

var _ core.ReplayLedger = (*ClaimStore)(nil)
