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

type ChannelStore struct {
	db   *bun.DB
	repo repository.Repository[*channelRecord]
	now  func() time.Time
}

func NewChannelStore(db *bun.DB) (*ChannelStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*channelRecord](db, channelHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid channel repository wiring: %w", err)
		}
	}
	return &ChannelStore{db: db, repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *ChannelStore) Create(ctx context.Context, in core.CreateChannelInput) (core.Channel, error) {
	if s == nil || s.repo == nil || s.db == nil {
		return core.Channel{}, fmt.Errorf("sqlstore: channel store is not configured")
	}
	merchantID := strings.TrimSpace(in.MerchantID)
	if merchantID == "" {
		return core.Channel{}, fmt.Errorf("sqlstore: merchant id is required")
	}
	if !in.Provider.Valid() {
		return core.Channel{}, fmt.Errorf("%w: %q", core.ErrInvalidProvider, in.Provider)
	}

	now := s.now()
	record := &channelRecord{
		ID:           uuid.NewString(),
		MerchantID:   merchantID,
		Provider:     string(in.Provider),
		Enabled:      in.Enabled,
		Status:       string(core.ChannelStatusDisconnected),
		AccountLabel: strings.TrimSpace(in.AccountLabel),
		IsDefault:    in.IsDefault,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if in.IsDefault {
			if _, err := tx.NewUpdate().
				Model((*channelRecord)(nil)).
				Set("is_default = ?", false).
				Set("updated_at = ?", now).
				Where("merchant_id = ?", merchantID).
				Where("provider = ?", string(in.Provider)).
				Where("is_default = ?", true).
				Where("deleted_at IS NULL").
				Exec(ctx); err != nil {
				return err
			}
		}
		_, err := tx.NewInsert().Model(record).Exec(ctx)
		return err
	})
	if err != nil {
		return core.Channel{}, err
	}
	return record.toDomain(), nil
}

func (s *ChannelStore) Get(ctx context.Context, id string) (core.Channel, error) {
	channel, err := s.GetWithSecrets(ctx, id)
	if err != nil {
		return core.Channel{}, err
	}
	return stripSecrets(channel), nil
}

func (s *ChannelStore) GetWithSecrets(ctx context.Context, id string) (core.Channel, error) {
	if s == nil || s.repo == nil {
		return core.Channel{}, fmt.Errorf("sqlstore: channel store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return core.Channel{}, fmt.Errorf("sqlstore: channel id is required")
	}
	record, err := s.repo.GetByID(ctx, trimmedID)
	if err != nil {
		return core.Channel{}, channelNotFoundOr(err, trimmedID)
	}
	return record.toDomain(), nil
}

func (s *ChannelStore) FindDefault(ctx context.Context, merchantID string, provider core.ChannelProvider) (core.Channel, error) {
	if s == nil || s.repo == nil {
		return core.Channel{}, fmt.Errorf("sqlstore: channel store is not configured")
	}
	merchantID = strings.TrimSpace(merchantID)
	if merchantID == "" {
		return core.Channel{}, fmt.Errorf("sqlstore: merchant id is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("merchant_id", "=", merchantID),
		repository.SelectBy("provider", "=", string(provider)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.is_default = ?", true)
		}),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.deleted_at IS NULL")
		}),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return core.Channel{}, err
	}
	if len(records) == 0 {
		return core.Channel{}, fmt.Errorf("%w: no default %s channel for merchant %s", core.ErrChannelNotFound, provider, merchantID)
	}
	return records[0].toDomain(), nil
}

func (s *ChannelStore) ListByMerchant(ctx context.Context, merchantID string) ([]core.Channel, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: channel store is not configured")
	}
	merchantID = strings.TrimSpace(merchantID)
	if merchantID == "" {
		return nil, fmt.Errorf("sqlstore: merchant id is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("merchant_id", "=", merchantID),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.deleted_at IS NULL")
		}),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Channel, 0, len(records))
	for _, record := range records {
		out = append(out, stripSecrets(record.toDomain()))
	}
	return out, nil
}

func (s *ChannelStore) Update(ctx context.Context, channel core.Channel) (core.Channel, error) {
	if s == nil || s.repo == nil {
		return core.Channel{}, fmt.Errorf("sqlstore: channel store is not configured")
	}
	trimmedID := strings.TrimSpace(channel.ID)
	if trimmedID == "" {
		return core.Channel{}, fmt.Errorf("sqlstore: channel id is required")
	}
	record := channelRecordFromDomain(channel)
	record.UpdatedAt = s.now()

	updated, err := s.repo.Update(ctx, record, repository.UpdateByID(trimmedID))
	if err != nil {
		return core.Channel{}, channelNotFoundOr(err, trimmedID)
	}
	return updated.toDomain(), nil
}

func (s *ChannelStore) SetDefault(ctx context.Context, merchantID string, provider core.ChannelProvider, channelID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: channel store is not configured")
	}
	merchantID = strings.TrimSpace(merchantID)
	channelID = strings.TrimSpace(channelID)
	if merchantID == "" || channelID == "" {
		return fmt.Errorf("sqlstore: merchant id and channel id are required")
	}

	now := s.now()
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*channelRecord)(nil)).
			Set("is_default = ?", false).
			Set("updated_at = ?", now).
			Where("merchant_id = ?", merchantID).
			Where("provider = ?", string(provider)).
			Where("is_default = ?", true).
			Where("deleted_at IS NULL").
			Exec(ctx); err != nil {
			return err
		}
		result, err := tx.NewUpdate().
			Model((*channelRecord)(nil)).
			Set("is_default = ?", true).
			Set("updated_at = ?", now).
			Where("id = ?", channelID).
			Where("merchant_id = ?", merchantID).
			Where("provider = ?", string(provider)).
			Where("deleted_at IS NULL").
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s", core.ErrChannelNotFound, channelID)
		}
		return nil
	})
}

func (s *ChannelStore) UpdateStatus(ctx context.Context, id string, status core.ChannelStatus, reason string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: channel store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: channel id is required")
	}
	record, err := s.repo.GetByID(ctx, trimmedID)
	if err != nil {
		return channelNotFoundOr(err, trimmedID)
	}

	channel := record.toDomain()
	if err := channel.TransitionTo(status, reason, s.now()); err != nil {
		return err
	}

	next := channelRecordFromDomain(channel)
	_, err = s.repo.Update(ctx, next, repository.UpdateByID(trimmedID))
	return err
}

func (s *ChannelStore) SoftDelete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: channel store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: channel id is required")
	}
	now := s.now()
	result, err := s.db.NewUpdate().
		Model((*channelRecord)(nil)).
		Set("deleted_at = ?", now).
		Set("enabled = ?", false).
		Set("is_default = ?", false).
		Set("updated_at = ?", now).
		Where("id = ?", trimmedID).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", core.ErrChannelNotFound, trimmedID)
	}
	return nil
}

func (s *ChannelStore) Wipe(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: channel store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: channel id is required")
	}
	result, err := s.db.NewUpdate().
		Model((*channelRecord)(nil)).
		Set("bot_token_enc = ?", "").
		Set("access_token_enc = ?", "").
		Set("app_secret_enc = ?", "").
		Set("verify_token_hash = ?", "").
		Set("qr = ?", "").
		Set("updated_at = ?", s.now()).
		Where("id = ?", trimmedID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", core.ErrChannelNotFound, trimmedID)
	}
	return nil
}

func stripSecrets(channel core.Channel) core.Channel {
	channel.BotTokenEnc = ""
	channel.AccessTokenEnc = ""
	channel.AppSecretEnc = ""
	channel.VerifyTokenHash = ""
	return channel
}

func channelNotFoundOr(err error, id string) error {
	if err == nil {
		return nil
	}
	if isNoRowsError(err) {
		return fmt.Errorf("%w: %s", core.ErrChannelNotFound, id)
	}
	return err
}

func isNoRowsError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "no rows")
}

var _ core.ChannelStore = (*ChannelStore)(nil)
