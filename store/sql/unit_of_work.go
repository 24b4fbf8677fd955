package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-channels/core"
)

// UnitOfWork pairs the transcript append and outbox insert inside one
// database transaction. Engines that report transactions as unsupported get
// the same writes against the base connection instead.
type UnitOfWork struct {
	db  *bun.DB
	now func() time.Time
}

func NewUnitOfWork(db *bun.DB) (*UnitOfWork, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &UnitOfWork{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, tx core.TxWriter) error) error {
	if u == nil || u.db == nil {
		return fmt.Errorf("sqlstore: unit of work is not configured")
	}
	if fn == nil {
		return fmt.Errorf("sqlstore: transaction function is required")
	}

	err := u.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, sqlTxWriter{idb: tx, now: u.now})
	})
	if err != nil && transactionsUnsupported(err) {
		return fn(ctx, sqlTxWriter{idb: u.db, now: u.now})
	}
	return err
}

type sqlTxWriter struct {
	idb bun.IDB
	now func() time.Time
}

func (w sqlTxWriter) AppendMessage(ctx context.Context, in core.AppendMessageInput) error {
	return appendSessionMessage(ctx, w.idb, w.now(), in)
}

func (w sqlTxWriter) EnqueueOutbox(ctx context.Context, event core.OutboxEvent) error {
	return enqueueOutboxEvent(ctx, w.idb, w.now(), event)
}

func transactionsUnsupported(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "transaction") {
		return false
	}
	return strings.Contains(msg, "not supported") || strings.Contains(msg, "unsupported")
}

var _ core.UnitOfWork = (*UnitOfWork)(nil)
var _ core.TxWriter = (sqlTxWriter{})
