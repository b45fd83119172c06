package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/goliatone/go-dispatcher/core"
	"github.com/uptrace/bun"
)

// Persistence is the bun-backed dispatcher persistence provider. It also
// serves the entity-auto engine through its embedded EntityStore.
type Persistence struct {
	*EntityStore
	db *bun.DB
}

func NewPersistence(db *bun.DB) (*Persistence, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	entities, err := NewEntityStore(db)
	if err != nil {
		return nil, err
	}
	return &Persistence{EntityStore: entities, db: db}, nil
}

func (p *Persistence) BeginTransaction(ctx context.Context) (core.Transaction, error) {
	if p == nil || p.db == nil {
		return nil, fmt.Errorf("sqlstore: persistence is not configured")
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Transaction{tx: tx}, nil
}

// Transaction wraps a bun transaction. Resolution happens at most once; a
// second Commit or Rollback is a no-op returning the first outcome.
type Transaction struct {
	tx       bun.Tx
	once     sync.Once
	resolved error
}

func (t *Transaction) Commit(context.Context) error {
	return t.resolve(t.tx.Commit)
}

func (t *Transaction) Rollback(context.Context) error {
	return t.resolve(func() error {
		err := t.tx.Rollback()
		if errors.Is(err, sql.ErrTxDone) {
			return nil
		}
		return err
	})
}

func (t *Transaction) resolve(fn func() error) error {
	if t == nil {
		return fmt.Errorf("sqlstore: transaction is nil")
	}
	t.once.Do(func() {
		t.resolved = fn()
	})
	return t.resolved
}

// Tx exposes the underlying bun transaction to engines that issue their own
// queries.
func (t *Transaction) Tx() bun.Tx {
	return t.tx
}

// dbFromContext returns the call transaction when one is bound to ctx and
// belongs to this package, otherwise db.
func dbFromContext(ctx context.Context, db *bun.DB) (bun.IDB, bool) {
	if tx, ok := core.TransactionFromContext(ctx); ok {
		if typed, ok := tx.(*Transaction); ok {
			return typed.tx, true
		}
	}
	return db, false
}
