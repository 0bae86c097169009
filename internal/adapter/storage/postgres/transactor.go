package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Transactor implements ports.DBTransactor using pgxpool.Pool.
type Transactor struct {
	pool        Pool
	lockTimeout time.Duration
}

// NewTransactor creates a new Transactor wrapping the connection pool.
// A positive lockTimeout bounds every row-lock wait inside the transaction.
func NewTransactor(pool Pool, lockTimeout time.Duration) *Transactor {
	return &Transactor{pool: pool, lockTimeout: lockTimeout}
}

// Begin starts a new database transaction.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if t.lockTimeout <= 0 {
		return ledgerTx{tx}, nil
	}

	// is_local=true scopes the setting to this transaction.
	timeout := fmt.Sprintf("%dms", t.lockTimeout.Milliseconds())
	if _, err := tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", timeout); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("set lock timeout: %w", err)
	}
	return ledgerTx{tx}, nil
}

// ledgerTx classifies commit failures; PostgreSQL may report a
// serialization failure only at commit time.
type ledgerTx struct {
	pgx.Tx
}

func (t ledgerTx) Commit(ctx context.Context) error {
	if err := t.Tx.Commit(ctx); err != nil {
		return classify(err)
	}
	return nil
}
