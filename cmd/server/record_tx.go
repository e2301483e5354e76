package main

import (
	"context"
	"database/sql"
	"time"

	"trustbridge/internal/action"
	"trustbridge/internal/ledger"
	dErrors "trustbridge/pkg/domain-errors"
)

// recordPostgresTx writes an action and its ledger entry in one transaction.
type recordPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newRecordPostgresTx(db *sql.DB) *recordPostgresTx {
	return &recordPostgresTx{db: db, timeout: action.DefaultTxTimeout}
}

func (t *recordPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context, stores action.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	stores := action.Stores{
		Actions: action.NewPostgresTx(tx),
		Ledger:  ledger.NewPostgresTx(tx),
	}
	if err := fn(ctx, stores); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit transaction")
	}
	return nil
}
