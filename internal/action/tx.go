package action

import (
	"context"
	"sync"
	"time"

	"trustbridge/internal/ledger"
	dErrors "trustbridge/pkg/domain-errors"
)

// DefaultTxTimeout bounds a record transaction when ctx has no deadline.
const DefaultTxTimeout = 5 * time.Second

// InMemoryTx serializes record transactions over in-memory stores. The
// in-memory stores cannot fail an append, so no rollback is needed.
type InMemoryTx struct {
	mu      sync.Mutex
	stores  Stores
	timeout time.Duration
}

func NewInMemoryTx(actions Store, entries ledger.Store) *InMemoryTx {
	return &InMemoryTx{stores: Stores{Actions: actions, Ledger: entries}, timeout: DefaultTxTimeout}
}

func (t *InMemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx, t.stores)
}
