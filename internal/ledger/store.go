package ledger

import (
	"context"
)

// Store is append-only. List methods return newest first.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	List(ctx context.Context, limit int) ([]*Entry, error)
	ListByActor(ctx context.Context, actor string, limit int) ([]*Entry, error)
}
