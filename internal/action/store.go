package action

import (
	"context"
)

// Store persists actions. List returns newest first.
type Store interface {
	Save(ctx context.Context, action *Action) error
	List(ctx context.Context, limit int) ([]*Action, error)
}
