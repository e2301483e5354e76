// Package ledger is the append-only record of citizen and company actions.
package ledger

import (
	"context"
	"time"

	"trustbridge/internal/compliance"
	id "trustbridge/pkg/domain"
	"trustbridge/pkg/platform/middleware/metadata"
	"trustbridge/pkg/requestcontext"
)

// Entry is one ledger row. Entries are never updated or deleted.
type Entry struct {
	ID         id.LedgerEntryID    `json:"id"`
	ActionRef  *id.ActionID        `json:"actionRef,omitempty"`
	Actor      string              `json:"actor"`
	ActorRole  string              `json:"actorRole"`
	ActionType string              `json:"actionType"`
	CompanyID  *id.CompanyID       `json:"company,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
	AIReport   *compliance.Verdict `json:"aiReport"`
	Raw        map[string]any      `json:"raw"`
}

// EventAppended is the event type published for every new entry.
const EventAppended = "ledger.appended"

// ActorInternal identifies entries appended with the internal token.
const ActorInternal = "internal"

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// ClampLimit maps a requested page size into [1, MaxListLimit].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

// WithClientMetadata adds the caller's browser and OS, derived from the
// User-Agent, under raw["client"]. The raw User-Agent string is not kept.
func WithClientMetadata(ctx context.Context, raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw)+1)
	for k, v := range raw {
		out[k] = v
	}
	out["client"] = metadata.Describe(requestcontext.UserAgent(ctx))
	return out
}
