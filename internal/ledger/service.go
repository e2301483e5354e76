package ledger

import (
	"context"
	"log/slog"
	"strings"

	"trustbridge/internal/platform/metrics"
	id "trustbridge/pkg/domain"
	dErrors "trustbridge/pkg/domain-errors"
	"trustbridge/pkg/requestcontext"
)

// Emitter announces entries after they are stored.
type Emitter interface {
	Emit(ctx context.Context, entry *Entry) error
}

type Service struct {
	store   Store
	emitter Emitter
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithEmitter enables event publication. Without it entries are only stored.
func WithEmitter(e Emitter) Option {
	return func(s *Service) { s.emitter = e }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prepare assigns the entry ID and timestamp when missing and checks the
// required fields. Callers appending inside their own transaction use it
// before Store.Append.
func Prepare(ctx context.Context, entry *Entry) error {
	entry.ActionType = strings.TrimSpace(entry.ActionType)
	if entry.ActionType == "" {
		return dErrors.New(dErrors.CodeValidation, "actionType is required")
	}
	if entry.Actor == "" {
		return dErrors.New(dErrors.CodeValidation, "actor is required")
	}
	if entry.ID.IsNil() {
		entry.ID = id.NewLedgerEntryID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx).UTC()
	}
	if entry.Raw == nil {
		entry.Raw = map[string]any{}
	}
	return nil
}

// Append stores entry and announces it.
func (s *Service) Append(ctx context.Context, entry *Entry) (*Entry, error) {
	if err := Prepare(ctx, entry); err != nil {
		return nil, err
	}
	if err := s.store.Append(ctx, entry); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append ledger entry")
	}
	s.Announce(ctx, entry)
	return entry, nil
}

// Announce records and publishes an entry that is already stored. It never fails.
func (s *Service) Announce(ctx context.Context, entry *Entry) {
	s.metrics.IncrementLedgerAppends(entry.ActionType)
	s.logger.InfoContext(ctx, "ledger entry appended",
		"ledger_id", entry.ID.String(),
		"action_type", entry.ActionType,
		"actor_role", entry.ActorRole,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.emitter == nil {
		return
	}
	if err := s.emitter.Emit(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "ledger event not published",
			"ledger_id", entry.ID.String(),
			"error", err,
		)
	}
}

// List returns the newest entries across all actors.
func (s *Service) List(ctx context.Context, limit int) ([]*Entry, error) {
	entries, err := s.store.List(ctx, ClampLimit(limit))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list ledger")
	}
	return entries, nil
}

// ListByActor returns the newest entries appended by actor.
func (s *Service) ListByActor(ctx context.Context, actor string, limit int) ([]*Entry, error) {
	entries, err := s.store.ListByActor(ctx, actor, ClampLimit(limit))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list ledger")
	}
	return entries, nil
}
