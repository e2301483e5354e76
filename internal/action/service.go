package action

import (
	"context"
	"errors"
	"log/slog"

	"trustbridge/internal/compliance"
	"trustbridge/internal/ledger"
	id "trustbridge/pkg/domain"
	dErrors "trustbridge/pkg/domain-errors"
	"trustbridge/pkg/requestcontext"
)

// Stores are the stores bound to one transaction.
type Stores struct {
	Actions Store
	Ledger  ledger.Store
}

// TxRunner runs fn atomically. Postgres wraps a transaction; in memory a lock.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}

// Advisor produces a verdict for an action and never fails.
type Advisor interface {
	AdviseAction(ctx context.Context, req compliance.ActionRequest) compliance.Verdict
}

// Announcer records and publishes a stored ledger entry.
type Announcer interface {
	Announce(ctx context.Context, entry *ledger.Entry)
}

// CompanyNamer resolves a company ID to its display name.
type CompanyNamer interface {
	CompanyName(ctx context.Context, companyID id.CompanyID) (string, error)
}

type Service struct {
	tx        TxRunner
	advisor   Advisor
	announcer Announcer
	companies CompanyNamer
	reader    Store
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithCompanies enables company lookups. Without it any company ID is accepted
// and classified under an unspecified name.
func WithCompanies(c CompanyNamer) Option {
	return func(s *Service) { s.companies = c }
}

func NewService(tx TxRunner, reader Store, advisor Advisor, announcer Announcer, opts ...Option) *Service {
	s := &Service{
		tx:        tx,
		reader:    reader,
		advisor:   advisor,
		announcer: announcer,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordInput describes one action to record.
type RecordInput struct {
	ActorID   id.UserID
	ActorRole string
	Type      string
	Details   map[string]any
	CompanyID *id.CompanyID
	// Verdict skips the advisor when the caller already classified the action.
	Verdict *compliance.Verdict
	// Raw is stored on the ledger entry, merged with client metadata.
	Raw map[string]any
}

// Record classifies the action, then stores it and its ledger entry in one
// transaction. The verdict never fails the request.
func (s *Service) Record(ctx context.Context, in RecordInput) (*Recorded, error) {
	if in.ActorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "actor is required")
	}
	if in.Details == nil {
		in.Details = map[string]any{}
	}

	companyName := unspecifiedCompany
	if in.CompanyID != nil && s.companies != nil {
		name, err := s.companies.CompanyName(ctx, *in.CompanyID)
		if err != nil {
			return nil, err
		}
		companyName = name
	}

	verdict := in.Verdict
	if verdict == nil {
		actionType, err := compliance.ParseActionType(in.Type)
		if err != nil {
			return nil, err
		}
		in.Type = string(actionType)
		advised := s.advisor.AdviseAction(ctx, classificationRequest(in, actionType, companyName))
		verdict = &advised
	}

	now := requestcontext.Now(ctx).UTC()
	act := &Action{
		ID:        id.NewActionID(),
		ActorID:   in.ActorID,
		ActorRole: in.ActorRole,
		Type:      in.Type,
		Details:   in.Details,
		CompanyID: in.CompanyID,
		CreatedAt: now,
	}
	entry := &ledger.Entry{
		ActionRef:  &act.ID,
		Actor:      in.ActorID.String(),
		ActorRole:  in.ActorRole,
		ActionType: in.Type,
		CompanyID:  in.CompanyID,
		Timestamp:  now,
		AIReport:   verdict,
		Raw:        ledger.WithClientMetadata(ctx, in.Raw),
	}
	if err := ledger.Prepare(ctx, entry); err != nil {
		return nil, err
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context, stores Stores) error {
		if err := stores.Actions.Save(ctx, act); err != nil {
			return err
		}
		return stores.Ledger.Append(ctx, entry)
	})
	if err != nil {
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record action")
	}

	s.announcer.Announce(ctx, entry)
	s.logger.InfoContext(ctx, "action recorded",
		"action_id", act.ID.String(),
		"type", act.Type,
		"risk_level", string(verdict.RiskLevel),
		"source", string(verdict.Source),
		"request_id", requestcontext.RequestID(ctx),
	)
	return &Recorded{ActionID: act.ID, LedgerID: entry.ID, AIReport: verdict}, nil
}

// List returns the newest actions.
func (s *Service) List(ctx context.Context, limit int) ([]*Action, error) {
	actions, err := s.reader.List(ctx, ledger.ClampLimit(limit))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list actions")
	}
	return actions, nil
}

func classificationRequest(in RecordInput, actionType compliance.ActionType, companyName string) compliance.ActionRequest {
	dataTypes, reason := classificationInput(in.Details)
	companyID := unspecifiedCompany
	if in.CompanyID != nil {
		companyID = in.CompanyID.String()
	}
	return compliance.ActionRequest{
		ActionType:  actionType,
		CitizenID:   in.ActorID.String(),
		CompanyID:   companyID,
		CompanyName: companyName,
		DataTypes:   dataTypes,
		Reason:      reason,
	}
}
