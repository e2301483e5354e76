package company

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"trustbridge/internal/action"
	"trustbridge/internal/advisor"
	"trustbridge/internal/auth/models"
	"trustbridge/internal/compliance"
	id "trustbridge/pkg/domain"
	dErrors "trustbridge/pkg/domain-errors"
	"trustbridge/pkg/platform/sentinel"
	"trustbridge/pkg/requestcontext"
)

// Recorder stores an action with its ledger entry.
type Recorder interface {
	Record(ctx context.Context, in action.RecordInput) (*action.Recorded, error)
}

// PolicyAdvisor classifies privacy policy text.
type PolicyAdvisor interface {
	AdvisePolicy(ctx context.Context, req advisor.PolicyRequest) (compliance.Verdict, error)
}

// Users loads the caller's account.
type Users interface {
	Me(ctx context.Context, userID id.UserID) (*models.User, error)
}

type Service struct {
	store    Store
	recorder Recorder
	policies PolicyAdvisor
	users    Users
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithRecorder enables consent changes and audits.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithAuditing enables policy audits for business users.
func WithAuditing(policies PolicyAdvisor, users Users) Option {
	return func(s *Service) {
		s.policies = policies
		s.users = users
	}
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

// Create registers a company. A taken name yields CodeConflict.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Company, error) {
	c, err := NewCompany(id.NewCompanyID(), req.Name, req.Industry, req.ContactEmail, requestcontext.Now(ctx).UTC())
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, translateStoreError(err, "failed to create company")
	}
	s.logger.InfoContext(ctx, "company created",
		"company_id", c.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return c, nil
}

func (s *Service) Get(ctx context.Context, companyID id.CompanyID) (*Company, error) {
	c, err := s.store.FindByID(ctx, companyID)
	if err != nil {
		return nil, translateStoreError(err, "failed to load company")
	}
	return c, nil
}

func (s *Service) List(ctx context.Context) ([]*Company, error) {
	companies, err := s.store.List(ctx)
	if err != nil {
		return nil, translateStoreError(err, "failed to list companies")
	}
	return companies, nil
}

// CompanyName resolves a company for action classification.
func (s *Service) CompanyName(ctx context.Context, companyID id.CompanyID) (string, error) {
	c, err := s.Get(ctx, companyID)
	if err != nil {
		return "", err
	}
	return c.Name, nil
}

// Consent records a citizen granting or revoking consent for a company.
func (s *Service) Consent(ctx context.Context, companyID id.CompanyID, req *ConsentRequest) (*action.Recorded, error) {
	if s.recorder == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "consent recording is not configured")
	}
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if _, err := s.Get(ctx, companyID); err != nil {
		return nil, err
	}

	actionType := compliance.ActionGrantConsent
	if ConsentAction(req.Action) == ConsentRevoke {
		actionType = compliance.ActionRevokeConsent
	}
	return s.recorder.Record(ctx, action.RecordInput{
		ActorID:   userID,
		ActorRole: requestcontext.Role(ctx),
		Type:      string(actionType),
		Details:   req.Details,
		CompanyID: &companyID,
		Raw: map[string]any{
			"source":  "consent_endpoint",
			"payload": map[string]any{"action": req.Action, "details": req.Details},
		},
	})
}

// Audit classifies the caller's company policy and records it as a
// company_audit ledger entry.
func (s *Service) Audit(ctx context.Context, req *AuditRequest) (*compliance.Verdict, error) {
	if s.recorder == nil || s.policies == nil || s.users == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "policy auditing is not configured")
	}
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	user, err := s.users.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	c, err := s.resolveCompany(ctx, user.Company)
	if err != nil {
		return nil, err
	}

	verdict, err := s.policies.AdvisePolicy(ctx, advisor.PolicyRequest{
		Text:        req.PolicyText,
		CompanyName: c.Name,
		Industry:    c.Industry,
	})
	if err != nil {
		return nil, err
	}

	recorded, err := s.recorder.Record(ctx, action.RecordInput{
		ActorID:   userID,
		ActorRole: requestcontext.Role(ctx),
		Type:      action.TypeCompanyAudit,
		Details:   map[string]any{"policyText": req.PolicyText},
		CompanyID: &c.ID,
		Verdict:   &verdict,
		Raw: map[string]any{
			"source":     action.TypeCompanyAudit,
			"policySize": len(req.PolicyText),
		},
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "company policy audited",
		"company_id", c.ID.String(),
		"ledger_id", recorded.LedgerID.String(),
		"risk_level", string(verdict.RiskLevel),
	)
	return recorded.AIReport, nil
}

// resolveCompany accepts either a company ID or a company name, since users
// register with a free-text company.
func (s *Service) resolveCompany(ctx context.Context, ref string) (*Company, error) {
	if ref == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user is not associated with a company")
	}
	if companyID, err := id.ParseCompanyID(ref); err == nil {
		return s.Get(ctx, companyID)
	}
	c, err := s.store.FindByName(ctx, ref)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("company %q is not registered", ref))
		}
		return nil, translateStoreError(err, "failed to load company")
	}
	return c, nil
}

func translateStoreError(err error, internalMsg string) error {
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "company name already registered")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "company not found")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
	}
}
