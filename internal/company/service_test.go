package company

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"trustbridge/internal/action"
	"trustbridge/internal/advisor"
	"trustbridge/internal/auth/models"
	"trustbridge/internal/compliance"
	"trustbridge/internal/ledger"
	id "trustbridge/pkg/domain"
	dErrors "trustbridge/pkg/domain-errors"
	"trustbridge/pkg/requestcontext"
)

type stubUsers map[id.UserID]*models.User

func (u stubUsers) Me(_ context.Context, userID id.UserID) (*models.User, error) {
	if user, ok := u[userID]; ok {
		return user, nil
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
}

type ServiceSuite struct {
	suite.Suite
	store   *InMemoryStore
	actions *action.InMemoryStore
	entries *ledger.InMemoryStore
	users   stubUsers
	service *Service
	acme    *Company
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	classifier, err := compliance.NewDefault()
	s.Require().NoError(err)

	s.store = NewInMemoryStore()
	s.actions = action.NewInMemoryStore()
	s.entries = ledger.NewInMemoryStore()
	s.users = stubUsers{}

	adv := advisor.New("", "", classifier, advisor.WithLogger(logger))
	s.service = NewService(s.store, WithLogger(logger))
	recorder := action.NewService(
		action.NewInMemoryTx(s.actions, s.entries), s.actions, adv,
		ledger.NewService(s.entries, ledger.WithLogger(logger)),
		action.WithCompanies(s.service),
		action.WithLogger(logger),
	)
	WithRecorder(recorder)(s.service)
	WithAuditing(adv, s.users)(s.service)

	s.acme, err = s.service.Create(context.Background(), &CreateRequest{Name: "Acme Bank", Industry: "fintech"})
	s.Require().NoError(err)
}

func (s *ServiceSuite) citizenCtx() (context.Context, id.UserID) {
	userID := id.NewUserID()
	ctx := requestcontext.WithUserID(context.Background(), userID)
	return requestcontext.WithRole(ctx, "citizen"), userID
}

func (s *ServiceSuite) businessCtx(company string) context.Context {
	userID := id.NewUserID()
	s.users[userID] = &models.User{ID: userID, Role: models.RoleBusiness, Company: company}
	ctx := requestcontext.WithUserID(context.Background(), userID)
	return requestcontext.WithRole(ctx, "business")
}

func (s *ServiceSuite) TestCreate() {
	s.Run("duplicate name ignoring case", func() {
		_, err := s.service.Create(context.Background(), &CreateRequest{Name: "ACME BANK"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("empty name", func() {
		_, err := s.service.Create(context.Background(), &CreateRequest{Name: "  "})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestGet() {
	got, err := s.service.Get(context.Background(), s.acme.ID)
	s.Require().NoError(err)
	s.Equal("Acme Bank", got.Name)

	_, err = s.service.Get(context.Background(), id.NewCompanyID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestConsent() {
	s.Run("revoke is recorded as REVOKE_CONSENT", func() {
		ctx, userID := s.citizenCtx()
		res, err := s.service.Consent(ctx, s.acme.ID, &ConsentRequest{
			Action:  "revoke",
			Details: map[string]any{"data_types": []any{"bvn"}, "reason": "closing account"},
		})
		s.Require().NoError(err)
		s.Equal(compliance.SourceRules, res.AIReport.Source)

		entries, err := s.entries.ListByActor(ctx, userID.String(), 10)
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal("REVOKE_CONSENT", entries[0].ActionType)
		s.Equal(s.acme.ID, *entries[0].CompanyID)
		s.Equal("consent_endpoint", entries[0].Raw["source"])
	})

	s.Run("grant is recorded as GRANT_CONSENT", func() {
		ctx, userID := s.citizenCtx()
		_, err := s.service.Consent(ctx, s.acme.ID, &ConsentRequest{Action: "grant"})
		s.Require().NoError(err)

		entries, err := s.entries.ListByActor(ctx, userID.String(), 10)
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal("GRANT_CONSENT", entries[0].ActionType)
	})

	s.Run("unknown company", func() {
		ctx, _ := s.citizenCtx()
		_, err := s.service.Consent(ctx, id.NewCompanyID(), &ConsentRequest{Action: "grant"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestAudit() {
	policy := strings.Repeat("We collect your email address and share it with partners. ", 5)

	s.Run("company by name", func() {
		ctx := s.businessCtx("acme bank")
		verdict, err := s.service.Audit(ctx, &AuditRequest{PolicyText: policy})
		s.Require().NoError(err)
		s.Equal(compliance.SourceRules, verdict.Source)

		entries, err := s.entries.List(ctx, 1)
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(action.TypeCompanyAudit, entries[0].ActionType)
		s.Equal(verdict, entries[0].AIReport)
	})

	s.Run("company by id", func() {
		ctx := s.businessCtx(s.acme.ID.String())
		_, err := s.service.Audit(ctx, &AuditRequest{PolicyText: policy})
		s.NoError(err)
	})

	s.Run("user without company", func() {
		ctx := s.businessCtx("")
		_, err := s.service.Audit(ctx, &AuditRequest{PolicyText: policy})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("unregistered company", func() {
		ctx := s.businessCtx("Globex")
		_, err := s.service.Audit(ctx, &AuditRequest{PolicyText: policy})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("oversized policy", func() {
		ctx := s.businessCtx("Acme Bank")
		huge := strings.Repeat("a", 100_001)
		_, err := s.service.Audit(ctx, &AuditRequest{PolicyText: huge})
		s.True(dErrors.HasCode(err, dErrors.CodePayloadTooLarge))
	})
}
