package action

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trustbridge/internal/compliance"
	"trustbridge/internal/ledger"
	id "trustbridge/pkg/domain"
	dErrors "trustbridge/pkg/domain-errors"
	"trustbridge/pkg/requestcontext"
)

type stubAdvisor struct {
	mu       sync.Mutex
	requests []compliance.ActionRequest
	verdict  compliance.Verdict
}

func (a *stubAdvisor) AdviseAction(_ context.Context, req compliance.ActionRequest) compliance.Verdict {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	return a.verdict
}

type stubCompanies map[id.CompanyID]string

func (c stubCompanies) CompanyName(_ context.Context, companyID id.CompanyID) (string, error) {
	name, ok := c[companyID]
	if !ok {
		return "", dErrors.New(dErrors.CodeNotFound, "company not found")
	}
	return name, nil
}

type failingTx struct{}

func (failingTx) RunInTx(context.Context, func(context.Context, Stores) error) error {
	return errors.New("connection reset")
}

type ServiceSuite struct {
	suite.Suite
	actions   *InMemoryStore
	entries   *ledger.InMemoryStore
	advisor   *stubAdvisor
	companyID id.CompanyID
	service   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.actions = NewInMemoryStore()
	s.entries = ledger.NewInMemoryStore()
	s.advisor = &stubAdvisor{verdict: compliance.Verdict{
		Valid: true, RiskLevel: compliance.RiskHigh, Source: compliance.SourceRules,
		Findings: []string{"revocation"}, Suggestions: []string{"confirm"},
	}}
	s.companyID = id.NewCompanyID()
	ledgerSvc := ledger.NewService(s.entries, ledger.WithLogger(logger))
	s.service = NewService(NewInMemoryTx(s.actions, s.entries), s.actions, s.advisor, ledgerSvc,
		WithLogger(logger),
		WithCompanies(stubCompanies{s.companyID: "Acme Bank"}),
	)
}

func (s *ServiceSuite) TestRecord() {
	fixed := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), fixed)
	actor := id.NewUserID()

	res, err := s.service.Record(ctx, RecordInput{
		ActorID:   actor,
		ActorRole: "citizen",
		Type:      "consent_revoked",
		Details:   map[string]any{"data_types": []any{"BVN", " bvn "}, "reason": "closing account"},
		CompanyID: &s.companyID,
		Raw:       map[string]any{"source": "record_action"},
	})
	s.Require().NoError(err)
	s.Equal(compliance.RiskHigh, res.AIReport.RiskLevel)

	s.Require().Len(s.advisor.requests, 1)
	req := s.advisor.requests[0]
	s.Equal(compliance.ActionRevokeConsent, req.ActionType)
	s.Equal("Acme Bank", req.CompanyName)
	s.Equal(s.companyID.String(), req.CompanyID)
	s.Equal(actor.String(), req.CitizenID)
	s.Equal([]string{"BVN", "bvn"}, req.DataTypes)
	s.Equal("closing account", req.Reason)

	actions, err := s.actions.List(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(actions, 1)
	s.Equal(res.ActionID, actions[0].ID)
	s.Equal("REVOKE_CONSENT", actions[0].Type)
	s.Equal(fixed, actions[0].CreatedAt)

	entries, err := s.entries.List(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	entry := entries[0]
	s.Equal(res.LedgerID, entry.ID)
	s.Equal(res.ActionID, *entry.ActionRef)
	s.Equal(actor.String(), entry.Actor)
	s.Equal("REVOKE_CONSENT", entry.ActionType)
	s.Equal(fixed, entry.Timestamp)
	s.Equal("record_action", entry.Raw["source"])
	s.Contains(entry.Raw, "client")
	s.Equal(compliance.RiskHigh, entry.AIReport.RiskLevel)
}

func (s *ServiceSuite) TestRecordWithoutCompanyUsesPlaceholders() {
	_, err := s.service.Record(context.Background(), RecordInput{
		ActorID: id.NewUserID(), ActorRole: "citizen", Type: "COMPLAIN",
	})
	s.Require().NoError(err)
	s.Require().Len(s.advisor.requests, 1)
	s.Equal(unspecifiedCompany, s.advisor.requests[0].CompanyName)
	s.Equal([]string{unspecifiedDataType}, s.advisor.requests[0].DataTypes)
}

func (s *ServiceSuite) TestRecordWithPrecomputedVerdict() {
	verdict := &compliance.Verdict{Valid: false, RiskLevel: compliance.RiskMedium, Source: compliance.SourceRules}
	res, err := s.service.Record(context.Background(), RecordInput{
		ActorID: id.NewUserID(), ActorRole: "business", Type: TypeCompanyAudit,
		CompanyID: &s.companyID, Verdict: verdict,
	})
	s.Require().NoError(err)
	s.Empty(s.advisor.requests)
	s.Equal(verdict, res.AIReport)

	entries, err := s.entries.List(context.Background(), 1)
	s.Require().NoError(err)
	s.Equal(TypeCompanyAudit, entries[0].ActionType)
}

func (s *ServiceSuite) TestRecordErrors() {
	s.Run("unknown type", func() {
		_, err := s.service.Record(context.Background(), RecordInput{ActorID: id.NewUserID(), Type: "teleport"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown company", func() {
		missing := id.NewCompanyID()
		_, err := s.service.Record(context.Background(), RecordInput{ActorID: id.NewUserID(), Type: "COMPLAIN", CompanyID: &missing})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("missing actor", func() {
		_, err := s.service.Record(context.Background(), RecordInput{Type: "COMPLAIN"})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("transaction failure is internal", func() {
		svc := NewService(failingTx{}, s.actions, s.advisor, ledger.NewService(s.entries))
		_, err := svc.Record(context.Background(), RecordInput{ActorID: id.NewUserID(), Type: "COMPLAIN"})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("cancelled context", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.service.Record(ctx, RecordInput{ActorID: id.NewUserID(), Type: "COMPLAIN"})
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})
}

func (s *ServiceSuite) TestList() {
	for range 3 {
		_, err := s.service.Record(context.Background(), RecordInput{ActorID: id.NewUserID(), ActorRole: "citizen", Type: "COMPLAIN"})
		s.Require().NoError(err)
	}
	actions, err := s.service.List(context.Background(), 2)
	s.Require().NoError(err)
	s.Len(actions, 2)
}
