//go:build integration

package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trustbridge/internal/compliance"
	"trustbridge/internal/ledger"
	id "trustbridge/pkg/domain"
	"trustbridge/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *ledger.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = ledger.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *PostgresStoreSuite) newEntry(actor, actionType string) *ledger.Entry {
	return &ledger.Entry{
		ID:         id.NewLedgerEntryID(),
		Actor:      actor,
		ActorRole:  "citizen",
		ActionType: actionType,
		Timestamp:  time.Now().UTC().Truncate(time.Microsecond),
		Raw:        map[string]any{"reason": "moving banks"},
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	companyID := s.postgres.CreateTestCompany(ctx, s.T())
	actionRef := id.NewActionID()

	entry := s.newEntry("alice", "REVOKE_CONSENT")
	entry.CompanyID = &companyID
	entry.ActionRef = &actionRef
	entry.AIReport = &compliance.Verdict{
		Valid:       true,
		RiskLevel:   compliance.RiskHigh,
		Findings:    []string{"revocation of consent"},
		Suggestions: []string{"confirm within 30 days"},
		Source:      compliance.SourceRules,
		PrimaryRule: "consent_revocation",
	}
	s.Require().NoError(s.store.Append(ctx, entry))

	entries, err := s.store.List(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	got := entries[0]
	s.Equal(entry.ID, got.ID)
	s.Equal(companyID, *got.CompanyID)
	s.Equal(actionRef, *got.ActionRef)
	s.Equal(entry.Timestamp, got.Timestamp)
	s.Equal(entry.AIReport, got.AIReport)
	s.Equal("moving banks", got.Raw["reason"])
}

func (s *PostgresStoreSuite) TestNullableColumns() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, s.newEntry("internal", "ENGINE_NOTE")))

	entries, err := s.store.List(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Nil(entries[0].ActionRef)
	s.Nil(entries[0].CompanyID)
	s.Nil(entries[0].AIReport)
}

func (s *PostgresStoreSuite) TestOrderingAndActorFilter() {
	ctx := context.Background()
	first := s.newEntry("alice", "A")
	second := s.newEntry("bob", "B")
	third := s.newEntry("alice", "C")
	for _, e := range []*ledger.Entry{first, second, third} {
		s.Require().NoError(s.store.Append(ctx, e))
	}

	all, err := s.store.List(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(third.ID, all[0].ID)
	s.Equal(second.ID, all[1].ID)

	alice, err := s.store.ListByActor(ctx, "alice", 10)
	s.Require().NoError(err)
	s.Require().Len(alice, 2)
	s.Equal(third.ID, alice[0].ID)
	s.Equal(first.ID, alice[1].ID)
}

func (s *PostgresStoreSuite) TestRolledBackTransactionLeavesNoEntry() {
	ctx := context.Background()
	tx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)

	s.Require().NoError(ledger.NewPostgresTx(tx).Append(ctx, s.newEntry("alice", "A")))
	s.Require().NoError(tx.Rollback())

	entries, err := s.store.List(ctx, 10)
	s.Require().NoError(err)
	s.Empty(entries)
}
