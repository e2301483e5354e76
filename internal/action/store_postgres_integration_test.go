//go:build integration

package action_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trustbridge/internal/action"
	id "trustbridge/pkg/domain"
	"trustbridge/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *action.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = action.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *PostgresStoreSuite) TestSaveAndList() {
	ctx := context.Background()
	actor := s.postgres.CreateTestUser(ctx, s.T())
	companyID := s.postgres.CreateTestCompany(ctx, s.T())
	base := time.Now().UTC().Truncate(time.Microsecond)

	older := &action.Action{
		ID: id.NewActionID(), ActorID: actor, ActorRole: "citizen", Type: "COMPLAIN",
		Details: map[string]any{"reason": "spam calls"}, CreatedAt: base.Add(-time.Minute),
	}
	newer := &action.Action{
		ID: id.NewActionID(), ActorID: actor, ActorRole: "citizen", Type: "REVOKE_CONSENT",
		CompanyID: &companyID, CreatedAt: base,
	}
	s.Require().NoError(s.store.Save(ctx, older))
	s.Require().NoError(s.store.Save(ctx, newer))

	actions, err := s.store.List(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(actions, 2)
	s.Equal(newer.ID, actions[0].ID)
	s.Equal(companyID, *actions[0].CompanyID)
	s.Empty(actions[0].Details)
	s.Equal(older.ID, actions[1].ID)
	s.Nil(actions[1].CompanyID)
	s.Equal("spam calls", actions[1].Details["reason"])
	s.Equal(older.CreatedAt, actions[1].CreatedAt)
}

func (s *PostgresStoreSuite) TestUnknownActorIsRejected() {
	err := s.store.Save(context.Background(), &action.Action{
		ID: id.NewActionID(), ActorID: id.NewUserID(), ActorRole: "citizen", Type: "COMPLAIN", CreatedAt: time.Now(),
	})
	s.Error(err)
}
