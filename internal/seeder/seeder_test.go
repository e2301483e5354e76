package seeder

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"trustbridge/internal/action"
	"trustbridge/internal/advisor"
	"trustbridge/internal/auth/models"
	authservice "trustbridge/internal/auth/service"
	userstore "trustbridge/internal/auth/store/user"
	"trustbridge/internal/company"
	"trustbridge/internal/compliance"
	jwttoken "trustbridge/internal/jwt_token"
	"trustbridge/internal/ledger"
)

func TestSeedAll(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	classifier, err := compliance.NewDefault()
	require.NoError(t, err)

	users := userstore.New()
	auth := authservice.New(users, jwttoken.NewJWTService("test-key", "trustbridge", time.Hour),
		authservice.WithBcryptCost(bcrypt.MinCost), authservice.WithLogger(logger))
	companies := company.NewService(company.NewInMemoryStore(), company.WithLogger(logger))
	actions := action.NewInMemoryStore()
	entries := ledger.NewInMemoryStore()
	recorder := action.NewService(action.NewInMemoryTx(actions, entries), actions,
		advisor.New("", "", classifier, advisor.WithLogger(logger)),
		ledger.NewService(entries, ledger.WithLogger(logger)),
		action.WithCompanies(companies), action.WithLogger(logger))

	require.NoError(t, New(auth, companies, recorder, logger).SeedAll(ctx))

	list, err := companies.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	admin, err := users.FindByEmail(ctx, "admin@trustbridge.example")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)

	history, err := entries.List(ctx, ledger.MaxListLimit)
	require.NoError(t, err)
	assert.Len(t, history, 5)
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].Timestamp.After(history[i-1].Timestamp), "ledger must be newest first")
	}

	_, err = auth.Login(ctx, &models.LoginRequest{Email: "ada@example.com", Password: DemoPassword})
	assert.NoError(t, err)
}
