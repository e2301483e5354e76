// Package seeder populates in-memory stores with demo accounts, companies
// and ledger history for local runs.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"trustbridge/internal/action"
	"trustbridge/internal/auth/models"
	"trustbridge/internal/company"
	"trustbridge/pkg/requestcontext"
)

// DemoPassword is shared by every seeded account.
const DemoPassword = "trustbridge-demo"

type UserRegistrar interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
}

type CompanyCreator interface {
	Create(ctx context.Context, req *company.CreateRequest) (*company.Company, error)
}

type ActionRecorder interface {
	Record(ctx context.Context, in action.RecordInput) (*action.Recorded, error)
}

// Seeder populates stores through the services so seeded data obeys the same
// rules as user input.
type Seeder struct {
	users     UserRegistrar
	companies CompanyCreator
	actions   ActionRecorder
	logger    *slog.Logger
}

func New(users UserRegistrar, companies CompanyCreator, actions ActionRecorder, logger *slog.Logger) *Seeder {
	return &Seeder{
		users:     users,
		companies: companies,
		actions:   actions,
		logger:    logger,
	}
}

// SeedAll creates companies, then users, then a short action history.
func (s *Seeder) SeedAll(ctx context.Context) error {
	s.logger.Info("seeding demo data...")

	companies, err := s.seedCompanies(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed companies: %w", err)
	}

	users, err := s.seedUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	recorded, err := s.seedActions(ctx, users, companies)
	if err != nil {
		return fmt.Errorf("failed to seed actions: %w", err)
	}

	s.logger.Info("demo data seeded successfully",
		"companies", len(companies),
		"users", len(users),
		"actions", recorded,
	)
	return nil
}

func (s *Seeder) seedCompanies(ctx context.Context) ([]*company.Company, error) {
	demo := []company.CreateRequest{
		{Name: "Acme Bank", Industry: "fintech", ContactEmail: "privacy@acmebank.example"},
		{Name: "Lagos Health", Industry: "healthcare", ContactEmail: "dpo@lagoshealth.example"},
		{Name: "Sahel Telecom", Industry: "telecommunications"},
	}

	var out []*company.Company
	for i := range demo {
		c, err := s.companies.Create(ctx, &demo[i])
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Seeder) seedUsers(ctx context.Context) ([]*models.User, error) {
	demo := []models.RegisterRequest{
		{Name: "Ada Obi", Email: "ada@example.com", Role: "citizen"},
		{Name: "Musa Bello", Email: "musa@example.com", Role: "citizen"},
		{Name: "Ngozi Okafor", Email: "ngozi@acmebank.example", Role: "business", Company: "Acme Bank"},
		{Name: "Platform Admin", Email: "admin@trustbridge.example", Role: "admin"},
	}

	var out []*models.User
	for i := range demo {
		req := demo[i]
		req.Password = DemoPassword
		user, err := s.users.Register(ctx, &req)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, nil
}

func (s *Seeder) seedActions(ctx context.Context, users []*models.User, companies []*company.Company) (int, error) {
	now := time.Now()

	history := []struct {
		userIdx    int
		companyIdx int
		actionType string
		details    map[string]any
		offset     time.Duration
	}{
		{0, 0, "GRANT_CONSENT", map[string]any{"data_types": []any{"email", "phone"}, "reason": "opening an account"}, -72 * time.Hour},
		{0, 0, "ACCESS_REQUEST", map[string]any{"data_types": []any{"transaction history"}}, -48 * time.Hour},
		{0, 1, "REVOKE_CONSENT", map[string]any{"data_types": []any{"health records"}, "reason": "switching clinics"}, -24 * time.Hour},
		{1, 2, "COMPLAIN", map[string]any{"reason": "unsolicited marketing calls"}, -6 * time.Hour},
		{1, 2, "DELETE_REQUEST", map[string]any{"data_types": []any{"location"}}, -time.Hour},
	}

	recorded := 0
	for _, h := range history {
		if h.userIdx >= len(users) || h.companyIdx >= len(companies) {
			continue
		}
		user := users[h.userIdx]
		actx := requestcontext.WithTime(ctx, now.Add(h.offset))
		_, err := s.actions.Record(actx, action.RecordInput{
			ActorID:   user.ID,
			ActorRole: user.Role.String(),
			Type:      h.actionType,
			Details:   h.details,
			CompanyID: &companies[h.companyIdx].ID,
			Raw:       map[string]any{"source": "seed"},
		})
		if err != nil {
			return recorded, err
		}
		recorded++
	}
	return recorded, nil
}
