package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"trustbridge/internal/auth/models"
	"trustbridge/internal/platform/metrics"
	id "trustbridge/pkg/domain"
	dErrors "trustbridge/pkg/domain-errors"
	"trustbridge/pkg/platform/sentinel"
	"trustbridge/pkg/requestcontext"
	"trustbridge/pkg/secrets"
)

// UserStore defines the persistence interface for user data.
// Error Contract: Find methods return sentinel.ErrNotFound; Create returns sentinel.ErrConflict on a taken email.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Exists(ctx context.Context, userID id.UserID) (bool, error)
}

type TokenGenerator interface {
	GenerateAccessToken(ctx context.Context, userID id.UserID, role string) (string, error)
	TokenTTL() time.Duration
}

type Service struct {
	users      UserStore
	jwt        TokenGenerator
	bcryptCost int
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithBcryptCost lowers the hashing cost, for tests.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

func New(users UserStore, jwt TokenGenerator, opts ...Option) *Service {
	s := &Service{
		users:  users,
		jwt:    jwt,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user. A taken email yields CodeConflict.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	role, err := models.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}
	hash, err := secrets.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           id.NewUserID(),
		Name:         req.Name,
		Email:        models.NormalizeEmail(req.Email),
		PasswordHash: hash,
		Role:         role,
		Company:      req.Company,
		CreatedAt:    requestcontext.Now(ctx).UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, s.translateStoreError(err, "failed to register user")
	}

	s.metrics.IncrementUsersRegistered()
	s.logAudit(ctx, "user_registered",
		"user_id", user.ID.String(),
		"role", user.Role.String(),
	)
	return user, nil
}

// Login checks the password and issues an access token. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.TokenResult, error) {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.authFailure(ctx, "unknown_email")
			return nil, errInvalidCredentials
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}

	if err := secrets.VerifyPassword(req.Password, user.PasswordHash); err != nil {
		if errors.Is(err, secrets.ErrMismatch) {
			s.authFailure(ctx, "wrong_password", "user_id", user.ID.String())
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	token, err := s.jwt.GenerateAccessToken(ctx, user.ID, user.Role.String())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue access token")
	}

	s.logAudit(ctx, "user_logged_in", "user_id", user.ID.String())
	return &models.TokenResult{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.jwt.TokenTTL().Seconds()),
	}, nil
}

// Me returns the caller's own account.
func (s *Service) Me(ctx context.Context, userID id.UserID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, s.translateStoreError(err, "failed to load user")
	}
	return user, nil
}

// UserExists lets the auth middleware reject tokens for deleted accounts.
func (s *Service) UserExists(ctx context.Context, userID id.UserID) (bool, error) {
	return s.users.Exists(ctx, userID)
}
