package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks UserStore,TokenGenerator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"trustbridge/internal/auth/models"
	"trustbridge/internal/auth/service/mocks"
	"trustbridge/internal/platform/metrics"
	id "trustbridge/pkg/domain"
	dErrors "trustbridge/pkg/domain-errors"
	"trustbridge/pkg/platform/sentinel"
	"trustbridge/pkg/secrets"
)

type ServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	users   *mocks.MockUserStore
	jwt     *mocks.MockTokenGenerator
	metrics *metrics.Metrics
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.users = mocks.NewMockUserStore(s.ctrl)
	s.jwt = mocks.NewMockTokenGenerator(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry(), "api")
	s.service = New(s.users, s.jwt,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithBcryptCost(bcrypt.MinCost),
	)
}

func (s *ServiceSuite) existingUser(password string) *models.User {
	hash, err := secrets.HashPassword(password, bcrypt.MinCost)
	s.Require().NoError(err)
	return &models.User{
		ID:           id.NewUserID(),
		Name:         "Ada",
		Email:        "ada@example.com",
		PasswordHash: hash,
		Role:         models.RoleCitizen,
	}
}

func (s *ServiceSuite) TestRegister() {
	s.Run("hashes password and defaults role", func() {
		var saved *models.User
		s.users.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, u *models.User) error {
			saved = u
			return nil
		})

		user, err := s.service.Register(context.Background(), &models.RegisterRequest{
			Name: "Ada", Email: "Ada@Example.com", Password: "correct-horse",
		})
		s.Require().NoError(err)
		s.Equal(saved, user)
		s.Equal(models.RoleCitizen, user.Role)
		s.Equal("ada@example.com", user.Email)
		s.NotEqual("correct-horse", user.PasswordHash)
		s.NoError(secrets.VerifyPassword("correct-horse", user.PasswordHash))
		s.False(user.CreatedAt.IsZero())
		s.InDelta(1, testutil.ToFloat64(s.metrics.UsersRegistered), 0)
	})

	s.Run("duplicate email is a conflict", func() {
		s.users.EXPECT().Create(gomock.Any(), gomock.Any()).
			Return(fmt.Errorf("email already registered: %w", sentinel.ErrConflict))

		_, err := s.service.Register(context.Background(), &models.RegisterRequest{
			Name: "Ada", Email: "ada@example.com", Password: "correct-horse", Role: "business",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("store failure is internal", func() {
		s.users.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))

		_, err := s.service.Register(context.Background(), &models.RegisterRequest{
			Name: "Ada", Email: "ada@example.com", Password: "correct-horse",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("unknown role rejected before hashing", func() {
		_, err := s.service.Register(context.Background(), &models.RegisterRequest{
			Name: "Ada", Email: "ada@example.com", Password: "correct-horse", Role: "root",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestLogin() {
	s.Run("issues bearer token", func() {
		user := s.existingUser("correct-horse")
		s.users.EXPECT().FindByEmail(gomock.Any(), "ada@example.com").Return(user, nil)
		s.jwt.EXPECT().GenerateAccessToken(gomock.Any(), user.ID, "citizen").Return("signed", nil)
		s.jwt.EXPECT().TokenTTL().Return(2 * time.Hour)

		res, err := s.service.Login(context.Background(), &models.LoginRequest{Email: "ada@example.com", Password: "correct-horse"})
		s.Require().NoError(err)
		s.Equal("signed", res.AccessToken)
		s.Equal("bearer", res.TokenType)
		s.Equal(7200, res.ExpiresIn)
	})

	s.Run("wrong password is unauthorized", func() {
		before := testutil.ToFloat64(s.metrics.LoginFailures)
		s.users.EXPECT().FindByEmail(gomock.Any(), "ada@example.com").Return(s.existingUser("correct-horse"), nil)

		_, err := s.service.Login(context.Background(), &models.LoginRequest{Email: "ada@example.com", Password: "wrong-horse"})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.InDelta(before+1, testutil.ToFloat64(s.metrics.LoginFailures), 0)
	})

	s.Run("unknown email is unauthorized", func() {
		s.users.EXPECT().FindByEmail(gomock.Any(), "ghost@example.com").
			Return(nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound))

		_, err := s.service.Login(context.Background(), &models.LoginRequest{Email: "ghost@example.com", Password: "whatever1"})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal(errInvalidCredentials.Error(), err.Error())
	})

	s.Run("token failure is internal", func() {
		user := s.existingUser("correct-horse")
		s.users.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(user, nil)
		s.jwt.EXPECT().GenerateAccessToken(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("rng"))

		_, err := s.service.Login(context.Background(), &models.LoginRequest{Email: "ada@example.com", Password: "correct-horse"})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestMe() {
	user := s.existingUser("correct-horse")
	s.users.EXPECT().FindByID(gomock.Any(), user.ID).Return(user, nil)

	got, err := s.service.Me(context.Background(), user.ID)
	s.Require().NoError(err)
	s.Equal(user, got)

	missing := id.NewUserID()
	s.users.EXPECT().FindByID(gomock.Any(), missing).Return(nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound))
	_, err = s.service.Me(context.Background(), missing)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
