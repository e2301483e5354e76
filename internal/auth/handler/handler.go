package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trustbridge/internal/auth/models"
	id "trustbridge/pkg/domain"
	"trustbridge/pkg/platform/httputil"
)

// Service defines the interface for account operations.
type Service interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.TokenResult, error)
	Me(ctx context.Context, userID id.UserID) (*models.User, error)
}

// Handler serves registration, login and the current-user endpoint.
type Handler struct {
	auth   Service
	logger *slog.Logger
}

func New(auth Service, logger *slog.Logger) *Handler {
	return &Handler{auth: auth, logger: logger}
}

// RegisterPublic mounts the unauthenticated routes. loginGuard wraps /login only.
func (h *Handler) RegisterPublic(r chi.Router, loginGuard ...func(http.Handler) http.Handler) {
	r.Post("/registerUser", h.HandleRegister)
	r.With(loginGuard...).Post("/login", h.HandleLogin)
}

// Register mounts routes that expect the parent router to authenticate.
func (h *Handler) Register(r chi.Router) {
	r.Get("/users/me", h.HandleMe)
}

// HandleRegister implements POST /registerUser.
//
// Input: { "name": "...", "email": "...", "password": "...", "role": "citizen", "company": "..." }
// Output: 201 with the user, without the password hash.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.RegisterRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}

	user, err := h.auth.Register(ctx, req)
	if err != nil {
		httputil.WriteErrorLogged(ctx, w, h.logger, "register failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.NewUserResponse(user))
}

// HandleLogin implements POST /login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.LoginRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}

	res, err := h.auth.Login(ctx, req)
	if err != nil {
		httputil.WriteErrorLogged(ctx, w, h.logger, "login failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleMe implements GET /users/me.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.auth.Me(ctx, userID)
	if err != nil {
		httputil.WriteErrorLogged(ctx, w, h.logger, "load current user failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewUserResponse(user))
}
