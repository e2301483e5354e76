package ledger

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"trustbridge/internal/auth/models"
	dErrors "trustbridge/pkg/domain-errors"
	"trustbridge/pkg/platform/httputil"
	"trustbridge/pkg/platform/middleware/auth"
	"trustbridge/pkg/requestcontext"
)

// Reader is the read side of the ledger service.
type Reader interface {
	List(ctx context.Context, limit int) ([]*Entry, error)
	ListByActor(ctx context.Context, actor string, limit int) ([]*Entry, error)
}

// Appender is the write side of the ledger service.
type Appender interface {
	Append(ctx context.Context, entry *Entry) (*Entry, error)
}

type Handler struct {
	reader   Reader
	appender Appender
	logger   *slog.Logger
}

func NewHandler(reader Reader, appender Appender, logger *slog.Logger) *Handler {
	return &Handler{reader: reader, appender: appender, logger: logger}
}

// Register mounts the bearer-protected read routes.
func (h *Handler) Register(r chi.Router) {
	r.With(auth.RequireRole(h.logger, models.RoleAdmin.String())).Get("/getLedger", h.HandleList)
	r.Get("/users/{user_id}/ledger", h.HandleListByUser)
}

// RegisterAppend mounts POST /ledger/append. The caller supplies the guard
// admitting admins or the internal token.
func (h *Handler) RegisterAppend(r chi.Router) {
	r.Post("/ledger/append", h.HandleAppend)
}

// HandleList implements GET /getLedger?limit=N.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, err := parseLimit(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.reader.List(ctx, limit)
	if err != nil {
		httputil.WriteErrorLogged(ctx, w, h.logger, "list ledger failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

// HandleListByUser implements GET /users/{user_id}/ledger. Citizens may only
// read their own entries.
func (h *Handler) HandleListByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	target := chi.URLParam(r, "user_id")
	role := requestcontext.Role(ctx)
	if target != userID.String() && role != models.RoleAdmin.String() && role != models.RoleBusiness.String() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "cannot read another user's ledger"))
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.reader.ListByActor(ctx, target, limit)
	if err != nil {
		httputil.WriteErrorLogged(ctx, w, h.logger, "list user ledger failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

// HandleAppend implements POST /ledger/append.
//
// Input: { "actionType": "...", "actionRef": "...", "companyId": "...", "aiReport": {...}, "raw": {...} }
// Output: 201 with the stored entry.
func (h *Handler) HandleAppend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[AppendRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	entry, err := req.Entry()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if requestcontext.IsInternalCaller(ctx) {
		entry.Actor = ActorInternal
		entry.ActorRole = ActorInternal
	} else {
		userID, err := httputil.RequireUserID(ctx, h.logger)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		entry.Actor = userID.String()
		entry.ActorRole = requestcontext.Role(ctx)
	}
	entry.Timestamp = requestcontext.Now(ctx).UTC()
	entry.Raw = WithClientMetadata(ctx, entry.Raw)

	stored, err := h.appender.Append(ctx, entry)
	if err != nil {
		httputil.WriteErrorLogged(ctx, w, h.logger, "ledger append failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, stored)
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return DefaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer")
	}
	return ClampLimit(limit), nil
}
