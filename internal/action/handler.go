package action

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"trustbridge/internal/auth/models"
	"trustbridge/internal/compliance"
	dErrors "trustbridge/pkg/domain-errors"
	"trustbridge/pkg/platform/httputil"
	"trustbridge/pkg/platform/middleware/auth"
	"trustbridge/pkg/requestcontext"
)

// Recorder is the subset of Service the handler needs.
type Recorder interface {
	Record(ctx context.Context, in RecordInput) (*Recorded, error)
	List(ctx context.Context, limit int) ([]*Action, error)
}

type Handler struct {
	recorder Recorder
	rules    compliance.Provider
	logger   *slog.Logger
}

func NewHandler(recorder Recorder, rules compliance.Provider, logger *slog.Logger) *Handler {
	return &Handler{recorder: recorder, rules: rules, logger: logger}
}

// Register mounts the bearer-protected routes.
func (h *Handler) Register(r chi.Router) {
	r.With(auth.RequireRole(h.logger, models.RoleCitizen.String(), models.RoleBusiness.String())).
		Post("/recordAction", h.HandleRecord)
	r.With(auth.RequireRole(h.logger, models.RoleAdmin.String())).Get("/actions", h.HandleList)
}

// RegisterInternal mounts POST /ai/analyzeAction. The caller supplies the
// internal-token guard.
func (h *Handler) RegisterInternal(r chi.Router) {
	r.Post("/ai/analyzeAction", h.HandleAnalyze)
}

// HandleRecord implements POST /recordAction.
//
// Input: { "type": "REVOKE_CONSENT", "details": {...}, "companyId": "..." }
// Output: 201 { "actionId": "...", "ledgerId": "...", "aiReport": {...} }
func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[RecordRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	userID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.recorder.Record(ctx, RecordInput{
		ActorID:   userID,
		ActorRole: requestcontext.Role(ctx),
		Type:      req.Type,
		Details:   req.Details,
		CompanyID: req.companyID,
		Raw: map[string]any{
			"source":  "record_action",
			"request": map[string]any{"type": req.Type, "details": req.Details, "companyId": req.CompanyID},
		},
	})
	if err != nil {
		httputil.WriteErrorLogged(ctx, w, h.logger, "record action failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

// HandleList implements GET /actions?limit=N.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = n
	}
	actions, err := h.recorder.List(ctx, limit)
	if err != nil {
		httputil.WriteErrorLogged(ctx, w, h.logger, "list actions failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, actions)
}

// HandleAnalyze implements POST /ai/analyzeAction with the local classifier.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[AnalyzeRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.rules.Current().ClassifyAction(req.toDomain()))
}
