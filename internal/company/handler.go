package company

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trustbridge/internal/action"
	"trustbridge/internal/auth/models"
	"trustbridge/internal/compliance"
	id "trustbridge/pkg/domain"
	"trustbridge/pkg/platform/httputil"
	"trustbridge/pkg/platform/middleware/auth"
)

// Directory is the company service as seen by the handler.
type Directory interface {
	Create(ctx context.Context, req *CreateRequest) (*Company, error)
	Get(ctx context.Context, companyID id.CompanyID) (*Company, error)
	List(ctx context.Context) ([]*Company, error)
	Consent(ctx context.Context, companyID id.CompanyID, req *ConsentRequest) (*action.Recorded, error)
	Audit(ctx context.Context, req *AuditRequest) (*compliance.Verdict, error)
}

type Handler struct {
	companies Directory
	logger    *slog.Logger
}

func NewHandler(companies Directory, logger *slog.Logger) *Handler {
	return &Handler{companies: companies, logger: logger}
}

// Register mounts routes that expect the parent router to authenticate.
func (h *Handler) Register(r chi.Router) {
	r.Get("/companies", h.HandleList)
	r.Get("/companies/{company_id}", h.HandleGet)
	r.With(auth.RequireRole(h.logger, models.RoleAdmin.String())).Post("/companies", h.HandleCreate)
	r.With(auth.RequireRole(h.logger, models.RoleCitizen.String())).Post("/companies/{company_id}/consent", h.HandleConsent)
	r.With(auth.RequireRole(h.logger, models.RoleBusiness.String())).Post("/company/audit", h.HandleAudit)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companies, err := h.companies.List(ctx)
	if err != nil {
		httputil.WriteErrorLogged(ctx, w, h.logger, "list companies failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, companies)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID, err := id.ParseCompanyID(chi.URLParam(r, "company_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.companies.Get(ctx, companyID)
	if err != nil {
		httputil.WriteErrorLogged(ctx, w, h.logger, "get company failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

// HandleCreate implements POST /companies for admins.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	c, err := h.companies.Create(ctx, req)
	if err != nil {
		httputil.WriteErrorLogged(ctx, w, h.logger, "create company failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

// HandleConsent implements POST /companies/{company_id}/consent.
//
// Input: { "action": "grant" | "revoke", "details": {...} }
// Output: 201 { "actionId": "...", "ledgerId": "...", "aiReport": {...} }
func (h *Handler) HandleConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID, err := id.ParseCompanyID(chi.URLParam(r, "company_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ConsentRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	res, err := h.companies.Consent(ctx, companyID, req)
	if err != nil {
		httputil.WriteErrorLogged(ctx, w, h.logger, "consent change failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

// HandleAudit implements POST /company/audit and returns the verdict.
func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[AuditRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	verdict, err := h.companies.Audit(ctx, req)
	if err != nil {
		httputil.WriteErrorLogged(ctx, w, h.logger, "company audit failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, verdict)
}
