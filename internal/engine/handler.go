package engine

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trustbridge/internal/platform/health"
	"trustbridge/pkg/platform/httputil"
)

// breakerReporter is implemented by model clients that expose breaker state.
type breakerReporter interface {
	BreakerState() string
	Model() string
}

type Handler struct {
	service     *Service
	health      *health.Handler
	environment string
	logger      *slog.Logger
}

func NewHandler(service *Service, healthHandler *health.Handler, environment string, logger *slog.Logger) *Handler {
	return &Handler{
		service:     service,
		health:      healthHandler,
		environment: environment,
		logger:      logger,
	}
}

// Register mounts the engine routes. guard wraps the analysis routes.
func (h *Handler) Register(r chi.Router, guard ...func(http.Handler) http.Handler) {
	r.Get("/status", h.HandleStatus)
	r.Group(func(r chi.Router) {
		r.Use(guard...)
		r.Post("/validate/action", h.HandleValidateAction)
		r.Post("/analyze/policy", h.HandleAnalyzePolicy)
		r.Post("/check/compliance", h.HandleCheckCompliance)
	})
}

func (h *Handler) HandleValidateAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ValidateActionRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}

	result := h.service.ValidateAction(ctx, req.toDomain())
	h.logger.InfoContext(ctx, "action validated",
		"analysis_id", result.AnalysisID,
		"action_type", req.actionType,
		"risk_level", result.RiskLevel,
		"source", result.Source,
		"degraded", result.Degraded,
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleAnalyzePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[AnalyzePolicyRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}

	result, err := h.service.AnalyzePolicy(ctx, req.toDomain())
	if err != nil {
		httputil.WriteErrorLogged(ctx, w, h.logger, "policy analysis failed", err)
		return
	}
	h.logger.InfoContext(ctx, "policy analyzed",
		"analysis_id", result.AnalysisID,
		"policy_bytes", len(req.DocumentText),
		"risk_level", result.RiskLevel,
		"source", result.Source,
		"degraded", result.Degraded,
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleCheckCompliance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CheckComplianceRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}

	result, err := h.service.CheckPractice(ctx, req.toDomain())
	if err != nil {
		httputil.WriteErrorLogged(ctx, w, h.logger, "compliance check failed", err)
		return
	}
	h.logger.InfoContext(ctx, "practice checked",
		"check_id", result.CheckID,
		"industry", req.Industry,
		"score", result.Score,
		"risk_level", result.RiskLevel,
		"source", result.Source,
		"degraded", result.Degraded,
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	classifier := h.service.Rules()
	resp := StatusResponse{
		Service:          "trustbridge-legal-engine",
		Version:          health.Version,
		Environment:      h.environment,
		AIEnabled:        h.service.AIEnabled(),
		RulesFingerprint: classifier.Fingerprint(),
		Rules:            classifier.RuleNames(),
		Endpoints: map[string]string{
			"health":           "/api/v1/health",
			"validate_action":  "/api/v1/validate/action",
			"analyze_policy":   "/api/v1/analyze/policy",
			"check_compliance": "/api/v1/check/compliance",
		},
	}
	if h.health != nil {
		resp.UptimeSeconds = h.health.Uptime()
	}
	if br, ok := h.service.ai.(breakerReporter); ok && resp.AIEnabled {
		resp.Model = br.Model()
		resp.BreakerState = br.BreakerState()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
