// Package advisor produces advisory compliance verdicts for the api. It asks
// the legal-engine when one is configured and otherwise, or when the engine
// cannot answer, classifies locally.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"trustbridge/internal/compliance"
	"trustbridge/internal/platform/metrics"
	"trustbridge/pkg/platform/middleware/auth"
	"trustbridge/pkg/validation"
)

const (
	kindAction = "advisory_action"
	kindPolicy = "advisory_policy"

	maxResponseBytes = 1 << 20
)

var errCircuitOpen = errors.New("advisor: engine circuit open")

// StatusError is a non-200 answer from the legal-engine.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("legal-engine returned %d: %s", e.StatusCode, e.Body)
}

// rejected reports whether the engine refused the request itself. Such
// answers say nothing about engine health.
func (e *StatusError) rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

// HTTPDoer is the part of *http.Client the advisor needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// PolicyRequest is a company policy submitted for audit.
type PolicyRequest struct {
	Text        string
	CompanyName string
	Industry    string
}

type Advisor struct {
	engineURL     string
	internalToken string
	client        HTTPDoer
	rules         compliance.Provider
	breaker       *gobreaker.CircuitBreaker
	maxFailures   uint32
	cooldown      time.Duration
	actionTimeout time.Duration
	policyTimeout time.Duration
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

type Option func(*Advisor)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Advisor) { a.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Advisor) { a.metrics = m }
}

func WithHTTPClient(client HTTPDoer) Option {
	return func(a *Advisor) { a.client = client }
}

// WithTimeouts bounds each engine call.
func WithTimeouts(action, policy time.Duration) Option {
	return func(a *Advisor) {
		a.actionTimeout = action
		a.policyTimeout = policy
	}
}

// WithBreakerPolicy sets the consecutive failures that open the engine
// circuit and how long it stays open. Defaults are 5 and 30s.
func WithBreakerPolicy(maxFailures uint32, cooldown time.Duration) Option {
	return func(a *Advisor) {
		if maxFailures > 0 {
			a.maxFailures = maxFailures
		}
		if cooldown > 0 {
			a.cooldown = cooldown
		}
	}
}

// New creates an advisor. An empty engineURL means local classification only.
func New(engineURL, internalToken string, rules compliance.Provider, opts ...Option) *Advisor {
	a := &Advisor{
		engineURL:     engineURL,
		internalToken: internalToken,
		client:        &http.Client{},
		rules:         rules,
		actionTimeout: 15 * time.Second,
		policyTimeout: 60 * time.Second,
		maxFailures:   5,
		cooldown:      30 * time.Second,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "legal-engine",
		MaxRequests: 1,
		Timeout:     a.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= a.maxFailures
		},
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			a.logger.Warn("circuit breaker state change",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return a
}

// countsAsHealthy keeps requests the engine refused, and callers that gave
// up, from tripping the breaker.
func countsAsHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.rejected()
}

// BreakerState is "closed", "half-open" or "open".
func (a *Advisor) BreakerState() string {
	return a.breaker.State().String()
}

// RemoteEnabled reports whether an engine URL is configured.
func (a *Advisor) RemoteEnabled() bool { return a.engineURL != "" }

// Rules returns the local classifier in force.
func (a *Advisor) Rules() *compliance.Classifier { return a.rules.Current() }

type actionPayload struct {
	ActionType  string   `json:"action_type"`
	CitizenID   string   `json:"citizen_id"`
	CompanyID   string   `json:"company_id"`
	CompanyName string   `json:"company_name"`
	DataTypes   []string `json:"data_types"`
	Reason      string   `json:"reason,omitempty"`
}

type policyPayload struct {
	DocumentText string `json:"document_text"`
	CompanyName  string `json:"company_name"`
	Industry     string `json:"industry,omitempty"`
}

// AdviseAction always returns a verdict. Requests the engine would reject
// are classified locally without calling it.
func (a *Advisor) AdviseAction(ctx context.Context, req compliance.ActionRequest) compliance.Verdict {
	if a.RemoteEnabled() && engineAcceptsAction(req) {
		payload := actionPayload{
			ActionType:  string(req.ActionType),
			CitizenID:   req.CitizenID,
			CompanyID:   req.CompanyID,
			CompanyName: req.CompanyName,
			DataTypes:   req.DataTypes,
			Reason:      req.Reason,
		}
		verdict, err := a.ask(ctx, "/api/v1/validate/action", payload, a.actionTimeout)
		if err == nil {
			return a.record(kindAction, verdict)
		}
		a.fallback(ctx, kindAction, err)
	}
	return a.record(kindAction, a.rules.Current().ClassifyAction(req))
}

// AdvisePolicy fails only when the text exceeds the size bound.
func (a *Advisor) AdvisePolicy(ctx context.Context, req PolicyRequest) (compliance.Verdict, error) {
	local, err := a.rules.Current().ClassifyPolicyText(req.Text)
	if err != nil {
		return compliance.Verdict{}, err
	}
	if a.RemoteEnabled() && engineAcceptsPolicy(req) {
		payload := policyPayload{DocumentText: req.Text, CompanyName: req.CompanyName, Industry: req.Industry}
		verdict, err := a.ask(ctx, "/api/v1/analyze/policy", payload, a.policyTimeout)
		if err == nil {
			return a.record(kindPolicy, verdict), nil
		}
		a.fallback(ctx, kindPolicy, err)
	}
	return a.record(kindPolicy, local), nil
}

// engineAcceptsAction mirrors the engine's request validation.
func engineAcceptsAction(req compliance.ActionRequest) bool {
	switch {
	case len(req.CitizenID) < validation.MinCitizenIDLength || len(req.CitizenID) > validation.MaxCitizenIDLength:
		return false
	case len(req.CompanyName) < validation.MinCompanyNameLength || len(req.CompanyName) > validation.MaxNameLength:
		return false
	case req.CompanyID == "":
		return false
	case len(req.DataTypes) == 0 || len(req.DataTypes) > validation.MaxDataTypes:
		return false
	case len(req.Reason) > validation.MaxReasonLength:
		return false
	}
	for _, dt := range req.DataTypes {
		if dt == "" || len(dt) > validation.MaxDataTypeLength {
			return false
		}
	}
	return true
}

func engineAcceptsPolicy(req PolicyRequest) bool {
	return len(req.Text) >= validation.MinPolicyTextLength &&
		len(req.CompanyName) >= validation.MinCompanyNameLength &&
		len(req.CompanyName) <= validation.MaxNameLength &&
		len(req.Industry) <= validation.MaxNameLength
}

func (a *Advisor) ask(ctx context.Context, path string, payload any, timeout time.Duration) (compliance.Verdict, error) {
	out, err := a.breaker.Execute(func() (any, error) {
		return a.post(ctx, path, payload, timeout)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return compliance.Verdict{}, errCircuitOpen
	}
	if err != nil {
		return compliance.Verdict{}, err
	}
	return out.(compliance.Verdict), nil
}

func (a *Advisor) post(ctx context.Context, path string, payload any, timeout time.Duration) (compliance.Verdict, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return compliance.Verdict{}, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.engineURL+path, bytes.NewReader(body))
	if err != nil {
		return compliance.Verdict{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.internalToken != "" {
		req.Header.Set(auth.InternalTokenHeader, a.internalToken)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return compliance.Verdict{}, fmt.Errorf("call legal-engine: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return compliance.Verdict{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return compliance.Verdict{}, &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(respBody))}
	}

	var verdict compliance.Verdict
	if err := json.Unmarshal(respBody, &verdict); err != nil {
		return compliance.Verdict{}, fmt.Errorf("decode verdict: %w", err)
	}
	if _, err := compliance.ParseRiskLevel(string(verdict.RiskLevel)); err != nil {
		return compliance.Verdict{}, fmt.Errorf("decode verdict: %w", err)
	}
	if verdict.Source == "" {
		verdict.Source = compliance.SourceRules
	}
	if verdict.Findings == nil {
		verdict.Findings = []string{}
	}
	if verdict.Suggestions == nil {
		verdict.Suggestions = []string{}
	}
	return verdict, nil
}

func (a *Advisor) fallback(ctx context.Context, kind string, err error) {
	reason := fallbackReason(err)
	a.metrics.IncrementAIFallback(kind, reason)
	a.logger.WarnContext(ctx, "legal-engine unavailable, classifying locally",
		"kind", kind,
		"reason", reason,
		"error", err,
	)
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, errCircuitOpen):
		return "breaker_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr) && statusErr.rejected():
		return "rejected"
	default:
		return "error"
	}
}

func (a *Advisor) record(kind string, verdict compliance.Verdict) compliance.Verdict {
	a.metrics.RecordVerdict(kind, string(verdict.Source), string(verdict.RiskLevel))
	return verdict
}
