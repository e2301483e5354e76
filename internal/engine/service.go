// Package engine is the legal-engine: it asks the model first and falls back
// to the rule classifier whenever the model cannot answer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"trustbridge/internal/compliance"
	"trustbridge/internal/gemini"
	"trustbridge/internal/platform/metrics"
	dErrors "trustbridge/pkg/domain-errors"
)

// Generator is the model client.
type Generator interface {
	Enabled() bool
	Generate(ctx context.Context, prompt string, opts gemini.GenerateOptions) (string, error)
}

// PolicyRequest is a privacy policy to audit.
type PolicyRequest struct {
	DocumentText string
	CompanyName  string
	Industry     string
}

// Result wraps a verdict with analysis metadata.
type Result struct {
	compliance.Verdict
	AnalysisID       string    `json:"analysis_id"`
	Timestamp        time.Time `json:"timestamp"`
	ProcessingTimeMS int64     `json:"processing_time_ms"`
	Degraded         bool      `json:"degraded"`
}

// PracticeRequest is a short description of a data practice to check.
type PracticeRequest struct {
	Description string
	Industry    string
	CompanySize string
}

// PracticeResult is the quick-check envelope. Issues and Recommendations
// carry the verdict's findings and suggestions.
type PracticeResult struct {
	CheckID          string               `json:"check_id"`
	IsCompliant      bool                 `json:"is_compliant"`
	Score            int                  `json:"score"`
	RiskLevel        compliance.RiskLevel `json:"risk_level"`
	Issues           []string             `json:"issues"`
	Recommendations  []string             `json:"recommendations"`
	LegalReferences  []string             `json:"legal_references"`
	Source           compliance.Source    `json:"source"`
	Degraded         bool                 `json:"degraded"`
	ProcessingTimeMS int64                `json:"processing_time_ms"`
	Timestamp        time.Time            `json:"timestamp"`
}

// MaxPracticeBytes bounds a practice description.
const MaxPracticeBytes = 5000

const (
	kindAction   = "action"
	kindPolicy   = "policy"
	kindPractice = "practice"
)

var (
	actionTemperature   = 0.2
	policyTemperature   = 0.1
	practiceTemperature = 0.3
)

type Service struct {
	rules           compliance.Provider
	ai              Generator
	logger          *slog.Logger
	metrics         *metrics.Metrics
	actionAITimeout time.Duration
	policyAITimeout time.Duration
	now             func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAITimeouts bounds each model call.
func WithAITimeouts(action, policy time.Duration) Option {
	return func(s *Service) {
		s.actionAITimeout = action
		s.policyAITimeout = policy
	}
}

// New creates the service. ai may be nil, which means rules only.
func New(rules compliance.Provider, ai Generator, opts ...Option) *Service {
	s := &Service{
		rules:           rules,
		ai:              ai,
		logger:          slog.Default(),
		actionAITimeout: 12 * time.Second,
		policyAITimeout: 55 * time.Second,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AIEnabled reports whether the model path is configured.
func (s *Service) AIEnabled() bool {
	return s.ai != nil && s.ai.Enabled()
}

// Rules returns the classifier currently in force.
func (s *Service) Rules() *compliance.Classifier {
	return s.rules.Current()
}

// ValidateAction never fails: any AI problem degrades to the rule verdict.
func (s *Service) ValidateAction(ctx context.Context, req compliance.ActionRequest) Result {
	start := s.now()

	if s.AIEnabled() {
		verdict, err := s.askModel(ctx, actionPrompt(req), actionTemperature, s.actionAITimeout)
		if err == nil {
			return s.finish(kindAction, verdict, start, false)
		}
		s.fallback(ctx, kindAction, err)
		return s.finish(kindAction, s.rules.Current().ClassifyAction(req), start, true)
	}

	return s.finish(kindAction, s.rules.Current().ClassifyAction(req), start, false)
}

// AnalyzePolicy enforces the size bound before any model call.
func (s *Service) AnalyzePolicy(ctx context.Context, req PolicyRequest) (Result, error) {
	start := s.now()
	classifier := s.rules.Current()

	// The rule verdict doubles as the size check.
	ruleVerdict, err := classifier.ClassifyPolicyText(req.DocumentText)
	if err != nil {
		return Result{}, err
	}

	if s.AIEnabled() {
		verdict, err := s.askModel(ctx, policyPrompt(req), policyTemperature, s.policyAITimeout)
		if err == nil {
			return s.finish(kindPolicy, verdict, start, false), nil
		}
		s.fallback(ctx, kindPolicy, err)
		return s.finish(kindPolicy, ruleVerdict, start, true), nil
	}

	return s.finish(kindPolicy, ruleVerdict, start, false), nil
}

// CheckPractice answers 413 for oversized descriptions before the model
// sees them. It shares the action timeout.
func (s *Service) CheckPractice(ctx context.Context, req PracticeRequest) (PracticeResult, error) {
	start := s.now()
	if len(req.Description) > MaxPracticeBytes {
		return PracticeResult{}, dErrors.New(dErrors.CodePayloadTooLarge,
			fmt.Sprintf("practice_description exceeds %d bytes", MaxPracticeBytes))
	}

	ruleVerdict, err := s.rules.Current().ClassifyPolicyText(req.Description)
	if err != nil {
		return PracticeResult{}, err
	}

	if s.AIEnabled() {
		verdict, err := s.askModel(ctx, practicePrompt(req), practiceTemperature, s.actionAITimeout)
		if err == nil {
			return newPracticeResult(s.finish(kindPractice, verdict, start, false)), nil
		}
		s.fallback(ctx, kindPractice, err)
		return newPracticeResult(s.finish(kindPractice, ruleVerdict, start, true)), nil
	}

	return newPracticeResult(s.finish(kindPractice, ruleVerdict, start, false)), nil
}

func newPracticeResult(r Result) PracticeResult {
	return PracticeResult{
		CheckID:          r.AnalysisID,
		IsCompliant:      r.Valid,
		Score:            practiceScore(r.Verdict),
		RiskLevel:        r.RiskLevel,
		Issues:           nonNil(r.Findings),
		Recommendations:  nonNil(r.Suggestions),
		LegalReferences:  nonNil(r.LegalReferences),
		Source:           r.Source,
		Degraded:         r.Degraded,
		ProcessingTimeMS: r.ProcessingTimeMS,
		Timestamp:        r.Timestamp,
	}
}

// practiceScore is 100 for a compliant practice and loses 20 per finding.
func practiceScore(v compliance.Verdict) int {
	if v.Valid {
		return 100
	}
	return max(0, 100-20*len(v.Findings))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *Service) askModel(ctx context.Context, prompt string, temperature float64, timeout time.Duration) (compliance.Verdict, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := s.now()
	text, err := s.ai.Generate(ctx, prompt, gemini.GenerateOptions{Temperature: &temperature, JSON: true})
	if err != nil {
		return compliance.Verdict{}, err
	}
	verdict, err := gemini.ParseVerdict(text)
	if err != nil {
		return compliance.Verdict{}, err
	}
	s.metrics.ObserveAILatency(s.now().Sub(start).Seconds())
	return verdict, nil
}

func (s *Service) fallback(ctx context.Context, kind string, err error) {
	reason := fallbackReason(err)
	s.metrics.IncrementAIFallback(kind, reason)
	s.logger.WarnContext(ctx, "ai analysis failed, using rule classifier",
		"kind", kind,
		"reason", reason,
		"error", err,
	)
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, gemini.ErrUnavailable):
		return "breaker_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, gemini.ErrQuotaExceeded):
		return "quota"
	case errors.Is(err, gemini.ErrBlocked):
		return "blocked"
	case errors.Is(err, gemini.ErrMalformedVerdict):
		return "unparsable"
	default:
		return "error"
	}
}

func (s *Service) finish(kind string, verdict compliance.Verdict, start time.Time, degraded bool) Result {
	end := s.now()
	s.metrics.RecordVerdict(kind, string(verdict.Source), string(verdict.RiskLevel))
	return Result{
		Verdict:          verdict,
		AnalysisID:       uuid.NewString(),
		Timestamp:        end.UTC(),
		ProcessingTimeMS: end.Sub(start).Milliseconds(),
		Degraded:         degraded,
	}
}
