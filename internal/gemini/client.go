// Package gemini is a minimal client for the Gemini generateContent REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"trustbridge/internal/platform/config"
)

var (
	ErrDisabled      = errors.New("gemini: no API key configured")
	ErrUnavailable   = errors.New("gemini: circuit breaker open")
	ErrQuotaExceeded = errors.New("gemini: quota or rate limit exceeded")
	ErrBlocked       = errors.New("gemini: response blocked")
	ErrEmptyResponse = errors.New("gemini: empty response")
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini: http %d %s: %s", e.StatusCode, e.Status, e.Message)
}

// GenerateOptions overrides the client defaults for one call. Zero values keep the defaults.
type GenerateOptions struct {
	Temperature     *float64
	MaxOutputTokens int
	JSON            bool
}

// Client calls the Gemini API with retries and a circuit breaker.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	maxRetries  int
	newBackOff  func() backoff.BackOff
	breaker     *gobreaker.CircuitBreaker
	tracer      trace.Tracer
	logger      *slog.Logger
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithBackOff replaces the exponential retry schedule.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = newBackOff }
}

// New builds a client from cfg. An empty API key yields a disabled client.
func New(cfg config.GeminiConfig, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxOutputTokens,
		maxRetries:  max(cfg.MaxRetries, 1),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.Multiplier = 2
			b.MaxElapsedTime = 0
			return b
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer("trustbridge/gemini")
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gemini",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return c
}

// countsAsHealthy keeps caller-side problems from tripping the breaker.
func countsAsHealthy(err error) bool {
	if err == nil || errors.Is(err, ErrBlocked) || errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
	}
	return false
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

func (c *Client) Model() string { return c.model }

// BreakerState is "closed", "half-open" or "open".
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// Generate sends prompt and returns the first candidate's text.
func (c *Client) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}

	ctx, span := c.tracer.Start(ctx, "gemini.generate", trace.WithAttributes(
		attribute.String("gemini.model", c.model),
		attribute.Int("gemini.prompt_chars", len(prompt)),
	))
	defer span.End()

	attempts := 0
	out, err := c.breaker.Execute(func() (any, error) {
		var text string
		op := func() error {
			attempts++
			var err error
			text, err = c.generateOnce(ctx, prompt, opts)
			if err != nil && isPermanent(err) {
				return backoff.Permanent(err)
			}
			if err != nil {
				c.logger.WarnContext(ctx, "gemini attempt failed", "attempt", attempts, "error", err)
			}
			return err
		}
		b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.maxRetries-1)), ctx)
		if err := backoff.Retry(op, b); err != nil {
			return nil, err
		}
		return text, nil
	})
	span.SetAttributes(attribute.Int("gemini.attempts", attempts))

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = ErrUnavailable
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return out.(string), nil
}

func isPermanent(err error) bool {
	if errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrBlocked) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
	}
	return false
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *Client) generateOnce(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	temperature := c.temperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	maxTokens := c.maxTokens
	if opts.MaxOutputTokens > 0 {
		maxTokens = opts.MaxOutputTokens
	}
	reqBody := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     temperature,
			MaxOutputTokens: maxTokens,
		},
	}
	if opts.JSON {
		reqBody.GenerationConfig.ResponseMIMEType = "application/json"
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPError(resp.StatusCode, body)
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if decoded.PromptFeedback != nil && decoded.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt %s", ErrBlocked, decoded.PromptFeedback.BlockReason)
	}
	if len(decoded.Candidates) == 0 {
		return "", ErrEmptyResponse
	}
	candidate := decoded.Candidates[0]
	switch candidate.FinishReason {
	case "SAFETY", "BLOCKED_SAFETY", "RECITATION", "PROHIBITED_CONTENT":
		return "", fmt.Errorf("%w: %s", ErrBlocked, candidate.FinishReason)
	}

	var sb strings.Builder
	for _, p := range candidate.Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func classifyHTTPError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status, Status: http.StatusText(status)}
	var decoded errorResponse
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Error.Message != "" {
		apiErr.Message = decoded.Error.Message
		if decoded.Error.Status != "" {
			apiErr.Status = decoded.Error.Status
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}

	lower := strings.ToLower(apiErr.Message)
	if status == http.StatusTooManyRequests || strings.Contains(lower, "quota") || strings.Contains(lower, "rate limit") {
		return fmt.Errorf("%w: %w", ErrQuotaExceeded, apiErr)
	}
	return apiErr
}
