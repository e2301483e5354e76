// Package metrics defines the domain counters exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared by both services.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	UsersRegistered       prometheus.Counter
	LoginFailures         prometheus.Counter
	Verdicts              *prometheus.CounterVec
	AIFallbacks           *prometheus.CounterVec
	AILatency             prometheus.Histogram
	LedgerAppends         *prometheus.CounterVec
	LedgerPublishFailures prometheus.Counter
	RulesReloads          *prometheus.CounterVec
	RateLimited           *prometheus.CounterVec
}

// New creates and registers the collectors on reg.
func New(reg prometheus.Registerer, service string) *Metrics {
	f := promauto.With(reg)
	labels := prometheus.Labels{"service": service}
	return &Metrics{
		UsersRegistered: f.NewCounter(prometheus.CounterOpts{
			Name:        "trustbridge_users_registered_total",
			Help:        "Total number of users registered",
			ConstLabels: labels,
		}),
		LoginFailures: f.NewCounter(prometheus.CounterOpts{
			Name:        "trustbridge_login_failures_total",
			Help:        "Total number of failed login attempts",
			ConstLabels: labels,
		}),
		Verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "trustbridge_verdicts_total",
			Help:        "Compliance verdicts produced, labeled by kind, source and risk level",
			ConstLabels: labels,
		}, []string{"kind", "source", "risk_level"}),
		AIFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "trustbridge_ai_fallbacks_total",
			Help:        "Requests answered by the rule classifier after the AI path failed",
			ConstLabels: labels,
		}, []string{"kind", "reason"}),
		AILatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:        "trustbridge_ai_request_duration_seconds",
			Help:        "Latency of successful AI analysis calls in seconds",
			Buckets:     []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
			ConstLabels: labels,
		}),
		LedgerAppends: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "trustbridge_ledger_appends_total",
			Help:        "Ledger entries appended, labeled by action type",
			ConstLabels: labels,
		}, []string{"action_type"}),
		LedgerPublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name:        "trustbridge_ledger_publish_failures_total",
			Help:        "Ledger events that could not be published to Kafka",
			ConstLabels: labels,
		}),
		RulesReloads: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "trustbridge_rules_reloads_total",
			Help:        "Compliance rule reloads, labeled by result",
			ConstLabels: labels,
		}, []string{"result"}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "trustbridge_rate_limited_total",
			Help:        "Requests rejected by the rate limiter, labeled by scope",
			ConstLabels: labels,
		}, []string{"scope"}),
	}
}

func (m *Metrics) IncrementUsersRegistered() {
	if m == nil {
		return
	}
	m.UsersRegistered.Inc()
}

func (m *Metrics) IncrementLoginFailures() {
	if m == nil {
		return
	}
	m.LoginFailures.Inc()
}

// RecordVerdict counts a verdict. kind is "action" or "policy".
func (m *Metrics) RecordVerdict(kind, source, riskLevel string) {
	if m == nil {
		return
	}
	m.Verdicts.WithLabelValues(kind, source, riskLevel).Inc()
}

func (m *Metrics) IncrementAIFallback(kind, reason string) {
	if m == nil {
		return
	}
	m.AIFallbacks.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) ObserveAILatency(durationSeconds float64) {
	if m == nil {
		return
	}
	m.AILatency.Observe(durationSeconds)
}

func (m *Metrics) IncrementLedgerAppends(actionType string) {
	if m == nil {
		return
	}
	m.LedgerAppends.WithLabelValues(actionType).Inc()
}

func (m *Metrics) IncrementLedgerPublishFailures() {
	if m == nil {
		return
	}
	m.LedgerPublishFailures.Inc()
}

// RecordRulesReload counts a reload attempt; err nil means success.
func (m *Metrics) RecordRulesReload(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.RulesReloads.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementRateLimited(scope string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(scope).Inc()
}
