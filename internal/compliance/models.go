package compliance

import (
	"fmt"
	"strings"

	dErrors "trustbridge/pkg/domain-errors"
	pstrings "trustbridge/pkg/platform/strings"
)

// RiskLevel orders verdicts from LOW to HIGH.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

func (r RiskLevel) rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether r is as severe as other.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return r.rank() >= other.rank()
}

func (r RiskLevel) String() string { return string(r) }

// ParseRiskLevel accepts any casing.
func ParseRiskLevel(s string) (RiskLevel, error) {
	level := RiskLevel(strings.ToUpper(strings.TrimSpace(s)))
	if level.rank() == 0 {
		return "", fmt.Errorf("unknown risk level %q", s)
	}
	return level, nil
}

// Escalate raises a risk level by one step, capped at HIGH.
func Escalate(level RiskLevel) RiskLevel {
	switch level {
	case RiskLow:
		return RiskMedium
	case RiskMedium, RiskHigh:
		return RiskHigh
	default:
		return level
	}
}

// ActionType is a citizen request kind.
type ActionType string

const (
	ActionRevokeConsent ActionType = "REVOKE_CONSENT"
	ActionGrantConsent  ActionType = "GRANT_CONSENT"
	ActionAccessRequest ActionType = "ACCESS_REQUEST"
	ActionDeleteRequest ActionType = "DELETE_REQUEST"
	ActionComplain      ActionType = "COMPLAIN"
)

var actionAliases = map[string]ActionType{
	"revoke_consent":   ActionRevokeConsent,
	"consent_revoked":  ActionRevokeConsent,
	"revoke":           ActionRevokeConsent,
	"withdraw_consent": ActionRevokeConsent,
	"grant_consent":    ActionGrantConsent,
	"consent_granted":  ActionGrantConsent,
	"grant":            ActionGrantConsent,
	"access_request":   ActionAccessRequest,
	"data_access":      ActionAccessRequest,
	"request_access":   ActionAccessRequest,
	"delete_request":   ActionDeleteRequest,
	"data_deletion":    ActionDeleteRequest,
	"request_deletion": ActionDeleteRequest,
	"erasure_request":  ActionDeleteRequest,
	"complain":         ActionComplain,
	"complaint":        ActionComplain,
	"file_complaint":   ActionComplain,
}

// ParseActionType resolves the canonical action type, accepting aliases in any casing.
func ParseActionType(s string) (ActionType, error) {
	if t, ok := actionAliases[pstrings.CanonicalToken(s)]; ok {
		return t, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown action type %q", s))
}

// canonicalAction never fails; unknown values pass through upper-cased.
func canonicalAction(t ActionType) ActionType {
	if parsed, err := ParseActionType(string(t)); err == nil {
		return parsed
	}
	return ActionType(strings.ToUpper(pstrings.CanonicalToken(string(t))))
}

// Source tells consumers whether a model was consulted.
type Source string

const (
	SourceAI    Source = "ai"
	SourceRules Source = "rules"
)

// ActionRequest is a citizen action to classify. Callers validate required fields first.
type ActionRequest struct {
	ActionType  ActionType `json:"action_type"`
	CitizenID   string     `json:"citizen_id"`
	CompanyID   string     `json:"company_id"`
	CompanyName string     `json:"company_name"`
	DataTypes   []string   `json:"data_types"`
	Reason      string     `json:"reason"`
}

// Verdict is the outcome of a classification. Treat as immutable once returned.
type Verdict struct {
	Valid           bool      `json:"valid"`
	RiskLevel       RiskLevel `json:"risk_level"`
	Findings        []string  `json:"findings"`
	Suggestions     []string  `json:"suggestions"`
	Source          Source    `json:"source"`
	PrimaryRule     string    `json:"primary_rule,omitempty"`
	LegalReferences []string  `json:"legal_references,omitempty"`
}

// NoIssuesFinding is the single finding reported when no rule matches.
const NoIssuesFinding = "no issues detected"
