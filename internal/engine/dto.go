package engine

import (
	"strings"

	"trustbridge/internal/compliance"
	pstrings "trustbridge/pkg/platform/strings"
	"trustbridge/pkg/validation"
)

type ValidateActionRequest struct {
	ActionType  string   `json:"action_type" validate:"required"`
	CitizenID   string   `json:"citizen_id" validate:"required,min=3,max=50"`
	CompanyID   string   `json:"company_id" validate:"required,notblank"`
	CompanyName string   `json:"company_name" validate:"required,min=2,max=100"`
	DataTypes   []string `json:"data_types" validate:"required,min=1,max=50,dive,notblank,max=100"`
	Reason      string   `json:"reason" validate:"max=1000"`

	actionType compliance.ActionType
}

func (r *ValidateActionRequest) Sanitize() {
	r.ActionType = strings.TrimSpace(r.ActionType)
	r.CitizenID = strings.TrimSpace(r.CitizenID)
	r.CompanyID = strings.TrimSpace(r.CompanyID)
	r.CompanyName = strings.TrimSpace(r.CompanyName)
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *ValidateActionRequest) Normalize() {
	r.DataTypes = pstrings.DedupeAndTrim(r.DataTypes)
}

func (r *ValidateActionRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	t, err := compliance.ParseActionType(r.ActionType)
	if err != nil {
		return err
	}
	r.actionType = t
	return nil
}

func (r *ValidateActionRequest) toDomain() compliance.ActionRequest {
	return compliance.ActionRequest{
		ActionType:  r.actionType,
		CitizenID:   r.CitizenID,
		CompanyID:   r.CompanyID,
		CompanyName: r.CompanyName,
		DataTypes:   r.DataTypes,
		Reason:      r.Reason,
	}
}

// AnalyzePolicyRequest has no upper bound on document_text here; the
// classifier's byte limit answers 413 instead of a validation error.
type AnalyzePolicyRequest struct {
	DocumentText string `json:"document_text" validate:"required,min=100"`
	CompanyName  string `json:"company_name" validate:"required,min=2,max=100"`
	Industry     string `json:"industry" validate:"max=100"`
}

func (r *AnalyzePolicyRequest) Sanitize() {
	r.CompanyName = strings.TrimSpace(r.CompanyName)
	r.Industry = strings.TrimSpace(r.Industry)
}

func (r *AnalyzePolicyRequest) Validate() error {
	return validation.Validate(r)
}

func (r *AnalyzePolicyRequest) toDomain() PolicyRequest {
	return PolicyRequest{
		DocumentText: r.DocumentText,
		CompanyName:  r.CompanyName,
		Industry:     r.Industry,
	}
}

// CheckComplianceRequest leaves the upper bound of practice_description to
// the service, which answers 413.
type CheckComplianceRequest struct {
	PracticeDescription string `json:"practice_description" validate:"required,notblank,min=20"`
	Industry            string `json:"industry" validate:"max=100"`
	CompanySize         string `json:"company_size" validate:"omitempty,oneof=small medium large"`
}

func (r *CheckComplianceRequest) Sanitize() {
	r.PracticeDescription = strings.TrimSpace(r.PracticeDescription)
	r.Industry = strings.TrimSpace(r.Industry)
	r.CompanySize = strings.ToLower(strings.TrimSpace(r.CompanySize))
}

func (r *CheckComplianceRequest) Validate() error {
	return validation.Validate(r)
}

func (r *CheckComplianceRequest) toDomain() PracticeRequest {
	return PracticeRequest{
		Description: r.PracticeDescription,
		Industry:    r.Industry,
		CompanySize: r.CompanySize,
	}
}

type StatusResponse struct {
	Service          string            `json:"service"`
	Version          string            `json:"version"`
	Environment      string            `json:"environment"`
	AIEnabled        bool              `json:"ai_enabled"`
	Model            string            `json:"model,omitempty"`
	BreakerState     string            `json:"breaker_state,omitempty"`
	RulesFingerprint string            `json:"rules_fingerprint"`
	Rules            []string          `json:"rules"`
	UptimeSeconds    int64             `json:"uptime_seconds"`
	Endpoints        map[string]string `json:"endpoints"`
}
