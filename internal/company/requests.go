package company

import (
	"strings"

	"trustbridge/internal/action"
	"trustbridge/pkg/validation"
)

type CreateRequest struct {
	Name         string `json:"name" validate:"required,notblank,max=100"`
	Industry     string `json:"industry" validate:"max=100"`
	ContactEmail string `json:"contactEmail" validate:"omitempty,email,max=255"`
}

func (r *CreateRequest) Sanitize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Industry = strings.TrimSpace(r.Industry)
	r.ContactEmail = strings.TrimSpace(r.ContactEmail)
}

func (r *CreateRequest) Validate() error {
	return validation.Validate(r)
}

type ConsentRequest struct {
	Action  string         `json:"action" validate:"required,oneof=grant revoke"`
	Details map[string]any `json:"details"`
}

func (r *ConsentRequest) Normalize() {
	r.Action = strings.ToLower(strings.TrimSpace(r.Action))
}

func (r *ConsentRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	return action.ValidateDetails(r.Details)
}

// AuditRequest carries the policy text. Its size is bounded by the
// classifier, which answers 413 rather than a validation error.
type AuditRequest struct {
	PolicyText string `json:"policyText" validate:"required,notblank"`
	// Policy is an older spelling of PolicyText.
	Policy string `json:"policy" validate:"-"`
}

func (r *AuditRequest) Normalize() {
	if r.PolicyText == "" {
		r.PolicyText = r.Policy
	}
	r.Policy = ""
}

func (r *AuditRequest) Validate() error {
	return validation.Validate(r)
}
