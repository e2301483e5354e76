package action

import (
	"strings"

	"trustbridge/internal/compliance"
	id "trustbridge/pkg/domain"
	"trustbridge/pkg/validation"
)

// RecordRequest is the body of POST /recordAction.
type RecordRequest struct {
	Type      string         `json:"type" validate:"required,notblank,max=64"`
	Details   map[string]any `json:"details"`
	CompanyID string         `json:"companyId" validate:"omitempty,uuid"`

	companyID *id.CompanyID
}

func (r *RecordRequest) Sanitize() {
	r.Type = strings.TrimSpace(r.Type)
	r.CompanyID = strings.TrimSpace(r.CompanyID)
}

func (r *RecordRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	if _, err := compliance.ParseActionType(r.Type); err != nil {
		return err
	}
	if err := ValidateDetails(r.Details); err != nil {
		return err
	}
	if r.CompanyID != "" {
		companyID, err := id.ParseCompanyID(r.CompanyID)
		if err != nil {
			return err
		}
		r.companyID = &companyID
	}
	return nil
}

// AnalyzeRequest is the body of POST /ai/analyzeAction.
type AnalyzeRequest struct {
	UserAction string         `json:"user_action" validate:"required,notblank,max=64"`
	CompanyID  string         `json:"company_id" validate:"max=100"`
	Details    map[string]any `json:"details"`

	actionType compliance.ActionType
}

func (r *AnalyzeRequest) Sanitize() {
	r.UserAction = strings.TrimSpace(r.UserAction)
	r.CompanyID = strings.TrimSpace(r.CompanyID)
}

func (r *AnalyzeRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	t, err := compliance.ParseActionType(r.UserAction)
	if err != nil {
		return err
	}
	if err := ValidateDetails(r.Details); err != nil {
		return err
	}
	r.actionType = t
	return nil
}

func (r *AnalyzeRequest) toDomain() compliance.ActionRequest {
	dataTypes, reason := classificationInput(r.Details)
	companyID := r.CompanyID
	if companyID == "" {
		companyID = unspecifiedCompany
	}
	companyName := unspecifiedCompany
	if name, ok := r.Details["company_name"].(string); ok && strings.TrimSpace(name) != "" {
		companyName = strings.TrimSpace(name)
	}
	citizenID := ActorInternalCitizen
	if c, ok := r.Details["citizen_id"].(string); ok && strings.TrimSpace(c) != "" {
		citizenID = strings.TrimSpace(c)
	}
	return compliance.ActionRequest{
		ActionType:  r.actionType,
		CitizenID:   citizenID,
		CompanyID:   companyID,
		CompanyName: companyName,
		DataTypes:   dataTypes,
		Reason:      reason,
	}
}

// ActorInternalCitizen stands in for the citizen on internal analysis calls
// that do not name one.
const ActorInternalCitizen = "internal"
