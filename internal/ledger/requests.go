package ledger

import (
	"strings"

	"trustbridge/internal/compliance"
	id "trustbridge/pkg/domain"
	"trustbridge/pkg/validation"
)

// AppendRequest is the body of POST /ledger/append. Actor and time are
// stamped by the server, never taken from the body.
type AppendRequest struct {
	ActionRef  string              `json:"actionRef" validate:"omitempty,uuid"`
	ActionType string              `json:"actionType" validate:"required,notblank,max=64"`
	CompanyID  string              `json:"companyId" validate:"omitempty,uuid"`
	AIReport   *compliance.Verdict `json:"aiReport"`
	Raw        map[string]any      `json:"raw"`
}

func (r *AppendRequest) Sanitize() {
	r.ActionRef = strings.TrimSpace(r.ActionRef)
	r.ActionType = strings.TrimSpace(r.ActionType)
	r.CompanyID = strings.TrimSpace(r.CompanyID)
}

func (r *AppendRequest) Validate() error {
	return validation.Validate(r)
}

// Entry converts the request. IDs were checked by Validate.
func (r *AppendRequest) Entry() (*Entry, error) {
	entry := &Entry{
		ActionType: r.ActionType,
		AIReport:   r.AIReport,
		Raw:        r.Raw,
	}
	if r.ActionRef != "" {
		ref, err := id.ParseActionID(r.ActionRef)
		if err != nil {
			return nil, err
		}
		entry.ActionRef = &ref
	}
	if r.CompanyID != "" {
		company, err := id.ParseCompanyID(r.CompanyID)
		if err != nil {
			return nil, err
		}
		entry.CompanyID = &company
	}
	return entry, nil
}
