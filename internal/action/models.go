// Package action records citizen and company actions and their ledger entries.
package action

import (
	"fmt"
	"strings"
	"time"

	"trustbridge/internal/compliance"
	id "trustbridge/pkg/domain"
	dErrors "trustbridge/pkg/domain-errors"
	pstrings "trustbridge/pkg/platform/strings"
	"trustbridge/pkg/validation"
)

// Action is a persisted citizen or business action.
type Action struct {
	ID        id.ActionID    `json:"id"`
	ActorID   id.UserID      `json:"actor"`
	ActorRole string         `json:"actorRole"`
	Type      string         `json:"type"`
	Details   map[string]any `json:"details"`
	CompanyID *id.CompanyID  `json:"company,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// TypeCompanyAudit is the action and ledger type of a policy audit.
const TypeCompanyAudit = "company_audit"

// Recorded is returned by every endpoint that records an action.
type Recorded struct {
	ActionID id.ActionID         `json:"actionId"`
	LedgerID id.LedgerEntryID    `json:"ledgerId"`
	AIReport *compliance.Verdict `json:"aiReport"`
}

const (
	unspecifiedCompany  = "unspecified"
	unspecifiedDataType = "unspecified"
)

// classificationInput extracts data types and reason from free-form details.
// Both snake_case and camelCase keys are accepted.
func classificationInput(details map[string]any) (dataTypes []string, reason string) {
	for _, key := range []string{"data_types", "dataTypes"} {
		if raw, ok := details[key]; ok {
			dataTypes = append(dataTypes, stringList(raw)...)
		}
	}
	dataTypes = pstrings.DedupeAndTrim(dataTypes)
	if len(dataTypes) == 0 {
		dataTypes = []string{unspecifiedDataType}
	}
	if r, ok := details["reason"].(string); ok {
		reason = strings.TrimSpace(r)
	}
	return dataTypes, reason
}

// ValidateDetails bounds the data types and reason carried in details.
func ValidateDetails(details map[string]any) error {
	dataTypes, reason := classificationInput(details)
	if err := validation.CheckSliceCount("data types", len(dataTypes), validation.MaxDataTypes); err != nil {
		return err
	}
	if err := validation.CheckEachStringLength("data type", dataTypes, validation.MaxDataTypeLength); err != nil {
		return err
	}
	if len(reason) > validation.MaxReasonLength {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("reason exceeds max length of %d", validation.MaxReasonLength))
	}
	return nil
}

func stringList(raw any) []string {
	switch v := raw.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
