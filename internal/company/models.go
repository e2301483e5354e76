// Package company serves the company directory, citizen consent changes and
// business policy audits.
package company

import (
	"strings"
	"time"

	id "trustbridge/pkg/domain"
	dErrors "trustbridge/pkg/domain-errors"
)

type Company struct {
	ID           id.CompanyID `json:"id"`
	Name         string       `json:"name"`
	Industry     string       `json:"industry"`
	ContactEmail string       `json:"contactEmail,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

const maxNameLength = 100

func NewCompany(companyID id.CompanyID, name, industry, contactEmail string, now time.Time) (*Company, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "company name cannot be empty")
	}
	if len(name) > maxNameLength {
		return nil, dErrors.New(dErrors.CodeValidation, "company name must be 100 characters or less")
	}
	return &Company{
		ID:           companyID,
		Name:         name,
		Industry:     strings.TrimSpace(industry),
		ContactEmail: strings.ToLower(strings.TrimSpace(contactEmail)),
		CreatedAt:    now,
	}, nil
}

// ConsentAction is the citizen's choice on POST /companies/{id}/consent.
type ConsentAction string

const (
	ConsentGrant  ConsentAction = "grant"
	ConsentRevoke ConsentAction = "revoke"
)
