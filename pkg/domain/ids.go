// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "trustbridge/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing UserID where CompanyID is expected.
type (
	UserID        uuid.UUID
	CompanyID     uuid.UUID
	ActionID      uuid.UUID
	LedgerEntryID uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID(s, "user ID")
	return UserID(id), err
}

func ParseCompanyID(s string) (CompanyID, error) {
	id, err := parseUUID(s, "company ID")
	return CompanyID(id), err
}

func ParseActionID(s string) (ActionID, error) {
	id, err := parseUUID(s, "action ID")
	return ActionID(id), err
}

func ParseLedgerEntryID(s string) (LedgerEntryID, error) {
	id, err := parseUUID(s, "ledger entry ID")
	return LedgerEntryID(id), err
}

// Constructors for freshly minted identifiers.

func NewUserID() UserID               { return UserID(uuid.New()) }
func NewCompanyID() CompanyID         { return CompanyID(uuid.New()) }
func NewActionID() ActionID           { return ActionID(uuid.New()) }
func NewLedgerEntryID() LedgerEntryID { return LedgerEntryID(uuid.New()) }

// String methods - for logging and JSON.

func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id CompanyID) String() string     { return uuid.UUID(id).String() }
func (id ActionID) String() string      { return uuid.UUID(id).String() }
func (id LedgerEntryID) String() string { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id CompanyID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ActionID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id LedgerEntryID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets typed IDs serialize as plain UUID strings.

func (id UserID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id CompanyID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id ActionID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id LedgerEntryID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return id, nil
}
