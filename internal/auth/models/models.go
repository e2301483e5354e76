package models

import (
	"fmt"
	"strings"
	"time"

	id "trustbridge/pkg/domain"
	dErrors "trustbridge/pkg/domain-errors"
)

// Role gates which endpoints a user may call.
type Role string

const (
	RoleCitizen  Role = "citizen"
	RoleBusiness Role = "business"
	RoleAdmin    Role = "admin"
)

func (r Role) String() string { return string(r) }

func (r Role) IsValid() bool {
	switch r {
	case RoleCitizen, RoleBusiness, RoleAdmin:
		return true
	}
	return false
}

// ParseRole treats an empty value as citizen.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return RoleCitizen, nil
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("role must be one of [citizen business admin], got %q", s))
	}
	return r, nil
}

// User is a registered account. The password hash never leaves the service layer.
type User struct {
	ID           id.UserID
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Company      string
	CreatedAt    time.Time
}

// NormalizeEmail is the canonical form used for lookups and uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
