// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID identifies the owner of a progress profile.
// The value comes from the upstream identity provider and is treated as opaque.
type UserID string

// Letters, digits and a small set of separators; no whitespace.
var userIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:@-]{0,127}$`)

// IsValid checks if the user ID has an acceptable format.
func (u UserID) IsValid() bool {
	return userIDRegex.MatchString(string(u))
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// IsEmpty checks if the ID is empty.
func (u UserID) IsEmpty() bool {
	return u == ""
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.TrimSpace(id))
	if uid.IsEmpty() {
		return "", NewDomainError("shared", "NewUserID", ErrEmptyValue, "user ID is required")
	}
	if !uid.IsValid() {
		return "", NewDomainError("shared", "NewUserID", ErrInvalidID, "invalid user ID format")
	}
	return uid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Percentage Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Percentage is an integer percentage in [0, 100].
type Percentage int

// IsValid checks if the percentage is within range.
func (p Percentage) IsValid() bool {
	return p >= 0 && p <= 100
}

// Int returns the underlying int value.
func (p Percentage) Int() int {
	return int(p)
}

// NewPercentage creates a new Percentage with validation.
func NewPercentage(v int) (Percentage, error) {
	p := Percentage(v)
	if !p.IsValid() {
		return 0, NewDomainError("shared", "NewPercentage", ErrValueOutOfRange, "percentage must be between 0 and 100")
	}
	return p, nil
}

// ClampPercentage forces v into [0, 100].
func ClampPercentage(v int) Percentage {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return Percentage(v)
	}
}
