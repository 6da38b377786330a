package validation

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrInvalidOrgID is returned when an external org ID doesn't match the required format
	ErrInvalidOrgID = errors.New("invalid organisation ID format")

	// ErrOrgIDTooShort is returned when an external org ID is too short
	ErrOrgIDTooShort = errors.New("organisation ID must be at least 3 characters")

	// ErrOrgIDTooLong is returned when an external org ID is too long
	ErrOrgIDTooLong = errors.New("organisation ID must be at most 64 characters")

	// ErrRoleNameEmpty is returned when a role name is empty
	ErrRoleNameEmpty = errors.New("role name is required")

	// ErrRoleNameTooLong is returned when a role name is too long
	ErrRoleNameTooLong = errors.New("role name must be at most 255 characters")

	// orgIDRegex validates external org IDs: starts and ends with alphanumeric, can contain hyphens
	orgIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}[a-z0-9]$`)
)

// ValidateOrgID validates an external-facing organisation identifier:
// - Must be 3-64 characters long
// - Must start and end with lowercase alphanumeric (a-z, 0-9)
// - Can contain hyphens in the middle
func ValidateOrgID(orgID string) error {
	orgID = NormalizeOrgID(orgID)

	if len(orgID) < 3 {
		return ErrOrgIDTooShort
	}
	if len(orgID) > 64 {
		return ErrOrgIDTooLong
	}

	if !orgIDRegex.MatchString(orgID) {
		return ErrInvalidOrgID
	}

	return nil
}

// NormalizeOrgID normalizes an external org ID by converting to lowercase and trimming whitespace
func NormalizeOrgID(orgID string) string {
	return strings.ToLower(strings.TrimSpace(orgID))
}

// ValidateRoleName validates a role name. Role names are unique within
// one organisation, not globally, so only shape is checked here.
func ValidateRoleName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrRoleNameEmpty
	}
	if len(name) > 255 {
		return ErrRoleNameTooLong
	}
	return nil
}
