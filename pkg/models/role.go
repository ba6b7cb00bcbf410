package models

import "github.com/google/uuid"

// Role constants for callers of the query gate.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// ValidRoles contains all valid role values.
var ValidRoles = []string{RoleAdmin, RoleEditor, RoleViewer}

// IsValidRole checks if the given role is valid.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Identity is the authenticated caller as consumed by the policy enforcer.
// It carries no ambient permission state; every decision is a function of
// (Identity.Role, query).
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
}
