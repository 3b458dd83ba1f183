package permissions

import (
	"time"

	"github.com/google/uuid"
)

// ScopeType is the breadth at which a role assignment applies.
type ScopeType string

const (
	ScopeOrganization ScopeType = "organization"
	ScopeProject      ScopeType = "project"
	ScopeTeam         ScopeType = "team"
)

// Valid reports whether the scope type is one of the known values.
func (s ScopeType) Valid() bool {
	switch s {
	case ScopeOrganization, ScopeProject, ScopeTeam:
		return true
	}
	return false
}

// Scope narrows a permission check to a project or team. A nil *Scope means
// only organization-wide assignments are considered.
type Scope struct {
	Type ScopeType
	ID   uuid.UUID
}

// Role represents a high-level permission grouping. Reference data seeded at
// setup, never created by this package.
type Role struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Permission represents an atomic (resource, action) capability.
type Permission struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Resource    string    `json:"resource"`
	Action      string    `json:"action"`
}

// Assignment ties a user to a role within a scope. Organization-wide
// assignments carry a nil ScopeID.
type Assignment struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	RoleID    uuid.UUID  `json:"role_id"`
	ScopeType ScopeType  `json:"scope_type"`
	ScopeID   *uuid.UUID `json:"scope_id"`
	CreatedAt time.Time  `json:"created_at"`
}

// UserRole is the resolved projection of one assignment joined with its role
// name. This is what gets cached per user.
type UserRole struct {
	RoleID    uuid.UUID  `json:"role_id"`
	RoleName  string     `json:"role_name"`
	ScopeType ScopeType  `json:"scope_type"`
	ScopeID   *uuid.UUID `json:"scope_id"`
}
