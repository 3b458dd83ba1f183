package permissions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/cairnhq/cairn/internal/shared"
)

// RepositoryPort defines data access methods for permission resolution.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id uuid.UUID) (Role, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	FindPermission(ctx context.Context, resource, action string) (Permission, error)
	ScopedRoleIDs(ctx context.Context, userID uuid.UUID, scope *Scope) ([]uuid.UUID, error)
	AnyRoleHasPermission(ctx context.Context, roleIDs []uuid.UUID, permissionID uuid.UUID) (bool, error)
	ListUserRoles(ctx context.Context, userID uuid.UUID) ([]UserRole, error)
	CreateAssignment(ctx context.Context, userID, roleID uuid.UUID, scopeType ScopeType, scopeID *uuid.UUID) (Assignment, error)
	DeleteAssignment(ctx context.Context, userID, roleID uuid.UUID, scopeType ScopeType, scopeID *uuid.UUID) error
}

// Service resolves effective role sets and answers permission checks.
// The cache handle is injected once at construction and shared across
// requests; it is never rebuilt per call.
type Service struct {
	repo   RepositoryPort
	cache  *RoleCache
	audit  shared.Recorder
	logger *slog.Logger
	group  singleflight.Group
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, cache *RoleCache, audit shared.Recorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, audit: audit, logger: logger}
}

// CheckPermission reports whether the user may perform (resource, action).
// Organization-wide assignments always count; scope-specific assignments
// count only when a scope is supplied. The check fails closed: no roles, an
// unregistered (resource, action) pair, or no role carrying the permission
// all yield false without error.
func (s *Service) CheckPermission(ctx context.Context, userID uuid.UUID, resource, action string, scope *Scope) (bool, error) {
	if userID == uuid.Nil {
		return false, fmt.Errorf("permissions: user id required: %w", shared.ErrValidation)
	}
	if resource == "" || action == "" {
		return false, fmt.Errorf("permissions: resource and action required: %w", shared.ErrValidation)
	}
	if scope != nil && !scope.Type.Valid() {
		return false, fmt.Errorf("permissions: scope type %q: %w", scope.Type, shared.ErrValidation)
	}

	roleIDs, err := s.repo.ScopedRoleIDs(ctx, userID, scope)
	if err != nil {
		return false, err
	}
	if len(roleIDs) == 0 {
		return false, nil
	}

	perm, err := s.repo.FindPermission(ctx, resource, action)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Unknown actions are never permitted.
			return false, nil
		}
		return false, err
	}

	return s.repo.AnyRoleHasPermission(ctx, roleIDs, perm.ID)
}

// GetUserRoles returns the user's resolved role projection, cache-first.
// Concurrent misses for the same user collapse into a single recompute.
func (s *Service) GetUserRoles(ctx context.Context, userID uuid.UUID) ([]UserRole, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("permissions: user id required: %w", shared.ErrValidation)
	}
	if roles, ok := s.cache.Get(ctx, userID); ok {
		return roles, nil
	}
	v, err, _ := s.group.Do(userID.String(), func() (any, error) {
		roles, err := s.repo.ListUserRoles(ctx, userID)
		if err != nil {
			return nil, err
		}
		s.cache.Set(ctx, userID, roles)
		return roles, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]UserRole), nil
}

// RoleNames returns just the role names from the user's projection. Used for
// workflow transition gating.
func (s *Service) RoleNames(ctx context.Context, userID uuid.UUID) ([]string, error) {
	roles, err := s.GetUserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.RoleName)
	}
	return names, nil
}

// GrantRole assigns a role to a user within a scope and evicts the user's
// cached role set before returning.
func (s *Service) GrantRole(ctx context.Context, actorID, userID, roleID uuid.UUID, scopeType ScopeType, scopeID *uuid.UUID) (Assignment, error) {
	if err := validateAssignment(userID, roleID, scopeType, scopeID); err != nil {
		return Assignment{}, err
	}
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return Assignment{}, err
	}
	assignment, err := s.repo.CreateAssignment(ctx, userID, roleID, scopeType, scopeID)
	if err != nil {
		return Assignment{}, err
	}
	s.cache.Invalidate(ctx, userID)
	shared.RecordBestEffort(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  actorID,
		Action:   "grant",
		Entity:   "role_assignment",
		EntityID: assignment.ID.String(),
		Meta: map[string]any{
			"user_id":    userID.String(),
			"role_id":    roleID.String(),
			"scope_type": string(scopeType),
		},
	})
	return assignment, nil
}

// RevokeRole removes an assignment and evicts the user's cached role set
// before returning.
func (s *Service) RevokeRole(ctx context.Context, actorID, userID, roleID uuid.UUID, scopeType ScopeType, scopeID *uuid.UUID) error {
	if err := validateAssignment(userID, roleID, scopeType, scopeID); err != nil {
		return err
	}
	if err := s.repo.DeleteAssignment(ctx, userID, roleID, scopeType, scopeID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, userID)
	shared.RecordBestEffort(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  actorID,
		Action:   "revoke",
		Entity:   "role_assignment",
		EntityID: userID.String() + ":" + roleID.String(),
		Meta: map[string]any{
			"user_id":    userID.String(),
			"role_id":    roleID.String(),
			"scope_type": string(scopeType),
		},
	})
	return nil
}

// ListRoles exposes the role catalog.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// ListPermissions exposes the permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

func validateAssignment(userID, roleID uuid.UUID, scopeType ScopeType, scopeID *uuid.UUID) error {
	if userID == uuid.Nil || roleID == uuid.Nil {
		return fmt.Errorf("permissions: user and role ids required: %w", shared.ErrValidation)
	}
	if !scopeType.Valid() {
		return fmt.Errorf("permissions: scope type %q: %w", scopeType, shared.ErrValidation)
	}
	if scopeType == ScopeOrganization && scopeID != nil {
		return fmt.Errorf("permissions: organization scope takes no scope id: %w", shared.ErrValidation)
	}
	if scopeType != ScopeOrganization && (scopeID == nil || *scopeID == uuid.Nil) {
		return fmt.Errorf("permissions: %s scope requires a scope id: %w", scopeType, shared.ErrValidation)
	}
	return nil
}
