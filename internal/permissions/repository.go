package permissions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cairnhq/cairn/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the role and
// permission catalog and for role assignments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns the role catalog ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, created_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id uuid.UUID) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT id, name, description, created_at FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, fmt.Errorf("permissions: role %s: %w", id, shared.ErrNotFound)
	}
	return role, err
}

// ListPermissions returns the permission catalog ordered by resource then action.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, resource, action FROM permissions ORDER BY resource, action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Resource, &p.Action); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// FindPermission looks up the catalog entry for a (resource, action) pair.
func (r *Repository) FindPermission(ctx context.Context, resource, action string) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, resource, action FROM permissions WHERE resource = $1 AND action = $2`,
		resource, action).
		Scan(&p.ID, &p.Name, &p.Description, &p.Resource, &p.Action)
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, fmt.Errorf("permissions: %s:%s: %w", resource, action, shared.ErrNotFound)
	}
	return p, err
}

// ScopedRoleIDs returns the IDs of every role the user holds organization-wide,
// plus roles scoped to the given scope when one is supplied.
func (r *Repository) ScopedRoleIDs(ctx context.Context, userID uuid.UUID, scope *Scope) ([]uuid.UUID, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if scope != nil {
		rows, err = r.pool.Query(ctx,
			`SELECT role_id FROM role_assignments
			 WHERE user_id = $1
			   AND ((scope_type = 'organization' AND scope_id IS NULL)
			     OR (scope_type = $2 AND scope_id = $3))`,
			userID, scope.Type, scope.ID)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT role_id FROM role_assignments
			 WHERE user_id = $1 AND scope_type = 'organization' AND scope_id IS NULL`,
			userID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AnyRoleHasPermission reports whether any of the roles carries the permission.
func (r *Repository) AnyRoleHasPermission(ctx context.Context, roleIDs []uuid.UUID, permissionID uuid.UUID) (bool, error) {
	if len(roleIDs) == 0 {
		return false, nil
	}
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM role_permissions WHERE permission_id = $1 AND role_id = ANY($2))`,
		permissionID, roleIDs).Scan(&exists)
	return exists, err
}

// ListUserRoles returns every assignment for the user joined with its role
// name, ordered by creation time for a stable projection.
func (r *Repository) ListUserRoles(ctx context.Context, userID uuid.UUID) ([]UserRole, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ra.role_id, ro.name, ra.scope_type, ra.scope_id
		 FROM role_assignments ra
		 JOIN roles ro ON ro.id = ra.role_id
		 WHERE ra.user_id = $1
		 ORDER BY ra.created_at, ra.id`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []UserRole
	for rows.Next() {
		var ur UserRole
		if err := rows.Scan(&ur.RoleID, &ur.RoleName, &ur.ScopeType, &ur.ScopeID); err != nil {
			return nil, err
		}
		result = append(result, ur)
	}
	return result, rows.Err()
}

// CreateAssignment inserts a role assignment. The unique index on
// (user_id, role_id, scope_type, scope_id) enforces the at-most-one invariant.
func (r *Repository) CreateAssignment(ctx context.Context, userID, roleID uuid.UUID, scopeType ScopeType, scopeID *uuid.UUID) (Assignment, error) {
	var a Assignment
	err := r.pool.QueryRow(ctx,
		`INSERT INTO role_assignments (id, user_id, role_id, scope_type, scope_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, user_id, role_id, scope_type, scope_id, created_at`,
		uuid.New(), userID, roleID, scopeType, scopeID).
		Scan(&a.ID, &a.UserID, &a.RoleID, &a.ScopeType, &a.ScopeID, &a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Assignment{}, fmt.Errorf("permissions: assignment exists: %w", shared.ErrDuplicate)
		}
		return Assignment{}, err
	}
	return a, nil
}

// DeleteAssignment removes a role assignment. Returns ErrNotFound when no row matched.
func (r *Repository) DeleteAssignment(ctx context.Context, userID, roleID uuid.UUID, scopeType ScopeType, scopeID *uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM role_assignments
		 WHERE user_id = $1 AND role_id = $2 AND scope_type = $3 AND scope_id IS NOT DISTINCT FROM $4`,
		userID, roleID, scopeType, scopeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("permissions: assignment: %w", shared.ErrNotFound)
	}
	return nil
}
