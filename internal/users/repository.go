package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cairnhq/cairn/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the user directory.
// Deleted users are filtered at this boundary.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, first_name, last_name, organization_id, is_active, password_hash, created_at`

// Resolve fetches an active user by ID.
func (r *Repository) Resolve(ctx context.Context, id uuid.UUID) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND state = 'active'`, id).
		Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.OrganizationID, &u.IsActive, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, fmt.Errorf("user %s: %w", id, shared.ErrNotFound)
	}
	return u, err
}

// FindByEmail fetches an active user by email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 AND state = 'active'`, email).
		Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.OrganizationID, &u.IsActive, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, fmt.Errorf("user %s: %w", email, shared.ErrNotFound)
	}
	return u, err
}
