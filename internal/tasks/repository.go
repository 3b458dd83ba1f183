package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cairnhq/cairn/internal/shared"
)

// Repository provides PostgreSQL backed persistence for tasks and projects.
// Every query filters on the active lifecycle state so callers never see
// deleted rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetTask fetches an active task by ID.
func (r *Repository) GetTask(ctx context.Context, id uuid.UUID) (Task, error) {
	var t Task
	err := r.pool.QueryRow(ctx,
		`SELECT id, project_id, title, status, state, created_at, updated_at
		 FROM tasks WHERE id = $1 AND state = 'active'`, id).
		Scan(&t.ID, &t.ProjectID, &t.Title, &t.Status, &t.State, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, fmt.Errorf("task %s: %w", id, shared.ErrNotFound)
	}
	return t, err
}

// LookupTask satisfies the dependency package's task directory port.
func (r *Repository) LookupTask(ctx context.Context, id uuid.UUID) (string, string, error) {
	t, err := r.GetTask(ctx, id)
	if err != nil {
		return "", "", err
	}
	return t.Title, t.Status, nil
}

// GetProject fetches an active project by ID.
func (r *Repository) GetProject(ctx context.Context, id uuid.UUID) (Project, error) {
	var p Project
	err := r.pool.QueryRow(ctx,
		`SELECT id, organization_id, name, state, created_at
		 FROM projects WHERE id = $1 AND state = 'active'`, id).
		Scan(&p.ID, &p.OrganizationID, &p.Name, &p.State, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Project{}, fmt.Errorf("project %s: %w", id, shared.ErrNotFound)
	}
	return p, err
}

// ProjectExists reports whether an active project exists. Satisfies the
// workflow package's project directory port.
func (r *Repository) ProjectExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1 AND state = 'active')`, id).Scan(&exists)
	return exists, err
}

// UpdateTaskStatus persists a status change on an active task.
func (r *Repository) UpdateTaskStatus(ctx context.Context, id uuid.UUID, status string) (Task, error) {
	var t Task
	err := r.pool.QueryRow(ctx,
		`UPDATE tasks SET status = $2, updated_at = NOW()
		 WHERE id = $1 AND state = 'active'
		 RETURNING id, project_id, title, status, state, created_at, updated_at`,
		id, status).
		Scan(&t.ID, &t.ProjectID, &t.Title, &t.Status, &t.State, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, fmt.Errorf("task %s: %w", id, shared.ErrNotFound)
	}
	return t, err
}
