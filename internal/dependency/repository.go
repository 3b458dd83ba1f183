package dependency

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

// Repository provides PostgreSQL backed persistence for dependency edges.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert persists a new edge. The unique index on
// (task_id, depends_on_task_id) backstops the duplicate precondition.
func (r *Repository) Insert(ctx context.Context, taskID, dependsOnTaskID uuid.UUID, edgeType EdgeType) (Edge, error) {
	var e Edge
	err := r.pool.QueryRow(ctx,
		`INSERT INTO task_dependencies (id, task_id, depends_on_task_id, type)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, task_id, depends_on_task_id, type, created_at`,
		uuid.New(), taskID, dependsOnTaskID, edgeType).
		Scan(&e.ID, &e.TaskID, &e.DependsOnTaskID, &e.Type, &e.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Edge{}, fmt.Errorf("dependency: edge exists: %w", shared.ErrDuplicate)
		}
		return Edge{}, err
	}
	return e, nil
}

// Exists reports whether the exact ordered edge is present.
func (r *Repository) Exists(ctx context.Context, taskID, dependsOnTaskID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM task_dependencies WHERE task_id = $1 AND depends_on_task_id = $2)`,
		taskID, dependsOnTaskID).Scan(&exists)
	return exists, err
}

// ReachableEdges returns the closure of edges reachable by following
// dependencies from start. A recursive CTE keeps the traversal bounded by
// the stored edge count; the in-memory graph then answers reachability.
func (r *Repository) ReachableEdges(ctx context.Context, start uuid.UUID) ([]Edge, error) {
	rows, err := r.pool.Query(ctx,
		`WITH RECURSIVE closure AS (
			SELECT id, task_id, depends_on_task_id, type, created_at
			FROM task_dependencies
			WHERE task_id = $1
			UNION
			SELECT td.id, td.task_id, td.depends_on_task_id, td.type, td.created_at
			FROM task_dependencies td
			JOIN closure c ON td.task_id = c.depends_on_task_id
		)
		SELECT id, task_id, depends_on_task_id, type, created_at FROM closure`,
		start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEdges(rows)
}

// ListByTask returns the task's outgoing edges enriched with the depended-on
// task's title and status.
func (r *Repository) ListByTask(ctx context.Context, taskID uuid.UUID) ([]EdgeDetail, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT td.id, td.task_id, td.depends_on_task_id, td.type, td.created_at, t.title, t.status
		 FROM task_dependencies td
		 JOIN tasks t ON t.id = td.depends_on_task_id
		 WHERE td.task_id = $1
		 ORDER BY td.created_at`,
		taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var details []EdgeDetail
	for rows.Next() {
		var d EdgeDetail
		if err := rows.Scan(&d.ID, &d.TaskID, &d.DependsOnTaskID, &d.Type, &d.CreatedAt, &d.DependsOnTitle, &d.DependsOnStatus); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// ListDependents returns the incoming edges: tasks that depend on this task,
// enriched with the depending task's title and status.
func (r *Repository) ListDependents(ctx context.Context, taskID uuid.UUID) ([]DependentDetail, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT td.id, td.task_id, td.depends_on_task_id, td.type, td.created_at, t.title, t.status
		 FROM task_dependencies td
		 JOIN tasks t ON t.id = td.task_id
		 WHERE td.depends_on_task_id = $1
		 ORDER BY td.created_at`,
		taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var details []DependentDetail
	for rows.Next() {
		var d DependentDetail
		if err := rows.Scan(&d.ID, &d.TaskID, &d.DependsOnTaskID, &d.Type, &d.CreatedAt, &d.TaskTitle, &d.TaskStatus); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// ListBlocking returns every task this task depends on through a blocks
// edge whose status is not yet terminal.
func (r *Repository) ListBlocking(ctx context.Context, taskID uuid.UUID, terminalStatus string) ([]BlockingTask, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT t.id, t.title, t.status
		 FROM task_dependencies td
		 JOIN tasks t ON t.id = td.depends_on_task_id
		 WHERE td.task_id = $1 AND td.type = 'blocks' AND t.status <> $2
		 ORDER BY td.created_at`,
		taskID, terminalStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var blocking []BlockingTask
	for rows.Next() {
		var b BlockingTask
		if err := rows.Scan(&b.TaskID, &b.Title, &b.Status); err != nil {
			return nil, err
		}
		blocking = append(blocking, b)
	}
	return blocking, rows.Err()
}

// GetByID fetches an edge by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Edge, error) {
	var e Edge
	err := r.pool.QueryRow(ctx,
		`SELECT id, task_id, depends_on_task_id, type, created_at FROM task_dependencies WHERE id = $1`, id).
		Scan(&e.ID, &e.TaskID, &e.DependsOnTaskID, &e.Type, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Edge{}, fmt.Errorf("dependency %s: %w", id, shared.ErrNotFound)
	}
	return e, err
}

// Delete removes an edge unconditionally. Returns ErrNotFound when no row matched.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM task_dependencies WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("dependency %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func collectEdges(rows pgx.Rows) ([]Edge, error) {
	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.ID, &e.TaskID, &e.DependsOnTaskID, &e.Type, &e.CreatedAt); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
