package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cairnhq/cairn/internal/platform/db"
	"github.com/cairnhq/cairn/internal/shared"
)

// Repository provides PostgreSQL backed persistence for workflows.
// Transitions are stored as a jsonb column and replaced wholesale on update.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const workflowColumns = `id, project_id, name, description, statuses, transitions, is_default, created_by, created_at, updated_at`

func scanWorkflow(row pgx.Row) (Workflow, error) {
	var (
		wf       Workflow
		rawTrans []byte
	)
	err := row.Scan(&wf.ID, &wf.ProjectID, &wf.Name, &wf.Description, &wf.Statuses, &rawTrans, &wf.IsDefault, &wf.CreatedBy, &wf.CreatedAt, &wf.UpdatedAt)
	if err != nil {
		return Workflow{}, err
	}
	if len(rawTrans) > 0 {
		if err := json.Unmarshal(rawTrans, &wf.Transitions); err != nil {
			return Workflow{}, fmt.Errorf("workflow: decode transitions: %w", err)
		}
	}
	return wf, nil
}

// Create inserts a workflow. When IsDefault is set, the previous default for
// the project is cleared inside the same transaction.
func (r *Repository) Create(ctx context.Context, wf Workflow) (Workflow, error) {
	rawTrans, err := json.Marshal(wf.Transitions)
	if err != nil {
		return Workflow{}, fmt.Errorf("workflow: encode transitions: %w", err)
	}
	var created Workflow
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if wf.IsDefault {
			if _, err := tx.Exec(ctx, `UPDATE workflows SET is_default = FALSE WHERE project_id = $1 AND is_default`, wf.ProjectID); err != nil {
				return err
			}
		}
		row := tx.QueryRow(ctx,
			`INSERT INTO workflows (id, project_id, name, description, statuses, transitions, is_default, created_by)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING `+workflowColumns,
			uuid.New(), wf.ProjectID, wf.Name, wf.Description, wf.Statuses, rawTrans, wf.IsDefault, wf.CreatedBy)
		var scanErr error
		created, scanErr = scanWorkflow(row)
		return scanErr
	})
	if err != nil {
		return Workflow{}, err
	}
	return created, nil
}

// Update replaces the workflow's name, description, statuses and transitions
// wholesale. Setting IsDefault clears every other default for the project in
// the same transaction, including strays left by earlier bugs.
func (r *Repository) Update(ctx context.Context, wf Workflow) (Workflow, error) {
	rawTrans, err := json.Marshal(wf.Transitions)
	if err != nil {
		return Workflow{}, fmt.Errorf("workflow: encode transitions: %w", err)
	}
	var updated Workflow
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if wf.IsDefault {
			if _, err := tx.Exec(ctx, `UPDATE workflows SET is_default = FALSE WHERE project_id = $1 AND id <> $2 AND is_default`, wf.ProjectID, wf.ID); err != nil {
				return err
			}
		}
		row := tx.QueryRow(ctx,
			`UPDATE workflows
			 SET name = $2, description = $3, statuses = $4, transitions = $5, is_default = $6, updated_at = NOW()
			 WHERE id = $1
			 RETURNING `+workflowColumns,
			wf.ID, wf.Name, wf.Description, wf.Statuses, rawTrans, wf.IsDefault)
		var scanErr error
		updated, scanErr = scanWorkflow(row)
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return fmt.Errorf("workflow %s: %w", wf.ID, shared.ErrNotFound)
		}
		return scanErr
	})
	if err != nil {
		return Workflow{}, err
	}
	return updated, nil
}

// GetByID fetches a workflow by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Workflow, error) {
	wf, err := scanWorkflow(r.pool.QueryRow(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Workflow{}, fmt.Errorf("workflow %s: %w", id, shared.ErrNotFound)
	}
	return wf, err
}

// GetDefaultByProject returns the workflow flagged as default for the
// project, or ErrNotFound when the project has no custom workflow.
func (r *Repository) GetDefaultByProject(ctx context.Context, projectID uuid.UUID) (Workflow, error) {
	wf, err := scanWorkflow(r.pool.QueryRow(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE project_id = $1 AND is_default LIMIT 1`, projectID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Workflow{}, fmt.Errorf("default workflow for project %s: %w", projectID, shared.ErrNotFound)
	}
	return wf, err
}

// List returns workflows, optionally filtered by project, newest first.
func (r *Repository) List(ctx context.Context, projectID *uuid.UUID, limit, offset int) ([]Workflow, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var (
		rows pgx.Rows
		err  error
	)
	if projectID != nil {
		rows, err = r.pool.Query(ctx,
			`SELECT `+workflowColumns+` FROM workflows WHERE project_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			*projectID, limit, offset)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT `+workflowColumns+` FROM workflows ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
			limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, wf)
	}
	return result, rows.Err()
}
