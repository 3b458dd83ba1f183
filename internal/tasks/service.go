package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cairnhq/cairn/internal/permissions"
	"github.com/cairnhq/cairn/internal/shared"
)

// RepositoryPort defines data access methods for tasks.
type RepositoryPort interface {
	GetTask(ctx context.Context, id uuid.UUID) (Task, error)
	UpdateTaskStatus(ctx context.Context, id uuid.UUID, status string) (Task, error)
}

// PermissionChecker gates mutations on the actor's resolved permissions.
type PermissionChecker interface {
	CheckPermission(ctx context.Context, userID uuid.UUID, resource, action string, scope *permissions.Scope) (bool, error)
}

// TransitionValidator decides whether a status change is legal under the
// project's workflow.
type TransitionValidator interface {
	ValidateTransition(ctx context.Context, projectID uuid.UUID, fromStatus, toStatus string, userID uuid.UUID) (bool, string, error)
}

// Service composes the permission gate and the workflow gate around task
// status changes. This is the caller-side composition: the three core
// components never call each other directly.
type Service struct {
	repo        RepositoryPort
	permissions PermissionChecker
	workflow    TransitionValidator
	audit       shared.Recorder
	logger      *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, perms PermissionChecker, wf TransitionValidator, audit shared.Recorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, permissions: perms, workflow: wf, audit: audit, logger: logger}
}

// GetTask returns an active task.
func (s *Service) GetTask(ctx context.Context, id uuid.UUID) (Task, error) {
	return s.repo.GetTask(ctx, id)
}

// ChangeStatus moves a task to a new status. The actor must hold the
// task:update permission in the task's project scope and the transition must
// be legal under the project's workflow.
//
// Blocking dependencies are deliberately not consulted here; callers that
// want to stop a blocked task from closing query the dependency service
// themselves.
func (s *Service) ChangeStatus(ctx context.Context, actorID, taskID uuid.UUID, toStatus string) (Task, error) {
	if toStatus == "" {
		return Task{}, fmt.Errorf("tasks: target status required: %w", shared.ErrValidation)
	}
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return Task{}, err
	}

	allowed, err := s.permissions.CheckPermission(ctx, actorID, "task", "update", &permissions.Scope{
		Type: permissions.ScopeProject,
		ID:   task.ProjectID,
	})
	if err != nil {
		return Task{}, err
	}
	if !allowed {
		return Task{}, fmt.Errorf("tasks: update on task %s: %w", taskID, shared.ErrPermissionDenied)
	}

	ok, reason, err := s.workflow.ValidateTransition(ctx, task.ProjectID, task.Status, toStatus, actorID)
	if err != nil {
		return Task{}, err
	}
	if !ok {
		return Task{}, fmt.Errorf("tasks: %s: %w", reason, shared.ErrValidation)
	}

	updated, err := s.repo.UpdateTaskStatus(ctx, taskID, toStatus)
	if err != nil {
		return Task{}, err
	}
	shared.RecordBestEffort(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  actorID,
		Action:   "status_change",
		Entity:   "task",
		EntityID: taskID.String(),
		Meta: map[string]any{
			"from": task.Status,
			"to":   toStatus,
		},
	})
	return updated, nil
}
