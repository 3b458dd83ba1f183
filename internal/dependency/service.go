package dependency

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cairnhq/cairn/internal/shared"
	"github.com/cairnhq/cairn/internal/workflow"
)

// RepositoryPort defines data access methods for dependency edges.
type RepositoryPort interface {
	Insert(ctx context.Context, taskID, dependsOnTaskID uuid.UUID, edgeType EdgeType) (Edge, error)
	Exists(ctx context.Context, taskID, dependsOnTaskID uuid.UUID) (bool, error)
	ReachableEdges(ctx context.Context, start uuid.UUID) ([]Edge, error)
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]EdgeDetail, error)
	ListDependents(ctx context.Context, taskID uuid.UUID) ([]DependentDetail, error)
	ListBlocking(ctx context.Context, taskID uuid.UUID, terminalStatus string) ([]BlockingTask, error)
	GetByID(ctx context.Context, id uuid.UUID) (Edge, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// TaskDirectory answers task lookups for precondition checks and enrichment.
// Implementations must treat deleted tasks as absent.
type TaskDirectory interface {
	LookupTask(ctx context.Context, id uuid.UUID) (title, status string, err error)
}

// Service maintains dependency-graph integrity between work items.
type Service struct {
	repo   RepositoryPort
	tasks  TaskDirectory
	locker *shared.Locker
	audit  shared.Recorder
	logger *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, tasks TaskDirectory, locker *shared.Locker, audit shared.Recorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, tasks: tasks, locker: locker, audit: audit, logger: logger}
}

// CreateDependency inserts a directed edge after the integrity checks pass,
// in order: both tasks exist, no self-reference, no duplicate, no cycle.
// Every edge type participates in the cycle check, relates_to included; the
// restriction is inherited behavior, kept deliberately.
//
// The cycle check and the insert are serialized per source task through the
// best-effort locker. Without redis the check-then-act window remains; the
// unique index still rejects duplicate edges, but a cross-request cycle can
// slip through between check and insert.
func (s *Service) CreateDependency(ctx context.Context, actorID, taskID, dependsOnTaskID uuid.UUID, edgeType EdgeType) (Edge, error) {
	if !edgeType.Valid() {
		return Edge{}, fmt.Errorf("dependency: type %q: %w", edgeType, shared.ErrValidation)
	}
	if _, _, err := s.tasks.LookupTask(ctx, taskID); err != nil {
		return Edge{}, fmt.Errorf("dependency: task %s: %w", taskID, err)
	}
	if _, _, err := s.tasks.LookupTask(ctx, dependsOnTaskID); err != nil {
		return Edge{}, fmt.Errorf("dependency: depends-on task %s: %w", dependsOnTaskID, err)
	}
	if taskID == dependsOnTaskID {
		return Edge{}, fmt.Errorf("dependency: task cannot depend on itself: %w", shared.ErrValidation)
	}

	release, err := s.locker.Acquire(ctx, shared.TaskGraphLockKey(taskID), 5*time.Second)
	if err != nil {
		return Edge{}, err
	}
	defer release()

	exists, err := s.repo.Exists(ctx, taskID, dependsOnTaskID)
	if err != nil {
		return Edge{}, err
	}
	if exists {
		return Edge{}, fmt.Errorf("dependency: edge already exists: %w", shared.ErrValidation)
	}

	edges, err := s.repo.ReachableEdges(ctx, dependsOnTaskID)
	if err != nil {
		return Edge{}, err
	}
	if NewGraph(edges).WouldCycle(taskID, dependsOnTaskID) {
		return Edge{}, fmt.Errorf("dependency: circular dependency detected: %w", shared.ErrValidation)
	}

	edge, err := s.repo.Insert(ctx, taskID, dependsOnTaskID, edgeType)
	if err != nil {
		return Edge{}, err
	}
	shared.RecordBestEffort(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  actorID,
		Action:   "create",
		Entity:   "task_dependency",
		EntityID: edge.ID.String(),
		Meta: map[string]any{
			"task_id":            taskID.String(),
			"depends_on_task_id": dependsOnTaskID.String(),
			"type":               string(edgeType),
		},
	})
	return edge, nil
}

// GetTaskDependencies returns the task's outgoing edges enriched with the
// depended-on task's title, status, and derived blocked flag.
func (s *Service) GetTaskDependencies(ctx context.Context, taskID uuid.UUID) ([]EdgeDetail, error) {
	if _, _, err := s.tasks.LookupTask(ctx, taskID); err != nil {
		return nil, fmt.Errorf("dependency: task %s: %w", taskID, err)
	}
	details, err := s.repo.ListByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	for i := range details {
		details[i].IsBlocked = details[i].Type == TypeBlocks && details[i].DependsOnStatus != workflow.StatusDone
	}
	return details, nil
}

// GetTaskDependents returns the reverse view: edges from tasks that depend
// on the given task.
func (s *Service) GetTaskDependents(ctx context.Context, taskID uuid.UUID) ([]DependentDetail, error) {
	if _, _, err := s.tasks.LookupTask(ctx, taskID); err != nil {
		return nil, fmt.Errorf("dependency: task %s: %w", taskID, err)
	}
	return s.repo.ListDependents(ctx, taskID)
}

// CheckBlockingTasks lists the not-yet-done tasks this task depends on via
// blocks edges. Enforcement at transition time is left to the caller.
func (s *Service) CheckBlockingTasks(ctx context.Context, taskID uuid.UUID) ([]BlockingTask, error) {
	return s.repo.ListBlocking(ctx, taskID, workflow.StatusDone)
}

// DeleteDependency removes an edge unconditionally.
func (s *Service) DeleteDependency(ctx context.Context, actorID, edgeID uuid.UUID) error {
	edge, err := s.repo.GetByID(ctx, edgeID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, edgeID); err != nil {
		return err
	}
	shared.RecordBestEffort(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  actorID,
		Action:   "delete",
		Entity:   "task_dependency",
		EntityID: edgeID.String(),
		Meta: map[string]any{
			"task_id":            edge.TaskID.String(),
			"depends_on_task_id": edge.DependsOnTaskID.String(),
		},
	})
	return nil
}
