package tasks

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cairnhq/cairn/internal/permissions"
	"github.com/cairnhq/cairn/internal/shared"
)

type memoryTaskRepo struct {
	tasks map[uuid.UUID]Task
}

func newMemoryTaskRepo() *memoryTaskRepo {
	return &memoryTaskRepo{tasks: make(map[uuid.UUID]Task)}
}

func (r *memoryTaskRepo) addTask(projectID uuid.UUID, title, status string) Task {
	t := Task{ID: uuid.New(), ProjectID: projectID, Title: title, Status: status, State: StateActive, CreatedAt: time.Now()}
	r.tasks[t.ID] = t
	return t
}

func (r *memoryTaskRepo) GetTask(ctx context.Context, id uuid.UUID) (Task, error) {
	t, ok := r.tasks[id]
	if !ok || t.State != StateActive {
		return Task{}, shared.ErrNotFound
	}
	return t, nil
}

func (r *memoryTaskRepo) UpdateTaskStatus(ctx context.Context, id uuid.UUID, status string) (Task, error) {
	t, ok := r.tasks[id]
	if !ok || t.State != StateActive {
		return Task{}, shared.ErrNotFound
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	r.tasks[id] = t
	return t, nil
}

type stubChecker struct {
	allowed   bool
	lastScope *permissions.Scope
}

func (s *stubChecker) CheckPermission(ctx context.Context, userID uuid.UUID, resource, action string, scope *permissions.Scope) (bool, error) {
	s.lastScope = scope
	return s.allowed, nil
}

type stubValidator struct {
	allowed bool
	reason  string
}

func (s *stubValidator) ValidateTransition(ctx context.Context, projectID uuid.UUID, fromStatus, toStatus string, userID uuid.UUID) (bool, string, error) {
	return s.allowed, s.reason, nil
}

func TestChangeStatusHappyPath(t *testing.T) {
	repo := newMemoryTaskRepo()
	projectID := uuid.New()
	task := repo.addTask(projectID, "Ship it", "In Progress")
	checker := &stubChecker{allowed: true}
	svc := NewService(repo, checker, &stubValidator{allowed: true}, nil, nil)

	updated, err := svc.ChangeStatus(context.Background(), uuid.New(), task.ID, "Review")
	if err != nil {
		t.Fatalf("change status: %v", err)
	}
	if updated.Status != "Review" {
		t.Fatalf("expected Review, got %s", updated.Status)
	}
	if checker.lastScope == nil || checker.lastScope.Type != permissions.ScopeProject || checker.lastScope.ID != projectID {
		t.Fatalf("permission check must be project-scoped, got %+v", checker.lastScope)
	}
}

func TestChangeStatusPermissionDenied(t *testing.T) {
	repo := newMemoryTaskRepo()
	task := repo.addTask(uuid.New(), "Ship it", "In Progress")
	svc := NewService(repo, &stubChecker{allowed: false}, &stubValidator{allowed: true}, nil, nil)

	_, err := svc.ChangeStatus(context.Background(), uuid.New(), task.ID, "Review")
	if err == nil || !strings.Contains(err.Error(), shared.ErrPermissionDenied.Error()) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if repo.tasks[task.ID].Status != "In Progress" {
		t.Fatalf("status must be unchanged on denial")
	}
}

func TestChangeStatusWorkflowRejection(t *testing.T) {
	repo := newMemoryTaskRepo()
	task := repo.addTask(uuid.New(), "Ship it", "In Progress")
	svc := NewService(repo, &stubChecker{allowed: true}, &stubValidator{allowed: false, reason: "transition requires one of the roles: Manager"}, nil, nil)

	_, err := svc.ChangeStatus(context.Background(), uuid.New(), task.ID, "Done")
	if err == nil || !strings.Contains(err.Error(), "Manager") {
		t.Fatalf("expected workflow rejection naming roles, got %v", err)
	}
	if repo.tasks[task.ID].Status != "In Progress" {
		t.Fatalf("status must be unchanged on rejection")
	}
}

func TestChangeStatusUnknownTask(t *testing.T) {
	repo := newMemoryTaskRepo()
	svc := NewService(repo, &stubChecker{allowed: true}, &stubValidator{allowed: true}, nil, nil)

	_, err := svc.ChangeStatus(context.Background(), uuid.New(), uuid.New(), "Review")
	if err == nil || !strings.Contains(err.Error(), shared.ErrNotFound.Error()) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestChangeStatusDeletedTaskInvisible(t *testing.T) {
	repo := newMemoryTaskRepo()
	task := repo.addTask(uuid.New(), "Gone", "To Do")
	deleted := repo.tasks[task.ID]
	deleted.State = StateDeleted
	repo.tasks[task.ID] = deleted

	svc := NewService(repo, &stubChecker{allowed: true}, &stubValidator{allowed: true}, nil, nil)
	_, err := svc.ChangeStatus(context.Background(), uuid.New(), task.ID, "Review")
	if err == nil {
		t.Fatalf("deleted task must be invisible")
	}
}
