package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/cairnhq/cairn/internal/shared"
)

// RepositoryPort defines data access methods for workflows.
type RepositoryPort interface {
	Create(ctx context.Context, wf Workflow) (Workflow, error)
	Update(ctx context.Context, wf Workflow) (Workflow, error)
	GetByID(ctx context.Context, id uuid.UUID) (Workflow, error)
	GetDefaultByProject(ctx context.Context, projectID uuid.UUID) (Workflow, error)
	List(ctx context.Context, projectID *uuid.UUID, limit, offset int) ([]Workflow, error)
}

// RoleSource resolves the role names a user currently holds.
type RoleSource interface {
	RoleNames(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// ProjectDirectory answers project existence for workflow creation.
type ProjectDirectory interface {
	ProjectExists(ctx context.Context, projectID uuid.UUID) (bool, error)
}

// Service drives per-project workflow state machines.
type Service struct {
	repo     RepositoryPort
	roles    RoleSource
	projects ProjectDirectory
	audit    shared.Recorder
	logger   *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, roles RoleSource, projects ProjectDirectory, audit shared.Recorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, roles: roles, projects: projects, audit: audit, logger: logger}
}

// CreateParams carries the fields of a new workflow.
type CreateParams struct {
	ProjectID   uuid.UUID
	Name        string
	Description string
	Statuses    []string
	Transitions []Transition
	IsDefault   bool
	CreatedBy   uuid.UUID
}

// CreateWorkflow creates a custom workflow for a project. Setting IsDefault
// atomically clears any previous default.
func (s *Service) CreateWorkflow(ctx context.Context, params CreateParams) (Workflow, error) {
	if err := validateDefinition(params.Name, params.Statuses, params.Transitions); err != nil {
		return Workflow{}, err
	}
	exists, err := s.projects.ProjectExists(ctx, params.ProjectID)
	if err != nil {
		return Workflow{}, err
	}
	if !exists {
		return Workflow{}, fmt.Errorf("workflow: project %s: %w", params.ProjectID, shared.ErrNotFound)
	}
	created, err := s.repo.Create(ctx, Workflow{
		ProjectID:   params.ProjectID,
		Name:        strings.TrimSpace(params.Name),
		Description: strings.TrimSpace(params.Description),
		Statuses:    params.Statuses,
		Transitions: params.Transitions,
		IsDefault:   params.IsDefault,
		CreatedBy:   params.CreatedBy,
	})
	if err != nil {
		return Workflow{}, err
	}
	shared.RecordBestEffort(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  params.CreatedBy,
		Action:   "create",
		Entity:   "workflow",
		EntityID: created.ID.String(),
		Meta:     map[string]any{"project_id": created.ProjectID.String(), "is_default": created.IsDefault},
	})
	return created, nil
}

// UpdateParams carries a wholesale replacement of a workflow's definition.
type UpdateParams struct {
	ID          uuid.UUID
	Name        string
	Description string
	Statuses    []string
	Transitions []Transition
	IsDefault   bool
	UpdatedBy   uuid.UUID
}

// UpdateWorkflow replaces the workflow definition. Collections are replaced
// wholesale, never merged.
func (s *Service) UpdateWorkflow(ctx context.Context, params UpdateParams) (Workflow, error) {
	if err := validateDefinition(params.Name, params.Statuses, params.Transitions); err != nil {
		return Workflow{}, err
	}
	current, err := s.repo.GetByID(ctx, params.ID)
	if err != nil {
		return Workflow{}, err
	}
	updated, err := s.repo.Update(ctx, Workflow{
		ID:          current.ID,
		ProjectID:   current.ProjectID,
		Name:        strings.TrimSpace(params.Name),
		Description: strings.TrimSpace(params.Description),
		Statuses:    params.Statuses,
		Transitions: params.Transitions,
		IsDefault:   params.IsDefault,
	})
	if err != nil {
		return Workflow{}, err
	}
	shared.RecordBestEffort(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  params.UpdatedBy,
		Action:   "update",
		Entity:   "workflow",
		EntityID: updated.ID.String(),
		Meta:     map[string]any{"project_id": updated.ProjectID.String(), "is_default": updated.IsDefault},
	})
	return updated, nil
}

// GetProjectWorkflow returns the project's default workflow, or nil when the
// project relies on the built-in graph.
func (s *Service) GetProjectWorkflow(ctx context.Context, projectID uuid.UUID) (*Workflow, error) {
	wf, err := s.repo.GetDefaultByProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wf, nil
}

// ListWorkflows lists workflows with an optional project filter.
func (s *Service) ListWorkflows(ctx context.Context, projectID *uuid.UUID, limit, offset int) ([]Workflow, error) {
	return s.repo.List(ctx, projectID, limit, offset)
}

// ValidateTransition decides whether the user may move a work item from one
// status to another in the given project. With no custom workflow every
// transition is allowed; the built-in graph restricts enumeration only.
// The returned reason is empty when the transition is allowed.
func (s *Service) ValidateTransition(ctx context.Context, projectID uuid.UUID, fromStatus, toStatus string, userID uuid.UUID) (bool, string, error) {
	wf, err := s.GetProjectWorkflow(ctx, projectID)
	if err != nil {
		return false, "", err
	}
	if wf == nil {
		return true, "", nil
	}

	var match *Transition
	for i := range wf.Transitions {
		if wf.Transitions[i].FromStatus == fromStatus && wf.Transitions[i].ToStatus == toStatus {
			match = &wf.Transitions[i]
			break
		}
	}
	if match == nil {
		return false, fmt.Sprintf("transition from %q to %q is not defined in workflow %q", fromStatus, toStatus, wf.Name), nil
	}
	if len(match.AllowedRoles) == 0 {
		return true, "", nil
	}

	names, err := s.roles.RoleNames(ctx, userID)
	if err != nil {
		return false, "", err
	}
	if hasAnyRole(names, match.AllowedRoles) {
		return true, "", nil
	}
	return false, fmt.Sprintf("transition requires one of the roles: %s", strings.Join(match.AllowedRoles, ", ")), nil
}

// AvailableTransitions enumerates the statuses the user can move to from the
// current status. Transitions the user cannot execute are omitted, not
// reported as errors.
func (s *Service) AvailableTransitions(ctx context.Context, projectID uuid.UUID, currentStatus string, userID uuid.UUID) ([]string, error) {
	wf, err := s.GetProjectWorkflow(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return DefaultTransitionsFrom(currentStatus), nil
	}

	names, err := s.roles.RoleNames(ctx, userID)
	if err != nil {
		return nil, err
	}
	available := []string{}
	for _, t := range wf.Transitions {
		if t.FromStatus != currentStatus {
			continue
		}
		if len(t.AllowedRoles) == 0 || hasAnyRole(names, t.AllowedRoles) {
			available = append(available, t.ToStatus)
		}
	}
	return available, nil
}

func hasAnyRole(held, allowed []string) bool {
	for _, h := range held {
		for _, a := range allowed {
			if h == a {
				return true
			}
		}
	}
	return false
}

func validateDefinition(name string, statuses []string, transitions []Transition) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("workflow: name required: %w", shared.ErrValidation)
	}
	if len(statuses) == 0 {
		return fmt.Errorf("workflow: at least one status required: %w", shared.ErrValidation)
	}
	known := make(map[string]struct{}, len(statuses))
	for _, st := range statuses {
		if strings.TrimSpace(st) == "" {
			return fmt.Errorf("workflow: blank status label: %w", shared.ErrValidation)
		}
		if _, dup := known[st]; dup {
			return fmt.Errorf("workflow: duplicate status %q: %w", st, shared.ErrValidation)
		}
		known[st] = struct{}{}
	}
	for _, t := range transitions {
		if _, ok := known[t.FromStatus]; !ok {
			return fmt.Errorf("workflow: transition references unknown status %q: %w", t.FromStatus, shared.ErrValidation)
		}
		if _, ok := known[t.ToStatus]; !ok {
			return fmt.Errorf("workflow: transition references unknown status %q: %w", t.ToStatus, shared.ErrValidation)
		}
	}
	return nil
}
