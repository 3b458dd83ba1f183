package workflow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cairnhq/cairn/internal/shared"
)

type memoryWorkflowRepo struct {
	workflows map[uuid.UUID]Workflow
}

func newMemoryWorkflowRepo() *memoryWorkflowRepo {
	return &memoryWorkflowRepo{workflows: make(map[uuid.UUID]Workflow)}
}

func (r *memoryWorkflowRepo) Create(ctx context.Context, wf Workflow) (Workflow, error) {
	wf.ID = uuid.New()
	wf.CreatedAt = time.Now()
	wf.UpdatedAt = wf.CreatedAt
	if wf.IsDefault {
		r.clearDefaults(wf.ProjectID, wf.ID)
	}
	r.workflows[wf.ID] = wf
	return wf, nil
}

func (r *memoryWorkflowRepo) Update(ctx context.Context, wf Workflow) (Workflow, error) {
	current, ok := r.workflows[wf.ID]
	if !ok {
		return Workflow{}, shared.ErrNotFound
	}
	if wf.IsDefault {
		r.clearDefaults(current.ProjectID, wf.ID)
	}
	wf.ProjectID = current.ProjectID
	wf.CreatedBy = current.CreatedBy
	wf.CreatedAt = current.CreatedAt
	wf.UpdatedAt = time.Now()
	r.workflows[wf.ID] = wf
	return wf, nil
}

func (r *memoryWorkflowRepo) clearDefaults(projectID, except uuid.UUID) {
	for id, other := range r.workflows {
		if other.ProjectID == projectID && id != except && other.IsDefault {
			other.IsDefault = false
			r.workflows[id] = other
		}
	}
}

func (r *memoryWorkflowRepo) GetByID(ctx context.Context, id uuid.UUID) (Workflow, error) {
	wf, ok := r.workflows[id]
	if !ok {
		return Workflow{}, shared.ErrNotFound
	}
	return wf, nil
}

func (r *memoryWorkflowRepo) GetDefaultByProject(ctx context.Context, projectID uuid.UUID) (Workflow, error) {
	for _, wf := range r.workflows {
		if wf.ProjectID == projectID && wf.IsDefault {
			return wf, nil
		}
	}
	return Workflow{}, shared.ErrNotFound
}

func (r *memoryWorkflowRepo) List(ctx context.Context, projectID *uuid.UUID, limit, offset int) ([]Workflow, error) {
	var out []Workflow
	for _, wf := range r.workflows {
		if projectID == nil || wf.ProjectID == *projectID {
			out = append(out, wf)
		}
	}
	return out, nil
}

type stubRoles struct {
	names map[uuid.UUID][]string
}

func (s *stubRoles) RoleNames(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return s.names[userID], nil
}

type stubProjects struct {
	existing map[uuid.UUID]bool
}

func (s *stubProjects) ProjectExists(ctx context.Context, projectID uuid.UUID) (bool, error) {
	return s.existing[projectID], nil
}

func newTestService(repo RepositoryPort, roles *stubRoles, projects *stubProjects) *Service {
	if roles == nil {
		roles = &stubRoles{names: map[uuid.UUID][]string{}}
	}
	if projects == nil {
		projects = &stubProjects{existing: map[uuid.UUID]bool{}}
	}
	return NewService(repo, roles, projects, nil, nil)
}

func TestDefaultGraphAvailableTransitions(t *testing.T) {
	repo := newMemoryWorkflowRepo()
	svc := newTestService(repo, nil, nil)
	ctx := context.Background()
	projectID := uuid.New()
	userID := uuid.New()

	got, err := svc.AvailableTransitions(ctx, projectID, StatusBacklog, userID)
	if err != nil {
		t.Fatalf("available transitions: %v", err)
	}
	if len(got) != 1 || got[0] != StatusToDo {
		t.Fatalf("expected [To Do], got %v", got)
	}

	got, err = svc.AvailableTransitions(ctx, projectID, StatusDone, userID)
	if err != nil {
		t.Fatalf("available transitions: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Done is terminal, got %v", got)
	}

	got, err = svc.AvailableTransitions(ctx, projectID, StatusToDo, userID)
	if err != nil {
		t.Fatalf("available transitions: %v", err)
	}
	if len(got) != 2 || got[0] != StatusInProgress || got[1] != StatusBacklog {
		t.Fatalf("expected [In Progress, Backlog] in declared order, got %v", got)
	}

	got, err = svc.AvailableTransitions(ctx, projectID, "Unknown", userID)
	if err != nil {
		t.Fatalf("available transitions: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("unknown status yields no targets, got %v", got)
	}
}

// Raw validation with no custom workflow always succeeds; the built-in graph
// only restricts enumeration. The asymmetry is intentional.
func TestValidateTransitionWithoutCustomWorkflow(t *testing.T) {
	repo := newMemoryWorkflowRepo()
	svc := newTestService(repo, nil, nil)

	allowed, reason, err := svc.ValidateTransition(context.Background(), uuid.New(), StatusDone, StatusBacklog, uuid.New())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !allowed || reason != "" {
		t.Fatalf("expected unconditional allow, got allowed=%v reason=%q", allowed, reason)
	}
}

func TestValidateTransitionRoleGate(t *testing.T) {
	repo := newMemoryWorkflowRepo()
	projectID := uuid.New()
	manager := uuid.New()
	member := uuid.New()
	roles := &stubRoles{names: map[uuid.UUID][]string{
		manager: {"Manager"},
		member:  {"Member"},
	}}
	projects := &stubProjects{existing: map[uuid.UUID]bool{projectID: true}}
	svc := newTestService(repo, roles, projects)
	ctx := context.Background()

	_, err := svc.CreateWorkflow(ctx, CreateParams{
		ProjectID: projectID,
		Name:      "release gate",
		Statuses:  []string{"Todo", "Done"},
		Transitions: []Transition{
			{FromStatus: "Todo", ToStatus: "Done", AllowedRoles: []string{"Manager"}},
		},
		IsDefault: true,
		CreatedBy: manager,
	})
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}

	allowed, reason, err := svc.ValidateTransition(ctx, projectID, "Todo", "Done", member)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if allowed {
		t.Fatalf("member must not pass a Manager-gated edge")
	}
	if !strings.Contains(reason, "Manager") {
		t.Fatalf("reason must name the required roles, got %q", reason)
	}

	allowed, reason, err = svc.ValidateTransition(ctx, projectID, "Todo", "Done", manager)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !allowed || reason != "" {
		t.Fatalf("manager must pass, got allowed=%v reason=%q", allowed, reason)
	}

	// Enumeration silently omits the gated edge for the member.
	got, err := svc.AvailableTransitions(ctx, projectID, "Todo", member)
	if err != nil {
		t.Fatalf("available transitions: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty list for member, got %v", got)
	}

	got, err = svc.AvailableTransitions(ctx, projectID, "Todo", manager)
	if err != nil {
		t.Fatalf("available transitions: %v", err)
	}
	if len(got) != 1 || got[0] != "Done" {
		t.Fatalf("expected [Done] for manager, got %v", got)
	}
}

func TestValidateTransitionUndefinedEdge(t *testing.T) {
	repo := newMemoryWorkflowRepo()
	projectID := uuid.New()
	projects := &stubProjects{existing: map[uuid.UUID]bool{projectID: true}}
	svc := newTestService(repo, nil, projects)
	ctx := context.Background()

	_, err := svc.CreateWorkflow(ctx, CreateParams{
		ProjectID:   projectID,
		Name:        "strict",
		Statuses:    []string{"Todo", "Doing", "Done"},
		Transitions: []Transition{{FromStatus: "Todo", ToStatus: "Doing"}},
		IsDefault:   true,
		CreatedBy:   uuid.New(),
	})
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}

	allowed, reason, err := svc.ValidateTransition(ctx, projectID, "Todo", "Done", uuid.New())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if allowed {
		t.Fatalf("undefined edge must be rejected")
	}
	if !strings.Contains(reason, "Todo") || !strings.Contains(reason, "Done") {
		t.Fatalf("reason must name the missing edge, got %q", reason)
	}
}

// Workflow transition sets may legitimately contain cycles; statuses can
// move backward.
func TestWorkflowTransitionsMayCycle(t *testing.T) {
	repo := newMemoryWorkflowRepo()
	projectID := uuid.New()
	projects := &stubProjects{existing: map[uuid.UUID]bool{projectID: true}}
	svc := newTestService(repo, nil, projects)
	ctx := context.Background()

	_, err := svc.CreateWorkflow(ctx, CreateParams{
		ProjectID: projectID,
		Name:      "review loop",
		Statuses:  []string{"In Progress", "Review"},
		Transitions: []Transition{
			{FromStatus: "In Progress", ToStatus: "Review"},
			{FromStatus: "Review", ToStatus: "In Progress"},
		},
		IsDefault: true,
		CreatedBy: uuid.New(),
	})
	if err != nil {
		t.Fatalf("cyclic transition set must be accepted: %v", err)
	}

	allowed, _, err := svc.ValidateTransition(ctx, projectID, "Review", "In Progress", uuid.New())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !allowed {
		t.Fatalf("backward movement must be allowed")
	}
}

func TestSingleDefaultInvariant(t *testing.T) {
	repo := newMemoryWorkflowRepo()
	projectID := uuid.New()
	projects := &stubProjects{existing: map[uuid.UUID]bool{projectID: true}}
	svc := newTestService(repo, nil, projects)
	ctx := context.Background()

	first, err := svc.CreateWorkflow(ctx, CreateParams{
		ProjectID:   projectID,
		Name:        "first",
		Statuses:    []string{"Todo"},
		Transitions: nil,
		IsDefault:   true,
		CreatedBy:   uuid.New(),
	})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}

	// Simulate a prior bug that left two defaults behind.
	stray := first
	stray.ID = uuid.New()
	stray.Name = "stray"
	stray.IsDefault = true
	repo.workflows[stray.ID] = stray

	second, err := svc.CreateWorkflow(ctx, CreateParams{
		ProjectID:   projectID,
		Name:        "second",
		Statuses:    []string{"Todo"},
		Transitions: nil,
		IsDefault:   true,
		CreatedBy:   uuid.New(),
	})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	defaults := 0
	for _, wf := range repo.workflows {
		if wf.IsDefault {
			defaults++
			if wf.ID != second.ID {
				t.Fatalf("unexpected default workflow %s", wf.Name)
			}
		}
	}
	if defaults != 1 {
		t.Fatalf("expected exactly one default, got %d", defaults)
	}
}

func TestCreateWorkflowValidation(t *testing.T) {
	repo := newMemoryWorkflowRepo()
	projectID := uuid.New()
	projects := &stubProjects{existing: map[uuid.UUID]bool{projectID: true}}
	svc := newTestService(repo, nil, projects)
	ctx := context.Background()

	cases := []struct {
		name   string
		params CreateParams
	}{
		{"blank name", CreateParams{ProjectID: projectID, Name: "  ", Statuses: []string{"Todo"}}},
		{"no statuses", CreateParams{ProjectID: projectID, Name: "wf"}},
		{"duplicate status", CreateParams{ProjectID: projectID, Name: "wf", Statuses: []string{"Todo", "Todo"}}},
		{"unknown from", CreateParams{ProjectID: projectID, Name: "wf", Statuses: []string{"Todo"}, Transitions: []Transition{{FromStatus: "Nope", ToStatus: "Todo"}}}},
		{"unknown to", CreateParams{ProjectID: projectID, Name: "wf", Statuses: []string{"Todo"}, Transitions: []Transition{{FromStatus: "Todo", ToStatus: "Nope"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateWorkflow(ctx, tc.params); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}

	_, err := svc.CreateWorkflow(ctx, CreateParams{
		ProjectID: uuid.New(), Name: "wf", Statuses: []string{"Todo"},
	})
	if err == nil {
		t.Fatalf("expected not found for missing project")
	}
}

func TestGetProjectWorkflowNoneDefined(t *testing.T) {
	repo := newMemoryWorkflowRepo()
	svc := newTestService(repo, nil, nil)

	wf, err := svc.GetProjectWorkflow(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("get project workflow: %v", err)
	}
	if wf != nil {
		t.Fatalf("expected nil workflow, got %+v", wf)
	}
}

func TestUpdateWorkflowReplacesCollections(t *testing.T) {
	repo := newMemoryWorkflowRepo()
	projectID := uuid.New()
	projects := &stubProjects{existing: map[uuid.UUID]bool{projectID: true}}
	svc := newTestService(repo, nil, projects)
	ctx := context.Background()

	created, err := svc.CreateWorkflow(ctx, CreateParams{
		ProjectID: projectID,
		Name:      "v1",
		Statuses:  []string{"Todo", "Doing", "Done"},
		Transitions: []Transition{
			{FromStatus: "Todo", ToStatus: "Doing"},
			{FromStatus: "Doing", ToStatus: "Done"},
		},
		IsDefault: true,
		CreatedBy: uuid.New(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.UpdateWorkflow(ctx, UpdateParams{
		ID:          created.ID,
		Name:        "v2",
		Statuses:    []string{"Open", "Closed"},
		Transitions: []Transition{{FromStatus: "Open", ToStatus: "Closed"}},
		IsDefault:   true,
		UpdatedBy:   uuid.New(),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated.Statuses) != 2 || len(updated.Transitions) != 1 {
		t.Fatalf("collections must be replaced wholesale, got %+v", updated)
	}
	if updated.Statuses[0] != "Open" {
		t.Fatalf("expected replaced statuses, got %v", updated.Statuses)
	}
}
