package workflow

import (
	"time"

	"github.com/google/uuid"
)

// Built-in status labels used when a project has no custom workflow.
const (
	StatusBacklog    = "Backlog"
	StatusToDo       = "To Do"
	StatusInProgress = "In Progress"
	StatusReview     = "Review"
	StatusDone       = "Done"
)

// Transition is one directed edge of a workflow. An empty AllowedRoles set
// means the edge is unrestricted.
type Transition struct {
	FromStatus   string   `json:"from_status"`
	ToStatus     string   `json:"to_status"`
	AllowedRoles []string `json:"allowed_roles"`
}

// Workflow is a named, per-project finite-state machine over status labels.
// At most one workflow per project carries IsDefault = true.
type Workflow struct {
	ID          uuid.UUID    `json:"id"`
	ProjectID   uuid.UUID    `json:"project_id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Statuses    []string     `json:"statuses"`
	Transitions []Transition `json:"transitions"`
	IsDefault   bool         `json:"is_default"`
	CreatedBy   uuid.UUID    `json:"created_by"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// defaultTransitions is the fixed built-in graph consulted when a project
// has not opted into a custom workflow. Done is terminal.
var defaultTransitions = map[string][]string{
	StatusBacklog:    {StatusToDo},
	StatusToDo:       {StatusInProgress, StatusBacklog},
	StatusInProgress: {StatusReview, StatusToDo},
	StatusReview:     {StatusDone, StatusInProgress},
	StatusDone:       {},
}

// DefaultTransitionsFrom returns the built-in targets for a status, in
// declaration order. Unknown statuses yield an empty list.
func DefaultTransitionsFrom(status string) []string {
	targets, ok := defaultTransitions[status]
	if !ok {
		return []string{}
	}
	return append([]string{}, targets...)
}
