package dependency

import (
	"time"

	"github.com/google/uuid"
)

// EdgeType classifies a dependency edge.
type EdgeType string

const (
	// TypeBlocks means the depended-on task must finish first.
	TypeBlocks EdgeType = "blocks"
	// TypeRelatesTo is an informational link between tasks.
	TypeRelatesTo EdgeType = "relates_to"
)

// Valid reports whether the edge type is one of the known values.
func (t EdgeType) Valid() bool {
	return t == TypeBlocks || t == TypeRelatesTo
}

// Edge is one directed dependency: TaskID depends on DependsOnTaskID.
type Edge struct {
	ID              uuid.UUID `json:"id"`
	TaskID          uuid.UUID `json:"task_id"`
	DependsOnTaskID uuid.UUID `json:"depends_on_task_id"`
	Type            EdgeType  `json:"type"`
	CreatedAt       time.Time `json:"created_at"`
}

// EdgeDetail enriches an edge with the depended-on task's title and status.
// IsBlocked is true iff the edge blocks and the depended-on task has not
// reached the terminal status.
type EdgeDetail struct {
	Edge
	DependsOnTitle  string `json:"depends_on_task_title"`
	DependsOnStatus string `json:"depends_on_task_status"`
	IsBlocked       bool   `json:"is_blocked"`
}

// DependentDetail is the reverse view: an edge enriched with the title and
// status of the task that depends on this one.
type DependentDetail struct {
	Edge
	TaskTitle  string `json:"task_title"`
	TaskStatus string `json:"task_status"`
}

// BlockingTask describes a not-yet-done task blocking another task.
type BlockingTask struct {
	TaskID uuid.UUID `json:"task_id"`
	Title  string    `json:"title"`
	Status string    `json:"status"`
}
