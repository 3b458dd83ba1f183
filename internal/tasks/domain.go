package tasks

import (
	"time"

	"github.com/google/uuid"
)

// LifecycleState is the explicit record state enforced at the repository
// boundary. Deleted rows are invisible to every service.
type LifecycleState string

const (
	StateActive  LifecycleState = "active"
	StateDeleted LifecycleState = "deleted"
)

// Task is a work item.
type Task struct {
	ID        uuid.UUID      `json:"id"`
	ProjectID uuid.UUID      `json:"project_id"`
	Title     string         `json:"title"`
	Status    string         `json:"status"`
	State     LifecycleState `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Project groups tasks under an organization.
type Project struct {
	ID             uuid.UUID      `json:"id"`
	OrganizationID uuid.UUID      `json:"organization_id"`
	Name           string         `json:"name"`
	State          LifecycleState `json:"-"`
	CreatedAt      time.Time      `json:"created_at"`
}
