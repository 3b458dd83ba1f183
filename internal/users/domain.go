package users

import (
	"time"

	"github.com/google/uuid"
)

// User is a directory entry for an account.
type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	OrganizationID uuid.UUID `json:"organization_id"`
	IsActive       bool      `json:"is_active"`
	PasswordHash   string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}
