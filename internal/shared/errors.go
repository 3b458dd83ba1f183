package shared

import "errors"

var (
	// ErrNotFound indicates a referenced resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates the request violates a business rule.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate indicates the record already exists.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrPermissionDenied indicates the actor lacks a required permission or role.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
