// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest      = errors.New("invalid request")
	ErrEmptySteps          = errors.New("approval must have at least one step")
	ErrInvalidStepOrder    = errors.New("step orders must be contiguous starting at 1")
	ErrTitleRequired       = errors.New("approval title is required")
	ErrRequesterRequired   = errors.New("requester is required")
	ErrWorkflowIDRequired  = errors.New("workflow ID is required")
	ErrUnknownWorkflowType = errors.New("unknown workflow type")
	ErrInvalidContext      = errors.New("approval context does not match the workflow type schema")
	ErrActorRequired       = errors.New("acting user is required")
	ErrCommentRequired     = errors.New("rejection comment is required")
	ErrInvalidSortField    = errors.New("invalid sort field")
	ErrInvalidSortOrder    = errors.New("invalid sort order")
	ErrInvalidStatus       = errors.New("invalid approval status")

	// State Conflicts (409 Conflict).
	ErrStepNotActionable = errors.New("step not actionable")
	ErrApprovalResolved  = errors.New("approval already resolved")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrEmptySteps) ||
		errors.Is(err, ErrInvalidStepOrder) ||
		errors.Is(err, ErrTitleRequired) ||
		errors.Is(err, ErrRequesterRequired) ||
		errors.Is(err, ErrWorkflowIDRequired) ||
		errors.Is(err, ErrUnknownWorkflowType) ||
		errors.Is(err, ErrInvalidContext) ||
		errors.Is(err, ErrActorRequired) ||
		errors.Is(err, ErrCommentRequired) ||
		errors.Is(err, ErrInvalidSortField) ||
		errors.Is(err, ErrInvalidSortOrder) ||
		errors.Is(err, ErrInvalidStatus)
}

// IsStateError checks if an error is a state conflict that should return HTTP 409.
func IsStateError(err error) bool {
	return errors.Is(err, ErrStepNotActionable) ||
		errors.Is(err, ErrApprovalResolved)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
