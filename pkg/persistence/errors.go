// Package persistence provides standardized error types for store operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrApprovalNotFound indicates no approval exists for the identifier.
	ErrApprovalNotFound = errors.New("approval not found")

	// ErrStepNotFound indicates no step exists for the identifier.
	ErrStepNotFound = errors.New("approval step not found")

	// ErrApprovalAlreadyExists indicates an approval with the same
	// identifier already exists.
	ErrApprovalAlreadyExists = errors.New("approval already exists")

	// ErrInvalidSortField indicates an unsupported sort column was
	// requested.
	ErrInvalidSortField = errors.New("invalid sort field")
)

// ApprovalError wraps approval-related store errors with operation context.
type ApprovalError struct {
	Op         string // Operation being performed (e.g., "GetByID", "DecideStep")
	ApprovalID string // Approval ID if applicable
	StepID     string // Step ID if applicable
	Err        error  // Underlying error
}

func (e *ApprovalError) Error() string {
	target := e.ApprovalID
	if e.StepID != "" {
		target = fmt.Sprintf("step %s", e.StepID)
	}

	return fmt.Sprintf("%s operation failed for approval %s: %v", e.Op, target, e.Err)
}

func (e *ApprovalError) Unwrap() error {
	return e.Err
}

func (e *ApprovalError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewApprovalError creates a new approval error with context.
func NewApprovalError(op, approvalID string, err error) *ApprovalError {
	return &ApprovalError{
		Op:         op,
		ApprovalID: approvalID,
		Err:        err,
	}
}

// NewStepError creates a new approval error for step-scoped operations.
func NewStepError(op, stepID string, err error) *ApprovalError {
	return &ApprovalError{
		Op:     op,
		StepID: stepID,
		Err:    err,
	}
}

// IsApprovalNotFound checks if an error indicates a missing approval.
func IsApprovalNotFound(err error) bool {
	return errors.Is(err, ErrApprovalNotFound)
}

// IsStepNotFound checks if an error indicates a missing step.
func IsStepNotFound(err error) bool {
	return errors.Is(err, ErrStepNotFound)
}

// IsInvalidSortField checks if an error indicates an unsupported sort field.
func IsInvalidSortField(err error) bool {
	return errors.Is(err, ErrInvalidSortField)
}
