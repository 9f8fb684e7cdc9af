// Package persistence provides the data storage abstraction for approvals.
package persistence

import (
	"context"

	"github.com/signoffhq/signoff/pkg/models"
)

type Persistence interface {
	ApprovalRepository() ApprovalRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// DecideFunc applies a decision to a loaded approval and its target step.
// It runs while the approval is exclusively held by the store, so the
// check-then-update sequence it performs is atomic per approval. Returning
// an error aborts the update and discards all mutations.
type DecideFunc func(approval *models.Approval, step *models.ApprovalStep) error

type ApprovalRepository interface {
	// Create persists an approval together with all of its steps as a
	// single atomic unit.
	Create(ctx context.Context, approval *models.Approval) error

	// GetByID returns the approval with steps ordered by step_order, or
	// nil when no approval exists for the ID.
	GetByID(ctx context.Context, id string) (*models.Approval, error)

	// GetByStepID returns the approval owning the given step, or nil when
	// the step does not exist.
	GetByStepID(ctx context.Context, stepID string) (*models.Approval, error)

	// DecideStep loads the approval owning stepID, holds it exclusively,
	// invokes decide, and persists the mutated step and approval status in
	// the same transaction. The returned approval reflects the committed
	// state.
	DecideStep(ctx context.Context, stepID string, decide DecideFunc) (*models.Approval, error)

	// ListApprovals returns a filtered, sorted, paginated page of
	// approvals.
	ListApprovals(ctx context.Context, opts ListApprovalsOptions) (*ListApprovalsResult, error)
}

// ListApprovalsOptions contains filtering, sorting, and pagination options
// for listing approvals. AssignedTo matches approvals whose current step is
// assigned to the given user.
type ListApprovalsOptions struct {
	Limit  int
	Offset int

	WorkflowType string
	Status       *models.ApprovalStatus
	RequestedBy  string
	AssignedTo   string

	SortBy    string
	SortOrder string
}

// ListApprovalsResult contains a page of approvals with pagination metadata.
type ListApprovalsResult struct {
	Approvals   []*models.Approval
	TotalCount  int64
	HasNextPage bool
}
