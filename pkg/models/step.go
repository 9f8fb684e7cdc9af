package models

import "time"

type StepStatus string

const (
	StepStatusPending  StepStatus = "PENDING"
	StepStatusApproved StepStatus = "APPROVED"
	StepStatusRejected StepStatus = "REJECTED"
)

// IsTerminal reports whether the step has been decided.
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusApproved || s == StepStatusRejected
}

// ApprovalStep is one sign-off unit within an approval. AssignedTo may be
// empty, which signals a fallback-assignment rule resolved by the caller
// before acting on the step.
type ApprovalStep struct {
	ID         string     `json:"id"`
	ApprovalID string     `json:"approval_id"`
	StepOrder  int        `json:"step_order"`
	AssignedTo string     `json:"assigned_to,omitempty"`
	Status     StepStatus `json:"status"`
	Comment    string     `json:"comment,omitempty"`
	DecidedBy  string     `json:"decided_by,omitempty"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
}
