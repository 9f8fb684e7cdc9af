// Package models defines the approval domain model shared across the service.
package models

import "time"

type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s ApprovalStatus) IsTerminal() bool {
	return s == ApprovalStatusApproved || s == ApprovalStatusRejected
}

// Approval is a workflow instance requiring sequential sign-offs before a
// domain action (client acceptance, engagement billing, ...) is authorized.
// Status is derived from the steps and never set independently.
type Approval struct {
	ID           string          `json:"id"`
	WorkflowType string          `json:"workflow_type"`
	WorkflowID   string          `json:"workflow_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Status       ApprovalStatus  `json:"status"`
	RequestedBy  string          `json:"requested_by"`
	Context      map[string]any  `json:"context,omitempty"`
	Steps        []*ApprovalStep `json:"steps"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CurrentStep returns the lowest-ordered step still pending, or nil when
// every step has been decided or a rejection terminated the approval.
func (a *Approval) CurrentStep() *ApprovalStep {
	if a.Status.IsTerminal() {
		return nil
	}

	var current *ApprovalStep

	for _, step := range a.Steps {
		if step.Status != StepStatusPending {
			continue
		}

		if current == nil || step.StepOrder < current.StepOrder {
			current = step
		}
	}

	return current
}

// StepByID returns the step with the given ID, or nil when absent.
func (a *Approval) StepByID(stepID string) *ApprovalStep {
	for _, step := range a.Steps {
		if step.ID == stepID {
			return step
		}
	}

	return nil
}

// DeriveStatus computes the approval status as a pure function of its steps:
// rejected as soon as any step is rejected, approved only when all steps are
// approved, pending otherwise.
func (a *Approval) DeriveStatus() ApprovalStatus {
	if len(a.Steps) == 0 {
		return ApprovalStatusPending
	}

	approved := 0

	for _, step := range a.Steps {
		switch step.Status {
		case StepStatusRejected:
			return ApprovalStatusRejected
		case StepStatusApproved:
			approved++
		case StepStatusPending:
		}
	}

	if approved == len(a.Steps) {
		return ApprovalStatusApproved
	}

	return ApprovalStatusPending
}
