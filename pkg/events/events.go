// Package events defines event types for approval lifecycle notifications.
package events

import (
	"time"

	"github.com/signoffhq/signoff/pkg/models"
)

type EventType string

// Topic carries every approval lifecycle event.
const Topic = "signoff.approvals"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ApprovalRequestedEvent EventType = "approval.requested"
	StepAssignedEvent      EventType = "approval.step.assigned"
	StepApprovedEvent      EventType = "approval.step.approved"
	StepRejectedEvent      EventType = "approval.step.rejected"
	ApprovalResolvedEvent  EventType = "approval.resolved"
)

type BaseEvent struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	ApprovalID   string    `json:"approval_id"`
	WorkflowType string    `json:"workflow_type"`
	WorkflowID   string    `json:"workflow_id"`
}

type ApprovalRequested struct {
	BaseEvent

	Title       string `json:"title"`
	RequestedBy string `json:"requested_by"`
	StepCount   int    `json:"step_count"`
}

func (e ApprovalRequested) GetType() EventType {
	return ApprovalRequestedEvent
}

// StepAssigned fires whenever a step becomes current, including on creation
// and on reminder re-notification. AssignedTo is empty for fallback-assigned
// steps; consumers resolve the actual recipient.
type StepAssigned struct {
	BaseEvent

	StepID     string `json:"step_id"`
	StepOrder  int    `json:"step_order"`
	AssignedTo string `json:"assigned_to,omitempty"`
	Title      string `json:"title"`
	Reminder   bool   `json:"reminder,omitempty"`
}

func (e StepAssigned) GetType() EventType {
	return StepAssignedEvent
}

type StepApproved struct {
	BaseEvent

	StepID    string `json:"step_id"`
	StepOrder int    `json:"step_order"`
	DecidedBy string `json:"decided_by"`
	Comment   string `json:"comment,omitempty"`
}

func (e StepApproved) GetType() EventType {
	return StepApprovedEvent
}

type StepRejected struct {
	BaseEvent

	StepID    string `json:"step_id"`
	StepOrder int    `json:"step_order"`
	DecidedBy string `json:"decided_by"`
	Comment   string `json:"comment"`
}

func (e StepRejected) GetType() EventType {
	return StepRejectedEvent
}

// ApprovalResolved fires once, when the approval reaches a terminal status.
type ApprovalResolved struct {
	BaseEvent

	Status      models.ApprovalStatus `json:"status"`
	RequestedBy string                `json:"requested_by"`
}

func (e ApprovalResolved) GetType() EventType {
	return ApprovalResolvedEvent
}
