package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeStepApproval() *Approval {
	return &Approval{
		ID:           "apv-1",
		WorkflowType: "client_acceptance",
		WorkflowID:   "client-42",
		Status:       ApprovalStatusPending,
		Steps: []*ApprovalStep{
			{ID: "s1", ApprovalID: "apv-1", StepOrder: 1, AssignedTo: "partner-a", Status: StepStatusPending},
			{ID: "s2", ApprovalID: "apv-1", StepOrder: 2, AssignedTo: "partner-b", Status: StepStatusPending},
			{ID: "s3", ApprovalID: "apv-1", StepOrder: 3, Status: StepStatusPending},
		},
	}
}

func TestApproval_CurrentStep(t *testing.T) {
	t.Parallel()

	approval := threeStepApproval()

	current := approval.CurrentStep()
	require.NotNil(t, current)
	assert.Equal(t, "s1", current.ID)

	approval.Steps[0].Status = StepStatusApproved

	current = approval.CurrentStep()
	require.NotNil(t, current)
	assert.Equal(t, "s2", current.ID)
}

func TestApproval_CurrentStep_OutOfOrderSlice(t *testing.T) {
	t.Parallel()

	// Resolution depends on StepOrder, not on slice position.
	approval := threeStepApproval()
	approval.Steps[0], approval.Steps[2] = approval.Steps[2], approval.Steps[0]

	current := approval.CurrentStep()
	require.NotNil(t, current)
	assert.Equal(t, 1, current.StepOrder)
}

func TestApproval_CurrentStep_Resolved(t *testing.T) {
	t.Parallel()

	approval := threeStepApproval()
	for _, step := range approval.Steps {
		step.Status = StepStatusApproved
	}

	approval.Status = ApprovalStatusApproved

	assert.Nil(t, approval.CurrentStep())
}

func TestApproval_DeriveStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		statuses []StepStatus
		expected ApprovalStatus
	}{
		{"all pending", []StepStatus{StepStatusPending, StepStatusPending}, ApprovalStatusPending},
		{"partially approved", []StepStatus{StepStatusApproved, StepStatusPending}, ApprovalStatusPending},
		{"all approved", []StepStatus{StepStatusApproved, StepStatusApproved}, ApprovalStatusApproved},
		{"rejection wins", []StepStatus{StepStatusApproved, StepStatusRejected}, ApprovalStatusRejected},
		{"rejection with later pending", []StepStatus{StepStatusRejected, StepStatusPending}, ApprovalStatusRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			approval := &Approval{}
			for i, status := range tt.statuses {
				approval.Steps = append(approval.Steps, &ApprovalStep{StepOrder: i + 1, Status: status})
			}

			assert.Equal(t, tt.expected, approval.DeriveStatus())
		})
	}
}

func TestApproval_DeriveStatus_NoSteps(t *testing.T) {
	t.Parallel()

	approval := &Approval{}
	assert.Equal(t, ApprovalStatusPending, approval.DeriveStatus())
}

func TestApproval_StepByID(t *testing.T) {
	t.Parallel()

	approval := threeStepApproval()

	step := approval.StepByID("s2")
	require.NotNil(t, step)
	assert.Equal(t, 2, step.StepOrder)

	assert.Nil(t, approval.StepByID("missing"))
}

func TestStepStatus_IsTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, StepStatusPending.IsTerminal())
	assert.True(t, StepStatusApproved.IsTerminal())
	assert.True(t, StepStatusRejected.IsTerminal())
}
