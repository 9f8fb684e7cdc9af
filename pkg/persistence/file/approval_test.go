package file_test

import (
	"context"
	"testing"
	"time"

	"github.com/signoffhq/signoff/pkg/models"
	"github.com/signoffhq/signoff/pkg/persistence"
	"github.com/signoffhq/signoff/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) persistence.ApprovalRepository {
	t.Helper()

	return file.NewPersistence(t.TempDir()).ApprovalRepository()
}

func sampleApproval(id string) *models.Approval {
	now := time.Now().UTC()

	return &models.Approval{
		ID:           id,
		WorkflowType: "engagement_billing",
		WorkflowID:   "eng-104",
		Title:        "FY26 fee arrangement",
		Status:       models.ApprovalStatusPending,
		RequestedBy:  "staff.tan",
		CreatedAt:    now,
		UpdatedAt:    now,
		Steps: []*models.ApprovalStep{
			{ID: id + "-s1", ApprovalID: id, StepOrder: 1, AssignedTo: "manager.lee", Status: models.StepStatusPending},
			{ID: id + "-s2", ApprovalID: id, StepOrder: 2, AssignedTo: "partner.wong", Status: models.StepStatusPending},
		},
	}
}

func TestApprovalRepository_CreateAndGet(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleApproval("ap-1")))

	fetched, err := repo.GetByID(ctx, "ap-1")
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, "FY26 fee arrangement", fetched.Title)
	assert.Len(t, fetched.Steps, 2)
	assert.Equal(t, "manager.lee", fetched.Steps[0].AssignedTo)
}

func TestApprovalRepository_Create_Duplicate(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleApproval("ap-1")))

	err := repo.Create(ctx, sampleApproval("ap-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrApprovalAlreadyExists)
}

func TestApprovalRepository_GetByID_Missing(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)

	fetched, err := repo.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, fetched)
}

func TestApprovalRepository_GetByStepID(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleApproval("ap-1")))
	require.NoError(t, repo.Create(ctx, sampleApproval("ap-2")))

	approval, err := repo.GetByStepID(ctx, "ap-2-s2")
	require.NoError(t, err)
	require.NotNil(t, approval)
	assert.Equal(t, "ap-2", approval.ID)

	approval, err = repo.GetByStepID(ctx, "no-such-step")
	require.NoError(t, err)
	assert.Nil(t, approval)
}

func TestApprovalRepository_DecideStep(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleApproval("ap-1")))

	updated, err := repo.DecideStep(ctx, "ap-1-s1", func(approval *models.Approval, step *models.ApprovalStep) error {
		now := time.Now().UTC()
		step.Status = models.StepStatusApproved
		step.DecidedBy = "manager.lee"
		step.DecidedAt = &now

		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusApproved, updated.Steps[0].Status)

	// The mutation is persisted, not just applied in memory.
	fetched, err := repo.GetByID(ctx, "ap-1")
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusApproved, fetched.Steps[0].Status)
	assert.Equal(t, "manager.lee", fetched.Steps[0].DecidedBy)
}

func TestApprovalRepository_DecideStep_CallbackErrorDiscardsWrite(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleApproval("ap-1")))

	_, err := repo.DecideStep(ctx, "ap-1-s1", func(approval *models.Approval, step *models.ApprovalStep) error {
		step.Status = models.StepStatusApproved

		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	fetched, err := repo.GetByID(ctx, "ap-1")
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusPending, fetched.Steps[0].Status)
}

func TestApprovalRepository_DecideStep_UnknownStep(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)

	_, err := repo.DecideStep(context.Background(), "missing", func(*models.Approval, *models.ApprovalStep) error {
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrStepNotFound)
}

func TestApprovalRepository_ListApprovals(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()

	first := sampleApproval("ap-1")
	second := sampleApproval("ap-2")
	second.Status = models.ApprovalStatusRejected
	second.Steps[0].Status = models.StepStatusRejected
	third := sampleApproval("ap-3")
	third.WorkflowType = "client_acceptance"

	for _, approval := range []*models.Approval{first, second, third} {
		require.NoError(t, repo.Create(ctx, approval))
	}

	pending := models.ApprovalStatusPending

	tests := []struct {
		name        string
		opts        persistence.ListApprovalsOptions
		expectedIDs []string
	}{
		{
			name:        "status filter",
			opts:        persistence.ListApprovalsOptions{Limit: 10, Status: &pending, SortBy: "created_at", SortOrder: "asc"},
			expectedIDs: []string{"ap-1", "ap-3"},
		},
		{
			name:        "workflow type filter",
			opts:        persistence.ListApprovalsOptions{Limit: 10, WorkflowType: "client_acceptance", SortBy: "created_at", SortOrder: "asc"},
			expectedIDs: []string{"ap-3"},
		},
		{
			name:        "current assignee filter skips rejected approvals",
			opts:        persistence.ListApprovalsOptions{Limit: 10, AssignedTo: "manager.lee", SortBy: "created_at", SortOrder: "asc"},
			expectedIDs: []string{"ap-1", "ap-3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := repo.ListApprovals(ctx, tt.opts)
			require.NoError(t, err)

			actualIDs := make([]string, len(result.Approvals))
			for i, approval := range result.Approvals {
				actualIDs[i] = approval.ID
			}

			assert.Equal(t, tt.expectedIDs, actualIDs)
			assert.Equal(t, int64(len(tt.expectedIDs)), result.TotalCount)
		})
	}
}

func TestApprovalRepository_ListApprovals_Pagination(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()

	for _, id := range []string{"ap-1", "ap-2", "ap-3"} {
		require.NoError(t, repo.Create(ctx, sampleApproval(id)))
	}

	result, err := repo.ListApprovals(ctx, persistence.ListApprovalsOptions{
		Limit:     2,
		Offset:    0,
		SortBy:    "created_at",
		SortOrder: "asc",
	})
	require.NoError(t, err)
	assert.Len(t, result.Approvals, 2)
	assert.Equal(t, int64(3), result.TotalCount)
	assert.True(t, result.HasNextPage)

	result, err = repo.ListApprovals(ctx, persistence.ListApprovalsOptions{
		Limit:     2,
		Offset:    2,
		SortBy:    "created_at",
		SortOrder: "asc",
	})
	require.NoError(t, err)
	assert.Len(t, result.Approvals, 1)
	assert.False(t, result.HasNextPage)
}

func TestApprovalRepository_ListApprovals_InvalidSort(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)

	_, err := repo.ListApprovals(context.Background(), persistence.ListApprovalsOptions{
		Limit:  10,
		SortBy: "requested_by",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrInvalidSortField)
}
