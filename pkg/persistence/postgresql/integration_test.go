package postgresql_test

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/signoffhq/signoff/pkg/models"
	"github.com/signoffhq/signoff/pkg/persistence"
	"github.com/signoffhq/signoff/pkg/persistence/postgresql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests run against a real PostgreSQL instance addressed by
// SIGNOFF_TEST_DATABASE_URL and are skipped otherwise.
func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context) {
	t.Helper()

	databaseURL := os.Getenv("SIGNOFF_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("SIGNOFF_TEST_DATABASE_URL not set, skipping PostgreSQL integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	t.Cleanup(cancel)

	dropDB(ctx, t, databaseURL)

	p, err := postgresql.NewPersistence(ctx, slog.Default(), databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		err := p.Close(ctx)
		if err != nil {
			t.Logf("Failed to close persistence: %v", err)
		}
	})

	return p, ctx
}

func dropDB(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{"approval_steps", "approvals", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func persistedApproval(t *testing.T, ctx context.Context, repo persistence.ApprovalRepository, assignees ...string) *models.Approval {
	t.Helper()

	now := time.Now().UTC()
	approval := &models.Approval{
		ID:           uuid.New().String(),
		WorkflowType: "engagement_billing",
		WorkflowID:   "eng-104",
		Title:        "FY26 fee arrangement",
		Status:       models.ApprovalStatusPending,
		RequestedBy:  "staff.tan",
		Context:      map[string]any{"engagement": "eng-104"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	for i, assignee := range assignees {
		approval.Steps = append(approval.Steps, &models.ApprovalStep{
			ID:         uuid.New().String(),
			ApprovalID: approval.ID,
			StepOrder:  i + 1,
			AssignedTo: assignee,
			Status:     models.StepStatusPending,
		})
	}

	require.NoError(t, repo.Create(ctx, approval))

	return approval
}

var errAlreadyDecided = errors.New("step already decided")

func approveDecision(actor string) persistence.DecideFunc {
	return func(approval *models.Approval, step *models.ApprovalStep) error {
		if step.Status != models.StepStatusPending {
			return errAlreadyDecided
		}

		now := time.Now().UTC()
		step.Status = models.StepStatusApproved
		step.DecidedBy = actor
		step.DecidedAt = &now
		approval.Status = approval.DeriveStatus()

		return nil
	}
}

func TestApprovalRepositoryIntegration_Lifecycle(t *testing.T) {
	p, ctx := setupTestDB(t)
	repo := p.ApprovalRepository()

	approval := persistedApproval(t, ctx, repo, "manager.lee", "partner.wong")

	fetched, err := repo.GetByID(ctx, approval.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, approval.Title, fetched.Title)
	assert.Equal(t, "eng-104", fetched.Context["engagement"])
	require.Len(t, fetched.Steps, 2)
	assert.Equal(t, 1, fetched.Steps[0].StepOrder)

	byStep, err := repo.GetByStepID(ctx, approval.Steps[1].ID)
	require.NoError(t, err)
	require.NotNil(t, byStep)
	assert.Equal(t, approval.ID, byStep.ID)

	updated, err := repo.DecideStep(ctx, approval.Steps[0].ID, approveDecision("manager.lee"))
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusPending, updated.Status)
	assert.Equal(t, models.StepStatusApproved, updated.Steps[0].Status)

	updated, err = repo.DecideStep(ctx, approval.Steps[1].ID, approveDecision("partner.wong"))
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, updated.Status)

	// The committed state survives a re-read.
	fetched, err = repo.GetByID(ctx, approval.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, fetched.Status)
	assert.Equal(t, "partner.wong", fetched.Steps[1].DecidedBy)
	assert.NotNil(t, fetched.Steps[1].DecidedAt)
}

func TestApprovalRepositoryIntegration_DecideStep_ConcurrentDecisions(t *testing.T) {
	p, ctx := setupTestDB(t)
	repo := p.ApprovalRepository()

	approval := persistedApproval(t, ctx, repo, "manager.lee", "partner.wong")
	stepID := approval.Steps[0].ID

	const attempts = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)

	for range attempts {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := repo.DecideStep(ctx, stepID, approveDecision("manager.lee"))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	// The row lock serializes the check-then-update, so exactly one
	// concurrent decision can observe the step as pending.
	assert.Equal(t, 1, succeeded)

	fetched, err := repo.GetByID(ctx, approval.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusApproved, fetched.Steps[0].Status)
}

func TestApprovalRepositoryIntegration_ListApprovals_AssigneeInbox(t *testing.T) {
	p, ctx := setupTestDB(t)
	repo := p.ApprovalRepository()

	active := persistedApproval(t, ctx, repo, "manager.lee", "partner.wong")

	rejected := persistedApproval(t, ctx, repo, "manager.lee", "partner.wong")
	_, err := repo.DecideStep(ctx, rejected.Steps[0].ID, func(approval *models.Approval, step *models.ApprovalStep) error {
		now := time.Now().UTC()
		step.Status = models.StepStatusRejected
		step.DecidedBy = "manager.lee"
		step.DecidedAt = &now
		approval.Status = models.ApprovalStatusRejected

		return nil
	})
	require.NoError(t, err)

	listOpts := func(assignee string) persistence.ListApprovalsOptions {
		return persistence.ListApprovalsOptions{
			Limit:      10,
			AssignedTo: assignee,
			SortBy:     "created_at",
			SortOrder:  "asc",
		}
	}

	// Step 1 of the active approval is manager.lee's only inbox entry; the
	// rejected approval's untouched pending step 2 must not surface for
	// partner.wong.
	result, err := repo.ListApprovals(ctx, listOpts("manager.lee"))
	require.NoError(t, err)
	require.Len(t, result.Approvals, 1)
	assert.Equal(t, active.ID, result.Approvals[0].ID)

	result, err = repo.ListApprovals(ctx, listOpts("partner.wong"))
	require.NoError(t, err)
	assert.Empty(t, result.Approvals)
	assert.Equal(t, int64(0), result.TotalCount)

	// Once step 1 is approved, step 2 enters partner.wong's inbox.
	_, err = repo.DecideStep(ctx, active.Steps[0].ID, approveDecision("manager.lee"))
	require.NoError(t, err)

	result, err = repo.ListApprovals(ctx, listOpts("partner.wong"))
	require.NoError(t, err)
	require.Len(t, result.Approvals, 1)
	assert.Equal(t, active.ID, result.Approvals[0].ID)
}
