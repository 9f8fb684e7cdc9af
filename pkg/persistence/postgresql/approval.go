package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/signoffhq/signoff/pkg/models"
	"github.com/signoffhq/signoff/pkg/persistence"
)

// ApprovalRepository handles approval-related database operations.
type ApprovalRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewApprovalRepository creates a new approval repository.
func NewApprovalRepository(db *sql.DB, logger *slog.Logger) *ApprovalRepository {
	return &ApprovalRepository{db: db, logger: logger}
}

// querier is satisfied by both *sql.DB and *sql.Tx, so step loading can run
// inside or outside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const approvalColumns = `
	id
  , workflow_type
  , workflow_id
  , title
  , description
  , status
  , requested_by
  , context
  , created_at
  , updated_at
`

// Create persists an approval and all of its steps in one transaction.
func (r *ApprovalRepository) Create(ctx context.Context, approval *models.Approval) error {
	contextJSON, err := json.Marshal(approval.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal approval context: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO approvals (
			id, workflow_type, workflow_id, title, description, status,
			requested_by, context, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		approval.ID,
		approval.WorkflowType,
		approval.WorkflowID,
		approval.Title,
		approval.Description,
		approval.Status,
		approval.RequestedBy,
		contextJSON,
		approval.CreatedAt,
		approval.UpdatedAt,
	)
	if err != nil {
		return persistence.NewApprovalError("Create", approval.ID, fmt.Errorf("failed to insert approval: %w", err))
	}

	for _, step := range approval.Steps {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO approval_steps (
				id, approval_id, step_order, assigned_to, status, comment,
				decided_by, decided_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			step.ID,
			approval.ID,
			step.StepOrder,
			nullString(step.AssignedTo),
			step.Status,
			step.Comment,
			nullString(step.DecidedBy),
			step.DecidedAt,
		)
		if err != nil {
			return persistence.NewApprovalError("Create", approval.ID, fmt.Errorf("failed to insert step %d: %w", step.StepOrder, err))
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit approval: %w", err)
	}

	return nil
}

// GetByID returns an approval with its steps, or nil when absent.
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*models.Approval, error) {
	return r.getByID(ctx, r.db, id, false)
}

// GetByStepID returns the approval owning the given step, or nil when the
// step does not exist.
func (r *ApprovalRepository) GetByStepID(ctx context.Context, stepID string) (*models.Approval, error) {
	var approvalID string

	err := r.db.QueryRowContext(ctx,
		"SELECT approval_id FROM approval_steps WHERE id = $1", stepID,
	).Scan(&approvalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewStepError("GetByStepID", stepID, err)
	}

	return r.GetByID(ctx, approvalID)
}

// DecideStep locks the owning approval row, applies the decision, and
// persists the mutated step and approval status in one transaction.
func (r *ApprovalRepository) DecideStep(ctx context.Context, stepID string, decide persistence.DecideFunc) (*models.Approval, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	var approvalID string

	err = tx.QueryRowContext(ctx,
		"SELECT approval_id FROM approval_steps WHERE id = $1", stepID,
	).Scan(&approvalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStepError("DecideStep", stepID, persistence.ErrStepNotFound)
		}

		return nil, persistence.NewStepError("DecideStep", stepID, err)
	}

	approval, err := r.getByID(ctx, tx, approvalID, true)
	if err != nil {
		return nil, err
	}

	if approval == nil {
		return nil, persistence.NewApprovalError("DecideStep", approvalID, persistence.ErrApprovalNotFound)
	}

	step := approval.StepByID(stepID)
	if step == nil {
		return nil, persistence.NewStepError("DecideStep", stepID, persistence.ErrStepNotFound)
	}

	err = decide(approval, step)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE approval_steps
		SET status = $2, comment = $3, decided_by = $4, decided_at = $5
		WHERE id = $1
	`, step.ID, step.Status, step.Comment, nullString(step.DecidedBy), step.DecidedAt)
	if err != nil {
		return nil, persistence.NewStepError("DecideStep", stepID, fmt.Errorf("failed to update step: %w", err))
	}

	approval.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		UPDATE approvals
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, approval.ID, approval.Status, approval.UpdatedAt)
	if err != nil {
		return nil, persistence.NewApprovalError("DecideStep", approval.ID, fmt.Errorf("failed to update approval: %w", err))
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit decision: %w", err)
	}

	return approval, nil
}

// buildListQuery translates list options into a WHERE clause with positional
// arguments. Sort fields are allowlisted before being interpolated.
func (r *ApprovalRepository) buildListQuery(opts persistence.ListApprovalsOptions) (string, []any, error) {
	allowedSorts := []string{"created_at", "updated_at", "title"}
	if !slices.Contains(allowedSorts, opts.SortBy) {
		return "", nil, persistence.NewApprovalError("ListApprovals", "",
			fmt.Errorf("%w: %s", persistence.ErrInvalidSortField, opts.SortBy))
	}

	where := "WHERE 1=1"
	args := []any{}

	addArg := func(clause string, value any) {
		args = append(args, value)
		where += fmt.Sprintf(clause, len(args))
	}

	if opts.WorkflowType != "" {
		addArg(" AND workflow_type = $%d", opts.WorkflowType)
	}

	if opts.Status != nil {
		addArg(" AND status = $%d", *opts.Status)
	}

	if opts.RequestedBy != "" {
		addArg(" AND requested_by = $%d", opts.RequestedBy)
	}

	// Current-step assignee filter: the approval must still be pending (a
	// terminal approval has no current step, even when a rejection left
	// later steps untouched) and the step must be the lowest-ordered one
	// still pending.
	if opts.AssignedTo != "" {
		addArg(` AND approvals.status = 'PENDING' AND EXISTS (
			SELECT 1 FROM approval_steps s
			WHERE s.approval_id = approvals.id
			  AND s.status = 'PENDING'
			  AND s.assigned_to = $%d
			  AND NOT EXISTS (
				SELECT 1 FROM approval_steps lower
				WHERE lower.approval_id = approvals.id
				  AND lower.status = 'PENDING'
				  AND lower.step_order < s.step_order
			  )
		)`, opts.AssignedTo)
	}

	return where, args, nil
}

// ListApprovals returns a filtered, sorted, paginated page of approvals.
func (r *ApprovalRepository) ListApprovals(ctx context.Context, opts persistence.ListApprovalsOptions) (*persistence.ListApprovalsResult, error) {
	where, args, err := r.buildListQuery(opts)
	if err != nil {
		return nil, err
	}

	order := "DESC"
	if opts.SortOrder == "asc" {
		order = "ASC"
	}

	var totalCount int64

	err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM approvals "+where, args...).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count approvals: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM approvals %s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		approvalColumns, where, opts.SortBy, order, len(args)+1, len(args)+2,
	)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query approvals: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	approvals := make([]*models.Approval, 0)

	for rows.Next() {
		approval, err := r.scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}

		approvals = append(approvals, approval)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating approvals: %w", err)
	}

	for _, approval := range approvals {
		err = r.loadSteps(ctx, r.db, approval)
		if err != nil {
			return nil, err
		}
	}

	return &persistence.ListApprovalsResult{
		Approvals:   approvals,
		TotalCount:  totalCount,
		HasNextPage: int64(opts.Offset+len(approvals)) < totalCount,
	}, nil
}

func (r *ApprovalRepository) getByID(ctx context.Context, q querier, id string, forUpdate bool) (*models.Approval, error) {
	query := "SELECT " + approvalColumns + " FROM approvals WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}

	approval, err := r.scanApproval(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewApprovalError("GetByID", id, fmt.Errorf("failed to scan approval: %w", err))
	}

	err = r.loadSteps(ctx, q, approval)
	if err != nil {
		return nil, err
	}

	return approval, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ApprovalRepository) scanApproval(row rowScanner) (*models.Approval, error) {
	var (
		approval    models.Approval
		contextJSON []byte
	)

	err := row.Scan(
		&approval.ID,
		&approval.WorkflowType,
		&approval.WorkflowID,
		&approval.Title,
		&approval.Description,
		&approval.Status,
		&approval.RequestedBy,
		&contextJSON,
		&approval.CreatedAt,
		&approval.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(contextJSON) > 0 {
		err = json.Unmarshal(contextJSON, &approval.Context)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal approval context: %w", err)
		}
	}

	return &approval, nil
}

func (r *ApprovalRepository) loadSteps(ctx context.Context, q querier, approval *models.Approval) error {
	rows, err := q.QueryContext(ctx, `
		SELECT
			id
		  , approval_id
		  , step_order
		  , assigned_to
		  , status
		  , comment
		  , decided_by
		  , decided_at
		FROM approval_steps
		WHERE approval_id = $1
		ORDER BY step_order ASC
	`, approval.ID)
	if err != nil {
		return persistence.NewApprovalError("loadSteps", approval.ID, err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	approval.Steps = make([]*models.ApprovalStep, 0)

	for rows.Next() {
		var (
			step       models.ApprovalStep
			assignedTo sql.NullString
			decidedBy  sql.NullString
			decidedAt  sql.NullTime
		)

		err = rows.Scan(
			&step.ID,
			&step.ApprovalID,
			&step.StepOrder,
			&assignedTo,
			&step.Status,
			&step.Comment,
			&decidedBy,
			&decidedAt,
		)
		if err != nil {
			return persistence.NewApprovalError("loadSteps", approval.ID, fmt.Errorf("failed to scan step: %w", err))
		}

		step.AssignedTo = assignedTo.String
		step.DecidedBy = decidedBy.String

		if decidedAt.Valid {
			decided := decidedAt.Time
			step.DecidedAt = &decided
		}

		approval.Steps = append(approval.Steps, &step)
	}

	err = rows.Err()
	if err != nil {
		return persistence.NewApprovalError("loadSteps", approval.ID, err)
	}

	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
