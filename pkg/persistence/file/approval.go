package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/signoffhq/signoff/pkg/models"
	"github.com/signoffhq/signoff/pkg/persistence"
)

// ApprovalRepository stores each approval (with its steps) as one JSON file.
// A single mutex serializes decisions, which gives the same per-approval
// atomicity the SQL store gets from row locking.
type ApprovalRepository struct {
	root string
	mu   sync.Mutex
}

// NewApprovalRepository creates a new approval repository.
func NewApprovalRepository(root string) *ApprovalRepository {
	return &ApprovalRepository{root: root}
}

func (ar *ApprovalRepository) dir() string {
	return filepath.Join(ar.root, "approvals")
}

func (ar *ApprovalRepository) path(id string) string {
	return filepath.Join(ar.dir(), id+".json")
}

// Create writes the approval file. The write is all-or-nothing: the file
// holds the approval and every step together.
func (ar *ApprovalRepository) Create(_ context.Context, approval *models.Approval) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	err := os.MkdirAll(ar.dir(), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create approvals directory: %w", err)
	}

	if _, err := os.Stat(ar.path(approval.ID)); err == nil {
		return persistence.NewApprovalError("Create", approval.ID, persistence.ErrApprovalAlreadyExists)
	}

	return ar.write(approval)
}

// GetByID returns the approval with the given ID, or nil when absent.
func (ar *ApprovalRepository) GetByID(_ context.Context, id string) (*models.Approval, error) {
	return ar.read(id)
}

// GetByStepID scans stored approvals for the one owning the step.
func (ar *ApprovalRepository) GetByStepID(ctx context.Context, stepID string) (*models.Approval, error) {
	ids, err := ar.ids()
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		approval, err := ar.read(id)
		if err != nil {
			return nil, err
		}

		if approval != nil && approval.StepByID(stepID) != nil {
			return approval, nil
		}
	}

	return nil, nil
}

// DecideStep applies a decision under the repository mutex and rewrites the
// approval file only when the decision succeeds.
func (ar *ApprovalRepository) DecideStep(ctx context.Context, stepID string, decide persistence.DecideFunc) (*models.Approval, error) {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	approval, err := ar.findByStepLocked(stepID)
	if err != nil {
		return nil, err
	}

	if approval == nil {
		return nil, persistence.NewStepError("DecideStep", stepID, persistence.ErrStepNotFound)
	}

	step := approval.StepByID(stepID)

	err = decide(approval, step)
	if err != nil {
		return nil, err
	}

	approval.UpdatedAt = time.Now().UTC()

	err = ar.write(approval)
	if err != nil {
		return nil, err
	}

	return approval, nil
}

// ListApprovals filters, sorts, and paginates approvals in memory.
func (ar *ApprovalRepository) ListApprovals(ctx context.Context, opts persistence.ListApprovalsOptions) (*persistence.ListApprovalsResult, error) {
	allowedSorts := map[string]bool{
		"created_at": true,
		"updated_at": true,
		"title":      true,
	}
	if !allowedSorts[opts.SortBy] {
		return nil, persistence.NewApprovalError("ListApprovals", "",
			fmt.Errorf("%w: %s", persistence.ErrInvalidSortField, opts.SortBy))
	}

	ids, err := ar.ids()
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Approval, 0, len(ids))

	for _, id := range ids {
		approval, err := ar.read(id)
		if err != nil {
			return nil, err
		}

		if approval == nil {
			continue
		}

		if opts.WorkflowType != "" && approval.WorkflowType != opts.WorkflowType {
			continue
		}

		if opts.Status != nil && approval.Status != *opts.Status {
			continue
		}

		if opts.RequestedBy != "" && approval.RequestedBy != opts.RequestedBy {
			continue
		}

		if opts.AssignedTo != "" {
			current := approval.CurrentStep()
			if current == nil || current.AssignedTo != opts.AssignedTo {
				continue
			}
		}

		filtered = append(filtered, approval)
	}

	ar.sortApprovals(filtered, opts.SortBy, opts.SortOrder)

	totalCount := int64(len(filtered))

	start := opts.Offset
	if start > len(filtered) {
		start = len(filtered)
	}

	end := start + opts.Limit
	if end > len(filtered) {
		end = len(filtered)
	}

	page := filtered[start:end]

	return &persistence.ListApprovalsResult{
		Approvals:   page,
		TotalCount:  totalCount,
		HasNextPage: int64(end) < totalCount,
	}, nil
}

func (ar *ApprovalRepository) sortApprovals(approvals []*models.Approval, sortBy, sortOrder string) {
	sort.SliceStable(approvals, func(i, j int) bool {
		var less bool

		switch sortBy {
		case "title":
			less = approvals[i].Title < approvals[j].Title
		case "updated_at":
			less = approvals[i].UpdatedAt.Before(approvals[j].UpdatedAt)
		default:
			less = approvals[i].CreatedAt.Before(approvals[j].CreatedAt)
		}

		if sortOrder == "asc" {
			return less
		}

		return !less
	})
}

func (ar *ApprovalRepository) ids() ([]string, error) {
	if _, err := os.Stat(ar.dir()); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := fs.Glob(os.DirFS(ar.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list approval files: %w", err)
	}

	ids := make([]string, 0, len(files))
	for _, file := range files {
		ids = append(ids, file[:len(file)-len(".json")])
	}

	return ids, nil
}

func (ar *ApprovalRepository) findByStepLocked(stepID string) (*models.Approval, error) {
	ids, err := ar.ids()
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		approval, err := ar.read(id)
		if err != nil {
			return nil, err
		}

		if approval != nil && approval.StepByID(stepID) != nil {
			return approval, nil
		}
	}

	return nil, nil
}

func (ar *ApprovalRepository) read(id string) (*models.Approval, error) {
	data, err := os.ReadFile(ar.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, persistence.NewApprovalError("read", id, err)
	}

	var approval models.Approval

	err = json.Unmarshal(data, &approval)
	if err != nil {
		return nil, persistence.NewApprovalError("read", id, fmt.Errorf("failed to unmarshal approval: %w", err))
	}

	return &approval, nil
}

func (ar *ApprovalRepository) write(approval *models.Approval) error {
	data, err := json.MarshalIndent(approval, "", "  ")
	if err != nil {
		return persistence.NewApprovalError("write", approval.ID, fmt.Errorf("failed to marshal approval: %w", err))
	}

	err = os.WriteFile(ar.path(approval.ID), data, 0o600)
	if err != nil {
		return persistence.NewApprovalError("write", approval.ID, err)
	}

	return nil
}
