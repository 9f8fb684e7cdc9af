package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signoffhq/signoff/pkg/cache"
	"github.com/signoffhq/signoff/pkg/eventbus"
	"github.com/signoffhq/signoff/pkg/events"
	"github.com/signoffhq/signoff/pkg/models"
	"github.com/signoffhq/signoff/pkg/otelhelper"
	"github.com/signoffhq/signoff/pkg/persistence"
	"github.com/signoffhq/signoff/pkg/registry"
)

var (
	// ErrApprovalNotFound is returned when an approval is not found.
	ErrApprovalNotFound = persistence.ErrApprovalNotFound

	// ErrStepNotFound is returned when a step is not found.
	ErrStepNotFound = persistence.ErrStepNotFound
)

// Approval owns the lifecycle and transition rules of approvals and their
// steps. All step mutation goes through this service; nothing else writes
// step rows.
type Approval struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	cache       cache.Invalidator
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewApproval creates a new approval service.
func NewApproval(
	persistence persistence.Persistence,
	registry *registry.Registry,
	invalidator cache.Invalidator,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Approval {
	return &Approval{
		persistence: persistence,
		registry:    registry,
		cache:       invalidator,
		publisher:   publisher,
		logger:      logger,
		tracer:      otel.Tracer("signoff.services"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (a *Approval) HealthCheck(ctx context.Context) (string, bool) {
	if a.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := a.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// StepDefinition describes one step of a new approval.
type StepDefinition struct {
	StepOrder  int    `json:"step_order"`
	AssignedTo string `json:"assigned_to,omitempty"`
}

// CreateApprovalRequest contains everything needed to open an approval.
type CreateApprovalRequest struct {
	WorkflowType string
	WorkflowID   string
	Title        string
	Description  string
	RequestedBy  string
	Context      map[string]any
	Steps        []StepDefinition
}

// Create validates the request, persists the approval with its steps
// atomically, and emits the requested/assigned events.
func (a *Approval) Create(ctx context.Context, req CreateApprovalRequest) (*models.Approval, error) {
	ctx, span := otelhelper.StartSpan(ctx, a.tracer, "approval.create",
		attribute.String(otelhelper.WorkflowTypeKey, req.WorkflowType),
		attribute.String(otelhelper.WorkflowIDKey, req.WorkflowID),
	)
	defer span.End()

	err := a.validateCreateRequest(req)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	now := time.Now().UTC()

	approval := &models.Approval{
		ID:           uuid.New().String(),
		WorkflowType: req.WorkflowType,
		WorkflowID:   req.WorkflowID,
		Title:        req.Title,
		Description:  req.Description,
		Status:       models.ApprovalStatusPending,
		RequestedBy:  req.RequestedBy,
		Context:      req.Context,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	steps := slices.Clone(req.Steps)
	sort.Slice(steps, func(i, j int) bool { return steps[i].StepOrder < steps[j].StepOrder })

	for _, def := range steps {
		approval.Steps = append(approval.Steps, &models.ApprovalStep{
			ID:         uuid.New().String(),
			ApprovalID: approval.ID,
			StepOrder:  def.StepOrder,
			AssignedTo: def.AssignedTo,
			Status:     models.StepStatusPending,
		})
	}

	err = a.persistence.ApprovalRepository().Create(ctx, approval)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to create approval: %w", err)
	}

	span.SetAttributes(attribute.String(otelhelper.ApprovalIDKey, approval.ID))

	a.publish(ctx, approval.ID, events.ApprovalRequested{
		BaseEvent:   a.baseEvent(events.ApprovalRequestedEvent, approval),
		Title:       approval.Title,
		RequestedBy: approval.RequestedBy,
		StepCount:   len(approval.Steps),
	})
	a.notifyCurrentStep(ctx, approval, false)
	a.invalidate(ctx, approval)

	return approval, nil
}

func (a *Approval) validateCreateRequest(req CreateApprovalRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return ErrTitleRequired
	}

	if strings.TrimSpace(req.RequestedBy) == "" {
		return ErrRequesterRequired
	}

	if strings.TrimSpace(req.WorkflowID) == "" {
		return ErrWorkflowIDRequired
	}

	if len(req.Steps) == 0 {
		return ErrEmptySteps
	}

	orders := make([]int, 0, len(req.Steps))
	for _, def := range req.Steps {
		orders = append(orders, def.StepOrder)
	}

	slices.Sort(orders)

	for i, order := range orders {
		if order != i+1 {
			return NewValidationError(
				"Create",
				"INVALID_STEP_ORDER",
				fmt.Sprintf("step orders must be 1..%d without gaps or duplicates", len(orders)),
				ErrInvalidStepOrder,
			)
		}
	}

	if _, ok := a.registry.Lookup(req.WorkflowType); !ok {
		return NewValidationError(
			"Create",
			"UNKNOWN_WORKFLOW_TYPE",
			fmt.Sprintf("workflow type '%s' is not registered", req.WorkflowType),
			ErrUnknownWorkflowType,
		)
	}

	err := a.registry.ValidateContext(req.WorkflowType, req.Context)
	if err != nil {
		return NewValidationError("Create", "INVALID_CONTEXT", err.Error(), ErrInvalidContext)
	}

	return nil
}

// FetchByID retrieves an approval by its ID.
func (a *Approval) FetchByID(ctx context.Context, id string) (*models.Approval, error) {
	approval, err := a.persistence.ApprovalRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if approval == nil {
		return nil, ErrApprovalNotFound
	}

	return approval, nil
}

// FetchByStepID retrieves the approval owning the given step.
func (a *Approval) FetchByStepID(ctx context.Context, stepID string) (*models.Approval, error) {
	approval, err := a.persistence.ApprovalRepository().GetByStepID(ctx, stepID)
	if err != nil {
		return nil, err
	}

	if approval == nil {
		return nil, ErrStepNotFound
	}

	return approval, nil
}

// CurrentStep returns the lowest-ordered pending step of an approval, or nil
// when the approval is resolved. Side-effect-free.
func (a *Approval) CurrentStep(ctx context.Context, approvalID string) (*models.ApprovalStep, error) {
	approval, err := a.FetchByID(ctx, approvalID)
	if err != nil {
		return nil, err
	}

	return approval.CurrentStep(), nil
}

// DecisionResult is returned by ApproveStep and RejectStep. WorkflowType and
// WorkflowID let callers invalidate caches related to the target entity.
type DecisionResult struct {
	Approval     *models.Approval `json:"approval"`
	WorkflowType string           `json:"workflow_type"`
	WorkflowID   string           `json:"workflow_id"`
}

// ApproveStep marks the current step approved. When the last pending step is
// approved the whole approval becomes approved; otherwise the next step
// becomes current and its assignee is notified. Approving a step that is not
// current fails with a state error and mutates nothing.
func (a *Approval) ApproveStep(ctx context.Context, stepID, actorID, comment string) (*DecisionResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, a.tracer, "approval.approve_step",
		attribute.String(otelhelper.StepIDKey, stepID),
		attribute.String(otelhelper.ActorKey, actorID),
	)
	defer span.End()

	if strings.TrimSpace(actorID) == "" {
		return nil, ErrActorRequired
	}

	var decided *models.ApprovalStep

	approval, err := a.persistence.ApprovalRepository().DecideStep(ctx, stepID,
		func(approval *models.Approval, step *models.ApprovalStep) error {
			err := ensureCurrent(approval, step)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			step.Status = models.StepStatusApproved
			step.Comment = comment
			step.DecidedBy = actorID
			step.DecidedAt = &now

			approval.Status = approval.DeriveStatus()
			decided = step

			return nil
		})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	a.publish(ctx, approval.ID, events.StepApproved{
		BaseEvent: a.baseEvent(events.StepApprovedEvent, approval),
		StepID:    decided.ID,
		StepOrder: decided.StepOrder,
		DecidedBy: actorID,
		Comment:   comment,
	})
	a.afterTransition(ctx, approval)

	return &DecisionResult{
		Approval:     approval,
		WorkflowType: approval.WorkflowType,
		WorkflowID:   approval.WorkflowID,
	}, nil
}

// RejectStep marks the current step rejected and terminates the approval.
// Later steps stay pending as a record of never having been reached. The
// comment is mandatory.
func (a *Approval) RejectStep(ctx context.Context, stepID, actorID, comment string) (*DecisionResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, a.tracer, "approval.reject_step",
		attribute.String(otelhelper.StepIDKey, stepID),
		attribute.String(otelhelper.ActorKey, actorID),
	)
	defer span.End()

	if strings.TrimSpace(actorID) == "" {
		return nil, ErrActorRequired
	}

	if strings.TrimSpace(comment) == "" {
		return nil, ErrCommentRequired
	}

	var decided *models.ApprovalStep

	approval, err := a.persistence.ApprovalRepository().DecideStep(ctx, stepID,
		func(approval *models.Approval, step *models.ApprovalStep) error {
			err := ensureCurrent(approval, step)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			step.Status = models.StepStatusRejected
			step.Comment = comment
			step.DecidedBy = actorID
			step.DecidedAt = &now

			approval.Status = models.ApprovalStatusRejected
			decided = step

			return nil
		})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	a.publish(ctx, approval.ID, events.StepRejected{
		BaseEvent: a.baseEvent(events.StepRejectedEvent, approval),
		StepID:    decided.ID,
		StepOrder: decided.StepOrder,
		DecidedBy: actorID,
		Comment:   comment,
	})
	a.afterTransition(ctx, approval)

	return &DecisionResult{
		Approval:     approval,
		WorkflowType: approval.WorkflowType,
		WorkflowID:   approval.WorkflowID,
	}, nil
}

// ensureCurrent enforces the one-current-step invariant inside the store's
// atomic decision callback.
func ensureCurrent(approval *models.Approval, step *models.ApprovalStep) error {
	if approval.Status.IsTerminal() {
		return ErrApprovalResolved
	}

	if step.Status.IsTerminal() {
		return ErrStepNotActionable
	}

	current := approval.CurrentStep()
	if current == nil || current.ID != step.ID {
		return ErrStepNotActionable
	}

	return nil
}

// ListApprovalsRequest contains options for listing approvals.
type ListApprovalsRequest struct {
	// Pagination
	Limit  int `validate:"min=0,max=100"`
	Offset int `validate:"min=0"`

	// Filtering
	WorkflowType string
	Status       *models.ApprovalStatus
	RequestedBy  string
	AssignedTo   string

	// Sorting
	SortBy    string
	SortOrder string
}

// ListApprovalsResponse contains the result of listing approvals.
type ListApprovalsResponse struct {
	Approvals   []*models.Approval `json:"approvals"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

// ListApprovals retrieves approvals with filtering, sorting, and pagination.
func (a *Approval) ListApprovals(ctx context.Context, req ListApprovalsRequest) (*ListApprovalsResponse, error) {
	err := a.validateListApprovalsRequest(&req)
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	opts := persistence.ListApprovalsOptions{
		Limit:        req.Limit,
		Offset:       req.Offset,
		WorkflowType: req.WorkflowType,
		Status:       req.Status,
		RequestedBy:  req.RequestedBy,
		AssignedTo:   req.AssignedTo,
		SortBy:       req.SortBy,
		SortOrder:    req.SortOrder,
	}

	result, err := a.persistence.ApprovalRepository().ListApprovals(ctx, opts)
	if err != nil {
		if persistence.IsInvalidSortField(err) {
			return nil, ErrInvalidSortField
		}

		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}

	return &ListApprovalsResponse{
		Approvals:   result.Approvals,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
	}, nil
}

func (a *Approval) validateListApprovalsRequest(req *ListApprovalsRequest) error {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	if req.Limit > 100 {
		req.Limit = 100
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	if req.SortBy == "" {
		req.SortBy = "created_at"
	}

	if req.SortOrder == "" {
		req.SortOrder = "desc"
	}

	allowedSorts := []string{"created_at", "updated_at", "title"}
	if !slices.Contains(allowedSorts, req.SortBy) {
		return NewValidationError(
			"ListApprovals",
			"INVALID_SORT_FIELD",
			fmt.Sprintf("invalid sort field '%s', allowed: %s", req.SortBy, strings.Join(allowedSorts, ", ")),
			ErrInvalidSortField,
		)
	}

	if req.SortOrder != "asc" && req.SortOrder != "desc" {
		return NewValidationError(
			"ListApprovals",
			"INVALID_SORT_ORDER",
			fmt.Sprintf("invalid sort order '%s', allowed: asc, desc", req.SortOrder),
			ErrInvalidSortOrder,
		)
	}

	if req.Status != nil {
		allowedStatuses := []models.ApprovalStatus{
			models.ApprovalStatusPending,
			models.ApprovalStatusApproved,
			models.ApprovalStatusRejected,
		}

		if !slices.Contains(allowedStatuses, *req.Status) {
			return NewValidationError(
				"ListApprovals",
				"INVALID_STATUS",
				fmt.Sprintf("invalid status '%s'", *req.Status),
				ErrInvalidStatus,
			)
		}
	}

	return nil
}

// NotifyPending re-emits a step-assigned event for the approval's current
// step. Used by the reminder loop for approvals pending past a threshold.
func (a *Approval) NotifyPending(ctx context.Context, approval *models.Approval) {
	a.notifyCurrentStep(ctx, approval, true)
}

// afterTransition emits follow-up events and invalidates caches once a
// decision has committed. Failures are logged and suppressed: the
// authoritative state change already happened.
func (a *Approval) afterTransition(ctx context.Context, approval *models.Approval) {
	if approval.Status.IsTerminal() {
		a.publish(ctx, approval.ID, events.ApprovalResolved{
			BaseEvent:   a.baseEvent(events.ApprovalResolvedEvent, approval),
			Status:      approval.Status,
			RequestedBy: approval.RequestedBy,
		})
	} else {
		a.notifyCurrentStep(ctx, approval, false)
	}

	a.invalidate(ctx, approval)
}

func (a *Approval) notifyCurrentStep(ctx context.Context, approval *models.Approval, reminder bool) {
	current := approval.CurrentStep()
	if current == nil {
		return
	}

	a.publish(ctx, approval.ID, events.StepAssigned{
		BaseEvent:  a.baseEvent(events.StepAssignedEvent, approval),
		StepID:     current.ID,
		StepOrder:  current.StepOrder,
		AssignedTo: current.AssignedTo,
		Title:      approval.Title,
		Reminder:   reminder,
	})
}

func (a *Approval) publish(ctx context.Context, key string, event eventbus.Event) {
	if a.publisher == nil {
		return
	}

	err := a.publisher.Publish(ctx, key, event)
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to publish approval event",
			"event_type", event.GetType(), "approval_id", key, "error", err)
	}
}

func (a *Approval) invalidate(ctx context.Context, approval *models.Approval) {
	if a.cache == nil {
		return
	}

	err := a.cache.InvalidateApprovals(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to invalidate approvals cache", "error", err)
	}

	err = a.cache.InvalidateWorkflow(ctx, approval.WorkflowType, approval.WorkflowID)
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to invalidate workflow cache",
			"workflow_type", approval.WorkflowType, "workflow_id", approval.WorkflowID, "error", err)
	}
}

func (a *Approval) baseEvent(eventType events.EventType, approval *models.Approval) events.BaseEvent {
	return events.BaseEvent{
		ID:           uuid.New().String(),
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		ApprovalID:   approval.ID,
		WorkflowType: approval.WorkflowType,
		WorkflowID:   approval.WorkflowID,
	}
}
