// Package web provides HTTP handlers and REST API endpoints for approval management.
package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/signoffhq/signoff/pkg/models"
	"github.com/signoffhq/signoff/pkg/registry"
	"github.com/signoffhq/signoff/pkg/services"
)

type APIHandlers struct {
	approvalService *services.Approval
	validator       *validator.Validate
	registry        *registry.Registry
	authorize       Authorizer
}

func NewAPIHandlers(
	approvalService *services.Approval,
	validator *validator.Validate,
	registry *registry.Registry,
	authorize Authorizer,
) *APIHandlers {
	if authorize == nil {
		authorize = DefaultAuthorizer
	}

	return &APIHandlers{
		approvalService: approvalService,
		validator:       validator,
		registry:        registry,
		authorize:       authorize,
	}
}

func (h *APIHandlers) GetApprovals(c fiber.Ctx) error {
	req, err := h.parseListApprovalsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.approvalService.ListApprovals(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"approvals":     result.Approvals,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
		"sorting": fiber.Map{
			"sort_by":    req.SortBy,
			"sort_order": req.SortOrder,
		},
	})
}

// parseListApprovalsRequest parses and validates query parameters for listing approvals.
func (h *APIHandlers) parseListApprovalsRequest(c fiber.Ctx) (*services.ListApprovalsRequest, error) {
	req := &services.ListApprovalsRequest{}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	req.WorkflowType = c.Query("workflow_type")
	req.RequestedBy = c.Query("requested_by")
	req.AssignedTo = c.Query("assigned_to")

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.ApprovalStatus(statusStr)
		req.Status = &status
	}

	req.SortBy = c.Query("sort_by")
	req.SortOrder = c.Query("sort_order")

	return req, nil
}

func (h *APIHandlers) CreateApproval(c fiber.Ctx) error {
	var req CreateApprovalRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	steps := make([]services.StepDefinition, 0, len(req.Steps))
	for _, step := range req.Steps {
		steps = append(steps, services.StepDefinition{
			StepOrder:  step.StepOrder,
			AssignedTo: step.AssignedTo,
		})
	}

	created, err := h.approvalService.Create(c.Context(), services.CreateApprovalRequest{
		WorkflowType: req.WorkflowType,
		WorkflowID:   req.WorkflowID,
		Title:        req.Title,
		Description:  req.Description,
		RequestedBy:  req.RequestedBy,
		Context:      req.Context,
		Steps:        steps,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetApproval(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Approval ID is required")
	}

	approval, err := h.approvalService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(approval)
}

func (h *APIHandlers) GetCurrentStep(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Approval ID is required")
	}

	step, err := h.approvalService.CurrentStep(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	// Resolved approvals have no current step.
	if step == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}

	return c.JSON(step)
}

func (h *APIHandlers) ApproveStep(c fiber.Ctx) error {
	return h.decideStep(c, h.approvalService.ApproveStep)
}

func (h *APIHandlers) RejectStep(c fiber.Ctx) error {
	return h.decideStep(c, h.approvalService.RejectStep)
}

type decisionFunc func(ctx context.Context, stepID, actorID, comment string) (*services.DecisionResult, error)

func (h *APIHandlers) decideStep(c fiber.Ctx, decide decisionFunc) error {
	stepID := c.Params("id")
	if stepID == "" {
		return badRequest(c, "Step ID is required")
	}

	actor := c.Get(ActingUserHeader)
	if actor == "" {
		return badRequest(c, ActingUserHeader+" header is required")
	}

	var req DecideStepRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	approval, err := h.approvalService.FetchByStepID(c.Context(), stepID)
	if err != nil {
		return handleServiceError(c, err)
	}

	step := approval.StepByID(stepID)
	if step == nil {
		return notFound(c, "Step not found")
	}

	if !h.authorize(actor, step) {
		return forbidden(c, "Actor is not permitted to decide this step")
	}

	result, err := decide(c.Context(), stepID, actor, req.Comment)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result.Approval)
}

func (h *APIHandlers) GetWorkflowTypes(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"workflow_types": h.registry.Types(),
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()
	repositoryCheck, repOk := h.approvalService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Signoff API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		message = "Signoff API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
