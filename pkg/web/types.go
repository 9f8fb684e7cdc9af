// Package web provides HTTP request and response types for the approval API.
package web

// ErrorResponse represents a standardized API error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// StepDefinitionRequest describes one step of a new approval chain.
type StepDefinitionRequest struct {
	StepOrder  int    `json:"step_order"  validate:"required,min=1"`
	AssignedTo string `json:"assigned_to"`
}

// CreateApprovalRequest represents the request body for opening a new approval.
type CreateApprovalRequest struct {
	WorkflowType string                  `json:"workflow_type" validate:"required"`
	WorkflowID   string                  `json:"workflow_id"   validate:"required"`
	Title        string                  `json:"title"         validate:"required,min=3"`
	Description  string                  `json:"description"`
	RequestedBy  string                  `json:"requested_by"  validate:"required"`
	Context      map[string]any          `json:"context,omitempty"`
	Steps        []StepDefinitionRequest `json:"steps"         validate:"required,min=1,dive"`
}

// DecideStepRequest represents the request body for approving or rejecting a step.
// Comment is optional on approval and enforced for rejections by the service layer.
type DecideStepRequest struct {
	Comment string `json:"comment"`
}
