// Package registry holds the workflow types approvals can be requested for.
package registry

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// WorkflowType describes one kind of approval workflow. ContextSchema, when
// set, is a JSON Schema the approval context bag must satisfy at creation;
// the service never interprets the context beyond this check.
type WorkflowType struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	ContextSchema map[string]any `json:"context_schema,omitempty"`
}

type Registry struct {
	logger *slog.Logger
	types  map[string]WorkflowType
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger: logger,
		types:  make(map[string]WorkflowType),
	}
}

func (r *Registry) Register(workflowType WorkflowType) {
	r.types[workflowType.ID] = workflowType
}

func (r *Registry) Lookup(id string) (WorkflowType, bool) {
	workflowType, ok := r.types[id]

	return workflowType, ok
}

// Types returns all registered workflow types.
func (r *Registry) Types() []WorkflowType {
	types := make([]WorkflowType, 0, len(r.types))
	for _, workflowType := range r.types {
		types = append(types, workflowType)
	}

	return types
}

// ValidateContext checks the context bag against the workflow type's schema.
// Types without a schema accept any context.
func (r *Registry) ValidateContext(typeID string, contextData map[string]any) error {
	workflowType, ok := r.types[typeID]
	if !ok {
		return fmt.Errorf("workflow type '%s' not registered", typeID)
	}

	if workflowType.ContextSchema == nil {
		return nil
	}

	if contextData == nil {
		contextData = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(workflowType.ContextSchema)
	dataLoader := gojsonschema.NewGoLoader(contextData)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate context: %w", err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			messages = append(messages, resultError.String())
		}

		return fmt.Errorf("context validation failed: %s", strings.Join(messages, "; "))
	}

	return nil
}

// HealthCheck reports whether the registry has workflow types available.
func (r *Registry) HealthCheck() (string, bool) {
	if len(r.types) == 0 {
		return "No workflow types registered", false
	}

	return fmt.Sprintf("%d workflow types registered", len(r.types)), true
}
