package registry

import "log/slog"

// NewDefaultRegistry returns a registry with the built-in practice
// management workflow types registered.
func NewDefaultRegistry(logger *slog.Logger) *Registry {
	registry := NewRegistry(logger)

	registry.Register(WorkflowType{
		ID:          "client_acceptance",
		Name:        "Client Acceptance",
		Description: "Partner sign-off before onboarding a new client",
		ContextSchema: map[string]any{
			"type":     "object",
			"required": []any{"client_name"},
			"properties": map[string]any{
				"client_name":  map[string]any{"type": "string", "minLength": 1},
				"partner_code": map[string]any{"type": "string"},
				"risk_rating":  map[string]any{"type": "string"},
			},
		},
	})

	registry.Register(WorkflowType{
		ID:          "engagement_billing",
		Name:        "Engagement Billing",
		Description: "Manager sign-off on engagement fee arrangements",
	})

	registry.Register(WorkflowType{
		ID:          "document_release",
		Name:        "Document Release",
		Description: "Release of vault documents to external parties",
	})

	registry.Register(WorkflowType{
		ID:          "conflict_waiver",
		Name:        "Conflict Waiver",
		Description: "Waiver of an identified conflict of interest",
	})

	return registry
}
