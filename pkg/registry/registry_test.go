package registry

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Lookup(t *testing.T) {
	t.Parallel()

	registry := NewDefaultRegistry(slog.Default())

	workflowType, ok := registry.Lookup("client_acceptance")
	require.True(t, ok)
	assert.Equal(t, "Client Acceptance", workflowType.Name)

	_, ok = registry.Lookup("unknown_type")
	assert.False(t, ok)
}

func TestRegistry_ValidateContext(t *testing.T) {
	t.Parallel()

	registry := NewDefaultRegistry(slog.Default())

	tests := []struct {
		name        string
		typeID      string
		contextData map[string]any
		wantErr     string
	}{
		{
			name:        "valid context",
			typeID:      "client_acceptance",
			contextData: map[string]any{"client_name": "Acme Holdings", "partner_code": "P-104"},
		},
		{
			name:        "missing required field",
			typeID:      "client_acceptance",
			contextData: map[string]any{"partner_code": "P-104"},
			wantErr:     "client_name",
		},
		{
			name:        "wrong field type",
			typeID:      "client_acceptance",
			contextData: map[string]any{"client_name": 42},
			wantErr:     "client_name",
		},
		{
			name:        "schemaless type accepts anything",
			typeID:      "engagement_billing",
			contextData: map[string]any{"fee": 12500.0},
		},
		{
			name:    "nil context fails required schema",
			typeID:  "client_acceptance",
			wantErr: "client_name",
		},
		{
			name:    "unregistered type",
			typeID:  "unknown_type",
			wantErr: "not registered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := registry.ValidateContext(tt.typeID, tt.contextData)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestRegistry_HealthCheck(t *testing.T) {
	t.Parallel()

	empty := NewRegistry(slog.Default())
	_, ok := empty.HealthCheck()
	assert.False(t, ok)

	message, ok := NewDefaultRegistry(slog.Default()).HealthCheck()
	assert.True(t, ok)
	assert.Contains(t, message, "workflow types registered")
}
