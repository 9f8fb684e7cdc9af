package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gofiber/fiber/v3"
	"github.com/signoffhq/signoff/pkg/cache"
	"github.com/signoffhq/signoff/pkg/channels/gochannel"
	"github.com/signoffhq/signoff/pkg/eventbus"
	"github.com/signoffhq/signoff/pkg/models"
	"github.com/signoffhq/signoff/pkg/persistence/file"
	"github.com/signoffhq/signoff/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	api := NewAPI(
		slog.Default(),
		file.NewPersistence(t.TempDir()),
		eventbus.NewWatermillEventBus(pub, sub),
		cache.NewNoop(),
	)

	return api.App()
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Signoff API", string(body))
}

func TestAPI_Liveness(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_CORS_Headers(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodOptions, "/approvals", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestAPI_Integration_ApprovalLifecycle(t *testing.T) {
	app := setupTestApp(t)

	createBody, err := json.Marshal(web.CreateApprovalRequest{
		WorkflowType: "engagement_billing",
		WorkflowID:   "eng-104",
		Title:        "FY26 fee arrangement",
		RequestedBy:  "staff.tan",
		Steps: []web.StepDefinitionRequest{
			{StepOrder: 1, AssignedTo: "manager.lee"},
			{StepOrder: 2, AssignedTo: "partner.wong"},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/approvals", bytes.NewBuffer(createBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var approval models.Approval
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&approval))
	require.Len(t, approval.Steps, 2)

	// Each assignee signs off in order.
	for i, actor := range []string{"manager.lee", "partner.wong"} {
		req = httptest.NewRequest(http.MethodPost, "/steps/"+approval.Steps[i].ID+"/approve", nil)
		req.Header.Set(web.ActingUserHeader, actor)

		resp, err = app.Test(req)
		require.NoError(t, err)

		defer func() { _ = resp.Body.Close() }()

		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/approvals/"+approval.ID, nil)
	req.Header.Set("Accept", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var resolved models.Approval
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&resolved))
	assert.Equal(t, models.ApprovalStatusApproved, resolved.Status)

	req = httptest.NewRequest(http.MethodGet, "/approvals/"+approval.ID+"/current-step", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
