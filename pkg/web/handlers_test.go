package web_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/nodeloom/loom/pkg/compile"
	"github.com/nodeloom/loom/pkg/jobs"
	"github.com/nodeloom/loom/pkg/models"
	"github.com/nodeloom/loom/pkg/persistence"
	"github.com/nodeloom/loom/pkg/protocol"
	"github.com/nodeloom/loom/pkg/registry"
	"github.com/nodeloom/loom/pkg/schedule"
	"github.com/nodeloom/loom/pkg/web"
	"github.com/nodeloom/loom/pkg/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	app         *fiber.App
	persistence persistence.Persistence
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	p := persistence.NewMemoryPersistence()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	echo := func(_ context.Context, params map[string]any) (any, error) {
		return params, nil
	}
	runJobs := jobs.NewMemoryStore(echo, log)
	compileJobs := jobs.NewMemoryStore(echo, log)

	dispatcher := protocol.DispatcherFunc(func(_ context.Context, _ string, _ map[string]any) (string, error) {
		return "exec-test", nil
	})
	gateway := webhook.NewGateway(p, dispatcher, log)
	scheduler := schedule.NewScheduler(dispatcher, log)
	compiler := compile.NewCompiler(registry.NewRegistry(log))
	validate := validator.New(validator.WithRequiredStructEnabled())

	handlers := web.NewAPIHandlers(p, gateway, runJobs, compileJobs, compiler, scheduler, validate)

	app := fiber.New()

	g := app.Group("/graphs")
	g.Get("/", handlers.GetGraphs)
	g.Post("/", handlers.CreateGraph)
	g.Get("/:id", handlers.GetGraph)
	g.Delete("/:id", handlers.DeleteGraph)
	g.Post("/:id/validate", handlers.ValidateGraph)
	g.Get("/:id/plan", handlers.CompilePreview)
	g.Post("/:id/webhooks", handlers.CreateWebhook)
	g.Post("/:id/schedules", handlers.CreateSchedule)

	app.Post("/runs", handlers.SubmitRun)
	app.Get("/runs/:id", handlers.GetRun)
	app.Post("/compile", handlers.SubmitCompile)
	app.Get("/compile/:id", handlers.GetCompile)
	app.All("/webhooks/:key", handlers.HandleWebhook)

	return &testEnv{app: app, persistence: p}
}

func (e *testEnv) saveGraph(t *testing.T, id string) *models.Graph {
	t.Helper()

	g := &models.Graph{
		ID:     id,
		Name:   "Test Graph",
		Active: true,
		Nodes: []*models.Node{
			{ID: "a", Kind: models.NodeKindPassthrough, Label: "A"},
			{ID: "b", Kind: models.NodeKindPassthrough, Label: "B"},
		},
		Edges: []*models.Edge{
			{From: "a", To: "b"},
		},
	}
	require.NoError(t, e.persistence.GraphRepository().SaveGraph(context.Background(), g))

	return g
}

func (e *testEnv) saveWebhook(t *testing.T, graphID, method, secret string) *models.Webhook {
	t.Helper()

	registration, err := models.NewWebhook(graphID, method, secret, nil)
	require.NoError(t, err)
	require.NoError(t, e.persistence.WebhookRepository().SaveWebhook(context.Background(), registration))

	return registration
}

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	return req
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, out))
}

func TestCreateGraph(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
	}{
		{
			name: "valid graph",
			requestBody: web.CreateGraphRequest{
				Name: "ETL Pipeline",
				Nodes: []*models.Node{
					{ID: "a", Kind: models.NodeKindPassthrough, Label: "A"},
				},
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing name",
			requestBody:    web.CreateGraphRequest{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "name too short",
			requestBody: web.CreateGraphRequest{
				Name: "ab",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "structurally invalid graph",
			requestBody: web.CreateGraphRequest{
				Name: "Broken Graph",
				Nodes: []*models.Node{
					{ID: "a", Kind: models.NodeKindPassthrough, Label: "A"},
				},
				Edges: []*models.Edge{
					{From: "a", To: "ghost"},
				},
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := setupTestApp(t)

			resp, err := env.app.Test(jsonRequest(t, http.MethodPost, "/graphs/", tt.requestBody))
			require.NoError(t, err)

			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusCreated {
				var created models.Graph

				decodeBody(t, resp, &created)
				assert.NotEmpty(t, created.ID)
				assert.True(t, created.Active)
			}
		})
	}
}

func TestCreateGraph_InvalidJSON(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/graphs/", bytes.NewReader([]byte("not-json")))
	req.Header.Set("Content-Type", "application/json")

	resp, err := env.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetGraph(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.saveGraph(t, "graph-1")

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/graphs/graph-1", nil))
	require.NoError(t, err)

	var g models.Graph

	decodeBody(t, resp, &g)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "graph-1", g.ID)
	assert.Len(t, g.Nodes, 2)
}

func TestGetGraph_NotFound(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/graphs/missing", nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteGraph(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.saveGraph(t, "graph-1")

	resp, err := env.app.Test(httptest.NewRequest(http.MethodDelete, "/graphs/graph-1", nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/graphs/graph-1", nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestValidateGraphEndpoint(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.saveGraph(t, "graph-1")

	resp, err := env.app.Test(httptest.NewRequest(http.MethodPost, "/graphs/graph-1/validate", nil))
	require.NoError(t, err)

	var result struct {
		Valid  bool     `json:"valid"`
		Errors []string `json:"errors"`
	}

	decodeBody(t, resp, &result)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestCompilePreview(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.saveGraph(t, "graph-1")

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/graphs/graph-1/plan", nil))
	require.NoError(t, err)

	var plan compile.Plan

	decodeBody(t, resp, &plan)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "graph-1", plan.GraphID)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "a", plan.Steps[0].NodeID)
}

func TestSubmitRun_AndPoll(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.saveGraph(t, "graph-1")

	resp, err := env.app.Test(jsonRequest(t, http.MethodPost, "/runs", web.SubmitRunRequest{
		GraphID: "graph-1",
		Input:   map[string]any{"seed": 1},
	}))
	require.NoError(t, err)

	var submitted struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}

	decodeBody(t, resp, &submitted)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, submitted.JobID)
	assert.Equal(t, string(models.JobStatusPending), submitted.Status)

	assert.Eventually(t, func() bool {
		resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/runs/"+submitted.JobID, nil))
		if err != nil {
			return false
		}

		var polled web.JobResponse

		decodeBody(t, resp, &polled)

		return polled.Status == string(models.JobStatusCompleted)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSubmitRun_GraphNotFound(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	resp, err := env.app.Test(jsonRequest(t, http.MethodPost, "/runs", web.SubmitRunRequest{
		GraphID: "missing",
	}))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmitRun_MissingGraphID(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	resp, err := env.app.Test(jsonRequest(t, http.MethodPost, "/runs", web.SubmitRunRequest{}))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetRun_UnknownJob(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/runs/nope", nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmitCompile_AndPoll(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.saveGraph(t, "graph-1")

	resp, err := env.app.Test(jsonRequest(t, http.MethodPost, "/compile", web.SubmitCompileRequest{
		GraphID: "graph-1",
	}))
	require.NoError(t, err)

	var submitted struct {
		JobID string `json:"job_id"`
	}

	decodeBody(t, resp, &submitted)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, submitted.JobID)

	assert.Eventually(t, func() bool {
		resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/compile/"+submitted.JobID, nil))
		if err != nil {
			return false
		}

		var polled web.JobResponse

		decodeBody(t, resp, &polled)

		return polled.Status == string(models.JobStatusCompleted)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestCreateWebhook(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.saveGraph(t, "graph-1")

	resp, err := env.app.Test(jsonRequest(t, http.MethodPost, "/graphs/graph-1/webhooks", web.CreateWebhookRequest{
		Method: "POST",
		Secret: "s3cr3t",
	}))
	require.NoError(t, err)

	var registration models.Webhook

	decodeBody(t, resp, &registration)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, registration.Key)
	assert.Equal(t, "graph-1", registration.GraphID)
	assert.True(t, registration.Active)
}

func TestCreateWebhook_GraphNotFound(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	resp, err := env.app.Test(jsonRequest(t, http.MethodPost, "/graphs/missing/webhooks", web.CreateWebhookRequest{}))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateWebhook_InvalidMethod(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.saveGraph(t, "graph-1")

	resp, err := env.app.Test(jsonRequest(t, http.MethodPost, "/graphs/graph-1/webhooks", web.CreateWebhookRequest{
		Method: "TRACE",
	}))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateSchedule(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.saveGraph(t, "graph-1")

	resp, err := env.app.Test(jsonRequest(t, http.MethodPost, "/graphs/graph-1/schedules", web.CreateScheduleRequest{
		Cron: "*/5 * * * *",
	}))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestCreateSchedule_InvalidCron(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.saveGraph(t, "graph-1")

	resp, err := env.app.Test(jsonRequest(t, http.MethodPost, "/graphs/graph-1/schedules", web.CreateScheduleRequest{
		Cron: "every tuesday",
	}))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleWebhook_Accepted(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.saveGraph(t, "graph-1")
	registration := env.saveWebhook(t, "graph-1", "POST", "")

	req := jsonRequest(t, http.MethodPost, "/webhooks/"+registration.Key, map[string]any{"order": 7})

	resp, err := env.app.Test(req)
	require.NoError(t, err)

	var accepted web.AcceptedResponse

	decodeBody(t, resp, &accepted)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "exec-test", accepted.ExecutionID)
	assert.Equal(t, "run accepted", accepted.Message)
}

func TestHandleWebhook_UnknownKey(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	resp, err := env.app.Test(jsonRequest(t, http.MethodPost, "/webhooks/nope", map[string]any{}))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleWebhook_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.saveGraph(t, "graph-1")
	registration := env.saveWebhook(t, "graph-1", "POST", "")

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/webhooks/"+registration.Key, nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandleWebhook_SignatureRequired(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.saveGraph(t, "graph-1")
	registration := env.saveWebhook(t, "graph-1", "POST", "s3cr3t")

	resp, err := env.app.Test(jsonRequest(t, http.MethodPost, "/webhooks/"+registration.Key, map[string]any{}))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleWebhook_ValidSignature(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.saveGraph(t, "graph-1")
	registration := env.saveWebhook(t, "graph-1", "POST", "s3cr3t")

	body := []byte(`{"order":7}`)
	mac := hmac.New(sha256.New, []byte("s3cr3t"))
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+registration.Key, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature-256", "sha256="+signature)

	resp, err := env.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}
