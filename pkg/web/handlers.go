package web

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/nodeloom/loom/pkg/compile"
	"github.com/nodeloom/loom/pkg/graph"
	"github.com/nodeloom/loom/pkg/jobs"
	"github.com/nodeloom/loom/pkg/models"
	"github.com/nodeloom/loom/pkg/persistence"
	"github.com/nodeloom/loom/pkg/schedule"
	"github.com/nodeloom/loom/pkg/webhook"
)

// APIHandlers holds every HTTP handler and its collaborators.
type APIHandlers struct {
	persistence persistence.Persistence
	gateway     *webhook.Gateway
	runJobs     jobs.Store
	compileJobs jobs.Store
	compiler    *compile.Compiler
	scheduler   *schedule.Scheduler
	validator   *validator.Validate
}

func NewAPIHandlers(
	p persistence.Persistence,
	gateway *webhook.Gateway,
	runJobs jobs.Store,
	compileJobs jobs.Store,
	compiler *compile.Compiler,
	scheduler *schedule.Scheduler,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		persistence: p,
		gateway:     gateway,
		runJobs:     runJobs,
		compileJobs: compileJobs,
		compiler:    compiler,
		scheduler:   scheduler,
		validator:   validate,
	}
}

// HandleWebhook is the trigger endpoint: METHOD /webhooks/:key. It returns
// 202 with the execution id; the run itself happens in the background.
func (h *APIHandlers) HandleWebhook(c fiber.Ctx) error {
	headers := make(map[string]string)
	for k, v := range c.GetReqHeaders() {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	query := make(map[string]string)
	for k, v := range c.Queries() {
		query[k] = v
	}

	accepted, err := h.gateway.Handle(c.Context(), webhook.Request{
		Key:        c.Params("key"),
		Method:     c.Method(),
		Headers:    headers,
		Query:      query,
		Body:       c.Body(),
		SourceAddr: c.IP(),
	})
	if err != nil {
		return handleGatewayError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(AcceptedResponse{
		ExecutionID: accepted.ExecutionID,
		Message:     "run accepted",
	})
}

// SubmitRun starts a graph run as a polled job.
func (h *APIHandlers) SubmitRun(c fiber.Ctx) error {
	var req SubmitRunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if _, err := h.persistence.GraphRepository().GraphByID(c.Context(), req.GraphID); err != nil {
		return handleGraphError(c, err)
	}

	jobID, err := h.runJobs.Submit(c.Context(), map[string]any{
		"graph_id": req.GraphID,
		"input":    req.Input,
	})
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"job_id": jobID, "status": models.JobStatusPending})
}

// GetRun polls a run job.
func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	return h.pollJob(c, h.runJobs)
}

// SubmitCompile starts a graph compile as a polled job.
func (h *APIHandlers) SubmitCompile(c fiber.Ctx) error {
	var req SubmitCompileRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if _, err := h.persistence.GraphRepository().GraphByID(c.Context(), req.GraphID); err != nil {
		return handleGraphError(c, err)
	}

	jobID, err := h.compileJobs.Submit(c.Context(), map[string]any{
		"graph_id": req.GraphID,
	})
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"job_id": jobID, "status": models.JobStatusPending})
}

// GetCompile polls a compile job.
func (h *APIHandlers) GetCompile(c fiber.Ctx) error {
	return h.pollJob(c, h.compileJobs)
}

func (h *APIHandlers) pollJob(c fiber.Ctx, store jobs.Store) error {
	job, err := store.Status(c.Context(), c.Params("id"))
	if err != nil {
		return handleJobError(c, err)
	}

	return c.JSON(JobResponse{
		JobID:     job.ID,
		Status:    string(job.Status),
		Result:    job.Result,
		Error:     job.Error,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.Format(time.RFC3339),
	})
}

// GetGraphs lists stored graphs.
func (h *APIHandlers) GetGraphs(c fiber.Ctx) error {
	graphs, err := h.persistence.GraphRepository().Graphs(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(graphs)
}

// GetGraph fetches one graph.
func (h *APIHandlers) GetGraph(c fiber.Ctx) error {
	g, err := h.persistence.GraphRepository().GraphByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleGraphError(c, err)
	}

	return c.JSON(g)
}

// CreateGraph stores a new graph. The graph must already be well-formed;
// validation rejections come back as 400 with the validator's messages.
func (h *APIHandlers) CreateGraph(c fiber.Ctx) error {
	var req CreateGraphRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	now := time.Now().UTC()
	g := &models.Graph{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Nodes:     req.Nodes,
		Edges:     req.Edges,
		Variables: req.Variables,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if result := graph.Validate(g); !result.Valid {
		return c.Status(fiber.StatusBadRequest).JSON(result)
	}

	if err := h.persistence.GraphRepository().SaveGraph(c.Context(), g); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(g)
}

// DeleteGraph removes a graph.
func (h *APIHandlers) DeleteGraph(c fiber.Ctx) error {
	if err := h.persistence.GraphRepository().DeleteGraph(c.Context(), c.Params("id")); err != nil {
		return handleGraphError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ValidateGraph runs the validator without executing anything.
func (h *APIHandlers) ValidateGraph(c fiber.Ctx) error {
	g, err := h.persistence.GraphRepository().GraphByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleGraphError(c, err)
	}

	return c.JSON(graph.Validate(g))
}

// CreateWebhook registers a trigger for a graph and returns the opaque key.
func (h *APIHandlers) CreateWebhook(c fiber.Ctx) error {
	graphID := c.Params("id")

	if _, err := h.persistence.GraphRepository().GraphByID(c.Context(), graphID); err != nil {
		return handleGraphError(c, err)
	}

	var req CreateWebhookRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	registration, err := models.NewWebhook(graphID, req.Method, req.Secret, req.AllowedOrigins)
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.persistence.WebhookRepository().SaveWebhook(c.Context(), registration); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(registration)
}

// CreateSchedule registers a cron schedule for a graph.
func (h *APIHandlers) CreateSchedule(c fiber.Ctx) error {
	graphID := c.Params("id")

	if _, err := h.persistence.GraphRepository().GraphByID(c.Context(), graphID); err != nil {
		return handleGraphError(c, err)
	}

	var req CreateScheduleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.scheduler.Add(graphID, req.Cron, req.Input); err != nil {
		return badRequest(c, err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"graph_id": graphID, "cron": req.Cron})
}

// CompilePreview compiles synchronously, bypassing the job store. Used by
// the editor for fast feedback.
func (h *APIHandlers) CompilePreview(c fiber.Ctx) error {
	g, err := h.persistence.GraphRepository().GraphByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleGraphError(c, err)
	}

	plan, err := h.compiler.Compile(g)
	if err != nil {
		return badRequest(c, err.Error())
	}

	return c.JSON(plan)
}
