// Package web provides the HTTP surface: graph management, the webhook
// trigger endpoint, and the asynchronous job poll protocol.
package web

import "github.com/nodeloom/loom/pkg/models"

// CreateGraphRequest is the payload for creating a graph.
type CreateGraphRequest struct {
	Name      string         `json:"name"      validate:"required,min=3"`
	Nodes     []*models.Node `json:"nodes"`
	Edges     []*models.Edge `json:"edges"`
	Variables map[string]any `json:"variables,omitempty"`
}

// CreateWebhookRequest registers a trigger for a graph.
type CreateWebhookRequest struct {
	Method         string   `json:"method"          validate:"omitempty,oneof=GET POST PUT ANY"`
	Secret         string   `json:"secret,omitempty"`
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
}

// CreateScheduleRequest registers a cron schedule for a graph.
type CreateScheduleRequest struct {
	Cron  string         `json:"cron" validate:"required"`
	Input map[string]any `json:"input,omitempty"`
}

// SubmitRunRequest starts a graph run as a polled job.
type SubmitRunRequest struct {
	GraphID string         `json:"graph_id" validate:"required"`
	Input   map[string]any `json:"input,omitempty"`
}

// SubmitCompileRequest starts a graph compile as a polled job.
type SubmitCompileRequest struct {
	GraphID string `json:"graph_id" validate:"required"`
}

// JobResponse is the poll protocol's status document.
type JobResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// AcceptedResponse acknowledges a webhook call.
type AcceptedResponse struct {
	ExecutionID string `json:"execution_id"`
	Message     string `json:"message"`
}
