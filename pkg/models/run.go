package models

import "time"

// RunStatus is the lifecycle state of a run. A run moves
// pending -> processing exactly once and processing -> completed|failed
// exactly once; it is read-only afterwards.
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusProcessing RunStatus = "processing"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// LogKind classifies a log event emitted during a run.
type LogKind string

const (
	LogKindStart   LogKind = "start"
	LogKindInfo    LogKind = "info"
	LogKindSuccess LogKind = "success"
	LogKindError   LogKind = "error"
)

// LogEvent is one append-only entry in a run's log, ordered by emission time.
type LogEvent struct {
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"node_id,omitempty"`
	NodeLabel string    `json:"node_label,omitempty"`
	Kind      LogKind   `json:"kind"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
}

// ExecutionResult is the final outcome of running a graph. Outputs holds one
// entry per completed node keyed by node ID; on failure it still contains
// everything produced before the failing node.
type ExecutionResult struct {
	Success    bool           `json:"success"`
	DurationMs int64          `json:"execution_time_ms"`
	Logs       []LogEvent     `json:"logs"`
	Outputs    map[string]any `json:"outputs"`
	Errors     []string       `json:"errors,omitempty"`
}

// Run is one instantiation of executing a graph. A run exclusively owns its
// logs and outputs.
type Run struct {
	ID         string         `json:"id"`
	GraphID    string         `json:"graph_id"`
	Status     RunStatus      `json:"status"`
	Logs       []LogEvent     `json:"logs,omitempty"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	Errors     []string       `json:"errors,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	DurationMs int64          `json:"duration_ms,omitempty"`
}
