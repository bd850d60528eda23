// Package events defines the event types published during graph run
// lifecycles.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/nodeloom/loom/pkg/models"
)

type EventType string

// Topic carries every run lifecycle event.
const Topic = "loom.events"

const EventKeyMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RunTriggeredEvent EventType = "run.triggered"
	RunStartedEvent   EventType = "run.started"
	RunCompletedEvent EventType = "run.completed"
	RunFailedEvent    EventType = "run.failed"
	NodeFinishedEvent EventType = "node.finished"
	NodeFailedEvent   EventType = "node.failed"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	GraphID   string         `json:"graph_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent stamps a fresh event envelope.
func NewBaseEvent(eventType EventType, graphID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		GraphID:   graphID,
	}
}

// RunTriggered asks a worker to execute a graph with the given input.
type RunTriggered struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	TriggerKey  string         `json:"trigger_key,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
}

func (e RunTriggered) GetType() EventType { return RunTriggeredEvent }

type RunStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
}

func (e RunStarted) GetType() EventType { return RunStartedEvent }

type RunCompleted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	Outputs     map[string]any `json:"outputs,omitempty"`
	Duration    time.Duration  `json:"duration"`
}

func (e RunCompleted) GetType() EventType { return RunCompletedEvent }

type RunFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Error       string        `json:"error"`
	Duration    time.Duration `json:"duration"`
}

func (e RunFailed) GetType() EventType { return RunFailedEvent }

type NodeFinished struct {
	BaseEvent

	ExecutionID string          `json:"execution_id"`
	NodeID      string          `json:"node_id"`
	NodeKind    models.NodeKind `json:"node_kind"`
	Output      any             `json:"output,omitempty"`
}

func (e NodeFinished) GetType() EventType { return NodeFinishedEvent }

type NodeFailed struct {
	BaseEvent

	ExecutionID string          `json:"execution_id"`
	NodeID      string          `json:"node_id"`
	NodeKind    models.NodeKind `json:"node_kind"`
	Error       string          `json:"error"`
}

func (e NodeFailed) GetType() EventType { return NodeFailedEvent }
