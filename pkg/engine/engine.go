package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nodeloom/loom/pkg/eventbus"
	"github.com/nodeloom/loom/pkg/events"
	"github.com/nodeloom/loom/pkg/graph"
	"github.com/nodeloom/loom/pkg/models"
	"github.com/nodeloom/loom/pkg/protocol"
	"github.com/nodeloom/loom/pkg/registry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/nodeloom/loom/pkg/engine"

// Option configures an Engine.
type Option func(*Engine)

// WithNodeTimeout bounds every node execution. Zero disables the bound.
func WithNodeTimeout(d time.Duration) Option {
	return func(e *Engine) { e.nodeTimeout = d }
}

// WithMaxParallel allows up to n nodes with no unmet dependency to execute
// concurrently. The default of 1 keeps the strictly sequential topological
// order. With n > 1, log events from concurrent nodes may interleave but the
// dependency order (a before b for every edge a->b) always holds.
func WithMaxParallel(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxParallel = n
		}
	}
}

// WithEventBus publishes run lifecycle events to the given bus.
func WithEventBus(bus eventbus.EventPublisher) Option {
	return func(e *Engine) { e.bus = bus }
}

// Engine orchestrates scheduling and per-node execution over an entire run.
// It never reorders or retries on its own; retry policy is an external
// decision.
type Engine struct {
	executor    *Executor
	bus         eventbus.EventPublisher
	logger      *slog.Logger
	tracer      trace.Tracer
	nodeTimeout time.Duration
	maxParallel int
}

func NewEngine(reg *registry.Registry, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		logger:      logger.With("module", "engine"),
		tracer:      otel.Tracer(tracerName),
		maxParallel: 1,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.executor = NewExecutor(reg, e.nodeTimeout, logger)

	return e
}

// Run executes the graph under a fresh execution identifier.
func (e *Engine) Run(ctx context.Context, g *models.Graph, initialInput map[string]any) *models.ExecutionResult {
	return e.RunWithID(ctx, NewExecutionID(), g, initialInput)
}

// RunWithID executes every node of the graph in dependency order, gathering
// each node's resolved inputs from its predecessors' outputs (plus the
// initial input for root nodes). The first node failure stops the remainder
// of the run; logs and outputs produced before it stay in the result.
func (e *Engine) RunWithID(ctx context.Context, executionID string, g *models.Graph, initialInput map[string]any) *models.ExecutionResult {
	logger := e.logger.With("graph_id", g.ID, "execution_id", executionID)
	logger.Info("Starting graph execution")

	ctx, span := e.tracer.Start(ctx, "engine.run", trace.WithAttributes(
		attribute.String("loom.graph.id", g.ID),
		attribute.String("loom.execution.id", executionID),
		attribute.Int("loom.graph.nodes", len(g.Nodes)),
	))
	defer span.End()

	started := time.Now()
	rec := newRunRecorder(executionID, g.ID, started)

	rec.log(models.LogEvent{
		Timestamp: started.UTC(),
		Kind:      models.LogKindStart,
		Message:   fmt.Sprintf("Starting execution of graph %q", g.Name),
	})

	e.publish(ctx, executionID, events.RunStarted{
		BaseEvent:   events.NewBaseEvent(events.RunStartedEvent, g.ID),
		ExecutionID: executionID,
	})

	rec.begin()
	e.executeAll(ctx, executionID, g, initialInput, rec)

	duration := time.Since(started)
	result := rec.result(duration)

	if result.Success {
		rec.log(models.LogEvent{
			Timestamp: time.Now().UTC(),
			Kind:      models.LogKindSuccess,
			Message:   fmt.Sprintf("Graph %q completed in %dms", g.Name, result.DurationMs),
		})

		result.Logs = rec.logs()

		e.publish(ctx, executionID, events.RunCompleted{
			BaseEvent:   events.NewBaseEvent(events.RunCompletedEvent, g.ID),
			ExecutionID: executionID,
			Outputs:     result.Outputs,
			Duration:    duration,
		})

		logger.Info("Graph execution completed", "duration_ms", result.DurationMs)
	} else {
		rec.log(models.LogEvent{
			Timestamp: time.Now().UTC(),
			Kind:      models.LogKindError,
			Message:   fmt.Sprintf("Graph %q failed: %s", g.Name, result.Errors[0]),
		})

		result.Logs = rec.logs()

		e.publish(ctx, executionID, events.RunFailed{
			BaseEvent:   events.NewBaseEvent(events.RunFailedEvent, g.ID),
			ExecutionID: executionID,
			Error:       result.Errors[0],
			Duration:    duration,
		})

		logger.Error("Graph execution failed", "errors", result.Errors)
	}

	return result
}

type nodeOutcome struct {
	nodeID string
	output any
	err    error
}

// executeAll walks the topological order, dispatching every node whose
// predecessors have all produced output. maxParallel of 1 reproduces the
// strictly sequential behavior; higher values overlap independent branches.
func (e *Engine) executeAll(
	ctx context.Context,
	executionID string,
	g *models.Graph,
	initialInput map[string]any,
	rec *runRecorder,
) {
	order := graph.Order(g)
	pending := make([]string, len(order))
	copy(pending, order)

	dispatched := make(map[string]bool, len(order))
	completed := make(map[string]bool, len(order))
	outcomes := make(chan nodeOutcome)

	inFlight := 0
	failed := false

	for {
		if !failed && ctx.Err() != nil {
			rec.fail(fmt.Sprintf("run cancelled: %v", ctx.Err()))

			failed = true
		}

		if !failed {
			inFlight += e.dispatchReady(ctx, executionID, g, initialInput, pending, dispatched, completed, rec, outcomes)
		}

		if inFlight == 0 {
			remaining := e.undispatched(pending, dispatched)
			if !failed && remaining > 0 {
				// Unreachable nodes (the validator would have rejected this
				// graph). Terminate instead of spinning.
				rec.fail(fmt.Sprintf("%d node(s) have unresolvable dependencies", remaining))
			}

			return
		}

		outcome := <-outcomes
		inFlight--
		completed[outcome.nodeID] = true

		if outcome.err != nil {
			rec.fail(outcome.err.Error())

			failed = true
		} else {
			rec.storeOutput(outcome.nodeID, outcome.output)
		}
	}
}

func (e *Engine) dispatchReady(
	ctx context.Context,
	executionID string,
	g *models.Graph,
	initialInput map[string]any,
	pending []string,
	dispatched map[string]bool,
	completed map[string]bool,
	rec *runRecorder,
	outcomes chan<- nodeOutcome,
) int {
	started := 0

	for _, id := range pending {
		if dispatched[id] {
			continue
		}

		if e.countInFlight(pending, dispatched, completed) >= e.maxParallel {
			break
		}

		node, ok := g.NodeByID(id)
		if !ok {
			continue
		}

		preds := g.Predecessors(id)
		if !allDone(preds, completed) {
			if e.maxParallel == 1 {
				// Sequential mode follows the topological order strictly, so
				// an unready node means everything after it is unready too.
				break
			}

			continue
		}

		dispatched[id] = true
		started++

		inputs := e.resolveInputs(node, preds, g.Variables, initialInput, rec)

		go e.runNode(ctx, executionID, g, node, inputs, rec, outcomes)
	}

	return started
}

func (e *Engine) runNode(
	ctx context.Context,
	executionID string,
	g *models.Graph,
	node *models.Node,
	inputs protocol.NodeInputs,
	rec *runRecorder,
	outcomes chan<- nodeOutcome,
) {
	ctx, span := e.tracer.Start(ctx, "engine.node", trace.WithAttributes(
		attribute.String("loom.node.id", node.ID),
		attribute.String("loom.node.kind", string(node.Kind)),
	))
	defer span.End()

	output, err := e.executor.ExecuteNode(ctx, node, inputs, rec.log)

	if err != nil {
		span.RecordError(err)

		e.publish(ctx, executionID, events.NodeFailed{
			BaseEvent:   events.NewBaseEvent(events.NodeFailedEvent, g.ID),
			ExecutionID: executionID,
			NodeID:      node.ID,
			NodeKind:    node.Kind,
			Error:       err.Error(),
		})
	} else {
		e.publish(ctx, executionID, events.NodeFinished{
			BaseEvent:   events.NewBaseEvent(events.NodeFinishedEvent, g.ID),
			ExecutionID: executionID,
			NodeID:      node.ID,
			NodeKind:    node.Kind,
			Output:      output,
		})
	}

	outcomes <- nodeOutcome{nodeID: node.ID, output: output, err: err}
}

// resolveInputs gathers the outputs of all predecessors recorded so far,
// keyed by predecessor node ID. Root nodes receive the externally supplied
// initial input instead.
func (e *Engine) resolveInputs(
	node *models.Node,
	preds []string,
	variables map[string]any,
	initialInput map[string]any,
	rec *runRecorder,
) protocol.NodeInputs {
	inputs := make(map[string]any)

	if len(preds) == 0 {
		for k, v := range initialInput {
			inputs[k] = v
		}
	} else {
		for _, pred := range preds {
			if out, ok := rec.output(pred); ok {
				inputs[pred] = out
			}
		}
	}

	return protocol.NodeInputs{
		NodeID:    node.ID,
		NodeLabel: node.Label,
		Inputs:    inputs,
		Variables: variables,
	}
}

func (e *Engine) countInFlight(pending []string, dispatched, completed map[string]bool) int {
	n := 0

	for _, id := range pending {
		if dispatched[id] && !completed[id] {
			n++
		}
	}

	return n
}

func (e *Engine) undispatched(pending []string, dispatched map[string]bool) int {
	n := 0

	for _, id := range pending {
		if !dispatched[id] {
			n++
		}
	}

	return n
}

func (e *Engine) publish(ctx context.Context, executionID string, event eventbus.Event) {
	if e.bus == nil {
		return
	}

	if err := e.bus.Publish(ctx, executionID, event); err != nil {
		e.logger.Error("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func allDone(ids []string, completed map[string]bool) bool {
	for _, id := range ids {
		if !completed[id] {
			return false
		}
	}

	return true
}

// NewExecutionID generates a unique run identifier.
func NewExecutionID() string {
	return "exec-" + uuid.New().String()
}

// runRecorder owns the Run record while it executes. A run exclusively owns
// its logs and outputs; all methods are safe for concurrent use by parallel
// node executions.
type runRecorder struct {
	mu  sync.Mutex
	run *models.Run
}

func newRunRecorder(executionID, graphID string, started time.Time) *runRecorder {
	return &runRecorder{
		run: &models.Run{
			ID:        executionID,
			GraphID:   graphID,
			Status:    models.RunStatusPending,
			Outputs:   make(map[string]any),
			StartedAt: started.UTC(),
		},
	}
}

// begin marks the pending -> processing transition.
func (r *runRecorder) begin() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.run.Status = models.RunStatusProcessing
}

func (r *runRecorder) log(event models.LogEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.run.Logs = append(r.run.Logs, event)
}

func (r *runRecorder) storeOutput(nodeID string, output any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.run.Outputs[nodeID] = output
}

func (r *runRecorder) output(nodeID string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out, ok := r.run.Outputs[nodeID]

	return out, ok
}

func (r *runRecorder) fail(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.run.Errors = append(r.run.Errors, message)
}

func (r *runRecorder) logs() []models.LogEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	logs := make([]models.LogEvent, len(r.run.Logs))
	copy(logs, r.run.Logs)

	return logs
}

// result finalizes the Run record and derives the caller-facing execution
// result from it. The run transitions to its terminal status exactly once.
func (r *runRecorder) result(duration time.Duration) *models.ExecutionResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	finished := r.run.StartedAt.Add(duration)
	r.run.FinishedAt = &finished
	r.run.DurationMs = duration.Milliseconds()

	if len(r.run.Errors) == 0 {
		r.run.Status = models.RunStatusCompleted
	} else {
		r.run.Status = models.RunStatusFailed
	}

	outputs := make(map[string]any, len(r.run.Outputs))
	for k, v := range r.run.Outputs {
		outputs[k] = v
	}

	errs := make([]string, len(r.run.Errors))
	copy(errs, r.run.Errors)

	return &models.ExecutionResult{
		Success:    r.run.Status == models.RunStatusCompleted,
		DurationMs: r.run.DurationMs,
		Outputs:    outputs,
		Errors:     errs,
	}
}
