package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nodeloom/loom/pkg/models"
	"github.com/nodeloom/loom/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()

	reg := registry.NewRegistry(testLogger())

	return NewEngine(reg, testLogger(), opts...)
}

func passthroughNode(id string) *models.Node {
	return &models.Node{ID: id, Kind: models.NodeKindPassthrough, Label: "Node " + id}
}

func TestEngine_Run_Chain(t *testing.T) {
	g := &models.Graph{
		ID:   "chain",
		Name: "Chain Graph",
		Nodes: []*models.Node{
			passthroughNode("a"),
			passthroughNode("b"),
			passthroughNode("c"),
		},
		Edges: []*models.Edge{
			{From: "a", To: "b"},
			{From: "b", To: "c"},
		},
	}

	result := testEngine(t).Run(context.Background(), g, map[string]any{"seed": 42})

	require.True(t, result.Success)
	assert.Empty(t, result.Errors)
	assert.Len(t, result.Outputs, 3)

	// Root receives the initial input, downstream nodes receive the
	// predecessor's output keyed by its ID.
	assert.Equal(t, map[string]any{"seed": 42}, result.Outputs["a"])
	assert.Equal(t, map[string]any{"a": map[string]any{"seed": 42}}, result.Outputs["b"])
}

func TestEngine_Run_NodeFailureStopsRun(t *testing.T) {
	g := &models.Graph{
		ID:   "fails",
		Name: "Failing Graph",
		Nodes: []*models.Node{
			passthroughNode("a"),
			// query without the required "query" field fails at handler
			// construction.
			{ID: "b", Kind: models.NodeKindQuery, Label: "Broken query"},
			passthroughNode("c"),
		},
		Edges: []*models.Edge{
			{From: "a", To: "b"},
			{From: "b", To: "c"},
		},
	}

	result := testEngine(t).Run(context.Background(), g, nil)

	require.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "missing required field 'query'")

	// Output of the successful node survives; the failed node and everything
	// after it produced nothing.
	assert.Contains(t, result.Outputs, "a")
	assert.NotContains(t, result.Outputs, "b")
	assert.NotContains(t, result.Outputs, "c")
}

func TestEngine_Run_LogsCarryLifecycle(t *testing.T) {
	g := &models.Graph{
		ID:    "logs",
		Name:  "Logged Graph",
		Nodes: []*models.Node{passthroughNode("only")},
	}

	result := testEngine(t).Run(context.Background(), g, nil)

	require.True(t, result.Success)
	require.NotEmpty(t, result.Logs)

	assert.Equal(t, models.LogKindStart, result.Logs[0].Kind)
	assert.Equal(t, models.LogKindSuccess, result.Logs[len(result.Logs)-1].Kind)

	var sawNodeStart, sawNodeSuccess bool

	for _, ev := range result.Logs {
		if ev.NodeID == "only" && ev.Kind == models.LogKindStart {
			sawNodeStart = true
		}

		if ev.NodeID == "only" && ev.Kind == models.LogKindSuccess {
			sawNodeSuccess = true
		}
	}

	assert.True(t, sawNodeStart)
	assert.True(t, sawNodeSuccess)
}

func TestEngine_Run_ParallelPreservesDependencyOrder(t *testing.T) {
	g := &models.Graph{
		ID:   "diamond",
		Name: "Diamond Graph",
		Nodes: []*models.Node{
			passthroughNode("a"),
			passthroughNode("b"),
			passthroughNode("c"),
			passthroughNode("d"),
		},
		Edges: []*models.Edge{
			{From: "a", To: "b"},
			{From: "a", To: "c"},
			{From: "b", To: "d"},
			{From: "c", To: "d"},
		},
	}

	result := testEngine(t, WithMaxParallel(4)).Run(context.Background(), g, map[string]any{"n": 1})

	require.True(t, result.Success)
	assert.Len(t, result.Outputs, 4)

	// d saw both predecessors' outputs, so it ran after them.
	dInputs, ok := result.Outputs["d"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, dInputs, "b")
	assert.Contains(t, dInputs, "c")
}

func TestEngine_Run_VariablesReachTransform(t *testing.T) {
	g := &models.Graph{
		ID:        "vars",
		Name:      "Variable Graph",
		Variables: map[string]any{"factor": 3},
		Nodes: []*models.Node{
			{
				ID:    "calc",
				Kind:  models.NodeKindTransform,
				Label: "Calc",
				Config: map[string]any{
					"expression": "vars.factor * 2",
				},
			},
		},
	}

	result := testEngine(t).Run(context.Background(), g, nil)

	require.True(t, result.Success)
	assert.Equal(t, map[string]any{"result": 6}, result.Outputs["calc"])
}

func TestEngine_Run_CancelledContext(t *testing.T) {
	g := &models.Graph{
		ID:    "cancelled",
		Name:  "Cancelled Graph",
		Nodes: []*models.Node{passthroughNode("a")},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := testEngine(t).Run(ctx, g, nil)

	require.False(t, result.Success)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "run cancelled")
}

func TestEngine_RunWithID_UsesGivenID(t *testing.T) {
	g := &models.Graph{
		ID:    "fixed-id",
		Name:  "Fixed ID Graph",
		Nodes: []*models.Node{passthroughNode("a")},
	}

	result := testEngine(t).RunWithID(context.Background(), "exec-fixed", g, nil)

	require.True(t, result.Success)
}

func TestEngine_Run_EmptyGraphSucceeds(t *testing.T) {
	g := &models.Graph{ID: "empty", Name: "Empty Graph"}

	result := testEngine(t).Run(context.Background(), g, nil)

	assert.True(t, result.Success)
	assert.Empty(t, result.Outputs)
}

func TestNewExecutionID_UniqueAndPrefixed(t *testing.T) {
	a := NewExecutionID()
	b := NewExecutionID()

	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "exec-")
}

func TestEngine_Run_DurationRecorded(t *testing.T) {
	g := &models.Graph{
		ID:    "timed",
		Name:  "Timed Graph",
		Nodes: []*models.Node{passthroughNode("a")},
	}

	started := time.Now()
	result := testEngine(t).Run(context.Background(), g, nil)
	elapsed := time.Since(started)

	assert.GreaterOrEqual(t, result.DurationMs, int64(0))
	assert.LessOrEqual(t, result.DurationMs, elapsed.Milliseconds()+1)
}
