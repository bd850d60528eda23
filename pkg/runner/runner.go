// Package runner bridges stored graphs and the execution engine: it loads a
// graph, validates it, and runs it, exposing the result both as a direct
// call and as the job store's background work function.
package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nodeloom/loom/pkg/engine"
	"github.com/nodeloom/loom/pkg/graph"
	"github.com/nodeloom/loom/pkg/jobs"
	"github.com/nodeloom/loom/pkg/models"
	"github.com/nodeloom/loom/pkg/persistence"
)

type Runner struct {
	persistence persistence.Persistence
	engine      *engine.Engine
	logger      *slog.Logger
}

func NewRunner(p persistence.Persistence, eng *engine.Engine, logger *slog.Logger) *Runner {
	return &Runner{
		persistence: p,
		engine:      eng,
		logger:      logger.With("module", "runner"),
	}
}

// Execute validates and runs the graph under the given execution id.
// Validation failures are returned as errors before any node executes; a
// run that started always returns a result, failed or not.
func (r *Runner) Execute(ctx context.Context, executionID, graphID string, input map[string]any) (*models.ExecutionResult, error) {
	g, err := r.persistence.GraphRepository().GraphByID(ctx, graphID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch graph %s: %w", graphID, err)
	}

	if result := graph.Validate(g); !result.Valid {
		return nil, fmt.Errorf("graph %s is not executable: %v", graphID, result.Errors)
	}

	execution := r.engine.RunWithID(ctx, executionID, g, input)
	if !execution.Success {
		// The run itself is the caller's result; node failures live inside
		// it rather than in the error return.
		r.logger.Warn("Graph run finished with errors", "graph_id", graphID, "execution_id", executionID)
	}

	return execution, nil
}

// JobRunner adapts Execute to the job store's work function. The job
// identifier doubles as the execution identifier.
func (r *Runner) JobRunner() jobs.Runner {
	return func(ctx context.Context, params map[string]any) (any, error) {
		graphID, _ := params["graph_id"].(string)
		if graphID == "" {
			return nil, fmt.Errorf("job parameters missing graph_id")
		}

		executionID, _ := params["execution_id"].(string)
		if executionID == "" {
			executionID = engine.NewExecutionID()
		}

		input, _ := params["input"].(map[string]any)

		result, err := r.Execute(ctx, executionID, graphID, input)
		if err != nil {
			return nil, err
		}

		if !result.Success {
			return result, fmt.Errorf("run failed: %v", result.Errors)
		}

		return result, nil
	}
}
