package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nodeloom/loom/pkg/models"
	"github.com/nodeloom/loom/pkg/persistence"
)

// GraphRepository handles graph rows. Nodes, edges and variables are stored
// as JSONB columns on the graph row itself.
type GraphRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewGraphRepository(db *sql.DB, logger *slog.Logger) *GraphRepository {
	return &GraphRepository{db: db, logger: logger}
}

const graphColumns = `
	id
  , name
  , nodes
  , edges
  , variables
  , active
  , created_at
  , updated_at
`

// Graphs returns every stored graph, newest first.
func (r *GraphRepository) Graphs(ctx context.Context) ([]*models.Graph, error) {
	query := `SELECT ` + graphColumns + ` FROM graphs ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query graphs: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	graphs := make([]*models.Graph, 0)

	for rows.Next() {
		graph, err := scanGraph(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan graph: %w", err)
		}

		graphs = append(graphs, graph)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating graphs: %w", err)
	}

	return graphs, nil
}

// GraphByID returns one graph or persistence.ErrGraphNotFound.
func (r *GraphRepository) GraphByID(ctx context.Context, id string) (*models.Graph, error) {
	query := `SELECT ` + graphColumns + ` FROM graphs WHERE id = $1`

	graph, err := scanGraph(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrGraphNotFound
		}

		return nil, fmt.Errorf("failed to scan graph: %w", err)
	}

	return graph, nil
}

// SaveGraph upserts the graph row.
func (r *GraphRepository) SaveGraph(ctx context.Context, graph *models.Graph) error {
	now := time.Now().UTC()

	if graph.CreatedAt.IsZero() {
		graph.CreatedAt = now
	}

	graph.UpdatedAt = now

	if graph.ID == "" {
		graph.ID = uuid.New().String()
	}

	nodesJSON, err := json.Marshal(graph.Nodes)
	if err != nil {
		return fmt.Errorf("failed to marshal nodes: %w", err)
	}

	edgesJSON, err := json.Marshal(graph.Edges)
	if err != nil {
		return fmt.Errorf("failed to marshal edges: %w", err)
	}

	variablesJSON, err := json.Marshal(graph.Variables)
	if err != nil {
		return fmt.Errorf("failed to marshal variables: %w", err)
	}

	query := `
		INSERT INTO graphs (id, name, nodes, edges, variables, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			nodes = EXCLUDED.nodes,
			edges = EXCLUDED.edges,
			variables = EXCLUDED.variables,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		graph.ID,
		graph.Name,
		nodesJSON,
		edgesJSON,
		variablesJSON,
		graph.Active,
		graph.CreatedAt,
		graph.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save graph: %w", err)
	}

	return nil
}

// DeleteGraph removes the graph row. Webhook rows cascade.
func (r *GraphRepository) DeleteGraph(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM graphs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete graph: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.ErrGraphNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGraph(row rowScanner) (*models.Graph, error) {
	var (
		graph         models.Graph
		nodesJSON     []byte
		edgesJSON     []byte
		variablesJSON []byte
	)

	err := row.Scan(
		&graph.ID,
		&graph.Name,
		&nodesJSON,
		&edgesJSON,
		&variablesJSON,
		&graph.Active,
		&graph.CreatedAt,
		&graph.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(nodesJSON, &graph.Nodes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
	}

	if err := json.Unmarshal(edgesJSON, &graph.Edges); err != nil {
		return nil, fmt.Errorf("failed to unmarshal edges: %w", err)
	}

	if len(variablesJSON) > 0 {
		if err := json.Unmarshal(variablesJSON, &graph.Variables); err != nil {
			return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
		}
	}

	return &graph, nil
}
