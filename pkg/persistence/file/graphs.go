package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/nodeloom/loom/pkg/models"
	"github.com/nodeloom/loom/pkg/persistence"
)

// GraphRepository stores each graph as <root>/graphs/<id>.json.
type GraphRepository struct {
	root string
}

func NewGraphRepository(root string) *GraphRepository {
	return &GraphRepository{root: root}
}

// Graphs lists every stored graph sorted by creation time, newest first.
func (r *GraphRepository) Graphs(ctx context.Context) ([]*models.Graph, error) {
	dir := os.DirFS(path.Join(r.root, "graphs"))

	jsonFiles, err := fs.Glob(dir, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list graph files: %w", err)
	}

	graphs := make([]*models.Graph, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id := file[:len(file)-5]

		graph, err := r.GraphByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load graph %s: %w", id, err)
		}

		graphs = append(graphs, graph)
	}

	sort.Slice(graphs, func(i, j int) bool {
		return graphs[i].CreatedAt.After(graphs[j].CreatedAt)
	})

	return graphs, nil
}

// GraphByID reads one graph document from disk.
func (r *GraphRepository) GraphByID(_ context.Context, id string) (*models.Graph, error) {
	filePath := filepath.Clean(path.Join(r.root, "graphs", id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrGraphNotFound
		}

		return nil, fmt.Errorf("failed to fetch graph %s: %w", id, err)
	}

	var graph models.Graph

	if err := json.Unmarshal(body, &graph); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph %s: %w", id, err)
	}

	return &graph, nil
}

// SaveGraph writes the graph document, creating the directory on first use.
func (r *GraphRepository) SaveGraph(_ context.Context, graph *models.Graph) error {
	if err := os.MkdirAll(path.Join(r.root, "graphs"), 0750); err != nil {
		return fmt.Errorf("failed to create graphs directory: %w", err)
	}

	now := time.Now().UTC()
	if graph.CreatedAt.IsZero() {
		graph.CreatedAt = now
	}

	graph.UpdatedAt = now

	data, err := json.MarshalIndent(graph, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal graph %s: %w", graph.ID, err)
	}

	filePath := path.Join(r.root, "graphs", graph.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}

// DeleteGraph removes the graph document.
func (r *GraphRepository) DeleteGraph(_ context.Context, id string) error {
	filePath := path.Join(r.root, "graphs", id+".json")

	err := os.Remove(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.ErrGraphNotFound
		}

		return fmt.Errorf("failed to delete graph %s: %w", id, err)
	}

	return nil
}
