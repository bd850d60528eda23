// Package file provides file-based persistence for graphs and webhook
// registrations. Each record is one JSON document under the root directory.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/nodeloom/loom/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of the file system.
type Persistence struct {
	root        string
	graphRepo   *GraphRepository
	webhookRepo *WebhookRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
// A "file://" prefix on the root is accepted and stripped.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:        cleanRoot,
		graphRepo:   NewGraphRepository(cleanRoot),
		webhookRepo: NewWebhookRepository(cleanRoot),
	}
}

func (p *Persistence) GraphRepository() persistence.GraphRepository {
	return p.graphRepo
}

func (p *Persistence) WebhookRepository() persistence.WebhookRepository {
	return p.webhookRepo
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. Nothing to release for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}
