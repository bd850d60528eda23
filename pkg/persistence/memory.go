package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/nodeloom/loom/pkg/models"
)

// MemoryPersistence keeps graphs and webhooks in process memory. It backs
// tests and single-node deployments that don't need durability.
type MemoryPersistence struct {
	mu       sync.RWMutex
	graphs   map[string]*models.Graph
	webhooks map[string]*models.Webhook
}

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		graphs:   make(map[string]*models.Graph),
		webhooks: make(map[string]*models.Webhook),
	}
}

func (p *MemoryPersistence) GraphRepository() GraphRepository     { return (*memoryGraphs)(p) }
func (p *MemoryPersistence) WebhookRepository() WebhookRepository { return (*memoryWebhooks)(p) }

func (p *MemoryPersistence) HealthCheck(_ context.Context) error { return nil }
func (p *MemoryPersistence) Close(_ context.Context) error       { return nil }

type memoryGraphs MemoryPersistence

func (r *memoryGraphs) Graphs(_ context.Context) ([]*models.Graph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	graphs := make([]*models.Graph, 0, len(r.graphs))
	for _, g := range r.graphs {
		graphs = append(graphs, g)
	}

	return graphs, nil
}

func (r *memoryGraphs) GraphByID(_ context.Context, id string) (*models.Graph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.graphs[id]
	if !ok {
		return nil, ErrGraphNotFound
	}

	return g, nil
}

func (r *memoryGraphs) SaveGraph(_ context.Context, graph *models.Graph) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.graphs[graph.ID] = graph

	return nil
}

func (r *memoryGraphs) DeleteGraph(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.graphs[id]; !ok {
		return ErrGraphNotFound
	}

	delete(r.graphs, id)

	return nil
}

type memoryWebhooks MemoryPersistence

func (r *memoryWebhooks) Webhooks(_ context.Context) ([]*models.Webhook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	webhooks := make([]*models.Webhook, 0, len(r.webhooks))
	for _, w := range r.webhooks {
		webhooks = append(webhooks, w)
	}

	return webhooks, nil
}

func (r *memoryWebhooks) WebhookByKey(_ context.Context, key string) (*models.Webhook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.webhooks[key]
	if !ok {
		return nil, ErrWebhookNotFound
	}

	return w, nil
}

func (r *memoryWebhooks) SaveWebhook(_ context.Context, webhook *models.Webhook) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.webhooks[webhook.Key] = webhook

	return nil
}

func (r *memoryWebhooks) DeleteWebhook(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.webhooks[key]; !ok {
		return ErrWebhookNotFound
	}

	delete(r.webhooks, key)

	return nil
}

func (r *memoryWebhooks) RecordCall(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.webhooks[key]
	if !ok {
		return ErrWebhookNotFound
	}

	now := time.Now().UTC()
	w.CallCount++
	w.LastCalledAt = &now

	return nil
}
