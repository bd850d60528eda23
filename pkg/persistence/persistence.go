// Package persistence provides the storage abstraction for graphs and
// webhook registrations.
package persistence

import (
	"context"

	"github.com/nodeloom/loom/pkg/models"
)

// GraphRepository stores user-authored graphs.
type GraphRepository interface {
	Graphs(ctx context.Context) ([]*models.Graph, error)
	GraphByID(ctx context.Context, id string) (*models.Graph, error)
	SaveGraph(ctx context.Context, graph *models.Graph) error
	DeleteGraph(ctx context.Context, id string) error
}

// WebhookRepository stores trigger registrations keyed by their opaque
// external key.
type WebhookRepository interface {
	Webhooks(ctx context.Context) ([]*models.Webhook, error)
	WebhookByKey(ctx context.Context, key string) (*models.Webhook, error)
	SaveWebhook(ctx context.Context, webhook *models.Webhook) error
	DeleteWebhook(ctx context.Context, key string) error

	// RecordCall bumps the registration's usage counters. Counts are not
	// safety-critical; implementations may apply them eventually.
	RecordCall(ctx context.Context, key string) error
}

// Persistence aggregates every repository plus lifecycle hooks.
type Persistence interface {
	GraphRepository() GraphRepository
	WebhookRepository() WebhookRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
