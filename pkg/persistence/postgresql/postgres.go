// Package postgresql provides PostgreSQL persistence for graphs and webhook
// registrations.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
	"github.com/nodeloom/loom/pkg/persistence"
	"github.com/nodeloom/loom/pkg/persistence/sqlbase"
)

// Persistence implements persistence.Persistence on top of PostgreSQL.
type Persistence struct {
	db          *sql.DB
	logger      *slog.Logger
	graphRepo   *GraphRepository
	webhookRepo *WebhookRepository
}

// NewPersistence opens a connection, verifies it, and runs migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())
	if err := migrationManager.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:          database,
		logger:      logger,
		graphRepo:   NewGraphRepository(database, logger),
		webhookRepo: NewWebhookRepository(database, logger),
	}, nil
}

func (p *Persistence) GraphRepository() persistence.GraphRepository {
	return p.graphRepo
}

func (p *Persistence) WebhookRepository() persistence.WebhookRepository {
	return p.webhookRepo
}

// HealthCheck verifies the database connection is alive.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
