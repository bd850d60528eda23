// Package cmd provides common initialization for the command-line binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nodeloom/loom/pkg/persistence"
	"github.com/nodeloom/loom/pkg/persistence/file"
	"github.com/nodeloom/loom/pkg/persistence/postgresql"
)

// NewPersistence selects a persistence backend from the URL scheme:
// "postgres://" for PostgreSQL, "memory://" for in-process, anything else
// is treated as a file root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(err)
		}

		return p
	case strings.HasPrefix(databaseURL, "memory://"):
		return persistence.NewMemoryPersistence()
	default:
		return file.NewPersistence(databaseURL)
	}
}
