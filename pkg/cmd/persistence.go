package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zapdesk/flowengine/pkg/persistence"
	"github.com/zapdesk/flowengine/pkg/persistence/memory"
	"github.com/zapdesk/flowengine/pkg/persistence/postgresql"
)

// NewPersistence creates the storage backend for a database URL. Postgres
// URLs get the production backend; "memory://" gets the in-process one used
// by tests and local runs.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		backend, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create postgres persistence: %w", err))
		}

		return backend
	case databaseURL == "memory://", databaseURL == "":
		return memory.NewPersistence()
	default:
		panic("unsupported database URL: " + databaseURL)
	}
}
