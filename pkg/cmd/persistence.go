// Package cmd wires shared infrastructure for the binaries: persistence and
// event bus construction from configuration values.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/stepmill/stepmill/pkg/persistence"
	"github.com/stepmill/stepmill/pkg/persistence/file"
	"github.com/stepmill/stepmill/pkg/persistence/postgresql"
	"github.com/stepmill/stepmill/pkg/persistence/redis"
)

// NewPersistence selects the persistence backend from the URL scheme:
// postgres://, redis://, everything else is treated as a file path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "redis", "rediss":
		return redis.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parseProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return scheme
}
