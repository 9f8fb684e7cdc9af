// Package cmd wires shared infrastructure for the signoff binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/signoffhq/signoff/pkg/persistence"
	"github.com/signoffhq/signoff/pkg/persistence/file"
	"github.com/signoffhq/signoff/pkg/persistence/postgresql"
)

// NewPersistence creates a persistence implementation based on the database
// URL scheme. Postgres URLs get the SQL store; anything else falls back to
// the file store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parseScheme(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parseScheme(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return scheme
}
