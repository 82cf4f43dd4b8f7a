package player

import (
	"context"
	"strings"
)

// NewStore picks the backing store from configuration: postgres when a
// database URL is set, a local SQLite file when a path is set, otherwise
// in-memory.
func NewStore(ctx context.Context, databaseURL, sqlitePath string) (Store, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresStore(ctx, databaseURL)
	}
	if strings.TrimSpace(sqlitePath) != "" {
		return NewSQLiteStore(sqlitePath)
	}
	return NewMemoryStore(), nil
}
