package drafts

import (
	"context"
	"strings"
)

// NewStore creates a redis-backed draft store when configured, otherwise
// in-memory.
func NewStore(ctx context.Context, redisAddr string) (Store, error) {
	if strings.TrimSpace(redisAddr) == "" {
		return NewMemoryStore(), nil
	}
	return NewRedisStore(ctx, redisAddr)
}
