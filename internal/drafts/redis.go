package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Abandoned questionnaires age out instead of accumulating.
const draftTTL = 24 * time.Hour

// RedisStore keeps drafts in Redis so a multi-replica deployment shares
// questionnaire progress.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return &RedisStore{client: client}, nil
}

func draftKey(userID int64) string {
	return fmt.Sprintf("questmaster:draft:%d", userID)
}

func (s *RedisStore) Get(ctx context.Context, userID int64) (Draft, bool, error) {
	raw, err := s.client.Get(ctx, draftKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return Draft{}, false, nil
	}
	if err != nil {
		return Draft{}, false, fmt.Errorf("get draft %d: %w", userID, err)
	}
	var d Draft
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		// Treat an unreadable draft like a missing one; the questionnaire
		// simply restarts.
		return Draft{}, false, nil
	}
	return d, true, nil
}

func (s *RedisStore) Put(ctx context.Context, userID int64, draft Draft) error {
	raw, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode draft %d: %w", userID, err)
	}
	if err := s.client.Set(ctx, draftKey(userID), raw, draftTTL).Err(); err != nil {
		return fmt.Errorf("put draft %d: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, draftKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete draft %d: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
