package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPromptStore implements PromptStore on Redis, for deployments
// where the prompt state must survive restarts and be shared across
// instances.
type RedisPromptStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisPromptStore creates a Redis-backed prompt store. Entries
// expire after ttl, which should be at least the prompt interval.
func NewRedisPromptStore(client *redis.Client, prefix string, ttl time.Duration) *RedisPromptStore {
	if prefix == "" {
		prefix = "authsync:prompt:"
	}
	if ttl <= 0 {
		ttl = DefaultPromptInterval
	}
	return &RedisPromptStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisPromptStore) key(key string) string {
	return s.prefix + key
}

func (s *RedisPromptStore) LastShown(ctx context.Context, key string) (time.Time, error) {
	result, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("redis prompt: read failed: %w", err)
	}

	var unixMilli int64
	if _, err := fmt.Sscanf(result, "%d", &unixMilli); err != nil {
		return time.Time{}, fmt.Errorf("redis prompt: parse failed: %w", err)
	}
	return time.UnixMilli(unixMilli), nil
}

func (s *RedisPromptStore) MarkShown(ctx context.Context, key string, at time.Time) error {
	if err := s.client.Set(ctx, s.key(key), at.UnixMilli(), s.ttl).Err(); err != nil {
		return fmt.Errorf("redis prompt: write failed: %w", err)
	}
	return nil
}
