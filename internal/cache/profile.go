package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"bapmate/internal/model"
)

const (
	ProfileNamePrefix = "profile:name:"
	ProfileNameTTL    = 10 * time.Minute
)

// NameCache caches display names for room lists and room search.
type NameCache interface {
	// GetNames returns the cached names; ids missing from the result are misses.
	GetNames(ctx context.Context, ids []string) (map[string]string, error)
	// SetNames stores names with a TTL in one pipeline.
	SetNames(ctx context.Context, names map[string]string) error
	Invalidate(ctx context.Context, id string) error
}

type RedisNameCache struct {
	client *redis.Client
}

func NewNameCache(client *redis.Client) NameCache {
	return &RedisNameCache{client: client}
}

func nameKey(id string) string {
	return ProfileNamePrefix + id
}

func (c *RedisNameCache) GetNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = nameKey(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, model.Transient(fmt.Errorf("get cached names: %w", err))
	}
	for i, v := range values {
		if s, ok := v.(string); ok {
			names[ids[i]] = s
		}
	}
	return names, nil
}

func (c *RedisNameCache) SetNames(ctx context.Context, names map[string]string) error {
	if len(names) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for id, name := range names {
		pipe.Set(ctx, nameKey(id), name, ProfileNameTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[NameCache] SetNames FAILED: count=%d err=%v", len(names), err)
		return model.Transient(fmt.Errorf("set cached names: %w", err))
	}
	return nil
}

func (c *RedisNameCache) Invalidate(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, nameKey(id)).Err(); err != nil {
		return model.Transient(fmt.Errorf("invalidate cached name: %w", err))
	}
	return nil
}
