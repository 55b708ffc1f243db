package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"vatguard/pkg/platform/sentinel"
)

const registryCacheKeyPrefix = "vatguard:registry:"

// RedisCache shares registry answers across instances. Expiry is delegated to
// Redis key TTLs.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache constructs a Redis-backed registry cache.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Find returns a cached answer, or sentinel.ErrNotFound.
func (c *RedisCache) Find(ctx context.Context, countryCode, number string) (Status, error) {
	raw, err := c.client.Get(ctx, registryCacheKeyPrefix+countryCode+number).Result()
	if errors.Is(err, redis.Nil) {
		return StatusUnknown, sentinel.ErrNotFound
	}
	if err != nil {
		return StatusUnknown, fmt.Errorf("find registry cache: %w", err)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || !Status(n).Definitive() {
		return StatusUnknown, sentinel.ErrNotFound
	}
	return Status(n), nil
}

// Save stores a definitive answer with the cache TTL.
func (c *RedisCache) Save(ctx context.Context, countryCode, number string, status Status) error {
	if !status.Definitive() {
		return nil
	}
	key := registryCacheKeyPrefix + countryCode + number
	if err := c.client.Set(ctx, key, strconv.Itoa(int(status)), c.ttl).Err(); err != nil {
		return fmt.Errorf("save registry cache: %w", err)
	}
	return nil
}
