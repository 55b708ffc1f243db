package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSessionTTL matches a typical storefront session lifetime.
const DefaultSessionTTL = 48 * time.Hour

const redisKeyPrefix = "vatguard:"

// RedisStore keeps one hash per owner and refreshes its TTL on every write.
// Suited to the session scope, where eventual visibility is acceptable and
// values must disappear with the session.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithTTL sets the per-owner expiry. Zero disables expiry.
func WithTTL(ttl time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// NewRedisStore constructs a Redis-backed store.
func NewRedisStore(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{client: client, ttl: DefaultSessionTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func redisKey(scope Scope, owner string) string {
	return redisKeyPrefix + string(scope) + ":" + owner
}

func (s *RedisStore) Read(ctx context.Context, scope Scope, key Key) (string, bool, error) {
	if err := validate(scope, key.Owner); err != nil {
		return "", false, err
	}
	v, err := s.client.HGet(ctx, redisKey(scope, key.Owner), key.Name).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s %s: %w", scope, key, err)
	}
	return v, true, nil
}

// Write sets the field and refreshes the owner's TTL atomically.
func (s *RedisStore) Write(ctx context.Context, scope Scope, key Key, value string) error {
	if err := validate(scope, key.Owner); err != nil {
		return err
	}
	rk := redisKey(scope, key.Owner)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, rk, key.Name, value)
	if s.ttl > 0 {
		pipe.Expire(ctx, rk, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write %s %s: %w", scope, key, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, scope Scope, owner string) error {
	if err := validate(scope, owner); err != nil {
		return err
	}
	if err := s.client.Del(ctx, redisKey(scope, owner)).Err(); err != nil {
		return fmt.Errorf("clear %s %s: %w", scope, owner, err)
	}
	return nil
}
