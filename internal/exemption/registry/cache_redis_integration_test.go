//go:build integration

package registry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vatguard/internal/exemption/registry"
	"vatguard/pkg/platform/sentinel"
	"vatguard/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *registry.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = registry.NewRedisCache(s.redis.Client, time.Hour)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushKeys(context.Background()))
}

func (s *RedisCacheSuite) TestRoundTrip() {
	ctx := context.Background()

	s.Run("miss returns not found", func() {
		_, err := s.cache.Find(ctx, "DE", "123456789")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("definitive answers are stored with a ttl", func() {
		s.Require().NoError(s.cache.Save(ctx, "DE", "123456789", registry.StatusRegistered))

		status, err := s.cache.Find(ctx, "DE", "123456789")
		s.Require().NoError(err)
		s.Equal(registry.StatusRegistered, status)

		ttl, err := s.redis.Client.TTL(ctx, "vatguard:registry:DE123456789").Result()
		s.Require().NoError(err)
		s.Greater(ttl, time.Duration(0))
	})

	s.Run("unknown answers are never stored", func() {
		s.Require().NoError(s.cache.Save(ctx, "FR", "12345678901", registry.StatusUnknown))

		_, err := s.cache.Find(ctx, "FR", "12345678901")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("corrupt values read as a miss", func() {
		s.Require().NoError(s.redis.Client.Set(ctx, "vatguard:registry:NL123456789B01", "junk", time.Hour).Err())

		_, err := s.cache.Find(ctx, "NL", "123456789B01")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
