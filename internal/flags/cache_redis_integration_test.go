//go:build integration

package flags

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type RedisCacheSuite struct {
	suite.Suite
	container *tcredis.RedisContainer
	client    *redis.Client
	cache     *RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	s.Require().NoError(err)
	s.container = container

	uri, err := container.ConnectionString(ctx)
	s.Require().NoError(err)

	opts, err := redis.ParseURL(uri)
	s.Require().NoError(err)
	s.client = redis.NewClient(opts)
	s.Require().NoError(s.client.Ping(ctx).Err())

	s.cache = NewRedisCache(s.client, "test:flag:")
}

func (s *RedisCacheSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.client.FlushAll(context.Background()).Err())
}

func (s *RedisCacheSuite) TestMissThenHit() {
	ctx := context.Background()

	_, ok, err := s.cache.Get(ctx, "ES")
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.cache.Put(ctx, "ES", pngBytes))

	data, ok, err := s.cache.Get(ctx, "ES")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(pngBytes, data)

	ttl, err := s.client.TTL(ctx, "test:flag:ES").Result()
	s.Require().NoError(err)
	s.Equal(int64(-1), int64(ttl), "flag keys never expire")
}

func (s *RedisCacheSuite) TestProviderFillsRedis() {
	ctx := context.Background()
	disk := NewDiskCache(s.T().TempDir())
	s.Require().NoError(disk.Put(ctx, "JP", pngBytes))

	p := NewCachedProvider(nil, []Cache{s.cache, disk}, quietLogger(), nil)
	data, err := p.Flag(ctx, "jp")
	s.Require().NoError(err)
	s.Equal(pngBytes, data)

	data, ok, err := s.cache.Get(ctx, "JP")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(pngBytes, data)
}
