//go:build integration

// Package containers starts throwaway Redis and PostgreSQL instances for
// integration tests and connects to them through the same code the service
// uses in production.
package containers

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"phonecheck/internal/platform/config"
	platformredis "phonecheck/internal/platform/redis"
)

// RedisContainer is a running Redis plus a connected client.
type RedisContainer struct {
	Container testcontainers.Container
	Config    config.RedisConfig
	Client    *redis.Client
}

// NewRedisContainer starts Redis 7 and connects via platform/redis.Open.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	url, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("redis connection string: %v", err)
	}

	cfg := config.RedisConfig{URL: url, PoolSize: 4}
	client, err := platformredis.Open(ctx, cfg)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("connect redis: %v", err)
	}
	if err := client.Health(ctx); err != nil {
		_ = client.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("redis health: %v", err)
	}
	return &RedisContainer{Container: container, Config: cfg, Client: client.Client}
}

// FlushAll empties the database between tests.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}

func (r *RedisContainer) Close(t *testing.T) {
	t.Helper()
	_ = r.Client.Close()
	if err := r.Container.Terminate(context.Background()); err != nil {
		t.Logf("terminate redis container: %v", err)
	}
}
