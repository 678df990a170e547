// Package redis opens the shared go-redis client used by the history,
// blacklist, OTP and rate-limit stores.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"phonecheck/internal/platform/config"
)

// Client embeds the go-redis client so stores can take *redis.Client directly.
type Client struct {
	*redis.Client
}

// Options translates cfg into go-redis options. Zero-valued tuning fields keep
// the go-redis defaults.
func Options(cfg config.RedisConfig) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	for dst, src := range map[*time.Duration]time.Duration{
		&opts.DialTimeout:  cfg.DialTimeout,
		&opts.ReadTimeout:  cfg.ReadTimeout,
		&opts.WriteTimeout: cfg.WriteTimeout,
	} {
		if src > 0 {
			*dst = src
		}
	}
	return opts, nil
}

// Open connects and pings. Returns nil if no URL is configured.
func Open(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := Options(cfg)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: rdb}, nil
}

// Health pings the server and reports pool exhaustion.
func (c *Client) Health(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return err
	}
	if stats := c.PoolStats(); stats.TotalConns > 0 && stats.IdleConns == 0 && stats.Timeouts > 0 {
		return fmt.Errorf("redis pool exhausted: %d timeouts", stats.Timeouts)
	}
	return nil
}
