package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"phonecheck/internal/otp"
	"phonecheck/internal/phone"
	"phonecheck/pkg/platform/sentinel"
)

const redisKeyPrefix = "otp:"

// RedisStore keeps each challenge under otp:<number>, expiring with it.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, c otp.Challenge) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode otp challenge: %w", err)
	}
	ttl := time.Until(c.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := s.client.Set(ctx, redisKeyPrefix+c.Number.String(), raw, ttl).Err(); err != nil {
		return fmt.Errorf("otp set: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, n phone.Number) (*otp.Challenge, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+n.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("otp get: %w", err)
	}
	var c otp.Challenge
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode otp challenge: %w", err)
	}
	return &c, nil
}

func (s *RedisStore) Delete(ctx context.Context, n phone.Number) error {
	if err := s.client.Del(ctx, redisKeyPrefix+n.String()).Err(); err != nil {
		return fmt.Errorf("otp del: %w", err)
	}
	return nil
}
