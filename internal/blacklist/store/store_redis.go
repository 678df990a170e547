package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"phonecheck/internal/blacklist"
	"phonecheck/internal/phone"
	"phonecheck/pkg/platform/sentinel"
)

// redisHashKey holds every entry as field=<number>, value=JSON.
const redisHashKey = "blacklist"

type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, n phone.Number) (*blacklist.Entry, error) {
	raw, err := s.client.HGet(ctx, redisHashKey, n.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blacklist hget: %w", err)
	}
	var e blacklist.Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode blacklist entry: %w", err)
	}
	return &e, nil
}

func (s *RedisStore) Put(ctx context.Context, e blacklist.Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode blacklist entry: %w", err)
	}
	if err := s.client.HSet(ctx, redisHashKey, e.Number.String(), raw).Err(); err != nil {
		return fmt.Errorf("blacklist hset: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, n phone.Number) error {
	removed, err := s.client.HDel(ctx, redisHashKey, n.String()).Result()
	if err != nil {
		return fmt.Errorf("blacklist hdel: %w", err)
	}
	if removed == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]blacklist.Entry, error) {
	all, err := s.client.HGetAll(ctx, redisHashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("blacklist hgetall: %w", err)
	}
	out := make([]blacklist.Entry, 0, len(all))
	for field, raw := range all {
		var e blacklist.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode blacklist entry %s: %w", field, err)
		}
		out = append(out, e)
	}
	sortNewestFirst(out)
	return out, nil
}
