package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"phonecheck/internal/phone"
	"phonecheck/internal/verdict"
	"phonecheck/pkg/platform/sentinel"
)

const (
	// Redis key prefix for history records
	historyKeyPrefix = "history:"
)

// RedisStore stores records as JSON strings under history:<number>.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRetention expires records after d. Zero keeps records forever.
func WithRetention(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.retention = d
	}
}

// NewRedis constructs a Redis-backed history store.
func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Get returns the current record for n or sentinel.ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, n phone.Number) (*verdict.HistoryRecord, error) {
	raw, err := s.client.Get(ctx, historyKeyPrefix+n.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get history record: %w", err)
	}
	var rec verdict.HistoryRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode history record: %w", err)
	}
	return &rec, nil
}

// Put overwrites the record for rec.Number.
func (s *RedisStore) Put(ctx context.Context, rec verdict.HistoryRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode history record: %w", err)
	}
	if err := s.client.Set(ctx, historyKeyPrefix+rec.Number.String(), raw, s.retention).Err(); err != nil {
		return fmt.Errorf("put history record: %w", err)
	}
	return nil
}
