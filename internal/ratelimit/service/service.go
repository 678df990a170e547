// Package service applies the configured limits to incoming requests.
package service

import (
	"context"
	"time"

	"phonecheck/internal/ratelimit/models"
)

// BucketStore counts requests per key.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
	Reset(ctx context.Context, key string) error
}

// Limiter checks per-IP and global limits against a bucket store.
type Limiter struct {
	store  BucketStore
	limits models.Limits
}

func New(store BucketStore, limits models.Limits) *Limiter {
	if limits.PerIP <= 0 || limits.IPWindow <= 0 {
		def := models.DefaultLimits()
		limits.PerIP, limits.IPWindow = def.PerIP, def.IPWindow
	}
	if limits.GlobalWindow <= 0 {
		limits.GlobalWindow = time.Second
	}
	return &Limiter{store: store, limits: limits}
}

// CheckIPRateLimit counts one request from ip.
func (l *Limiter) CheckIPRateLimit(ctx context.Context, ip string) (*models.Result, error) {
	return l.store.Allow(ctx, models.KeyPrefixIP+ip, l.limits.PerIP, l.limits.IPWindow)
}

// CheckGlobalThrottle counts one request against the global budget.
// Always allowed when no global limit is configured.
func (l *Limiter) CheckGlobalThrottle(ctx context.Context) (bool, error) {
	if l.limits.Global <= 0 {
		return true, nil
	}
	res, err := l.store.Allow(ctx, models.KeyGlobalBucket, l.limits.Global, l.limits.GlobalWindow)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

// ResetIP clears the counter for ip.
func (l *Limiter) ResetIP(ctx context.Context, ip string) error {
	return l.store.Reset(ctx, models.KeyPrefixIP+ip)
}
