// Package middleware enforces the global throttle and per-IP limits on HTTP
// routes. Limiter errors fail open.
package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"phonecheck/internal/ratelimit/metrics"
	"phonecheck/internal/ratelimit/models"
	"phonecheck/pkg/platform/httputil"
	"phonecheck/pkg/requestcontext"
)

// RateLimiter is implemented by service.Limiter.
type RateLimiter interface {
	CheckIPRateLimit(ctx context.Context, ip string) (*models.Result, error)
	CheckGlobalThrottle(ctx context.Context) (bool, error)
}

type Middleware struct {
	limiter  RateLimiter
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for local runs).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

func New(limiter RateLimiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{limiter: limiter, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit applies the per-IP sliding window.
func (m *Middleware) RateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			result, err := m.limiter.CheckIPRateLimit(ctx, ip)
			if err != nil {
				m.metrics.IncrementStoreError()
				m.logger.ErrorContext(ctx, "failed to check IP rate limit", "error", err, "ip_prefix", anonymizeIP(ip))
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				m.metrics.IncrementRejection("ip")
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"ip_prefix", anonymizeIP(ip),
					"request_id", requestcontext.RequestID(ctx),
				)
				writeRateLimitExceeded(w, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GlobalThrottle caps the request rate across all clients.
func (m *Middleware) GlobalThrottle() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			allowed, err := m.limiter.CheckGlobalThrottle(ctx)
			if err != nil {
				m.metrics.IncrementStoreError()
				m.logger.ErrorContext(ctx, "failed to check global throttle", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				m.metrics.IncrementRejection("global")
				writeServiceOverloaded(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.Envelope{
		Success:   false,
		Error:     "rate_limit_exceeded",
		Message:   "Too many requests from this IP address. Please try again later.",
		Timestamp: time.Now().UTC(),
	})
}

func writeServiceOverloaded(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.Envelope{
		Success:   false,
		Error:     "service_unavailable",
		Message:   "Service is temporarily overloaded. Please try again later.",
		Timestamp: time.Now().UTC(),
	})
}

// anonymizeIP keeps the /24 (IPv4) or /48 (IPv6) prefix for logs.
func anonymizeIP(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	if v4 := parsed.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32)).String()
	}
	return parsed.Mask(net.CIDRMask(48, 128)).String()
}
