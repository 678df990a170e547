package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"phonecheck/internal/ratelimit/models"
	"phonecheck/pkg/requestcontext"
)

type stubLimiter struct {
	result    *models.Result
	ipErr     error
	global    bool
	globalErr error
}

func (s *stubLimiter) CheckIPRateLimit(context.Context, string) (*models.Result, error) {
	return s.result, s.ipErr
}

func (s *stubLimiter) CheckGlobalThrottle(context.Context) (bool, error) {
	return s.global, s.globalErr
}

func serve(h http.Handler) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/api/phone/lookup", nil)
	r = r.WithContext(requestcontext.WithClientMetadata(r.Context(), "203.0.113.9", "curl/8"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestRateLimit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	reset := time.Unix(1_800_000_000, 0)

	t.Run("allowed request gets headers", func(t *testing.T) {
		m := New(&stubLimiter{result: &models.Result{Allowed: true, Limit: 100, Remaining: 99, ResetAt: reset}}, logger)
		w := serve(m.RateLimit()(ok))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "100", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "99", w.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "1800000000", w.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("rejected request gets 429", func(t *testing.T) {
		m := New(&stubLimiter{result: &models.Result{Allowed: false, Limit: 100, ResetAt: reset, RetryAfter: 42}}, logger)
		w := serve(m.RateLimit()(ok))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "42", w.Header().Get("Retry-After"))
		assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
	})

	t.Run("store error fails open", func(t *testing.T) {
		m := New(&stubLimiter{ipErr: errors.New("redis down")}, logger)
		w := serve(m.RateLimit()(ok))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("disabled skips the limiter", func(t *testing.T) {
		m := New(&stubLimiter{result: &models.Result{Allowed: false}}, logger, WithDisabled(true))
		w := serve(m.RateLimit()(ok))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestGlobalThrottle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	w := serve(New(&stubLimiter{global: false}, logger).GlobalThrottle()(ok))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = serve(New(&stubLimiter{globalErr: errors.New("boom")}, logger).GlobalThrottle()(ok))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnonymizeIP(t *testing.T) {
	assert.Equal(t, "203.0.113.0", anonymizeIP("203.0.113.9"))
	assert.Equal(t, "2001:db8:1::", anonymizeIP("2001:db8:1:2::5"))
	assert.Empty(t, anonymizeIP("not-an-ip"))
}
