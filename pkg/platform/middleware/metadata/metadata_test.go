package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phonecheck/pkg/requestcontext"
)

func TestClientIPFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, remote: "10.0.0.2:1234", want: "203.0.113.7"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": " 198.51.100.4 "}, remote: "10.0.0.2:1234", want: "198.51.100.4"},
		{name: "remote addr v4", remote: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "remote addr v6", remote: "[::1]:5555", want: "::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIPFromRequest(r))
		})
	}
}

func TestClassifyUserAgent(t *testing.T) {
	assert.Equal(t, KindUnknown, ClassifyUserAgent(""))
	assert.Equal(t, KindCLI, ClassifyUserAgent("curl/8.4.0"))
	assert.Equal(t, KindBot, ClassifyUserAgent("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"))
	assert.Equal(t, KindMobile, ClassifyUserAgent("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"))
	assert.Equal(t, KindBrowser, ClassifyUserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"))
}

func TestMiddleware(t *testing.T) {
	var captured *http.Request
	h := RequestID(ClientMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
	})))

	t.Run("generates request id", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("User-Agent", "curl/8.4.0")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		require.NotNil(t, captured)
		ctx := captured.Context()
		id := requestcontext.RequestID(ctx)
		assert.NotEmpty(t, id)
		assert.Equal(t, id, w.Header().Get(RequestIDHeader))
		assert.Equal(t, "192.0.2.1", requestcontext.ClientIP(ctx))
		assert.Equal(t, KindCLI, requestcontext.ClientKind(ctx))
		assert.Equal(t, "http", requestcontext.Channel(ctx))
	})

	t.Run("reuses incoming request id", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(RequestIDHeader, "req-123")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, "req-123", requestcontext.RequestID(captured.Context()))
	})
}
