// Package metadata captures client details for every request: IP address,
// user agent, client kind and a request ID.
package metadata

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"phonecheck/pkg/requestcontext"
)

// RequestIDHeader carries the request ID in and out.
const RequestIDHeader = "X-Request-ID"

// Client kinds recorded in analytics.
const (
	KindBot     = "bot"
	KindMobile  = "mobile"
	KindBrowser = "browser"
	KindCLI     = "cli"
	KindUnknown = "unknown"
)

// RequestID reuses an incoming X-Request-ID or generates one, echoes it on
// the response and stores it in the context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(requestcontext.WithRequestID(r.Context(), id)))
	})
}

// ClientMetadata extracts client IP address and User-Agent from the request
// and adds them to the context. Apply early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.Header.Get("User-Agent")
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), ua)
		ctx = requestcontext.WithClientKind(ctx, ClassifyUserAgent(ua))
		ctx = requestcontext.WithChannel(ctx, "http")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClassifyUserAgent maps a User-Agent header to a coarse client kind.
func ClassifyUserAgent(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return KindUnknown
	}
	lower := strings.ToLower(header)
	for _, tool := range []string{"curl/", "wget/", "httpie/", "go-http-client/", "python-requests/", "phonecheck/"} {
		if strings.HasPrefix(lower, tool) {
			return KindCLI
		}
	}

	ua := useragent.New(header)
	switch {
	case ua.Bot():
		return KindBot
	case ua.Mobile():
		return KindMobile
	}
	if name, _ := ua.Browser(); name != "" {
		return KindBrowser
	}
	return KindUnknown
}

// ClientIPFromRequest extracts the client IP, honoring proxy headers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For: client, proxy1, proxy2
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
