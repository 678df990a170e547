// Package admin guards write operations on the safelist and blacklist.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "phonecheck/pkg/domain-errors"
	"phonecheck/pkg/platform/httputil"
	"phonecheck/pkg/requestcontext"
)

// HeaderAdminToken carries the admin token.
const HeaderAdminToken = "X-Admin-Token"

// RequireAdminToken rejects requests whose X-Admin-Token does not match
// expectedToken. An empty expectedToken lets every request through.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expectedToken == "" {
				next.ServeHTTP(w, r)
				return
			}
			token := r.Header.Get(HeaderAdminToken)
			// Constant-time comparison
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
					"subject", requestcontext.Subject(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
