package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hoodiewala/storefront/pkg/logger"
)

// SessionCookie is the cookie carrying the storefront session ID.
const SessionCookie = "storefront_session"

// RequestLogger stores a request-scoped logger in the context. It carries
// correlation_id, session_id, trace_id and span_id, so it must be mounted
// after RequestLogging and Tracing. Handlers fetch it with logger.FromContext.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id := requestSessionID(r); id != "" {
				ctx = logger.WithSessionID(ctx, id)
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestSessionID prefers the page cookie over the API header.
func requestSessionID(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.Header.Get(SessionHeader)
}
