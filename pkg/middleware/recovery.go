package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	apperrors "github.com/hoodiewala/storefront/pkg/errors"
	"github.com/hoodiewala/storefront/pkg/httputil"
	"github.com/hoodiewala/storefront/pkg/logger"
)

const recoveredPage = `<!doctype html><html><head><title>Hoodie Wala</title></head>` +
	`<body><p role="alert">Something went wrong. Please reload the page.</p></body></html>`

// Recovery turns a handler panic into a 500. Page requests get a minimal
// HTML page; API calls and everything else get the JSON error envelope.
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				l.ErrorContext(r.Context(), "panic recovered",
					slog.String("panic", fmt.Sprint(rec)),
					slog.String("stack", string(debug.Stack())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				writeRecovered(w, r)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func writeRecovered(w http.ResponseWriter, r *http.Request) {
	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(recoveredPage))
		return
	}
	kind := apperrors.KindInternal
	httputil.WriteJSON(w, kind.Status, httputil.Response{Error: &httputil.ErrorResponse{
		Code:      kind.Code,
		Message:   kind.Message,
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	}})
}

func wantsHTML(r *http.Request) bool {
	return !strings.HasPrefix(r.URL.Path, "/api/") &&
		strings.Contains(r.Header.Get("Accept"), "text/html")
}
