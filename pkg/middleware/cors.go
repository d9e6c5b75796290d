package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// SessionHeader carries the session ID on the JSON API.
const SessionHeader = "X-Session-ID"

var (
	corsMethods = strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}, ", ")
	corsAllowedHeaders = strings.Join([]string{"Accept", "Content-Type", CorrelationHeader, SessionHeader}, ", ")
	corsExposedHeaders = strings.Join([]string{CorrelationHeader, SessionHeader}, ", ")
)

const defaultCORSMaxAge = time.Hour

// CORSConfig controls which browser origins may call the session API.
type CORSConfig struct {
	// AllowedOrigins lists exact origins. "*" allows any origin.
	AllowedOrigins []string

	// Environment "development" allows any origin regardless of AllowedOrigins.
	Environment string

	// AllowCredentials sends Access-Control-Allow-Credentials. It is ignored
	// for wildcard origins, which browsers reject with credentials.
	AllowCredentials bool

	// MaxAge is how long a preflight may be cached. Zero means one hour.
	MaxAge time.Duration
}

// CORS answers preflights and decorates responses for allowed origins.
// Requests from other origins pass through without CORS headers, which
// makes the browser block them.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	wildcard := cfg.Environment == "development" || slices.Contains(cfg.AllowedOrigins, "*")
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = defaultCORSMaxAge
	}
	maxAgeSeconds := strconv.Itoa(int(maxAge.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()

			switch {
			case wildcard:
				h.Set("Access-Control-Allow-Origin", "*")
			case origin != "" && slices.Contains(cfg.AllowedOrigins, origin):
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				if cfg.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}
			h.Set("Access-Control-Expose-Headers", corsExposedHeaders)

			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", corsMethods)
				h.Set("Access-Control-Allow-Headers", corsAllowedHeaders)
				h.Set("Access-Control-Max-Age", maxAgeSeconds)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
