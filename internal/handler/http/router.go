package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hoodiewala/storefront/internal/session"
	"github.com/hoodiewala/storefront/pkg/health"
	"github.com/hoodiewala/storefront/pkg/middleware"
)

// ServiceName labels metrics and spans produced by the router.
const ServiceName = "storefront"

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	Environment         string
	CatalogWait         time.Duration
	SessionTTL          time.Duration
	SecureCookies       bool
	CORSAllowedOrigins  []string
	PprofAllowedCIDRs   []string
	MetricsAllowedCIDRs []string
}

// NewRouter creates a chi router with the page, the session API and the
// operational endpoints registered. limiter guards contact submissions and
// may be nil; build it with WithLimitedHandler(Limited).
func NewRouter(
	sessions *session.Manager,
	healthHandler *health.Handler,
	limiter *middleware.RateLimiter,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	middleware.RegisterMetrics(r, promhttp.Handler(), cfg.MetricsAllowedCIDRs, logger)

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	// The page
	pageHandler := NewPageHandler(sessions, healthHandler, logger, cfg)

	r.Get("/", pageHandler.Index)
	r.Get("/status", pageHandler.Status)
	r.With(limiterHandler(limiter)).Post("/contact", pageHandler.Contact)
	r.Post("/contact/dismiss", pageHandler.DismissAlert)

	// Session API endpoints
	sessionHandler := NewSessionHandler(sessions, logger, cfg.CatalogWait)

	cors := middleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Environment:    cfg.Environment,
	}

	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Use(middleware.CORS(cors))
		r.Use(ContentTypeJSON)

		r.Post("/", sessionHandler.Create)
		r.Get("/{id}", sessionHandler.Get)
		r.Delete("/{id}", sessionHandler.Delete)
		r.Patch("/{id}/contact", sessionHandler.UpdateContact)
		r.Delete("/{id}/contact/alert", sessionHandler.DismissAlert)
		r.With(limiterHandler(limiter)).Post("/{id}/contact/submit", sessionHandler.SubmitContact)
	})

	return r
}

func limiterHandler(limiter *middleware.RateLimiter) func(http.Handler) http.Handler {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return limiter.Handler
}
