package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hoodiewala/storefront/internal/backend"
	"github.com/hoodiewala/storefront/internal/config"
	"github.com/hoodiewala/storefront/internal/event"
	handler "github.com/hoodiewala/storefront/internal/handler/http"
	"github.com/hoodiewala/storefront/internal/session"
	"github.com/hoodiewala/storefront/pkg/database"
	"github.com/hoodiewala/storefront/pkg/health"
	"github.com/hoodiewala/storefront/pkg/httpclient"
	pkgkafka "github.com/hoodiewala/storefront/pkg/kafka"
	"github.com/hoodiewala/storefront/pkg/middleware"
	"github.com/hoodiewala/storefront/pkg/tracing"
)

// backendBreaker names the circuit breaker in front of the backend.
const backendBreaker = "storefront-backend"

// closer releases one dependency during shutdown.
type closer struct {
	name    string
	timeout time.Duration
	close   func(context.Context) error
}

// App owns the storefront's dependencies and its HTTP server.
type App struct {
	logger   *slog.Logger
	sessions *session.Manager
	limiter  *middleware.RateLimiter
	server   *http.Server
	// closers run in order after the server has drained.
	closers []closer
}

// NewApp builds every dependency from cfg. Redis is dialled eagerly so a bad
// address fails startup; the backend and Kafka are only checked by readiness.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{logger: logger}

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:  handler.ServiceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTELEndpoint,
		SampleRate:   cfg.OTELSampleRate,
		Enabled:      cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.closers = append(a.closers, closer{"tracer", 3 * time.Second, tracerShutdown})

	checks := health.NewHandler()
	client := newBackendClient(cfg, logger)
	checks.RegisterCritical("backend", client.Ping)

	publisher := a.newPublisher(cfg, checks)
	store, err := a.newSessionStore(ctx, cfg, checks)
	if err != nil {
		_ = a.closeAll()
		return nil, err
	}

	sessCfg := session.DefaultConfig()
	sessCfg.TTL = cfg.SessionTTL()
	sessCfg.FetchTimeout = cfg.BackendTimeout
	sessCfg.SubmitTimeout = cfg.BackendTimeout
	a.sessions = session.NewManager(store, client, client, publisher, logger, sessCfg)
	// Live sessions close before the publisher and store they write to.
	a.closers = append([]closer{{"sessions", 5 * time.Second, a.sessions.Shutdown}}, a.closers...)

	a.limiter = middleware.NewRateLimiter(
		cfg.ContactRateLimitRPS,
		cfg.ContactRateLimitBurst,
		logger,
		middleware.WithLimitedHandler(handler.Limited),
	)

	router := handler.NewRouter(a.sessions, checks, a.limiter, logger, handler.RouterConfig{
		Environment:         cfg.Environment,
		CatalogWait:         cfg.CatalogWait,
		SessionTTL:          cfg.SessionTTL(),
		SecureCookies:       cfg.Environment != "development",
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		PprofAllowedCIDRs:   cfg.PprofAllowedCIDRs,
		MetricsAllowedCIDRs: cfg.MetricsAllowedCIDRs,
	})

	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// GET / may wait CatalogWait for a fetch bounded by BackendTimeout.
		WriteTimeout: cfg.CatalogWait + cfg.BackendTimeout + 5*time.Second,
		IdleTimeout:  time.Minute,
	}
	return a, nil
}

// newBackendClient sends each backend call once, through a circuit breaker.
func newBackendClient(cfg *config.Config, logger *slog.Logger) *backend.Client {
	transport := httpclient.New(httpclient.Config{
		Timeout:         cfg.BackendTimeout,
		MaxConnsPerHost: 32,
		UserAgent:       "hoodiewala-storefront/0.1",
	})
	breaker := httpclient.NewCircuitBreakerClient(transport, httpclient.CircuitBreakerConfig{
		Name:         backendBreaker,
		MaxRequests:  cfg.CBMaxRequests,
		Interval:     time.Duration(cfg.CBInterval) * time.Second,
		Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
		FailureRatio: cfg.CBFailureRatio,
		MinRequests:  cfg.CBMinRequests,
	}, logger)

	client := backend.NewClient(breaker, cfg.BackendURL, logger)
	logger.Info("backend client ready",
		slog.String("base_url", client.BaseURL()),
		slog.String("breaker", backendBreaker),
	)
	return client
}

func (a *App) newSessionStore(ctx context.Context, cfg *config.Config, checks *health.Handler) (session.Store, error) {
	if cfg.SessionStore != config.SessionStoreRedis {
		return session.NewMemoryStore(), nil
	}

	redisCfg := database.DefaultRedisConfig(cfg.RedisAddr)
	redisCfg.Password = cfg.RedisPass
	redisCfg.DB = cfg.RedisDB
	rdb, err := database.NewRedisClient(ctx, redisCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.closers = append(a.closers, closer{"redis", time.Second, func(context.Context) error { return rdb.Close() }})

	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, rdb, handler.ServiceName); err != nil {
		a.logger.Warn("redis pool metrics not registered", slog.String("error", err.Error()))
	}
	a.logger.Info("session store on redis",
		slog.String("addr", cfg.RedisAddr),
		slog.Int("db", cfg.RedisDB),
	)

	store := session.NewRedisStore(rdb)
	checks.RegisterCritical("redis", store.Ping)
	return store, nil
}

func (a *App) newPublisher(cfg *config.Config, checks *health.Handler) event.Publisher {
	if !cfg.EventsEnabled {
		return event.NopPublisher{}
	}

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), a.logger)
	a.closers = append(a.closers, closer{"kafka", 5 * time.Second, func(context.Context) error { return producer.Close() }})
	checks.RegisterNonCritical("kafka", producer.Ping)
	a.logger.Info("publishing storefront events", slog.Any("brokers", cfg.KafkaBrokers))
	return event.NewProducer(producer, a.logger)
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves HTTP and runs the background sweepers until ctx is done, then
// shuts down.
func (a *App) Run(ctx context.Context) error {
	background, stop := context.WithCancel(context.Background())
	defer stop()
	go a.limiter.Run(background)
	go a.sessions.Run(background)

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-serveErr:
		return errors.Join(err, a.closeAll())
	}
	return a.Shutdown()
}

// Shutdown drains in-flight requests, then closes live sessions (their
// snapshots stay in the store), the tracer, the Kafka producer and Redis, in
// that order.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Error("http server shutdown failed", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	errs = append(errs, a.closeAll())

	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeAll() error {
	var errs []error
	for _, c := range a.closers {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		if err := c.close(ctx); err != nil {
			a.logger.Error("close failed", slog.String("component", c.name), slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
		cancel()
	}
	a.closers = nil
	return errors.Join(errs...)
}
