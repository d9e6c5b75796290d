// Package catalog loads the hoodie catalog once per page activation and
// exposes the result as one of three states: loading, loaded or failed.
package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hoodiewala/storefront/internal/domain"
	"github.com/hoodiewala/storefront/pkg/tracing"
)

// FailureMessage is shown in place of the catalog when the load fails.
const FailureMessage = "Unable to load hoodies right now."

// DefaultTimeout bounds a single catalog fetch.
const DefaultTimeout = 10 * time.Second

// State is the loader's position in its lifecycle.
type State string

// Loader states. Loaded and Failed are terminal.
const (
	StateLoading State = "loading"
	StateLoaded  State = "loaded"
	StateFailed  State = "failed"
)

// Terminal reports whether s can no longer change.
func (s State) Terminal() bool {
	return s == StateLoaded || s == StateFailed
}

// Fetcher reads the full catalog from the backend.
type Fetcher interface {
	ListHoodies(ctx context.Context) ([]domain.Product, error)
}

// View is an immutable snapshot of a loader.
type View struct {
	State     State            `json:"state"`
	Products  []domain.Product `json:"products"`
	Error     string           `json:"error,omitempty"`
	StartedAt time.Time        `json:"started_at"`
}

// Cards returns the render-ready cards of a loaded catalog.
func (v View) Cards() []domain.ProductCard {
	return domain.Cards(v.Products)
}

// Result is what a fetch produced.
type Result struct {
	Products []domain.Product
	Err      error
}

// resolve is the only transition out of Loading. Terminal views are returned
// unchanged.
func resolve(v View, r Result) View {
	if v.State.Terminal() {
		return v
	}
	if r.Err != nil {
		return View{State: StateFailed, Products: []domain.Product{}, Error: FailureMessage, StartedAt: v.StartedAt}
	}
	products := r.Products
	if products == nil {
		products = []domain.Product{}
	}
	return View{State: StateLoaded, Products: products, StartedAt: v.StartedAt}
}

// Observer is told about the terminal view once, after it is reached.
type Observer func(ctx context.Context, v View)

// Option configures a Loader.
type Option func(*Loader)

// WithTimeout bounds the background fetch.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) { l.timeout = d }
}

// WithObserver registers fn to run once the loader settles.
func WithObserver(fn Observer) Option {
	return func(l *Loader) { l.observer = fn }
}

// Loader owns one catalog fetch and its outcome.
type Loader struct {
	fetcher  Fetcher
	logger   *slog.Logger
	timeout  time.Duration
	observer Observer
	now      func() time.Time

	mu      sync.Mutex
	view    View
	started bool
	closed  bool
	cancel  context.CancelFunc
	timer   *time.Timer
	settled chan struct{}
	stop    chan struct{}
}

// NewLoader returns a loader in the Loading state. Nothing is fetched until Start.
func NewLoader(fetcher Fetcher, logger *slog.Logger, opts ...Option) *Loader {
	l := &Loader{
		fetcher: fetcher,
		logger:  logger,
		timeout: DefaultTimeout,
		now:     time.Now,
		view:    View{State: StateLoading, Products: []domain.Product{}},
		settled: make(chan struct{}),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Restore rebuilds a loader from a persisted view. A restored loader never
// fetches. If the view is still Loading, the owner of the original fetch is
// assumed gone and the loader fails once the fetch timeout has elapsed since
// StartedAt.
func Restore(v View, logger *slog.Logger, opts ...Option) *Loader {
	l := NewLoader(nil, logger, opts...)
	l.started = true
	if v.Products == nil {
		v.Products = []domain.Product{}
	}
	l.view = v

	if v.State.Terminal() {
		close(l.settled)
		return l
	}

	remaining := l.timeout - l.now().Sub(v.StartedAt)
	if remaining <= 0 {
		l.settle(context.Background(), Result{Err: context.DeadlineExceeded})
		return l
	}
	l.timer = time.AfterFunc(remaining, func() {
		l.settle(context.Background(), Result{Err: context.DeadlineExceeded})
	})
	return l
}

// Start issues the catalog fetch in the background. Only the first call has
// any effect. The fetch outlives ctx's cancellation but keeps its values.
func (l *Loader) Start(ctx context.Context) {
	l.mu.Lock()
	if l.started || l.closed {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.view.StartedAt = l.now().UTC()

	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	l.cancel = cancel
	l.mu.Unlock()

	go func() {
		defer cancel()
		products, err := l.fetch(fetchCtx)
		l.settle(fetchCtx, Result{Products: products, Err: err})
	}()
}

func (l *Loader) fetch(ctx context.Context) ([]domain.Product, error) {
	ctx, span := tracing.Start(ctx, "catalog", "load")
	defer span.End()

	start := time.Now()
	products, err := l.fetcher.ListHoodies(ctx)
	loadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		tracing.Fail(span, err, "catalog load failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("catalog.count", len(products)))
	return products, nil
}

// settle applies r unless the loader was closed or already settled.
func (l *Loader) settle(ctx context.Context, r Result) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.logger.DebugContext(ctx, "catalog result discarded after close")
		return
	}
	if l.view.State.Terminal() {
		l.mu.Unlock()
		return
	}
	l.view = resolve(l.view, r)
	v := l.view
	close(l.settled)
	l.mu.Unlock()

	if r.Err != nil {
		loadsTotal.WithLabelValues(string(StateFailed)).Inc()
		l.logger.WarnContext(ctx, "catalog load failed", slog.String("error", r.Err.Error()))
	} else {
		loadsTotal.WithLabelValues(string(StateLoaded)).Inc()
		l.logger.InfoContext(ctx, "catalog loaded", slog.Int("count", len(v.Products)))
	}

	if l.observer != nil {
		l.observer(ctx, v)
	}
}

// View returns the current snapshot.
func (l *Loader) View() View {
	l.mu.Lock()
	defer l.mu.Unlock()
	v := l.view
	v.Products = append([]domain.Product(nil), l.view.Products...)
	if v.Products == nil {
		v.Products = []domain.Product{}
	}
	return v
}

// Wait blocks until the loader is terminal, closed, or ctx is done, and
// returns the view at that moment.
func (l *Loader) Wait(ctx context.Context) View {
	select {
	case <-l.settled:
	case <-l.stop:
	case <-ctx.Done():
	}
	return l.View()
}

// Close tears the loader down. An in-flight fetch is cancelled and its
// result, should it still arrive, is discarded.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.stop)
	if l.cancel != nil {
		l.cancel()
	}
	if l.timer != nil {
		l.timer.Stop()
	}
}
