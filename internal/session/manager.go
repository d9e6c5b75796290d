package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hoodiewala/storefront/internal/catalog"
	"github.com/hoodiewala/storefront/internal/contact"
	"github.com/hoodiewala/storefront/internal/domain"
	"github.com/hoodiewala/storefront/internal/event"
	"github.com/hoodiewala/storefront/pkg/logger"
)

// Config holds session lifecycle settings.
type Config struct {
	TTL            time.Duration
	FetchTimeout   time.Duration
	SubmitTimeout  time.Duration
	SweepInterval  time.Duration
	PublishTimeout time.Duration
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		TTL:            30 * time.Minute,
		FetchTimeout:   catalog.DefaultTimeout,
		SubmitTimeout:  contact.DefaultTimeout,
		SweepInterval:  time.Minute,
		PublishTimeout: 5 * time.Second,
	}
}

type liveEntry struct {
	sess     *Session
	lastSeen time.Time
}

// Manager creates, resumes and ends page activations. Live sessions are kept
// in memory; their snapshots go to the Store so another instance, or this one
// after eviction, can resume them.
type Manager struct {
	store   Store
	fetcher catalog.Fetcher
	sender  contact.Sender
	events  event.Publisher
	logger  *slog.Logger
	cfg     Config
	now     func() time.Time

	mu   sync.Mutex
	live map[string]*liveEntry

	publishing sync.WaitGroup
}

// NewManager creates a session manager.
func NewManager(store Store, fetcher catalog.Fetcher, sender contact.Sender, events event.Publisher, logger *slog.Logger, cfg Config) *Manager {
	if events == nil {
		events = event.NopPublisher{}
	}
	return &Manager{
		store:   store,
		fetcher: fetcher,
		sender:  sender,
		events:  events,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
		live:    make(map[string]*liveEntry),
	}
}

// Activate starts a new page activation and its catalog load.
func (m *Manager) Activate(ctx context.Context) (*Session, error) {
	id := uuid.NewString()
	sess := &Session{
		ID:        id,
		CreatedAt: m.now().UTC(),
		Catalog: catalog.NewLoader(m.fetcher, m.logger.With(slog.String("session_id", id)),
			catalog.WithTimeout(m.cfg.FetchTimeout),
			catalog.WithObserver(m.catalogSettled(id)),
		),
		Contact: m.newForm(id, nil),
	}

	m.mu.Lock()
	m.live[id] = &liveEntry{sess: sess, lastSeen: m.now()}
	m.mu.Unlock()
	sessionsActive.Inc()

	if _, err := sess.save(ctx, m.store, m.cfg.TTL); err != nil {
		m.evict(id, "")
		return nil, fmt.Errorf("save new session: %w", err)
	}

	sess.Catalog.Start(logger.WithSessionID(ctx, id))

	m.logger.InfoContext(ctx, "session activated", slog.String("session_id", id))
	return sess, nil
}

// Get returns the live session for id, resuming it from the store when this
// instance does not hold it.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	if e, ok := m.live[id]; ok {
		e.lastSeen = m.now()
		m.mu.Unlock()
		return e.sess, nil
	}
	m.mu.Unlock()

	snap, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	sess := m.restore(snap)

	m.mu.Lock()
	if e, ok := m.live[id]; ok {
		e.lastSeen = m.now()
		m.mu.Unlock()
		sess.close()
		return e.sess, nil
	}
	m.live[id] = &liveEntry{sess: sess, lastSeen: m.now()}
	m.mu.Unlock()
	sessionsActive.Inc()

	if sess.Catalog.View().State != snap.Catalog.State {
		if err := m.Save(ctx, sess); err != nil {
			m.logger.WarnContext(ctx, "failed to save resumed session",
				slog.String("session_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	m.logger.InfoContext(ctx, "session resumed", slog.String("session_id", id))
	return sess, nil
}

func (m *Manager) restore(snap Snapshot) *Session {
	return &Session{
		ID:        snap.ID,
		CreatedAt: snap.CreatedAt,
		Catalog: catalog.Restore(snap.Catalog, m.logger.With(slog.String("session_id", snap.ID)),
			catalog.WithTimeout(m.cfg.FetchTimeout),
			catalog.WithObserver(m.catalogSettled(snap.ID)),
		),
		Contact: m.newForm(snap.ID, &snap.Contact),
	}
}

func (m *Manager) newForm(id string, from *contact.View) *contact.Form {
	l := m.logger.With(slog.String("session_id", id))
	opts := []contact.Option{
		contact.WithTimeout(m.cfg.SubmitTimeout),
		contact.WithSentObserver(m.contactSent(id)),
	}
	if from != nil {
		return contact.Restore(*from, m.sender, l, opts...)
	}
	return contact.NewForm(m.sender, l, opts...)
}

// Save persists the current snapshot of s and refreshes its TTL. Saving a
// session that has ended is a no-op, so a request finishing after End does
// not bring it back.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	if e, ok := m.live[s.ID]; ok {
		e.lastSeen = m.now()
	}
	m.mu.Unlock()

	saved, err := s.save(ctx, m.store, m.cfg.TTL)
	if err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	if !saved {
		m.logger.DebugContext(ctx, "save of ended session dropped", slog.String("session_id", s.ID))
	}
	return nil
}

// End tears the session down. Results of in-flight work arriving later are
// discarded.
func (m *Manager) End(ctx context.Context, id string) error {
	if !m.evict(id, "deleted") {
		if _, err := m.store.Load(ctx, id); err != nil {
			return err
		}
		sessionsEnded.WithLabelValues("deleted").Inc()
	}

	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}

	m.logger.InfoContext(ctx, "session ended", slog.String("session_id", id))
	return nil
}

// evict removes id from the live set and closes it. It reports whether the
// session was live.
func (m *Manager) evict(id, reason string) bool {
	m.mu.Lock()
	e, ok := m.live[id]
	delete(m.live, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	e.sess.close()
	sessionsActive.Dec()
	if reason != "" {
		sessionsEnded.WithLabelValues(reason).Inc()
	}
	return true
}

// Sweep ends live sessions idle for longer than the TTL and returns how many
// were ended.
func (m *Manager) Sweep() int {
	now := m.now()

	m.mu.Lock()
	var expired []string
	for id, e := range m.live {
		if now.Sub(e.lastSeen) > m.cfg.TTL {
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()

	n := 0
	for _, id := range expired {
		if m.evict(id, "expired") {
			n++
		}
	}
	if sweeper, ok := m.store.(interface{ Sweep() int }); ok {
		sweeper.Sweep()
	}
	if n > 0 {
		m.logger.Info("expired sessions swept", slog.Int("count", n))
	}
	return n
}

// Run sweeps expired sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Active returns the number of live sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Shutdown closes every live session, keeping snapshots in the store, and
// waits for pending event publishes until ctx is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.live))
	for id := range m.live {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.evict(id, "")
	}

	done := make(chan struct{})
	go func() {
		m.publishing.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) catalogSettled(id string) catalog.Observer {
	return func(ctx context.Context, v catalog.View) {
		m.publish(ctx, func(ctx context.Context) error {
			if v.State == catalog.StateLoaded {
				return m.events.CatalogLoaded(ctx, id, len(v.Products))
			}
			return m.events.CatalogFailed(ctx, id, v.Error)
		})

		m.mu.Lock()
		e, ok := m.live[id]
		m.mu.Unlock()
		if !ok {
			return
		}
		if _, err := e.sess.save(ctx, m.store, m.cfg.TTL); err != nil {
			m.logger.WarnContext(ctx, "failed to save settled catalog",
				slog.String("session_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (m *Manager) contactSent(id string) contact.SentObserver {
	return func(ctx context.Context, msg domain.ContactMessage) {
		m.publish(ctx, func(ctx context.Context) error {
			return m.events.ContactSent(ctx, id, msg.EmailDomain(), msg.Phone != "")
		})
	}
}

// publish runs fn in the background so event delivery never holds up the
// page. Failures are logged only.
func (m *Manager) publish(ctx context.Context, fn func(context.Context) error) {
	m.publishing.Add(1)
	go func() {
		defer m.publishing.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.PublishTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			m.logger.WarnContext(ctx, "failed to publish storefront event", slog.String("error", err.Error()))
		}
	}()
}
