// Package session tracks page activations. Each session owns one catalog
// loader and one contact form; the pair is persisted as a Snapshot.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/hoodiewala/storefront/internal/catalog"
	"github.com/hoodiewala/storefront/internal/contact"
)

// Session is one live page activation.
type Session struct {
	ID        string
	CreatedAt time.Time
	Catalog   *catalog.Loader
	Contact   *contact.Form

	// persist orders snapshot writes and teardown.
	persist sync.Mutex
	ended   bool
}

// Snapshot is the persisted form of a Session.
type Snapshot struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	Catalog   catalog.View `json:"catalog"`
	Contact   contact.View `json:"contact"`
}

// Snapshot captures the current state of both controllers.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Catalog:   s.Catalog.View(),
		Contact:   s.Contact.View(),
	}
}

// save writes the current snapshot to store. The snapshot is taken and
// written under one lock, so writes land in the order their snapshots were
// taken. It reports false, writing nothing, once the session has ended.
func (s *Session) save(ctx context.Context, store Store, ttl time.Duration) (bool, error) {
	s.persist.Lock()
	defer s.persist.Unlock()
	if s.ended {
		return false, nil
	}
	return true, store.Save(ctx, s.Snapshot(), ttl)
}

// close tears down both controllers. It waits for a save in progress, and
// later saves are dropped.
func (s *Session) close() {
	s.persist.Lock()
	s.ended = true
	s.persist.Unlock()
	s.Catalog.Close()
	s.Contact.Close()
}

// Store persists session snapshots. Load returns an error wrapping
// apperrors.ErrNotFound for unknown or expired ids.
type Store interface {
	Save(ctx context.Context, snap Snapshot, ttl time.Duration) error
	Load(ctx context.Context, id string) (Snapshot, error)
	Delete(ctx context.Context, id string) error
}
