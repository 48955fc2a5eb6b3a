package session

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/david/bid-filter/internal/dataset"
	"github.com/david/bid-filter/internal/persist"
	"github.com/google/uuid"
)

// DurableFactory returns the durable channel scoped to one profile.
type DurableFactory func(profileID uuid.UUID) (persist.DurableChannel, error)

// MemoryDurables gives every profile its own in-memory channel.
func MemoryDurables() DurableFactory {
	var mu sync.Mutex
	channels := make(map[uuid.UUID]*persist.MemoryDurable)
	return func(id uuid.UUID) (persist.DurableChannel, error) {
		mu.Lock()
		defer mu.Unlock()
		ch, ok := channels[id]
		if !ok {
			ch = persist.NewMemoryDurable()
			channels[id] = ch
		}
		return ch, nil
	}
}

// FileDurables keeps each profile's slots in dir/<profile id>.
func FileDurables(dir string) DurableFactory {
	return func(id uuid.UUID) (persist.DurableChannel, error) {
		return persist.NewFileDurable(filepath.Join(dir, id.String()))
	}
}

// Registry hands out one live session per profile. Sessions idle longer than
// Options.IdleTTL are dropped by Sweep, and opening a session beyond
// Options.MaxLive evicts the least recently used one. Sessions with an action
// in flight are never evicted.
type Registry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*entry
	catalog  *dataset.Catalog
	durables DurableFactory
	opts     Options
	now      func() time.Time
}

type entry struct {
	session  *Session
	lastUsed time.Time
}

func NewRegistry(catalog *dataset.Catalog, durables DurableFactory, opts Options) *Registry {
	if durables == nil {
		durables = MemoryDurables()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		sessions: make(map[uuid.UUID]*entry),
		catalog:  catalog,
		durables: durables,
		opts:     opts,
		now:      now,
	}
}

// Get returns the profile's session, opening it from initial when it does not
// exist yet. For a live session, initial is treated as a navigation.
func (r *Registry) Get(ctx context.Context, profileID uuid.UUID, initial url.Values) (*Session, error) {
	r.mu.Lock()
	if e, ok := r.sessions[profileID]; ok {
		e.lastUsed = r.now()
		r.mu.Unlock()
		if len(initial) > 0 {
			e.session.Navigate(ctx, initial)
		}
		return e.session, nil
	}

	durable, err := r.durables(profileID)
	if err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("open durable channel for %s: %w", profileID, err)
	}
	if r.opts.MaxLive > 0 && len(r.sessions) >= r.opts.MaxLive {
		r.evictOldestLocked()
	}
	s := Open(ctx, profileID, r.catalog, durable, initial, r.opts)
	r.sessions[profileID] = &entry{session: s, lastUsed: r.now()}
	r.mu.Unlock()
	return s, nil
}

// evictOldestLocked drops the least recently used idle session. r.mu must be
// held.
func (r *Registry) evictOldestLocked() {
	var (
		oldestID uuid.UUID
		oldest   *entry
	)
	for id, e := range r.sessions {
		if e.session.Busy() {
			continue
		}
		if oldest == nil || e.lastUsed.Before(oldest.lastUsed) {
			oldestID, oldest = id, e
		}
	}
	if oldest != nil {
		delete(r.sessions, oldestID)
		log.Printf("[session %s] evicted, live session limit %d reached", oldestID, r.opts.MaxLive)
	}
}

// Sweep closes every session unused for longer than the idle TTL and returns
// how many it closed. It is a no-op without an idle TTL.
func (r *Registry) Sweep() int {
	if r.opts.IdleTTL <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.opts.IdleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()
	closed := 0
	for id, e := range r.sessions {
		if e.lastUsed.Before(cutoff) && !e.session.Busy() {
			delete(r.sessions, id)
			closed++
		}
	}
	if closed > 0 {
		log.Printf("[session] swept %d idle sessions, %d live", closed, len(r.sessions))
	}
	return closed
}

// Run sweeps idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || r.opts.IdleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close drops a session. Its durable slots stay where they are.
func (r *Registry) Close(profileID uuid.UUID) {
	r.mu.Lock()
	delete(r.sessions, profileID)
	r.mu.Unlock()
}

// CloseAll drops every session, typically on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	n := len(r.sessions)
	r.sessions = make(map[uuid.UUID]*entry)
	r.mu.Unlock()
	log.Printf("[session] closed %d sessions", n)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Catalog is the dataset shared by every session.
func (r *Registry) Catalog() *dataset.Catalog { return r.catalog }
