// Package state holds the canonical filter value for one session.
package state

import (
	"context"
	"sync"

	"github.com/david/bid-filter/internal/filter"
	"github.com/david/bid-filter/internal/persist"
)

type Options struct {
	// MaxKeywords caps the keyword list; zero means filter.DefaultMaxKeywords.
	MaxKeywords int
}

// Store is the single mutator of a session's filters. Every write is
// mirrored through the bridge before the call returns, under the same lock,
// so the channels always hold the most recently completed write.
type Store struct {
	mu      sync.Mutex
	current filter.Filters
	bridge  *persist.Bridge
	opts    Options
}

// New returns a store holding the defaults. A nil bridge keeps state in
// memory only.
func New(bridge *persist.Bridge, opts Options) *Store {
	if opts.MaxKeywords <= 0 {
		opts.MaxKeywords = filter.DefaultMaxKeywords
	}
	if bridge == nil {
		bridge = persist.NewBridge(nil, nil)
	}
	return &Store{current: filter.Default(), bridge: bridge, opts: opts}
}

// MaxKeywords is the effective keyword cap.
func (s *Store) MaxKeywords() int { return s.opts.MaxKeywords }

// Hydrate loads the starting state from the external channels.
func (s *Store) Hydrate(ctx context.Context) (filter.Filters, persist.Origin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, origin := s.bridge.Hydrate(ctx)
	s.current = s.normalize(f)
	if !filter.Equal(f, s.current) {
		s.bridge.Sync(ctx, s.current)
	}
	return s.current.Clone(), origin
}

func (s *Store) Get() filter.Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Set applies a single-field update and returns the new filters.
func (s *Store) Set(ctx context.Context, u filter.Update) filter.Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replace(ctx, u.Apply(s.current))
}

// Modify builds an update from the current value and applies it under the
// write lock. When fn returns false nothing is written.
func (s *Store) Modify(ctx context.Context, fn func(filter.Filters) (filter.Update, bool)) (filter.Filters, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := fn(s.current.Clone())
	if !ok {
		return s.current.Clone(), false
	}
	return s.replace(ctx, u.Apply(s.current)), true
}

// SetAll replaces every field at once.
func (s *Store) SetAll(ctx context.Context, f filter.Filters) filter.Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replace(ctx, f.Clone())
}

// Reset returns to defaults and clears the current slot. The saved preset is
// kept.
func (s *Store) Reset(ctx context.Context) filter.Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = filter.Default()
	s.bridge.Clear(ctx)
	return s.current.Clone()
}

// SavePreset snapshots the current value into the preset slot.
func (s *Store) SavePreset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bridge.SavePreset(ctx, s.current)
}

// LoadPreset replaces the current value with the saved preset, which is then
// written to both channels like any other bulk set. It returns
// persist.ErrNoPreset when nothing was saved.
func (s *Store) LoadPreset(ctx context.Context) (filter.Filters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.bridge.LoadPreset(ctx)
	if err != nil {
		return s.current.Clone(), err
	}
	return s.replace(ctx, f), nil
}

// replace must be called with mu held.
func (s *Store) replace(ctx context.Context, f filter.Filters) filter.Filters {
	s.current = s.normalize(f)
	s.bridge.Sync(ctx, s.current)
	return s.current.Clone()
}

func (s *Store) normalize(f filter.Filters) filter.Filters {
	f.SetAside = filter.NormalizeTokens(f.SetAside)
	f.Agency = filter.NormalizeTokens(f.Agency)
	f.Keywords = filter.NormalizeKeywords(f.Keywords, s.opts.MaxKeywords)
	return f
}
