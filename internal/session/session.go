// Package session owns the per-profile filter lifecycle: one store, one gate
// and one shareable address per client profile.
package session

import (
	"context"
	"errors"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/david/bid-filter/internal/dataset"
	"github.com/david/bid-filter/internal/filter"
	"github.com/david/bid-filter/internal/gate"
	"github.com/david/bid-filter/internal/models"
	"github.com/david/bid-filter/internal/persist"
	"github.com/david/bid-filter/internal/query"
	"github.com/david/bid-filter/internal/state"
	"github.com/google/uuid"
)

var ErrApplyDisabled = errors.New("draft filters are invalid")

// SubmitMirror persists a submission outside the in-memory catalog.
type SubmitMirror interface {
	MarkSubmitted(ctx context.Context, id uuid.UUID) error
}

type Options struct {
	MaxKeywords int
	ActionDelay time.Duration
	ApplyDelay  time.Duration
	CurrentKey  string
	PresetKey   string
	Mirror      SubmitMirror
	Now         func() time.Time

	// IdleTTL and MaxLive bound the Registry; zero disables each limit.
	IdleTTL time.Duration
	MaxLive int
}

type Session struct {
	ProfileID uuid.UUID
	Origin    persist.Origin

	store   *state.Store
	gate    *gate.Gate
	share   *persist.URLChannel
	catalog *dataset.Catalog
	mirror  SubmitMirror
	now     func() time.Time

	mu    sync.Mutex
	order query.Order
}

// Open builds a session and hydrates it from initial (the shareable address
// the client arrived with) and the profile's durable channel.
func Open(ctx context.Context, profileID uuid.UUID, catalog *dataset.Catalog, durable persist.DurableChannel, initial url.Values, opts Options) *Session {
	share := persist.NewURLChannel(initial)
	bridge := persist.NewBridge(share, durable)
	if opts.CurrentKey != "" {
		bridge.CurrentKey = opts.CurrentKey
	}
	if opts.PresetKey != "" {
		bridge.PresetKey = opts.PresetKey
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Session{
		ProfileID: profileID,
		store:     state.New(bridge, state.Options{MaxKeywords: opts.MaxKeywords}),
		gate:      gate.New(gate.Options{Delay: opts.ActionDelay, ApplyDelay: opts.ApplyDelay}),
		share:     share,
		catalog:   catalog,
		mirror:    opts.Mirror,
		now:       opts.Now,
		order:     query.DefaultOrder,
	}
	f, origin := s.store.Hydrate(ctx)
	s.Origin = origin
	s.gate.SetApplyDisabled(!filter.Validate(f).OK())
	log.Printf("[session %s] opened from %s", profileID, origin)
	return s
}

// Filters returns the current filters.
func (s *Session) Filters() filter.Filters { return s.store.Get() }

func (s *Session) MaxKeywords() int { return s.store.MaxKeywords() }

// ShareQuery is the bookmarkable query string for the current filters.
func (s *Session) ShareQuery() string { return s.share.Query() }

// Status reports the gate flags.
type Status struct {
	Busy          bool          `json:"busy"`
	ApplyDisabled bool          `json:"apply_disabled"`
	Issues        filter.Issues `json:"issues"`
}

func (s *Session) Status() Status {
	issues := filter.Validate(s.store.Get())
	if issues == nil {
		issues = filter.Issues{}
	}
	return Status{Busy: s.gate.Busy(), ApplyDisabled: s.gate.ApplyDisabled(), Issues: issues}
}

// Navigate adopts a shareable address when it carries any filter key. It
// reports whether the state changed source.
func (s *Session) Navigate(ctx context.Context, values url.Values) (filter.Filters, bool) {
	f, found := filter.Decode(values)
	if !found {
		return s.store.Get(), false
	}
	current := s.store.Get()
	if filter.Equal(f, current) {
		return current, false
	}
	return s.store.SetAll(ctx, f), true
}

// Apply validates draft and, when valid, replaces every field under the gate.
// An invalid draft sets the apply-disabled flag and returns ErrApplyDisabled
// with the issues.
func (s *Session) Apply(ctx context.Context, draft filter.Filters) (filter.Filters, filter.Issues, error) {
	issues := filter.Validate(draft)
	s.gate.SetApplyDisabled(!issues.OK())
	if !issues.OK() {
		return s.store.Get(), issues, ErrApplyDisabled
	}
	f, err := gate.Guard(ctx, s.gate, s.gate.ApplyDelay(), func(ctx context.Context) (filter.Filters, error) {
		return s.store.SetAll(ctx, draft), nil
	})
	return f, issues, err
}

// SetField writes one field under the gate.
func (s *Session) SetField(ctx context.Context, u filter.Update) (filter.Filters, error) {
	return s.guarded(ctx, func(ctx context.Context) (filter.Filters, error) {
		return s.store.Set(ctx, u), nil
	})
}

// AddKeyword appends one keyword. added is false when the keyword is blank,
// a duplicate or over the cap; the filters are then unchanged.
func (s *Session) AddKeyword(ctx context.Context, kw string) (f filter.Filters, added bool, err error) {
	f, err = s.guarded(ctx, func(ctx context.Context) (filter.Filters, error) {
		var out filter.Filters
		out, added = s.store.Modify(ctx, func(cur filter.Filters) (filter.Update, bool) {
			next, ok := filter.AddKeyword(cur.Keywords, kw, s.store.MaxKeywords())
			return filter.SetKeywords(next), ok
		})
		return out, nil
	})
	return f, added, err
}

// RemoveKeyword drops the keyword at idx. Out of range indexes are ignored.
func (s *Session) RemoveKeyword(ctx context.Context, idx int) (filter.Filters, error) {
	return s.guarded(ctx, func(ctx context.Context) (filter.Filters, error) {
		out, _ := s.store.Modify(ctx, func(cur filter.Filters) (filter.Update, bool) {
			if idx < 0 || idx >= len(cur.Keywords) {
				return filter.Update{}, false
			}
			return filter.SetKeywords(filter.RemoveKeyword(cur.Keywords, idx)), true
		})
		return out, nil
	})
}

func (s *Session) Reset(ctx context.Context) (filter.Filters, error) {
	return s.guarded(ctx, func(ctx context.Context) (filter.Filters, error) {
		return s.store.Reset(ctx), nil
	})
}

func (s *Session) SavePreset(ctx context.Context) error {
	return gate.Do(ctx, s.gate, s.gate.Delay(), s.store.SavePreset)
}

// LoadPreset returns persist.ErrNoPreset when nothing was saved.
func (s *Session) LoadPreset(ctx context.Context) (filter.Filters, error) {
	return s.guarded(ctx, s.store.LoadPreset)
}

func (s *Session) guarded(ctx context.Context, action func(context.Context) (filter.Filters, error)) (filter.Filters, error) {
	f, err := gate.Guard(ctx, s.gate, s.gate.Delay(), action)
	if err == nil {
		s.gate.SetApplyDisabled(!filter.Validate(f).OK())
	}
	return f, err
}

// Row is one displayed opportunity.
type Row struct {
	models.Opportunity
	TitleHTML string `json:"title_html"`
}

// Results is what the table and dashboard render.
type Results struct {
	Opportunities []Row          `json:"opportunities"`
	Total         int            `json:"total"`
	Progress      int            `json:"progress"`
	Summary       query.Summary  `json:"summary"`
	Filtered      bool           `json:"filtered"`
	Order         query.Order    `json:"order"`
	Filters       filter.Filters `json:"filters"`
	ShareQuery    string         `json:"share_query"`
}

// Order is the table order last chosen for this session.
func (s *Session) Order() query.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order
}

func (s *Session) SetOrder(o query.Order) {
	s.mu.Lock()
	s.order = o
	s.mu.Unlock()
}

// ToggleSort picks key as the table order, flipping the direction when it is
// already the sort key.
func (s *Session) ToggleSort(key query.SortKey) query.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = s.order.Toggle(key)
	return s.order
}

// Results evaluates the current filters against the catalog and sorts the
// matches by order.
func (s *Session) Results(order query.Order) Results {
	f := s.store.Get()
	res := query.Evaluate(s.catalog.Records(), f, s.now())
	sorted := query.Sort(res.Matches, order)

	rows := make([]Row, len(sorted))
	for i, o := range sorted {
		rows[i] = Row{Opportunity: o, TitleHTML: query.Highlight(o.Title, f.Keywords)}
	}
	return Results{
		Opportunities: rows,
		Total:         len(rows),
		Progress:      res.Progress,
		Summary:       query.Summarize(res.Matches),
		Filtered:      filter.IsFiltered(f),
		Order:         order,
		Filters:       f,
		ShareQuery:    s.share.Query(),
	}
}

// MarkSubmitted updates the shared catalog and the mirror, if any.
func (s *Session) MarkSubmitted(ctx context.Context, id uuid.UUID) (models.Opportunity, error) {
	return gate.Guard(ctx, s.gate, s.gate.Delay(), func(ctx context.Context) (models.Opportunity, error) {
		o, err := s.catalog.MarkSubmitted(id)
		if err != nil {
			return o, err
		}
		if s.mirror != nil {
			if err := s.mirror.MarkSubmitted(ctx, id); err != nil {
				log.Printf("[session %s] failed to mirror submission of %s: %v", s.ProfileID, id, err)
			}
		}
		return o, nil
	})
}

// Busy reports whether a guarded action is in flight.
func (s *Session) Busy() bool { return s.gate.Busy() }
