package persist

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"github.com/david/bid-filter/internal/filter"
	"github.com/google/go-cmp/cmp"
)

type failingDurable struct{}

func (failingDurable) Get(context.Context, string) ([]byte, error) { return nil, errors.New("disk on fire") }
func (failingDurable) Put(context.Context, string, []byte) error   { return errors.New("disk on fire") }
func (failingDurable) Delete(context.Context, string) error        { return errors.New("disk on fire") }

func mustSnapshot(t *testing.T, f filter.Filters) []byte {
	t.Helper()
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestHydratePrefersShareableChannel(t *testing.T) {
	ctx := context.Background()
	durable := NewMemoryDurable()
	_ = durable.Put(ctx, DefaultCurrentKey, mustSnapshot(t, filter.Filters{NAICS: "111111"}))

	share := NewURLChannel(url.Values{"naics": {"541512"}, "keywords": {"cloud, ai"}, "sort": {"fitScore"}})
	b := NewBridge(share, durable)

	f, origin := b.Hydrate(ctx)
	if origin != OriginShare {
		t.Fatalf("expected share origin, got %s", origin)
	}
	if f.NAICS != "541512" || !cmp.Equal(f.Keywords, []string{"cloud", "ai"}) {
		t.Fatalf("unexpected filters %+v", f)
	}

	if got := share.Query(); got != "keywords=cloud%2Cai&naics=541512" {
		t.Fatalf("share channel not canonicalized: %q", got)
	}

	// The adopted state is mirrored into the current slot right away.
	data, err := durable.Get(ctx, DefaultCurrentKey)
	if err != nil {
		t.Fatal(err)
	}
	mirrored, err := filter.DecodeSnapshot(data)
	if err != nil {
		t.Fatal(err)
	}
	if !filter.Equal(mirrored, f) {
		t.Fatalf("current slot not mirrored: %+v", mirrored)
	}
}

func TestHydrateFallsBackToDurableThenDefaults(t *testing.T) {
	ctx := context.Background()
	durable := NewMemoryDurable()
	saved := filter.Filters{Vehicle: "OASIS+", Ceiling: filter.AtLeast(1000)}
	_ = durable.Put(ctx, DefaultCurrentKey, mustSnapshot(t, saved))

	// Unknown keys only: not a filter address.
	share := NewURLChannel(url.Values{"sort": {"fitScore"}})
	b := NewBridge(share, durable)
	f, origin := b.Hydrate(ctx)
	if origin != OriginDurable || !filter.Equal(f, saved) {
		t.Fatalf("expected durable snapshot, got %s %+v", origin, f)
	}
	if want := filter.Encode(saved).Encode(); share.Query() != want {
		t.Fatalf("share channel not restored from durable: got %q, want %q", share.Query(), want)
	}

	_ = share.Replace(ctx, nil)
	_ = durable.Put(ctx, DefaultCurrentKey, []byte("{corrupt"))
	f, origin = b.Hydrate(ctx)
	if origin != OriginDefaults || filter.IsFiltered(f) {
		t.Fatalf("corrupt snapshot must fall back to defaults, got %s %+v", origin, f)
	}

	f, origin = NewBridge(nil, nil).Hydrate(ctx)
	if origin != OriginDefaults || filter.IsFiltered(f) {
		t.Fatalf("expected defaults without channels, got %s %+v", origin, f)
	}

	f, origin = NewBridge(nil, failingDurable{}).Hydrate(ctx)
	if origin != OriginDefaults || filter.IsFiltered(f) {
		t.Fatalf("expected defaults on read failure, got %s %+v", origin, f)
	}
}

func TestSyncAndClear(t *testing.T) {
	ctx := context.Background()
	durable := NewMemoryDurable()
	share := NewURLChannel(nil)
	b := NewBridge(share, durable)

	f := filter.Filters{NAICS: "541512", SetAside: []string{"8(a)", "WOSB"}}
	b.Sync(ctx, f)
	if got := share.Query(); got != "naics=541512&setAside=8%28a%29%2CWOSB" {
		t.Fatalf("unexpected share query %q", got)
	}
	if err := b.SavePreset(ctx, f); err != nil {
		t.Fatal(err)
	}

	b.Clear(ctx)
	if share.Query() != "" {
		t.Fatalf("share channel not cleared: %q", share.Query())
	}
	if _, err := durable.Get(ctx, DefaultCurrentKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("current slot not cleared: %v", err)
	}
	if _, err := durable.Get(ctx, DefaultPresetKey); err != nil {
		t.Fatalf("preset must survive clear: %v", err)
	}

	// Failing channels are best effort.
	NewBridge(share, failingDurable{}).Sync(ctx, f)
	if share.Query() == "" {
		t.Fatal("share channel must still be written when durable fails")
	}
}

func TestPresetSlot(t *testing.T) {
	ctx := context.Background()
	durable := NewMemoryDurable()
	b := NewBridge(nil, durable)

	if _, err := b.LoadPreset(ctx); !errors.Is(err, ErrNoPreset) {
		t.Fatalf("expected ErrNoPreset, got %v", err)
	}

	p, _ := filter.ParsePeriod("2026-01-01_2026-06-30")
	want := filter.Filters{Agency: []string{"DHS"}, Period: p, Keywords: []string{"zero trust"}}
	if err := b.SavePreset(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := b.LoadPreset(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !filter.Equal(got, want) {
		t.Fatalf("preset mismatch: %+v", got)
	}

	_ = durable.Put(ctx, DefaultPresetKey, []byte("[]"))
	if _, err := b.LoadPreset(ctx); !errors.Is(err, ErrNoPreset) {
		t.Fatalf("corrupt preset must report ErrNoPreset, got %v", err)
	}

	if err := NewBridge(nil, nil).SavePreset(ctx, want); err == nil {
		t.Fatal("expected error without durable channel")
	}
}

func TestFileDurable(t *testing.T) {
	ctx := context.Background()
	d, err := NewFileDurable(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := d.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := d.Put(ctx, "../escape/key", []byte(`{"naics":"1"}`)); err != nil {
		t.Fatal(err)
	}
	data, err := d.Get(ctx, "../escape/key")
	if err != nil || string(data) != `{"naics":"1"}` {
		t.Fatalf("unexpected read %q %v", data, err)
	}
	if err := d.Delete(ctx, "../escape/key"); err != nil {
		t.Fatal(err)
	}
	if err := d.Delete(ctx, "../escape/key"); err != nil {
		t.Fatalf("deleting a missing key must succeed: %v", err)
	}
}
