package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/david/bid-filter/internal/filter"
)

// Default durable keys.
const (
	DefaultCurrentKey = "opportunity-filters"
	DefaultPresetKey  = "opportunity-filters_saved"
)

// Origin says where hydrated state came from.
type Origin string

const (
	OriginShare    Origin = "share"
	OriginDurable  Origin = "durable"
	OriginDefaults Origin = "defaults"
)

// Bridge is the only writer of the external channels. Both channels are
// optional; a nil channel is skipped.
type Bridge struct {
	Share      ShareChannel
	Durable    DurableChannel
	CurrentKey string
	PresetKey  string
}

func NewBridge(share ShareChannel, durable DurableChannel) *Bridge {
	return &Bridge{
		Share:      share,
		Durable:    durable,
		CurrentKey: DefaultCurrentKey,
		PresetKey:  DefaultPresetKey,
	}
}

// Hydrate picks the session's starting state: the shareable channel when it
// carries any recognized key (rewritten in canonical form and mirrored into
// the current slot), otherwise the current slot (written back to the
// shareable channel), otherwise defaults. Read failures and corrupt entries
// fall through to the next source and are only logged.
func (b *Bridge) Hydrate(ctx context.Context) (filter.Filters, Origin) {
	if b.Share != nil {
		values, err := b.Share.Values(ctx)
		if err != nil {
			log.Printf("[persist] shareable channel unreadable: %v", err)
		} else if f, found := filter.Decode(values); found {
			b.Sync(ctx, f)
			return f, OriginShare
		}
	}

	if f, err := b.read(ctx, b.CurrentKey); err == nil {
		b.writeShare(ctx, f)
		return f, OriginDurable
	} else if !errors.Is(err, ErrNotFound) {
		log.Printf("[persist] ignoring current snapshot: %v", err)
	}

	return filter.Default(), OriginDefaults
}

// Sync mirrors f into both channels. Failures are logged and do not stop the
// caller.
func (b *Bridge) Sync(ctx context.Context, f filter.Filters) {
	b.writeShare(ctx, f)
	b.writeCurrent(ctx, f)
}

// Clear empties the shareable channel and removes the current slot. The
// saved preset is left alone.
func (b *Bridge) Clear(ctx context.Context) {
	if b.Share != nil {
		if err := b.Share.Replace(ctx, nil); err != nil {
			log.Printf("[persist] failed to clear shareable channel: %v", err)
		}
	}
	if b.Durable != nil {
		if err := b.Durable.Delete(ctx, b.CurrentKey); err != nil {
			log.Printf("[persist] failed to delete %s: %v", b.CurrentKey, err)
		}
	}
}

// SavePreset snapshots f into the preset slot.
func (b *Bridge) SavePreset(ctx context.Context, f filter.Filters) error {
	if b.Durable == nil {
		return fmt.Errorf("save preset: no durable channel")
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode preset: %w", err)
	}
	if err := b.Durable.Put(ctx, b.PresetKey, data); err != nil {
		return fmt.Errorf("save preset: %w", err)
	}
	return nil
}

// LoadPreset reads the preset slot. A missing or unreadable preset is
// reported as ErrNoPreset.
func (b *Bridge) LoadPreset(ctx context.Context) (filter.Filters, error) {
	if b.Durable == nil {
		return filter.Default(), ErrNoPreset
	}
	f, err := b.read(ctx, b.PresetKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("[persist] preset unreadable: %v", err)
		}
		return filter.Default(), ErrNoPreset
	}
	return f, nil
}

func (b *Bridge) read(ctx context.Context, key string) (filter.Filters, error) {
	if b.Durable == nil {
		return filter.Default(), ErrNotFound
	}
	data, err := b.Durable.Get(ctx, key)
	if err != nil {
		return filter.Default(), err
	}
	return filter.DecodeSnapshot(data)
}

func (b *Bridge) writeShare(ctx context.Context, f filter.Filters) {
	if b.Share == nil {
		return
	}
	if err := b.Share.Replace(ctx, filter.Encode(f)); err != nil {
		log.Printf("[persist] failed to update shareable channel: %v", err)
	}
}

func (b *Bridge) writeCurrent(ctx context.Context, f filter.Filters) {
	if b.Durable == nil {
		return
	}
	data, err := json.Marshal(f)
	if err != nil {
		log.Printf("[persist] failed to encode current snapshot: %v", err)
		return
	}
	if err := b.Durable.Put(ctx, b.CurrentKey, data); err != nil {
		log.Printf("[persist] failed to write %s: %v", b.CurrentKey, err)
	}
}
