// Package gate wraps state-changing actions with a minimum suspension and an
// observable busy flag.
package gate

import (
	"context"
	"sync/atomic"
	"time"
)

// Options configures the suspension applied before guarded actions. Zero
// durations disable the suspension.
type Options struct {
	Delay      time.Duration
	ApplyDelay time.Duration
}

// Gate tracks in-flight guarded actions and the advisory apply-disabled flag.
type Gate struct {
	opts          Options
	inflight      atomic.Int64
	applyDisabled atomic.Bool
}

func New(opts Options) *Gate {
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	if opts.ApplyDelay < 0 {
		opts.ApplyDelay = 0
	}
	return &Gate{opts: opts}
}

// Delay is the suspension used for ordinary actions.
func (g *Gate) Delay() time.Duration { return g.opts.Delay }

// ApplyDelay is the suspension used when applying a draft.
func (g *Gate) ApplyDelay() time.Duration { return g.opts.ApplyDelay }

// Busy reports whether any guarded action is in flight.
func (g *Gate) Busy() bool { return g.inflight.Load() > 0 }

// SetApplyDisabled records the caller's draft validity. Guard never reads it.
func (g *Gate) SetApplyDisabled(disabled bool) { g.applyDisabled.Store(disabled) }

func (g *Gate) ApplyDisabled() bool { return g.applyDisabled.Load() }

// Guard marks g busy, waits for minDuration (or until ctx is done), then runs
// action. Busy is released when the last overlapping call returns, including
// when action fails or panics. Overlapping calls are not cancelled; they race
// and the last one to finish wins.
func Guard[T any](ctx context.Context, g *Gate, minDuration time.Duration, action func(context.Context) (T, error)) (T, error) {
	g.inflight.Add(1)
	defer g.inflight.Add(-1)

	if err := sleep(ctx, minDuration); err != nil {
		var zero T
		return zero, err
	}
	return action(ctx)
}

// Do is Guard for actions without a result.
func Do(ctx context.Context, g *Gate, minDuration time.Duration, action func(context.Context) error) error {
	_, err := Guard(ctx, g, minDuration, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, action(ctx)
	})
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
