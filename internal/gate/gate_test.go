package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestGuardBusyLifecycle(t *testing.T) {
	g := New(Options{})
	if g.Busy() {
		t.Fatal("new gate must be idle")
	}

	got, err := Guard(context.Background(), g, 0, func(context.Context) (int, error) {
		if !g.Busy() {
			t.Error("busy must be set while the action runs")
		}
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("unexpected result %d %v", got, err)
	}
	if g.Busy() {
		t.Fatal("busy must be cleared after success")
	}

	boom := errors.New("boom")
	if err := Do(context.Background(), g, 0, func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected action error, got %v", err)
	}
	if g.Busy() {
		t.Fatal("busy must be cleared after failure")
	}

	func() {
		defer func() { _ = recover() }()
		_ = Do(context.Background(), g, 0, func(context.Context) error { panic("bad") })
	}()
	if g.Busy() {
		t.Fatal("busy must be cleared after panic")
	}
}

func TestGuardHonoursContext(t *testing.T) {
	g := New(Options{Delay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := Do(ctx, g, g.Delay(), func(context.Context) error {
		ran = true
		return nil
	})
	if !errors.Is(err, context.Canceled) || ran {
		t.Fatalf("expected cancellation before the action, got err=%v ran=%v", err, ran)
	}
	if g.Busy() {
		t.Fatal("busy must be cleared after cancellation")
	}
}

func TestGuardWaitsMinimumDuration(t *testing.T) {
	g := New(Options{Delay: 20 * time.Millisecond})
	start := time.Now()
	_ = Do(context.Background(), g, g.Delay(), func(context.Context) error { return nil })
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("guard returned after %s", elapsed)
	}
}

func TestApplyDisabledIsAdvisory(t *testing.T) {
	g := New(Options{})
	g.SetApplyDisabled(true)
	if !g.ApplyDisabled() {
		t.Fatal("flag not recorded")
	}
	ran := false
	_ = Do(context.Background(), g, 0, func(context.Context) error { ran = true; return nil })
	if !ran {
		t.Fatal("guard must not block on the apply-disabled flag")
	}
}

// Two overlapping actions: the first started finishes last, so its write is
// the one that sticks.
func TestOverlappingGuardsLastCompletedWins(t *testing.T) {
	g := New(Options{})
	var (
		mu    sync.Mutex
		value string
		wg    sync.WaitGroup
	)
	write := func(v string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			value = v
			mu.Unlock()
			return nil
		}
	}

	slowStarted := make(chan struct{})
	wg.Add(2)
	go func() {
		defer wg.Done()
		close(slowStarted)
		_ = Do(context.Background(), g, 50*time.Millisecond, write("slow"))
	}()
	<-slowStarted
	go func() {
		defer wg.Done()
		_ = Do(context.Background(), g, 0, write("fast"))
	}()
	wg.Wait()

	if value != "slow" {
		t.Fatalf("expected last completed write to win, got %q", value)
	}
	if g.Busy() {
		t.Fatal("busy must be cleared once both actions finish")
	}
}
