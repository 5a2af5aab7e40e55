package reachability

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func waitEvent(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reachability event")
	}
}

func expectNoEvent(t *testing.T, ch <-chan struct{}, d time.Duration) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("unexpected reachability event")
	case <-time.After(d):
	}
}

func TestFirstProbeEmitsEvent(t *testing.T) {
	p := NewWithProbe(func(ctx context.Context) bool { return true }, time.Hour)
	p.Start(context.Background())
	defer p.Stop()

	waitEvent(t, p.Events())
	if !p.Online() {
		t.Error("Online() = false after successful probe")
	}
}

func TestEventOnlyOnStateChange(t *testing.T) {
	var online atomic.Bool
	online.Store(true)

	p := NewWithProbe(func(ctx context.Context) bool { return online.Load() }, 10*time.Millisecond)
	p.Start(context.Background())
	defer p.Stop()

	// First probe: unknown -> online
	waitEvent(t, p.Events())

	// Steady state: no further events while connectivity holds
	expectNoEvent(t, p.Events(), 100*time.Millisecond)

	// Flip offline, then back online: one event each
	online.Store(false)
	waitEvent(t, p.Events())
	if p.Online() {
		t.Error("Online() = true after failed probe")
	}

	online.Store(true)
	waitEvent(t, p.Events())
	if !p.Online() {
		t.Error("Online() = false after recovery")
	}
}

func TestStopClosesEventChannel(t *testing.T) {
	p := NewWithProbe(func(ctx context.Context) bool { return false }, time.Hour)
	p.Start(context.Background())

	waitEvent(t, p.Events())
	p.Stop()

	select {
	case _, ok := <-p.Events():
		if ok {
			t.Error("expected closed channel after Stop")
		}
	case <-time.After(time.Second):
		t.Fatal("event channel not closed after Stop")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	p := NewWithProbe(func(ctx context.Context) bool { return true }, time.Hour)
	p.Start(context.Background())
	p.Stop()
	p.Stop()
}
