// Package reachability emits connectivity-change events by periodically
// probing the remote endpoint. Consumers only learn "recheck now"; the
// event carries no payload.
package reachability

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	stateUnknown int32 = iota
	stateOffline
	stateOnline
)

// Prober watches network reachability
type Prober struct {
	probe    func(ctx context.Context) bool
	interval time.Duration

	state  atomic.Int32
	events chan struct{}
	stopCh chan struct{}
	stop   sync.Once
	wg     sync.WaitGroup
}

// New creates a prober that issues HEAD requests against baseURL
func New(baseURL string, interval, timeout time.Duration) *Prober {
	client := &http.Client{Timeout: timeout}
	return NewWithProbe(func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return true
	}, interval)
}

// NewWithProbe creates a prober with a custom probe function
func NewWithProbe(probe func(ctx context.Context) bool, interval time.Duration) *Prober {
	return &Prober{
		probe:    probe,
		interval: interval,
		events:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
}

// Events returns the channel of reachability-change events
func (p *Prober) Events() <-chan struct{} {
	return p.events
}

// Online reports the last observed connectivity state
func (p *Prober) Online() bool {
	return p.state.Load() == stateOnline
}

// Start probes immediately, then on every interval tick, until Stop or ctx
// cancellation
func (p *Prober) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
	slog.Info("reachability prober started", "interval", p.interval)
}

// Stop ends probing and closes the event channel
func (p *Prober) Stop() {
	p.stop.Do(func() {
		close(p.stopCh)
	})
	p.wg.Wait()
}

func (p *Prober) run(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.events)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.check(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.check(ctx)
		}
	}
}

// check runs one probe and emits an event when the observed state differs
// from the last one. The first probe always counts as a change.
func (p *Prober) check(ctx context.Context) {
	next := stateOffline
	if p.probe(ctx) {
		next = stateOnline
	}

	prev := p.state.Swap(next)
	if prev == next {
		return
	}

	slog.Debug("reachability changed", "online", next == stateOnline)

	select {
	case p.events <- struct{}{}:
	default:
		// An unconsumed event already means "recheck"; coalesce.
	}
}
