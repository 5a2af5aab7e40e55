// Package outbox implements the sync engine that drains the durable
// mutation queue against the remote notes endpoint.
//
// The engine is a single logical worker: change notifications on the outbox
// table and reachability events both collapse into drain triggers, at most
// one drain pass runs at a time, and a trigger arriving while a pass is
// active is dropped rather than queued. Each pass processes a snapshot of
// the queue in creation order, so a note's create always reaches the remote
// before any later update or delete targeting it.
package outbox

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vonshlovens/charnotes/internal/note"
	"github.com/vonshlovens/charnotes/internal/remote"
	"github.com/vonshlovens/charnotes/internal/store"
)

// Remote is the slice of the notes endpoint the engine replays against
type Remote interface {
	CreateNote(ctx context.Context, text string, characterID int64) (int64, error)
	UpdateNote(ctx context.Context, targetID int64, text string, characterID int64) error
	DeleteNote(ctx context.Context, targetID int64) error
}

// Config holds retry and backoff settings
type Config struct {
	MaxAttempts int
	BackoffStep time.Duration
	BackoffMax  time.Duration
}

// DefaultConfig returns the stock retry policy
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		BackoffStep: time.Second,
		BackoffMax:  5 * time.Second,
	}
}

// Engine drains the outbox queue
type Engine struct {
	store  *store.Store
	notes  *note.Repository
	outbox *note.OutboxRepository
	remote Remote
	cfg    Config

	// running is held for the whole life of a scheduled pass; Trigger
	// drops signals while it is set.
	running atomic.Bool
	signals chan struct{}
	stopCh  chan struct{}
	stop    sync.Once
	wg      sync.WaitGroup
	unsubs  []func()

	// injectable for tests
	sleep func(ctx context.Context, d time.Duration)
	now   func() time.Time
}

// NewEngine creates a sync engine over the given store and remote client
func NewEngine(s *store.Store, rem Remote, cfg Config) *Engine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.BackoffStep <= 0 {
		cfg.BackoffStep = DefaultConfig().BackoffStep
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = DefaultConfig().BackoffMax
	}

	return &Engine{
		store:   s,
		notes:   note.NewRepository(s),
		outbox:  note.NewOutboxRepository(s),
		remote:  rem,
		cfg:     cfg,
		signals: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		sleep:   sleepCtx,
		now:     time.Now,
	}
}

// Start subscribes to outbox commits and launches the worker goroutine.
// Stop (or ctx cancellation) ends it.
func (e *Engine) Start(ctx context.Context) {
	e.unsubs = append(e.unsubs, e.store.Subscribe(note.TableOutbox, e.Trigger))

	e.wg.Add(1)
	go e.run(ctx)

	// Pick up whatever was enqueued while the engine was down
	e.Trigger()

	slog.Info("outbox engine started", "max_attempts", e.cfg.MaxAttempts)
}

// Observe forwards every event from ch into a drain trigger until the
// engine stops. Used for reachability-change notifications.
func (e *Engine) Observe(ch <-chan struct{}) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-e.stopCh:
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				e.Trigger()
			}
		}
	}()
}

// Stop tears down subscriptions and waits for the worker. An in-flight
// pass finishes its current entry, then observes the stop and exits
// without touching the store again.
func (e *Engine) Stop() {
	e.stop.Do(func() {
		close(e.stopCh)
		for _, unsub := range e.unsubs {
			unsub()
		}
	})
	e.wg.Wait()
	slog.Info("outbox engine stopped")
}

// Trigger requests a drain pass. If a pass is already running or scheduled
// the signal is dropped; the state change that pass commits will raise the
// next signal.
func (e *Engine) Trigger() {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	select {
	case e.signals <- struct{}{}:
	default:
		// Unreachable while the flag discipline holds: the channel is
		// empty whenever the swap succeeds.
		e.running.Store(false)
	}
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-e.signals:
			e.drainPass(ctx, nil)
			e.running.Store(false)
		}
	}
}

// RunOnce performs a single synchronous drain pass, reporting per-entry
// progress when progress is non-nil. Meant for one-shot CLI use; it shares
// the running flag with the background worker, so it refuses to overlap an
// active pass.
func (e *Engine) RunOnce(ctx context.Context, progress func(done, total int)) (int, error) {
	if !e.running.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer e.running.Store(false)
	return e.drainPass(ctx, progress)
}

// drainPass processes a snapshot of the queue taken at pass start. Entries
// enqueued mid-pass wait for the next triggered pass. Returns the number of
// snapshot entries visited.
func (e *Engine) drainPass(ctx context.Context, progress func(done, total int)) (int, error) {
	snapshot, err := e.outbox.ListOrdered(ctx)
	if err != nil {
		slog.Error("failed to snapshot outbox", "error", err)
		return 0, err
	}
	if len(snapshot) == 0 {
		return 0, nil
	}

	slog.Debug("drain pass started", "entries", len(snapshot))

	for i := range snapshot {
		if !e.alive(ctx) {
			return i, nil
		}
		e.processEntry(ctx, snapshot[i].ID)
		if progress != nil {
			progress(i+1, len(snapshot))
		}
	}

	slog.Debug("drain pass finished", "entries", len(snapshot))
	return len(snapshot), nil
}

// processEntry replays one outbox entry and applies the outcome. A failed
// replay never aborts the pass; it increments the attempt counter and costs
// a backoff delay before the next entry.
func (e *Engine) processEntry(ctx context.Context, id string) {
	entry, err := e.outbox.GetByID(ctx, id)
	if err != nil {
		slog.Error("failed to re-fetch outbox entry", "id", id, "error", err)
		return
	}
	if entry == nil {
		// Resolved by an earlier pass
		return
	}

	payload := note.DecodePayload(entry.Payload)

	n, err := e.notes.GetByID(ctx, entry.NoteLocalID)
	if err != nil {
		slog.Error("failed to fetch note for entry", "id", id, "error", err)
		n = nil
	}

	ok, remoteID := e.replay(ctx, entry, payload, n)

	attemptBefore := entry.Attempt

	if err := e.applyOutcome(ctx, entry, ok, remoteID); err != nil {
		slog.Error("failed to apply replay outcome", "id", id, "error", err)
	}

	if !ok {
		e.sleep(ctx, e.backoff(attemptBefore))
	}
}

// replay dispatches one entry against the remote endpoint and normalizes
// every transport or status failure to ok=false. The payload snapshot wins
// over the live note for fields it captured.
func (e *Engine) replay(ctx context.Context, entry *note.OutboxEntry, payload note.Payload, n *note.Note) (ok bool, remoteID int64) {
	switch entry.Op {
	case note.OpCreate:
		id, err := e.remote.CreateNote(ctx, textFor(payload, n), characterFor(payload, n))
		if err != nil {
			slog.Debug("create replay failed", "entry", entry.ID, "error", err)
			return false, 0
		}
		return true, id

	case note.OpUpdate:
		target := remote.ResolveTarget(remoteIDOf(n))
		err := e.remote.UpdateNote(ctx, target, textFor(payload, n), characterOf(n))
		if err != nil {
			slog.Debug("update replay failed", "entry", entry.ID, "target", target, "error", err)
			return false, 0
		}
		return true, 0

	case note.OpDelete:
		if n == nil {
			// Note already gone locally, nothing remote to reconcile
			return true, 0
		}
		target := remote.ResolveTarget(n.RemoteID)
		err := e.remote.DeleteNote(ctx, target)
		if err != nil {
			slog.Debug("delete replay failed", "entry", entry.ID, "target", target, "error", err)
			return false, 0
		}
		return true, 0

	default:
		slog.Warn("unknown outbox op", "entry", entry.ID, "op", entry.Op)
		return false, 0
	}
}

// applyOutcome records the result of a replay in one write transaction:
// success resolves the entry (and marks the note synced with its remote
// id); failure bumps the attempt counter and, at the ceiling, stamps the
// terminal marker without removing the entry.
func (e *Engine) applyOutcome(ctx context.Context, entry *note.OutboxEntry, ok bool, remoteID int64) error {
	return e.store.Write(ctx, func(ctx context.Context) error {
		current, err := e.outbox.GetByID(ctx, entry.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return nil
		}

		if ok {
			if current.Op == note.OpCreate || current.Op == note.OpUpdate {
				n, err := e.notes.GetByID(ctx, current.NoteLocalID)
				if err != nil {
					return err
				}
				if n != nil {
					if remoteID != 0 && n.RemoteID == nil {
						n.RemoteID = &remoteID
					}
					n.Status = note.StatusSynced
					n.UpdatedAt = e.now().UTC()
					if err := e.notes.Update(ctx, n); err != nil {
						return err
					}
				}
			}
			return e.outbox.Delete(ctx, current.ID)
		}

		current.Attempt++
		current.UpdatedAt = e.now().UTC()
		if current.Attempt >= e.cfg.MaxAttempts {
			marker := note.LastErrorMaxAttempts
			current.LastError = &marker
		}
		return e.outbox.Update(ctx, current)
	})
}

// backoff returns the delay owed after a failed entry, based on the attempt
// count the entry carried before this failure was recorded
func (e *Engine) backoff(attempt int) time.Duration {
	d := time.Duration(attempt) * e.cfg.BackoffStep
	if d > e.cfg.BackoffMax {
		d = e.cfg.BackoffMax
	}
	return d
}

func (e *Engine) alive(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-e.stopCh:
		return false
	default:
		return true
	}
}

func textFor(p note.Payload, n *note.Note) string {
	if p.Text != nil {
		return *p.Text
	}
	if n != nil {
		return n.Text
	}
	return ""
}

func characterFor(p note.Payload, n *note.Note) int64 {
	if p.CharacterID != nil {
		return *p.CharacterID
	}
	return characterOf(n)
}

func characterOf(n *note.Note) int64 {
	if n != nil && n.CharacterID != nil {
		return *n.CharacterID
	}
	return 0
}

func remoteIDOf(n *note.Note) *int64 {
	if n == nil {
		return nil
	}
	return n.RemoteID
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
