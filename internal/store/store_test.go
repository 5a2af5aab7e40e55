package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	s, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.Migrate(ctx))
	return s
}

func countNotes(t *testing.T, s *Store) int {
	t.Helper()
	var count int
	err := s.Querier(context.Background()).
		QueryRowContext(context.Background(), `SELECT COUNT(*) FROM notes`).Scan(&count)
	require.NoError(t, err)
	return count
}

func insertNote(ctx context.Context, s *Store, id string) error {
	_, err := s.Querier(ctx).ExecContext(ctx, `
		INSERT INTO notes (id, text, status, updated_at) VALUES (?, 'x', 'pending', ?)
	`, id, time.Now().UTC())
	if err == nil {
		s.Touch(ctx, "notes")
	}
	return err
}

func TestWrite_CommitMakesAllEffectsVisible(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	err := s.Write(ctx, func(ctx context.Context) error {
		if err := insertNote(ctx, s, "a"); err != nil {
			return err
		}
		return insertNote(ctx, s, "b")
	})
	require.NoError(t, err)

	assert.Equal(t, 2, countNotes(t, s))
}

func TestWrite_ErrorRollsBackEverything(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.Write(ctx, func(ctx context.Context) error {
		if err := insertNote(ctx, s, "a"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 0, countNotes(t, s))
}

func TestWrite_NestedJoinsOuterTransaction(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	// Inner Write must not commit on its own: the outer error discards both
	boom := errors.New("boom")
	err := s.Write(ctx, func(ctx context.Context) error {
		inner := s.Write(ctx, func(ctx context.Context) error {
			return insertNote(ctx, s, "a")
		})
		require.NoError(t, inner)
		require.True(t, s.InTx(ctx))
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 0, countNotes(t, s))
}

func TestSubscribe_NotifiedAfterCommit(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	notified := make(chan struct{}, 1)
	unsub := s.Subscribe("notes", func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	})
	defer unsub()

	require.NoError(t, s.Write(ctx, func(ctx context.Context) error {
		return insertNote(ctx, s, "a")
	}))

	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for commit notification")
	}
}

func TestSubscribe_NotNotifiedOnRollbackOrOtherTable(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	notified := make(chan struct{}, 1)
	unsub := s.Subscribe("outbox_entries", func() {
		notified <- struct{}{}
	})
	defer unsub()

	// Touches notes only
	require.NoError(t, s.Write(ctx, func(ctx context.Context) error {
		return insertNote(ctx, s, "a")
	}))

	// Touches nothing: rolled back
	boom := errors.New("boom")
	_ = s.Write(ctx, func(ctx context.Context) error {
		if err := insertNote(ctx, s, "b"); err != nil {
			return err
		}
		return boom
	})

	select {
	case <-notified:
		t.Fatal("unexpected notification")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribe_UnsubscribeStopsDelivery(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	notified := make(chan struct{}, 4)
	unsub := s.Subscribe("notes", func() {
		notified <- struct{}{}
	})
	unsub()

	require.NoError(t, s.Write(ctx, func(ctx context.Context) error {
		return insertNote(ctx, s, "a")
	}))

	select {
	case <-notified:
		t.Fatal("notification after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}
