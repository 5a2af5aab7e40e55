package note

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vonshlovens/charnotes/internal/store"
)

func setupService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Migrate(ctx))

	return NewService(s), s
}

func TestCreate_InsertsPendingNoteAndOneEntry(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	characterID := int64(7)
	noteID, err := svc.Create(ctx, &characterID, "hello")
	require.NoError(t, err)
	require.NotEmpty(t, noteID)

	n, err := svc.Notes().GetByID(ctx, noteID)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "hello", n.Text)
	assert.Equal(t, StatusPending, n.Status)
	assert.Nil(t, n.RemoteID)
	require.NotNil(t, n.CharacterID)
	assert.Equal(t, int64(7), *n.CharacterID)

	entries, err := svc.Outbox().ListOrdered(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, OpCreate, entries[0].Op)
	assert.Equal(t, noteID, entries[0].NoteLocalID)
	assert.Equal(t, 0, entries[0].Attempt)
	assert.Nil(t, entries[0].LastError)

	payload := DecodePayload(entries[0].Payload)
	require.NotNil(t, payload.Text)
	assert.Equal(t, "hello", *payload.Text)
	require.NotNil(t, payload.CharacterID)
	assert.Equal(t, int64(7), *payload.CharacterID)
}

func TestUpdate_ResetsStatusAndAppendsEntry(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	noteID, err := svc.Create(ctx, nil, "before")
	require.NoError(t, err)

	require.NoError(t, svc.Update(ctx, noteID, "after"))

	n, err := svc.Notes().GetByID(ctx, noteID)
	require.NoError(t, err)
	assert.Equal(t, "after", n.Text)
	assert.Equal(t, StatusPending, n.Status)

	entries, err := svc.Outbox().ListOrdered(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, OpCreate, entries[0].Op)
	assert.Equal(t, OpUpdate, entries[1].Op)

	payload := DecodePayload(entries[1].Payload)
	require.NotNil(t, payload.Text)
	assert.Equal(t, "after", *payload.Text)
	assert.Nil(t, payload.CharacterID)
}

func TestUpdate_MissingNoteIsSilentNoOp(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Update(ctx, "no-such-note", "text"))

	entries, err := svc.Outbox().ListOrdered(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDelete_RemovesNoteImmediatelyAndAppendsEntry(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	noteID, err := svc.Create(ctx, nil, "doomed")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, noteID))

	n, err := svc.Notes().GetByID(ctx, noteID)
	require.NoError(t, err)
	assert.Nil(t, n)

	entries, err := svc.Outbox().ListOrdered(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, OpDelete, entries[1].Op)
	assert.Equal(t, noteID, entries[1].NoteLocalID)
}

func TestDelete_MissingNoteStillEnqueues(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, "already-gone"))

	entries, err := svc.Outbox().ListOrdered(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, OpDelete, entries[0].Op)
}

func TestListOrdered_SameTransactionKeepsInsertionOrder(t *testing.T) {
	svc, s := setupService(t)
	ctx := context.Background()

	// Create and update enqueued inside one outer transaction share a
	// timestamp; the queue must still replay create first.
	var noteID string
	err := s.Write(ctx, func(ctx context.Context) error {
		var err error
		noteID, err = svc.Create(ctx, nil, "a")
		if err != nil {
			return err
		}
		return svc.Update(ctx, noteID, "b")
	})
	require.NoError(t, err)

	entries, err := svc.Outbox().ListOrdered(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, OpCreate, entries[0].Op)
	assert.Equal(t, OpUpdate, entries[1].Op)
}

func TestMutationIsAtomic_WriteFailureLeavesNothing(t *testing.T) {
	svc, s := setupService(t)
	ctx := context.Background()

	// Join the mutation to an outer transaction that fails afterwards:
	// neither the note nor the outbox entry may survive.
	var noteID string
	err := s.Write(ctx, func(ctx context.Context) error {
		var err error
		noteID, err = svc.Create(ctx, nil, "ghost")
		require.NoError(t, err)
		return context.Canceled
	})
	require.Error(t, err)

	n, err := svc.Notes().GetByID(ctx, noteID)
	require.NoError(t, err)
	assert.Nil(t, n)

	count, err := svc.Outbox().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
