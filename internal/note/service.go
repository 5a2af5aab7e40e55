package note

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vonshlovens/charnotes/internal/store"
)

// Service is the note mutation API. Every call runs one write transaction
// performing exactly two effects: the note mutation and one outbox append.
// No network call happens here; replication is the sync engine's job.
type Service struct {
	store  *store.Store
	notes  *Repository
	outbox *OutboxRepository

	now func() time.Time
}

// NewService returns a mutation service bound to the store
func NewService(s *store.Store) *Service {
	return &Service{
		store:  s,
		notes:  NewRepository(s),
		outbox: NewOutboxRepository(s),
		now:    time.Now,
	}
}

// Notes exposes the read side for the note list
func (svc *Service) Notes() *Repository {
	return svc.notes
}

// Outbox exposes the read side for diagnostics
func (svc *Service) Outbox() *OutboxRepository {
	return svc.outbox
}

// Create inserts a pending note and enqueues its create mutation.
// Returns the locally generated note identifier.
func (svc *Service) Create(ctx context.Context, characterID *int64, text string) (string, error) {
	noteID := uuid.NewString()

	err := svc.store.Write(ctx, func(ctx context.Context) error {
		now := svc.now().UTC()

		if err := svc.notes.Insert(ctx, &Note{
			ID:          noteID,
			Text:        text,
			Status:      StatusPending,
			CharacterID: characterID,
			UpdatedAt:   now,
		}); err != nil {
			return err
		}

		return svc.outbox.Insert(ctx, &OutboxEntry{
			ID:          uuid.NewString(),
			Op:          OpCreate,
			NoteLocalID: noteID,
			Payload:     EncodePayload(Payload{Text: &text, CharacterID: characterID}),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	})
	if err != nil {
		return "", err
	}
	return noteID, nil
}

// Update rewrites a note's text, resets it to pending, and enqueues the
// update mutation. Updating a missing note is a silent no-op.
func (svc *Service) Update(ctx context.Context, noteID, text string) error {
	return svc.store.Write(ctx, func(ctx context.Context) error {
		n, err := svc.notes.GetByID(ctx, noteID)
		if err != nil {
			return err
		}
		if n == nil {
			return nil
		}

		now := svc.now().UTC()
		n.Text = text
		n.Status = StatusPending
		n.UpdatedAt = now
		if err := svc.notes.Update(ctx, n); err != nil {
			return err
		}

		return svc.outbox.Insert(ctx, &OutboxEntry{
			ID:          uuid.NewString(),
			Op:          OpUpdate,
			NoteLocalID: noteID,
			Payload:     EncodePayload(Payload{Text: &text}),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	})
}

// Delete removes the note record immediately and enqueues the delete
// mutation. The entry is enqueued even if the note is already gone, so the
// remote side still gets its delete.
func (svc *Service) Delete(ctx context.Context, noteID string) error {
	return svc.store.Write(ctx, func(ctx context.Context) error {
		n, err := svc.notes.GetByID(ctx, noteID)
		if err != nil {
			return err
		}
		if n != nil {
			if err := svc.notes.Delete(ctx, noteID); err != nil {
				return err
			}
		}

		now := svc.now().UTC()
		return svc.outbox.Insert(ctx, &OutboxEntry{
			ID:          uuid.NewString(),
			Op:          OpDelete,
			NoteLocalID: noteID,
			Payload:     EncodePayload(Payload{}),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	})
}
