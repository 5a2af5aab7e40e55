package note

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vonshlovens/charnotes/internal/store"
)

// OutboxRepository provides SQL access to the durable mutation queue.
// Entries are created by the mutation service and resolved only by the
// sync engine.
type OutboxRepository struct {
	store *store.Store
}

// NewOutboxRepository returns an outbox repository bound to the store
func NewOutboxRepository(s *store.Store) *OutboxRepository {
	return &OutboxRepository{store: s}
}

// Insert appends a new entry to the queue
func (r *OutboxRepository) Insert(ctx context.Context, e *OutboxEntry) error {
	_, err := r.store.Querier(ctx).ExecContext(ctx, `
		INSERT INTO outbox_entries (id, op, note_local_id, payload, attempt, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Op, e.NoteLocalID, e.Payload, e.Attempt, nullString(e.LastError), e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert outbox entry: %w", err)
	}
	r.store.Touch(ctx, TableOutbox)
	return nil
}

// GetByID returns an entry by identifier, or nil if it does not exist
func (r *OutboxRepository) GetByID(ctx context.Context, id string) (*OutboxEntry, error) {
	row := r.store.Querier(ctx).QueryRowContext(ctx, `
		SELECT id, op, note_local_id, payload, attempt, last_error, created_at, updated_at
		FROM outbox_entries WHERE id = ?
	`, id)

	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox entry: %w", err)
	}
	return e, nil
}

// ListOrdered returns all entries in creation order. The rowid tiebreaker
// keeps entries created inside the same transaction in insertion order.
func (r *OutboxRepository) ListOrdered(ctx context.Context) ([]OutboxEntry, error) {
	rows, err := r.store.Querier(ctx).QueryContext(ctx, `
		SELECT id, op, note_local_id, payload, attempt, last_error, created_at, updated_at
		FROM outbox_entries ORDER BY created_at, rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox entries: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Update rewrites an entry's retry bookkeeping
func (r *OutboxRepository) Update(ctx context.Context, e *OutboxEntry) error {
	_, err := r.store.Querier(ctx).ExecContext(ctx, `
		UPDATE outbox_entries SET attempt = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`, e.Attempt, nullString(e.LastError), e.UpdatedAt, e.ID)
	if err != nil {
		return fmt.Errorf("failed to update outbox entry: %w", err)
	}
	r.store.Touch(ctx, TableOutbox)
	return nil
}

// Delete removes a resolved entry
func (r *OutboxRepository) Delete(ctx context.Context, id string) error {
	_, err := r.store.Querier(ctx).ExecContext(ctx, `DELETE FROM outbox_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete outbox entry: %w", err)
	}
	r.store.Touch(ctx, TableOutbox)
	return nil
}

// Count returns the queue depth
func (r *OutboxRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.store.Querier(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox_entries`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count outbox entries: %w", err)
	}
	return count, nil
}

// CountByNote returns the number of entries still referencing a note
func (r *OutboxRepository) CountByNote(ctx context.Context, noteLocalID string) (int, error) {
	var count int
	err := r.store.Querier(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM outbox_entries WHERE note_local_id = ?
	`, noteLocalID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count outbox entries: %w", err)
	}
	return count, nil
}

func scanEntry(row rowScanner) (*OutboxEntry, error) {
	e := &OutboxEntry{}
	var lastError sql.NullString
	if err := row.Scan(&e.ID, &e.Op, &e.NoteLocalID, &e.Payload, &e.Attempt, &lastError, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if lastError.Valid {
		e.LastError = &lastError.String
	}
	return e, nil
}
