package note

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vonshlovens/charnotes/internal/store"
)

// Repository provides SQL access to notes
type Repository struct {
	store *store.Store
}

// NewRepository returns a notes repository bound to the store
func NewRepository(s *store.Store) *Repository {
	return &Repository{store: s}
}

// GetByID returns a note by identifier, or nil if it does not exist
func (r *Repository) GetByID(ctx context.Context, id string) (*Note, error) {
	row := r.store.Querier(ctx).QueryRowContext(ctx, `
		SELECT id, text, status, character_id, remote_id, updated_at
		FROM notes WHERE id = ?
	`, id)

	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return n, nil
}

// List returns all notes, most recently updated first
func (r *Repository) List(ctx context.Context) ([]Note, error) {
	return r.list(ctx, `
		SELECT id, text, status, character_id, remote_id, updated_at
		FROM notes ORDER BY updated_at DESC, id
	`)
}

// ListByCharacter returns the notes attached to one catalog character
func (r *Repository) ListByCharacter(ctx context.Context, characterID int64) ([]Note, error) {
	return r.list(ctx, `
		SELECT id, text, status, character_id, remote_id, updated_at
		FROM notes WHERE character_id = ? ORDER BY updated_at DESC, id
	`, characterID)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Note, error) {
	rows, err := r.store.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

// Insert adds a new note
func (r *Repository) Insert(ctx context.Context, n *Note) error {
	_, err := r.store.Querier(ctx).ExecContext(ctx, `
		INSERT INTO notes (id, text, status, character_id, remote_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.ID, n.Text, n.Status, nullInt(n.CharacterID), nullInt(n.RemoteID), n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	r.store.Touch(ctx, TableNotes)
	return nil
}

// Update rewrites all mutable fields of a note
func (r *Repository) Update(ctx context.Context, n *Note) error {
	_, err := r.store.Querier(ctx).ExecContext(ctx, `
		UPDATE notes SET text = ?, status = ?, character_id = ?, remote_id = ?, updated_at = ?
		WHERE id = ?
	`, n.Text, n.Status, nullInt(n.CharacterID), nullInt(n.RemoteID), n.UpdatedAt, n.ID)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	r.store.Touch(ctx, TableNotes)
	return nil
}

// Delete removes a note. Deleting a missing note is not an error.
func (r *Repository) Delete(ctx context.Context, id string) error {
	_, err := r.store.Querier(ctx).ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	r.store.Touch(ctx, TableNotes)
	return nil
}

// CountByStatus returns note counts keyed by sync status
func (r *Repository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.store.Querier(ctx).QueryContext(ctx, `
		SELECT status, COUNT(*) FROM notes GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count notes: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*Note, error) {
	n := &Note{}
	var characterID, remoteID sql.NullInt64
	if err := row.Scan(&n.ID, &n.Text, &n.Status, &characterID, &remoteID, &n.UpdatedAt); err != nil {
		return nil, err
	}
	if characterID.Valid {
		n.CharacterID = &characterID.Int64
	}
	if remoteID.Valid {
		n.RemoteID = &remoteID.Int64
	}
	return n, nil
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
