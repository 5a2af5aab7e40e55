// Package note holds the local note data model, its repositories, and the
// mutation API that pairs every local change with an outbox append.
package note

import (
	"encoding/json"
	"time"
)

// Store table names, used for change subscriptions
const (
	TableNotes  = "notes"
	TableOutbox = "outbox_entries"
)

// Status is the sync state of a note as observed by the UI
type Status string

const (
	StatusPending Status = "pending"
	StatusSynced  Status = "synced"
)

// Op is the kind of mutation recorded in an outbox entry
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// LastErrorMaxAttempts is the terminal marker stamped on an entry whose
// attempt counter reached the ceiling. The entry stays queued regardless.
const LastErrorMaxAttempts = "max_attempts_reached"

// Note is one user-authored annotation, optionally attached to a catalog
// character. RemoteID stays nil until the creating mutation is replayed.
type Note struct {
	ID          string
	Text        string
	Status      Status
	CharacterID *int64
	RemoteID    *int64
	UpdatedAt   time.Time
}

// OutboxEntry is one pending local mutation awaiting remote replication
type OutboxEntry struct {
	ID          string
	Op          Op
	NoteLocalID string
	Payload     string
	Attempt     int
	LastError   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Payload is the mutation snapshot serialized into an outbox entry at
// enqueue time. On replay it takes precedence over the live note's fields.
type Payload struct {
	Text        *string `json:"text,omitempty"`
	CharacterID *int64  `json:"characterId,omitempty"`
}

// EncodePayload serializes a payload snapshot
func EncodePayload(p Payload) string {
	data, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// DecodePayload parses a stored payload. Malformed payloads degrade to an
// empty snapshot rather than failing the caller.
func DecodePayload(raw string) Payload {
	if raw == "" {
		return Payload{}
	}
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}
	}
	return p
}
