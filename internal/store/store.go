// Package store implements the local durable store backing notes and the
// outbox: a single SQLite file with scoped write transactions and
// commit-driven change notifications.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Store wraps the SQLite database
type Store struct {
	db   *sql.DB
	path string

	notifier *notifier
}

// Open opens (or creates) the database at path and verifies the connection.
// Pass ":memory:" for an in-memory database (used by tests).
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
	if path == ":memory:" {
		dsn = path
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; one connection keeps transactions
	// serialized and makes :memory: behave like a file database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("opened local store", "path", path)

	return &Store{
		db:       db,
		path:     path,
		notifier: newNotifier(),
	}, nil
}

// Close closes the database
func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
		slog.Info("local store closed")
	}
}

// Ping checks if the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Migrate applies all pending embedded migrations
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Debug("migrations up to date")
	return nil
}

// MigrationStatus prints the migration status to stdout
func (s *Store) MigrationStatus(ctx context.Context) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	return goose.StatusContext(ctx, s.db, "migrations")
}
