package store

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by repositories.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// writeTx carries an open transaction plus the set of tables it touched,
// for change notification on commit.
type writeTx struct {
	tx      *sql.Tx
	touched map[string]struct{}
}

func txFrom(ctx context.Context) *writeTx {
	if h, ok := ctx.Value(txKey{}).(*writeTx); ok {
		return h
	}
	return nil
}

// Querier returns the handle queries should run against: the transaction
// carried by ctx when inside Write, the plain connection otherwise.
func (s *Store) Querier(ctx context.Context) DBTX {
	if h := txFrom(ctx); h != nil {
		return h.tx
	}
	return s.db
}

// InTx reports whether ctx carries an open write transaction.
func (s *Store) InTx(ctx context.Context) bool {
	return txFrom(ctx) != nil
}

// Touch records that a table was modified in the current transaction so its
// subscribers are notified on commit. No-op outside a transaction.
func (s *Store) Touch(ctx context.Context, table string) {
	if h := txFrom(ctx); h != nil {
		h.touched[table] = struct{}{}
	}
}

// Write runs fn inside a write transaction. If ctx already carries one, fn
// joins it instead of opening a nested transaction; commit, rollback and
// notification then belong to the outermost call. On success the transaction
// is committed and subscribers of every touched table are notified; on error
// or panic it is rolled back and nothing is visible.
func (s *Store) Write(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	h := &writeTx{tx: tx, touched: make(map[string]struct{})}
	txCtx := context.WithValue(ctx, txKey{}, h)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if err = tx.Commit(); err == nil {
			s.notifier.notify(h.touched)
		}
	}()

	err = fn(txCtx)
	return err
}

// Subscribe registers fn to be called after any committed write transaction
// that touched table. The callback carries no payload; subscribers re-query.
// The returned function removes the subscription.
func (s *Store) Subscribe(table string, fn func()) func() {
	return s.notifier.subscribe(table, fn)
}
