package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/aussiebroadwan/tabtoken/internal/tokens/store"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so repos work inside and
// outside transactions.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db  *sql.DB
	dsn string
}

// DSN builds a connection string for a database file with the pragmas the
// store expects on every pooled connection.
func DSN(path string) string {
	return "file:" + path +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// NewStore opens dsn. ":memory:" gets a single connection, otherwise every
// pooled connection would see its own empty database.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	if err := fn(&txStore{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Policies() store.Policies { return &policiesRepo{q: s.db} }
func (s *Store) Subjects() store.Subjects { return &subjectsRepo{q: s.db} }

type txStore struct {
	q dbtx
}

func (t *txStore) Policies() store.Policies { return &policiesRepo{q: t.q} }
func (t *txStore) Subjects() store.Subjects { return &subjectsRepo{q: t.q} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func mapConflict(err error) error {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return err
	}

	switch code := se.Code(); {
	case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return store.ErrAlreadyExists
	case code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return store.ErrNotFound
	case code&0xff == sqlite3.SQLITE_CONSTRAINT:
		// Extended codes are not always reported; fall back to the message.
		msg := se.Error()
		switch {
		case strings.Contains(msg, "UNIQUE"):
			return store.ErrAlreadyExists
		case strings.Contains(msg, "FOREIGN KEY"):
			return store.ErrNotFound
		}
	}
	return err
}

func mustAffect(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
