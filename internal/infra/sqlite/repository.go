// Package sqlite is the local, file-backed implementation of store.Repository
// built on database/sql and the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dvloznov/onebook-ledger/internal/migrate"
	"github.com/dvloznov/onebook-ledger/internal/store"
	_ "modernc.org/sqlite"
)

const (
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
	datetimeLayout  = "2006-01-02 15:04:05"
)

// Repository stores bill files, entries and parsing runs in one SQLite file.
type Repository struct {
	db *sql.DB
}

var _ store.Repository = (*Repository)(nil)

// Open opens (creating if needed) the database at path and applies pending
// migrations. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("Open: opening %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: enabling foreign keys: %w", err)
	}

	migrations, err := migrate.Embedded(ctx, migrate.DialectSQLite, nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: %w", err)
	}
	if _, err := migrate.Apply(ctx, &migrate.SQLiteRunner{DB: db, AppliedBy: "onebook"}, migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
