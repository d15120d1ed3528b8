package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteRunner applies migrations to a database/sql handle opened with the
// modernc sqlite driver.
type SQLiteRunner struct {
	DB        *sql.DB
	AppliedBy string
}

// EnsureMigrationsTable creates schema_migrations when missing.
func (r *SQLiteRunner) EnsureMigrationsTable(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TEXT NOT NULL,
			checksum   TEXT,
			applied_by TEXT
		)`)
	return err
}

// Applied lists recorded migrations.
func (r *SQLiteRunner) Applied(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT version, name, applied_at, COALESCE(checksum, ''), COALESCE(applied_by, '')
		FROM schema_migrations
		ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("Applied: querying: %w", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			a  AppliedMigration
			at string
		)
		if err := rows.Scan(&a.Version, &a.Name, &at, &a.Checksum, &a.AppliedBy); err != nil {
			return nil, fmt.Errorf("Applied: scanning: %w", err)
		}
		a.AppliedAt, _ = time.Parse(time.RFC3339Nano, at)
		applied = append(applied, a)
	}
	return applied, rows.Err()
}

// Execute runs the migration script.
func (r *SQLiteRunner) Execute(ctx context.Context, m Migration) error {
	_, err := r.DB.ExecContext(ctx, m.SQL)
	return err
}

// Record inserts the migration into schema_migrations.
func (r *SQLiteRunner) Record(ctx context.Context, m Migration) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, applied_at, checksum, applied_by) VALUES (?, ?, ?, ?, ?)`,
		m.Version, m.Name, time.Now().UTC().Format(time.RFC3339Nano), m.Checksum, r.AppliedBy)
	return err
}
