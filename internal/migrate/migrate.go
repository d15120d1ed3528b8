// Package migrate applies versioned schema files to the BigQuery dataset or
// the local SQLite database and records which versions have run.
package migrate

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/onebook-ledger/internal/logger"
)

//go:embed sql
var embedded embed.FS

// Dialect directories under the embedded sql tree.
const (
	DialectBigQuery = "bigquery"
	DialectSQLite   = "sqlite"
)

// Migration is one versioned schema file.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration is a row of the schema_migrations table.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

var filenamePattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// ParseFilename splits "0001_name.sql" into its version and name.
func ParseFilename(name string) (int, string, bool) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, "", false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return v, m[2], true
}

// Read loads the migrations in dir of fsys, sorted by version. Each
// {{KEY}} placeholder is replaced with vars[KEY]. The checksum covers the
// file before substitution, so the same migration applied to different
// datasets keeps one checksum.
func Read(ctx context.Context, fsys fs.FS, dir string, vars map[string]string) ([]Migration, error) {
	log := logger.FromContext(ctx)

	files, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("Read: reading %s: %w", dir, err)
	}

	var migrations []Migration
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		version, name, ok := ParseFilename(f.Name())
		if !ok {
			log.Warn().Str("file", f.Name()).Msg("Read: skipping file with invalid name")
			continue
		}

		content, err := fs.ReadFile(fsys, path.Join(dir, f.Name()))
		if err != nil {
			return nil, fmt.Errorf("Read: reading %s: %w", f.Name(), err)
		}

		sql := string(content)
		for k, v := range vars {
			sql = strings.ReplaceAll(sql, "{{"+k+"}}", v)
		}

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     name,
			Filename: f.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version == migrations[i-1].Version {
			return nil, fmt.Errorf("Read: duplicate migration version %04d", migrations[i].Version)
		}
	}

	return migrations, nil
}

// Embedded loads the migrations shipped with the binary for dialect.
func Embedded(ctx context.Context, dialect string, vars map[string]string) ([]Migration, error) {
	return Read(ctx, embedded, path.Join("sql", dialect), vars)
}

// Pending returns the migrations whose version has not been applied. A
// checksum mismatch on an applied version is returned as an error.
func Pending(all []Migration, applied []AppliedMigration) ([]Migration, error) {
	done := make(map[int]AppliedMigration, len(applied))
	for _, a := range applied {
		done[a.Version] = a
	}

	var pending []Migration
	for _, m := range all {
		a, ok := done[m.Version]
		if !ok {
			pending = append(pending, m)
			continue
		}
		if a.Checksum != "" && a.Checksum != m.Checksum {
			return nil, fmt.Errorf("Pending: migration %04d_%s changed after it was applied", m.Version, m.Name)
		}
	}
	return pending, nil
}

// Runner executes migrations against one database.
type Runner interface {
	EnsureMigrationsTable(ctx context.Context) error
	Applied(ctx context.Context) ([]AppliedMigration, error)
	Execute(ctx context.Context, m Migration) error
	Record(ctx context.Context, m Migration) error
}

// Apply runs every pending migration in order and returns how many ran.
func Apply(ctx context.Context, r Runner, migrations []Migration) (int, error) {
	log := logger.FromContext(ctx)

	if err := r.EnsureMigrationsTable(ctx); err != nil {
		return 0, fmt.Errorf("Apply: ensuring schema_migrations: %w", err)
	}

	applied, err := r.Applied(ctx)
	if err != nil {
		return 0, fmt.Errorf("Apply: reading applied migrations: %w", err)
	}

	pending, err := Pending(migrations, applied)
	if err != nil {
		return 0, err
	}

	for i, m := range pending {
		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("Apply: running migration")
		if err := r.Execute(ctx, m); err != nil {
			return i, fmt.Errorf("Apply: executing %04d_%s: %w", m.Version, m.Name, err)
		}
		if err := r.Record(ctx, m); err != nil {
			return i, fmt.Errorf("Apply: recording %04d_%s: %w", m.Version, m.Name, err)
		}
	}

	log.Info().Int("applied", len(pending)).Int("known", len(migrations)).Msg("Apply: schema up to date")
	return len(pending), nil
}
