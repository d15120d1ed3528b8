package migrate

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func TestParseFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_init_schema.sql", true, 1, "init_schema"},
		{"0012_add_checksum_index.sql", true, 12, "add_checksum_index"},
		{"001_invalid.sql", false, 0, ""},
		{"0001_test", false, 0, ""},
		{"0001.sql", false, 0, ""},
		{"invalid_0001_test.sql", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := ParseFilename(tt.filename)
			if ok != tt.valid {
				t.Fatalf("ParseFilename(%q) ok = %v, want %v", tt.filename, ok, tt.valid)
			}
			if version != tt.version || name != tt.name {
				t.Errorf("ParseFilename(%q) = (%d, %q), want (%d, %q)", tt.filename, version, name, tt.version, tt.name)
			}
		})
	}
}

func TestRead(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_second.sql": {Data: []byte("SELECT 2 FROM `{{PROJECT_ID}}.{{DATASET_ID}}.t`")},
		"m/0001_first.sql":  {Data: []byte("SELECT 1")},
		"m/README.md":       {Data: []byte("notes")},
	}

	migrations, err := Read(context.Background(), fsys, "m", BigQueryVars("proj", "ledger"))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("Read() returned %d migrations, want 2", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("migrations not sorted by version: %d, %d", migrations[0].Version, migrations[1].Version)
	}
	if want := "SELECT 2 FROM `proj.ledger.t`"; migrations[1].SQL != want {
		t.Errorf("SQL = %q, want %q", migrations[1].SQL, want)
	}

	// The checksum ignores placeholder values.
	other, err := Read(context.Background(), fsys, "m", BigQueryVars("other", "ds"))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if other[1].Checksum != migrations[1].Checksum {
		t.Error("checksum changed with placeholder values")
	}
}

func TestRead_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0001_a.sql": {Data: []byte("SELECT 1")},
		"m/0001_b.sql": {Data: []byte("SELECT 2")},
	}
	if _, err := Read(context.Background(), fsys, "m", nil); err == nil {
		t.Fatal("Read() expected error for duplicate version")
	}
}

func TestPending(t *testing.T) {
	all := []Migration{
		{Version: 1, Name: "a", Checksum: "c1"},
		{Version: 2, Name: "b", Checksum: "c2"},
		{Version: 3, Name: "c", Checksum: "c3"},
	}

	pending, err := Pending(all, []AppliedMigration{{Version: 1, Checksum: "c1"}, {Version: 2}})
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Version != 3 {
		t.Errorf("Pending() = %+v, want only version 3", pending)
	}

	if _, err := Pending(all, []AppliedMigration{{Version: 1, Checksum: "edited"}}); err == nil {
		t.Error("Pending() expected error for changed migration")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	for _, dialect := range []string{DialectBigQuery, DialectSQLite} {
		t.Run(dialect, func(t *testing.T) {
			migrations, err := Embedded(context.Background(), dialect, BigQueryVars("p", "d"))
			if err != nil {
				t.Fatalf("Embedded() error = %v", err)
			}
			if len(migrations) == 0 {
				t.Fatal("Embedded() returned no migrations")
			}
			for _, m := range migrations {
				if strings.Contains(m.SQL, "{{") {
					t.Errorf("%s has unreplaced placeholders", m.Filename)
				}
				if !strings.Contains(m.SQL, "ledger_entries") && m.Version == 1 {
					t.Errorf("%s does not create ledger_entries", m.Filename)
				}
			}
		})
	}
}

func TestApply_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	db.SetMaxOpenConns(1)
	defer db.Close()

	migrations, err := Embedded(ctx, DialectSQLite, nil)
	if err != nil {
		t.Fatalf("Embedded() error = %v", err)
	}

	r := &SQLiteRunner{DB: db, AppliedBy: "test"}
	n, err := Apply(ctx, r, migrations)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if n != len(migrations) {
		t.Errorf("Apply() = %d, want %d", n, len(migrations))
	}

	n, err = Apply(ctx, r, migrations)
	if err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}
	if n != 0 {
		t.Errorf("second Apply() = %d, want 0", n)
	}

	applied, err := r.Applied(ctx)
	if err != nil {
		t.Fatalf("Applied() error = %v", err)
	}
	if len(applied) != len(migrations) || applied[0].AppliedBy != "test" {
		t.Errorf("Applied() = %+v", applied)
	}

	if _, err := db.ExecContext(ctx, `INSERT INTO bill_files (file_id, source_type, storage_path, uploaded_ts) VALUES ('f', 'wechat', '/tmp/x', 'now')`); err != nil {
		t.Errorf("bill_files not usable after migration: %v", err)
	}
}
