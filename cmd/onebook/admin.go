package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/onebook-ledger/internal/app"
	"github.com/dvloznov/onebook-ledger/internal/config"
	"github.com/dvloznov/onebook-ledger/internal/logger"
	"github.com/dvloznov/onebook-ledger/internal/migrate"
	"github.com/dvloznov/onebook-ledger/internal/notionsync"
	"github.com/google/subcommands"
	_ "modernc.org/sqlite"
)

type syncNotionCmd struct {
	start     string
	end       string
	token     string
	entriesDB string
	billsDB   string
	dryRun    bool
}

func (*syncNotionCmd) Name() string     { return "sync-notion" }
func (*syncNotionCmd) Synopsis() string { return "mirror bill files and entries into Notion databases" }
func (*syncNotionCmd) Usage() string {
	return `onebook sync-notion [-start YYYY-MM-DD] [-end YYYY-MM-DD] [-dry-run]

  Creates Notion pages for stored entries in the date range and archives
  pages whose entries no longer exist. When a bills database is configured
  the bill files are mirrored as well.
`
}

func (p *syncNotionCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.start, "start", "", "first day (defaults to one year before -end)")
	f.StringVar(&p.end, "end", "", "last day (defaults to today)")
	f.StringVar(&p.token, "notion-token", "", "Notion API token (overrides config)")
	f.StringVar(&p.entriesDB, "entries-db", "", "Notion database ID for entries (overrides config)")
	f.StringVar(&p.billsDB, "bills-db", "", "Notion database ID for bill files (overrides config)")
	f.BoolVar(&p.dryRun, "dry-run", false, "preview changes without writing to Notion")
}

func (p *syncNotionCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	from, to, err := dateRange(p.start, p.end, time.Now())
	if err != nil {
		fail("%v", err)
		return subcommands.ExitUsageError
	}

	ctx, cfg, err := setup(ctx)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	token := firstSet(p.token, cfg.Notion.Token)
	entriesDB := firstSet(p.entriesDB, cfg.Notion.EntriesDatabase)
	billsDB := firstSet(p.billsDB, cfg.Notion.BillsDatabase)
	if token == "" || entriesDB == "" {
		fail("a Notion token and entries database are required")
		return subcommands.ExitUsageError
	}

	// Keep the CLI from hanging on a stalled API.
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	log := logger.FromContext(ctx)
	log.Info().
		Str("start_date", from.Format(dateLayout)).
		Str("end_date", to.Format(dateLayout)).
		Bool("dry_run", p.dryRun).
		Msg("Starting Notion sync")

	repo, err := app.OpenRepository(ctx, cfg)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	defer repo.Close()

	client := notionsync.NewNotionClient(token)

	if billsDB != "" {
		stats, err := notionsync.SyncBillFiles(ctx, repo, client, billsDB, p.dryRun)
		if err != nil {
			fail("bill files: %v", err)
			return subcommands.ExitFailure
		}
		printStats("bill files", stats)
	}

	stats, err := notionsync.SyncEntries(ctx, repo, client, entriesDB, from, to, p.dryRun)
	if err != nil {
		fail("entries: %v", err)
		return subcommands.ExitFailure
	}
	printStats("entries", stats)
	return subcommands.ExitSuccess
}

func printStats(what string, s *notionsync.SyncStats) {
	fmt.Printf("%s: %d created, %d updated, %d archived, %d unchanged, %d failed\n",
		what, s.Created, s.Updated, s.Deleted, s.Skipped, s.Failed)
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

type migrateCmd struct {
	dryRun    bool
	appliedBy string
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply pending schema migrations" }
func (*migrateCmd) Usage() string {
	return `onebook migrate [-dry-run]

  Applies the schema migrations shipped with the binary to the configured
  storage backend, recording each in schema_migrations.
`
}

func (p *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&p.dryRun, "dry-run", false, "list pending migrations without applying them")
	f.StringVar(&p.appliedBy, "applied-by", "onebook-migrate", "name recorded with each applied migration")
}

func (p *migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx, cfg, err := setup(ctx)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}

	runner, migrations, closeFn, err := p.runner(ctx, cfg)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	if p.dryRun {
		if err := runner.EnsureMigrationsTable(ctx); err != nil {
			fail("%v", err)
			return subcommands.ExitFailure
		}
		applied, err := runner.Applied(ctx)
		if err != nil {
			fail("%v", err)
			return subcommands.ExitFailure
		}
		pending, err := migrate.Pending(migrations, applied)
		if err != nil {
			fail("%v", err)
			return subcommands.ExitFailure
		}
		for _, m := range pending {
			fmt.Printf("  [PENDING] %04d_%s\n", m.Version, m.Name)
		}
		fmt.Printf("%d of %d migration(s) pending\n", len(pending), len(migrations))
		return subcommands.ExitSuccess
	}

	n, err := migrate.Apply(ctx, runner, migrations)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	if n == 0 {
		fmt.Println("No new migrations to apply. Database is up to date.")
	} else {
		fmt.Printf("Successfully applied %d migration(s)\n", n)
	}
	return subcommands.ExitSuccess
}

func (p *migrateCmd) runner(ctx context.Context, cfg config.Config) (migrate.Runner, []migrate.Migration, func(), error) {
	switch strings.ToLower(cfg.Storage.Backend) {
	case config.BackendBigQuery:
		migrations, err := migrate.Embedded(ctx, migrate.DialectBigQuery,
			migrate.BigQueryVars(cfg.Storage.ProjectID, cfg.Storage.DatasetID))
		if err != nil {
			return nil, nil, nil, err
		}
		client, err := bigquery.NewClient(ctx, cfg.Storage.ProjectID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("creating BigQuery client: %w", err)
		}
		r := &migrate.BigQueryRunner{
			Client:    client,
			ProjectID: cfg.Storage.ProjectID,
			DatasetID: cfg.Storage.DatasetID,
			AppliedBy: p.appliedBy,
		}
		return r, migrations, func() { client.Close() }, nil
	default:
		migrations, err := migrate.Embedded(ctx, migrate.DialectSQLite, nil)
		if err != nil {
			return nil, nil, nil, err
		}
		db, err := sql.Open("sqlite", cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening %s: %w", cfg.Storage.SQLitePath, err)
		}
		r := &migrate.SQLiteRunner{DB: db, AppliedBy: p.appliedBy}
		return r, migrations, func() { db.Close() }, nil
	}
}
