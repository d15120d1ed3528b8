package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dvloznov/onebook-ledger/internal/adapters"
	"github.com/dvloznov/onebook-ledger/internal/app"
	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/ingest"
	"github.com/dvloznov/onebook-ledger/internal/logger"
	"github.com/dvloznov/onebook-ledger/internal/pipeline"
	"github.com/dvloznov/onebook-ledger/internal/upload"
	"github.com/google/subcommands"
)

type ingestCmd struct {
	source string
}

func (*ingestCmd) Name() string     { return "ingest" }
func (*ingestCmd) Synopsis() string { return "upload bill files and store their entries" }
func (*ingestCmd) Usage() string {
	return `onebook ingest -source <type> <file>...

  Copies each file to the configured uploads location, registers it and
  parses it into ledger entries. A file whose content was already parsed is
  reported as a duplicate and not stored again.
`
}

func (p *ingestCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.source, "source", "", "bill source type: "+strings.Join(adapters.SourceTypes(), ", "))
}

func (p *ingestCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 || p.source == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	a, err := adapters.Lookup(p.source)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitUsageError
	}

	ctx, cfg, err := setup(ctx)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	log := logger.FromContext(ctx)

	repo, err := app.OpenRepository(ctx, cfg)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	defer repo.Close()

	deps, err := app.NewIngestDeps(ctx, cfg, repo)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	uploader := upload.NewUploader(deps.Storage)

	status := subcommands.ExitSuccess
	for _, path := range f.Args() {
		res, err := ingestPath(ctx, deps, uploader, a.SourceType, path)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("ingest: failed")
			fail("%s: %v", path, err)
			status = subcommands.ExitFailure
			continue
		}
		if res.Duplicate {
			fmt.Printf("%s: duplicate of %s\n", path, res.FileID)
			continue
		}
		fmt.Printf("%s: %d entries (file %s, run %s, %d categorized by model)\n",
			path, res.EntryCount, res.FileID, res.ParsingRunID, res.Categorized)
	}
	return status
}

func ingestPath(ctx context.Context, deps ingest.Deps, uploader *upload.Uploader, source, path string) (*ingest.Result, error) {
	if _, err := pipeline.FormatFromPath(path); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	file, err := uploader.Upload(ctx, filepath.Base(path), source, content)
	if err != nil {
		return nil, err
	}
	return ingest.IngestBillFile(ctx, deps, file)
}

type billsCmd struct{}

func (*billsCmd) Name() string           { return "bills" }
func (*billsCmd) Synopsis() string       { return "list uploaded bill files" }
func (*billsCmd) Usage() string          { return "onebook bills\n" }
func (*billsCmd) SetFlags(*flag.FlagSet) {}

func (*billsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx, cfg, err := setup(ctx)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	repo, err := app.OpenRepository(ctx, cfg)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	defer repo.Close()

	files, err := repo.ListBillFiles(ctx)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE ID\tUPLOADED\tSOURCE\tSTATUS\tENTRIES\tNAME")
	for _, bf := range files {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			bf.FileID, bf.UploadedAt.Format(time.RFC3339), bf.SourceType, bf.Status, bf.EntryCount, bf.OriginalFilename)
	}
	w.Flush()
	return subcommands.ExitSuccess
}

type entriesCmd struct {
	start    string
	end      string
	category string
}

func (*entriesCmd) Name() string     { return "entries" }
func (*entriesCmd) Synopsis() string { return "list stored ledger entries" }
func (*entriesCmd) Usage() string {
	return `onebook entries [-start YYYY-MM-DD] [-end YYYY-MM-DD] [-category <code|label>]

  Lists entries from successful parsing runs, oldest first, followed by
  expense and income totals.
`
}

func (p *entriesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.start, "start", "", "first day (defaults to one year before -end)")
	f.StringVar(&p.end, "end", "", "last day (defaults to today)")
	f.StringVar(&p.category, "category", "", "only entries of this category")
}

func (p *entriesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	from, to, err := dateRange(p.start, p.end, time.Now())
	if err != nil {
		fail("%v", err)
		return subcommands.ExitUsageError
	}
	var category domain.TransactionType
	if p.category != "" {
		c, ok := domain.ParseTransactionType(p.category)
		if !ok {
			fail("unknown category %q", p.category)
			return subcommands.ExitUsageError
		}
		category = c
	}

	ctx, cfg, err := setup(ctx)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	repo, err := app.OpenRepository(ctx, cfg)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	defer repo.Close()

	recs, err := repo.QueryEntriesByDateRange(ctx, from, to)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}

	var totals entryTotals
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "DATE\tSUMMARY\tCOUNTERPARTY\tAMOUNT\tCATEGORY\t")
	for _, rec := range recs {
		if category != "" && rec.Category != category {
			continue
		}
		totals.add(rec.Entry)
		date := ""
		if rec.Date != nil {
			date = rec.Date.Format(dateLayout)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
			date, rec.TransactionSummary, rec.Counterparty, formatAmount(rec.Amount), rec.Category.Label())
	}
	w.Flush()

	fmt.Printf("\n%d entries  expense %s  income %s\n", totals.count, formatAmount(totals.expense), formatAmount(totals.income))
	return subcommands.ExitSuccess
}
