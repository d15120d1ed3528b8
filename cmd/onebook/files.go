package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dvloznov/onebook-ledger/internal/adapters"
	"github.com/dvloznov/onebook-ledger/internal/logger"
	"github.com/dvloznov/onebook-ledger/internal/pipeline"
	"github.com/google/subcommands"
)

type detectCmd struct{}

func (*detectCmd) Name() string     { return "detect" }
func (*detectCmd) Synopsis() string { return "guess the encoding and header row of bill files" }
func (*detectCmd) Usage() string {
	return `onebook detect <file>...

  Prints the detected character encoding (CSV only) and the number of rows
  before the header row for each file.
`
}

func (*detectCmd) SetFlags(*flag.FlagSet) {}

func (*detectCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tFORMAT\tENCODING\tSKIP\tCONFIDENT")
	status := subcommands.ExitSuccess
	for _, path := range f.Args() {
		res, err := pipeline.DetectLayout(path)
		if err != nil {
			fail("%s: %v", path, err)
			status = subcommands.ExitFailure
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\n", path, res.Format, res.Encoding, res.Skip, res.Confident)
	}
	w.Flush()
	return status
}

type parseCmd struct {
	source string
	asJSON bool
}

func (*parseCmd) Name() string     { return "parse" }
func (*parseCmd) Synopsis() string { return "parse a bill file and print its entries without storing them" }
func (*parseCmd) Usage() string {
	return `onebook parse -source <type> [-json] <file>

  Runs the adapter for <type> over the file and prints the entries.
`
}

func (p *parseCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.source, "source", "", "bill source type: "+strings.Join(adapters.SourceTypes(), ", "))
	f.BoolVar(&p.asJSON, "json", false, "print entries as JSON")
}

func (p *parseCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 || p.source == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	ctx, _, err := setup(ctx)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}

	entries, err := adapters.ParseFile(ctx, p.source, f.Arg(0))
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}

	if p.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			fail("%v", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tSUMMARY\tCOUNTERPARTY\tAMOUNT\tDIRECTION\tCATEGORY")
	for _, e := range entries {
		date := ""
		if e.Date != nil {
			date = e.Date.Format(pipeline.DefaultDateLayout)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			date, e.TransactionSummary, e.Counterparty, formatAmount(e.Amount), e.Direction.Label(), e.Category.Label())
	}
	w.Flush()

	log := logger.FromContext(ctx)
	log.Debug().Int("entries", len(entries)).Msg("parse: done")
	return subcommands.ExitSuccess
}

type sourcesCmd struct{}

func (*sourcesCmd) Name() string           { return "sources" }
func (*sourcesCmd) Synopsis() string       { return "list the supported bill sources" }
func (*sourcesCmd) Usage() string          { return "onebook sources\n" }
func (*sourcesCmd) SetFlags(*flag.FlagSet) {}

func (*sourcesCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tBILL\tENCODING\tSKIP")
	for _, a := range adapters.All() {
		enc := a.Config.Encoding
		if enc == "" {
			enc = "auto"
		}
		skip := fmt.Sprint(a.Config.HeaderSkip)
		if a.Config.HeaderSkip == pipeline.AutoSkip {
			skip = "auto"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.SourceType, a.BillName, enc, skip)
	}
	w.Flush()
	return subcommands.ExitSuccess
}
