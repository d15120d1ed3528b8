// Command onebook ingests bill exports from payment apps and banks into the
// ledger and inspects what was stored.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

var configPath = flag.String("config", os.Getenv("ONEBOOK_CONFIG"), "YAML config file; ONEBOOK_* variables override it")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	commander.Register(&detectCmd{}, "files")
	commander.Register(&parseCmd{}, "files")
	commander.Register(&sourcesCmd{}, "files")

	commander.Register(&ingestCmd{}, "ledger")
	commander.Register(&billsCmd{}, "ledger")
	commander.Register(&entriesCmd{}, "ledger")

	commander.Register(&syncNotionCmd{}, "admin")
	commander.Register(&migrateCmd{}, "admin")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
