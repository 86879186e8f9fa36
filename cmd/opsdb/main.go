// Command opsdb is the command-line surface over the persistence core
// (spec §6.3): create, inspect, compact, and convert standalone database
// files, and stage or apply transactions against one. Every subcommand is
// a thin cobra.Command wrapping pkg/dbfile, pkg/txn, pkg/model, and
// pkg/inspect — grounded on the teacher's examples/*/main.go, one
// runnable scenario per command, generalized here into a single
// multi-command binary.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes (spec §6.3): 0 success, 1 user error, 2 "not yet known"
// (db-cid against a log this core never clusters).
const (
	exitOK        = 0
	exitUserError = 1
	exitUnknown   = 2
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "opsdb: %v\n", err)
		os.Exit(exitUserError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "opsdb",
	Short: "Inspect and maintain operational state database files",
	Long: `opsdb creates, inspects, compacts, and converts standalone
operational state database files: an append-only log of a schema record
followed by transaction delta records.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(compactCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(needsConversionCmd)
	rootCmd.AddCommand(dbNameCmd, dbVersionCmd, dbCksumCmd, dbCidCmd)
	rootCmd.AddCommand(schemaNameCmd, schemaVersionCmd, schemaCksumCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(transactCmd)
	rootCmd.AddCommand(showLogCmd)
}
