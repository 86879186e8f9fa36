package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsdb/core/pkg/dbfile"
)

var createCmd = &cobra.Command{
	Use:   "create [DB-FILE [SCHEMA-FILE]]",
	Short: "Create a new database file from a schema",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := argOr(args, 0, defaultDBPath)
		schemaPath := argOr(args, 1, defaultSchemaPath)

		schema, err := readSchemaFile(schemaPath)
		if err != nil {
			return err
		}
		f, err := dbfile.Create(dbPath, schema, dbfile.Options{})
		if err != nil {
			return err
		}
		defer f.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", dbPath)
		return nil
	},
}

// compactCmd either replaces DB-FILE's log in place, or, when DST is given,
// writes the compacted snapshot to DST and leaves DB-FILE untouched
// (spec §6.3 "compact [db [dst]]").
var compactCmd = &cobra.Command{
	Use:   "compact [DB-FILE [DST]]",
	Short: "Compact a database file's log into a fresh snapshot",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := argOr(args, 0, defaultDBPath)
		dst := ""
		if len(args) >= 2 {
			dst = args[1]
		}

		f, err := dbfile.Open(dbPath, nil, dst != "", dbfile.Options{})
		if err != nil {
			return err
		}
		defer f.Close()

		if dst != "" {
			if err := f.CompactTo(dst); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote compacted copy of %s to %s\n", dbPath, dst)
			return nil
		}

		if err := f.Compact(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "compacted %s\n", dbPath)
		return nil
	},
}
