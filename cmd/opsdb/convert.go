package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsdb/core/pkg/dbfile"
)

var needsConversionCmd = &cobra.Command{
	Use:   "needs-conversion [DB-FILE [SCHEMA-FILE]]",
	Short: "Report whether DB-FILE's on-disk schema differs from SCHEMA-FILE",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := argOr(args, 0, defaultDBPath)
		schemaPath := argOr(args, 1, defaultSchemaPath)

		f, err := dbfile.Open(dbPath, nil, true, dbfile.Options{})
		if err != nil {
			return err
		}
		defer f.Close()

		newSchema, err := readSchemaFile(schemaPath)
		if err != nil {
			return err
		}

		if f.Schema().Equal(newSchema) {
			fmt.Fprintln(cmd.OutOrStdout(), "no")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "yes")
		}
		return nil
	},
}

// convertCmd either converts DB-FILE in place, or, when DST is given,
// leaves DB-FILE on its old schema and writes the converted snapshot to
// DST instead (spec §6.3 "convert [db [schema [dst]]]").
var convertCmd = &cobra.Command{
	Use:   "convert [DB-FILE [SCHEMA-FILE [DST]]]",
	Short: "Convert DB-FILE to SCHEMA-FILE, in place or into DST",
	Long: `Convert replays DB-FILE under the new schema (dropping tables and
columns the new schema no longer names, spec §3 "Converting mode"), then
writes a snapshot under the new schema either back over DB-FILE or, when
DST is given, to DST, leaving DB-FILE untouched.`,
	Args: cobra.MaximumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := argOr(args, 0, defaultDBPath)
		schemaPath := argOr(args, 1, defaultSchemaPath)
		dst := ""
		if len(args) >= 3 {
			dst = args[2]
		}

		newSchema, err := readSchemaFile(schemaPath)
		if err != nil {
			return err
		}

		f, err := dbfile.Open(dbPath, &newSchema, dst != "", dbfile.Options{})
		if err != nil {
			return err
		}
		defer f.Close()

		if dst != "" {
			if err := f.CompactTo(dst); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s converted to %s\n", dbPath, dst)
			return nil
		}

		if err := f.Compact(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "converted %s\n", dbPath)
		return nil
	},
}
