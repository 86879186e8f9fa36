package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsdb/core/pkg/dbfile"
)

func openSchemaField(path string, pick func(name, version, cksum string) string) (string, error) {
	f, err := dbfile.Open(path, nil, true, dbfile.Options{})
	if err != nil {
		return "", err
	}
	defer f.Close()
	s := f.Schema()
	return pick(s.Name, s.Version, s.Checksum), nil
}

var dbNameCmd = &cobra.Command{
	Use:   "db-name [DB-FILE]",
	Short: "Print the database's schema name",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openSchemaField(argOr(args, 0, defaultDBPath), func(name, version, cksum string) string { return name })
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

var dbVersionCmd = &cobra.Command{
	Use:   "db-version [DB-FILE]",
	Short: "Print the database's schema version",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openSchemaField(argOr(args, 0, defaultDBPath), func(name, version, cksum string) string { return version })
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

var dbCksumCmd = &cobra.Command{
	Use:   "db-cksum [DB-FILE]",
	Short: "Print the database's schema checksum",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openSchemaField(argOr(args, 0, defaultDBPath), func(name, version, cksum string) string { return cksum })
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

// dbCidCmd always reports "unknown" and exits 2: a cluster ID is a
// property of a clustered log this core never runs, only inspects
// (spec §6.3).
var dbCidCmd = &cobra.Command{
	Use:   "db-cid [DB-FILE]",
	Short: "Print the database's cluster ID (always unknown for a standalone core)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.ErrOrStderr(), "unknown")
		os.Exit(exitUnknown)
		return nil
	},
}

var schemaNameCmd = &cobra.Command{
	Use:   "schema-name [SCHEMA-FILE]",
	Short: "Print a schema file's name",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := readSchemaFile(argOr(args, 0, defaultSchemaPath))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), s.Name)
		return nil
	},
}

var schemaVersionCmd = &cobra.Command{
	Use:   "schema-version [SCHEMA-FILE]",
	Short: "Print a schema file's version",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := readSchemaFile(argOr(args, 0, defaultSchemaPath))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), s.Version)
		return nil
	},
}

var schemaCksumCmd = &cobra.Command{
	Use:   "schema-cksum [SCHEMA-FILE]",
	Short: "Print a schema file's checksum",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := readSchemaFile(argOr(args, 0, defaultSchemaPath))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), s.Checksum)
		return nil
	},
}
