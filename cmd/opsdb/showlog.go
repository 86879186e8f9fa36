package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/opsdb/core/pkg/inspect"
)

var showLogCmd = &cobra.Command{
	Use:   "show-log [LOG-FILE]",
	Short: "Print a human-readable rendering of a standalone or clustered log",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verbosity, err := cmd.Flags().GetCount("more")
		if err != nil {
			return err
		}
		return inspect.Render(context.Background(), cmd.OutOrStdout(), argOr(args, 0, defaultDBPath), verbosity)
	},
}

func init() {
	showLogCmd.Flags().CountP("more", "m", "increase verbosity (repeatable)")
}
