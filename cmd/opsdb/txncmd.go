package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsdb/core/pkg/dbfile"
	"github.com/opsdb/core/pkg/model"
	"github.com/opsdb/core/pkg/txn"
)

func readTransactionFile(path string) (json.RawMessage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

// dbAndTxnArgs splits the "[db] txn" argv shape (spec §6.3 "query [db] txn",
// "transact [db] txn"): the trailing argument is always the required
// transaction file; a leading argument, if present, names the database.
func dbAndTxnArgs(args []string) (dbPath, txnPath string) {
	if len(args) == 2 {
		return args[0], args[1]
	}
	return defaultDBPath, args[0]
}

var queryCmd = &cobra.Command{
	Use:   "query [DB-FILE] TRANSACTION-FILE",
	Short: "Apply a transaction delta against DB-FILE without persisting it",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, txnPath := dbAndTxnArgs(args)

		f, err := dbfile.Open(dbPath, nil, true, dbfile.Options{})
		if err != nil {
			return err
		}
		defer f.Close()

		payload, err := readTransactionFile(txnPath)
		if err != nil {
			return err
		}
		tx, err := txn.Decode(f.Database(), payload, false)
		if err != nil {
			return err
		}

		n := 0
		tx.ForEachChange(func(c model.Change) error { n++; return nil })
		fmt.Fprintf(cmd.OutOrStdout(), "query ok, %d row(s) touched (not persisted)\n", n)
		return nil
	},
}

var transactCmd = &cobra.Command{
	Use:   "transact [DB-FILE] TRANSACTION-FILE",
	Short: "Apply and durably persist a transaction delta against DB-FILE",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, txnPath := dbAndTxnArgs(args)

		f, err := dbfile.Open(dbPath, nil, false, dbfile.Options{})
		if err != nil {
			return err
		}
		defer f.Close()

		payload, err := readTransactionFile(txnPath)
		if err != nil {
			return err
		}
		tx, err := txn.Decode(f.Database(), payload, false)
		if err != nil {
			return err
		}
		if err := f.Commit(tx, true); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "transaction committed")
		return nil
	},
}
