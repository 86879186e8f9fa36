package txn

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/opsdb/core/pkg/errs"
	"github.com/opsdb/core/pkg/model"
)

// Decode applies a transaction delta's JSON payload to db, via a freshly
// begun transaction that is committed before returning (spec §4.B
// "Decoding (JSON → operations)"). When converting is true, unknown tables
// and unknown columns are silently skipped instead of erroring (spec §3
// "Converting mode").
//
// Every parsing error aborts the whole transaction; partial deltas never
// reach the caller's database. On success it returns the now-committed
// Transaction, so a caller applying a delta it received from outside
// (spec §6.3 "transact") can still persist it via dbfile.File.Commit.
func Decode(db *model.Database, payload json.RawMessage, converting bool) (*model.Transaction, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(payload, &top); err != nil {
		return nil, errs.Wrap(errs.KindSyntax, err, "transaction delta is not a JSON object")
	}

	tx := db.Begin()
	for tableName, rawRows := range top {
		if tableName == dateKey || tableName == commentKey {
			continue
		}

		table, err := db.Table(tableName)
		if err != nil {
			if converting {
				continue
			}
			tx.Abort()
			return nil, err
		}

		var rows map[string]json.RawMessage
		if err := json.Unmarshal(rawRows, &rows); err != nil {
			tx.Abort()
			return nil, errs.Wrap(errs.KindSyntax, err, "table %q delta is not a JSON object", tableName)
		}

		for rowUUID, rawVal := range rows {
			if _, err := uuid.Parse(rowUUID); err != nil {
				tx.Abort()
				return nil, errs.Wrap(errs.KindSyntax, err, "invalid row uuid %q", rowUUID)
			}

			if string(rawVal) == "null" {
				if err := tx.Delete(tableName, rowUUID); err != nil {
					tx.Abort()
					return nil, errs.Wrap(errs.KindConstraint, err, "deleting row %s in table %q", rowUUID, tableName)
				}
				continue
			}

			var fields map[string]json.RawMessage
			if err := json.Unmarshal(rawVal, &fields); err != nil {
				tx.Abort()
				return nil, errs.Wrap(errs.KindSyntax, err, "row %s value is not an object or null", rowUUID)
			}

			_, exists := table.Row(rowUUID)
			var row *model.Row
			if exists {
				row, err = tx.Modify(tableName, rowUUID)
			} else {
				row, err = tx.InsertWithUUID(tableName, rowUUID)
			}
			if err != nil {
				tx.Abort()
				return nil, err
			}

			if err := applyFields(row, table.Schema(), fields, converting); err != nil {
				tx.Abort()
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return tx, nil
}

func applyFields(row *model.Row, schema model.TableSchema, fields map[string]json.RawMessage, converting bool) error {
	for name, raw := range fields {
		col, ok := schema.Column(name)
		if !ok {
			if converting {
				continue
			}
			return errs.New(errs.KindUnknownColumn, "unknown column %q in table %q", name, schema.Name)
		}
		v, err := model.FromJSON(col.Type, raw)
		if err != nil {
			return err
		}
		row.Set(col, v)
	}
	return nil
}
