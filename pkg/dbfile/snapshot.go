package dbfile

import (
	"encoding/json"

	"github.com/opsdb/core/pkg/model"
	"github.com/opsdb/core/pkg/txn"
)

// buildSnapshotTransaction renders every live row of db as a single
// mega-transaction delta: one insert per row, covering every table
// (spec §4.D). It returns nil, nil when the database holds no rows, the
// same "nothing to persist" shape Encode uses for an empty transaction.
func buildSnapshotTransaction(db *model.Database) (json.RawMessage, error) {
	tx := db.Begin()

	for tableName, table := range db.Tables() {
		schema := table.Schema()
		for rowUUID, row := range table.Rows() {
			newRow, err := tx.InsertWithUUID(tableName, rowUUID)
			if err != nil {
				return nil, err
			}
			for _, col := range schema.Columns {
				if col.Index == schema.UUIDColumnIndex() {
					continue
				}
				newRow.Set(col, row.Get(col))
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return txn.Encode(tx.Iterator(), "")
}
