package model

import (
	"github.com/opsdb/core/pkg/errs"
)

// Table is the in-memory row set for one schema table, matching spec
// §3's "Database file state" — the in-memory database is owned by the
// caller for the purpose of query execution once a dbfile.File has
// replayed the log into it.
type Table struct {
	schema TableSchema
	rows   map[string]*Row
}

func newTable(schema TableSchema) *Table {
	return &Table{schema: schema, rows: make(map[string]*Row)}
}

func (t *Table) Schema() TableSchema { return t.schema }

// Rows returns every live row. Callers must not mutate the returned map.
func (t *Table) Rows() map[string]*Row { return t.rows }

func (t *Table) Row(uuid string) (*Row, bool) {
	r, ok := t.rows[uuid]
	return r, ok
}

// Database is the live, in-memory reconstitution of a log: one schema, one
// table per schema table, zero or more rows per table (spec §3).
type Database struct {
	schema Schema
	tables map[string]*Table
}

// NewDatabase constructs an empty database from a schema, the way
// dbfile.Open does before replay (spec §4.C step 2).
func NewDatabase(schema Schema) *Database {
	db := &Database{schema: schema, tables: make(map[string]*Table, len(schema.Tables))}
	for name, ts := range schema.Tables {
		db.tables[name] = newTable(ts)
	}
	return db
}

func (db *Database) Schema() Schema { return db.schema }

func (db *Database) Tables() map[string]*Table { return db.tables }

func (db *Database) Table(name string) (*Table, error) {
	t, ok := db.tables[name]
	if !ok {
		return nil, errs.New(errs.KindUnknownTable, "table %q not found", name)
	}
	return t, nil
}

// Begin starts a new transaction against this database.
func (db *Database) Begin() *Transaction {
	return newTransaction(db)
}
