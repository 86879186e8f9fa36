package model

import (
	"github.com/google/uuid"

	"github.com/opsdb/core/pkg/errs"
)

// ChangeKind classifies a single row change inside a transaction.
type ChangeKind int

const (
	ChangeInsert ChangeKind = iota
	ChangeModify
	ChangeDelete
)

// Change is one row's delta within a transaction: old/new row state plus,
// for a modify, which column indices actually changed. This is the typed
// change record the codec iterates over — spec §9 calls for a typed
// iterator here instead of a callback-driven one.
type Change struct {
	Table   string
	Schema  TableSchema
	UUID    string
	Kind    ChangeKind
	Old     *Row // nil for insert
	New     *Row // nil for delete
	Changed map[int]bool
}

// ChangeIterator yields a transaction's changes one at a time. pkg/txn's
// encoder consumes this interface rather than a callback+context pair.
type ChangeIterator interface {
	Next() (Change, bool)
}

type sliceIterator struct {
	changes []Change
	pos     int
}

func (it *sliceIterator) Next() (Change, bool) {
	if it.pos >= len(it.changes) {
		return Change{}, false
	}
	c := it.changes[it.pos]
	it.pos++
	return c, true
}

type stagedOp struct {
	kind  ChangeKind
	table string
	uuid  string
	row   *Row // working copy the caller mutates; nil for delete
}

// Transaction accumulates row changes before they are applied atomically to
// the database and handed to the codec for encoding (spec §4.B "Input is a
// stream of change triples").
type Transaction struct {
	db        *Database
	ops       []*stagedOp
	changes   []Change
	comment   string
	committed bool
	aborted   bool
}

func newTransaction(db *Database) *Transaction {
	return &Transaction{db: db}
}

// SetComment attaches the optional human-readable comment persisted as
// `_comment` (spec §3).
func (tx *Transaction) SetComment(c string) { tx.comment = c }

// Comment returns the transaction's comment, the external engine interface
// transaction_get_comment (spec §6.1).
func (tx *Transaction) Comment() string { return tx.comment }

// Insert stages a new row in tableName with a freshly generated UUID. The
// caller sets field values on the returned Row before Commit.
func (tx *Transaction) Insert(tableName string) (*Row, error) {
	return tx.InsertWithUUID(tableName, uuid.NewString())
}

// InsertWithUUID stages a new row under a caller-supplied UUID. Replay uses
// this so a row recovers with the identity it was originally written
// under, rather than minting a fresh one (spec §4.C step 4).
func (tx *Transaction) InsertWithUUID(tableName, rowUUID string) (*Row, error) {
	if _, err := tx.db.Table(tableName); err != nil {
		return nil, err
	}
	row := newRow(rowUUID)
	tx.ops = append(tx.ops, &stagedOp{kind: ChangeInsert, table: tableName, uuid: row.UUID, row: row})
	return row, nil
}

// Modify stages a modification to an existing row, returning a working copy
// for the caller to mutate. Only fields actually changed end up persisted
// (spec §4.B).
func (tx *Transaction) Modify(tableName, rowUUID string) (*Row, error) {
	table, err := tx.db.Table(tableName)
	if err != nil {
		return nil, err
	}
	existing, ok := table.Row(rowUUID)
	if !ok {
		return nil, errs.New(errs.KindConstraint, "row %s not found in table %q", rowUUID, tableName)
	}
	working := existing.clone()
	tx.ops = append(tx.ops, &stagedOp{kind: ChangeModify, table: tableName, uuid: rowUUID, row: working})
	return working, nil
}

// Delete stages the removal of rowUUID. It is an error if the row does not
// exist at commit time (spec §3 invariants, §8 property 6).
func (tx *Transaction) Delete(tableName, rowUUID string) error {
	table, err := tx.db.Table(tableName)
	if err != nil {
		return err
	}
	if _, ok := table.Row(rowUUID); !ok {
		return errs.New(errs.KindConstraint, "row %s not found in table %q", rowUUID, tableName)
	}
	tx.ops = append(tx.ops, &stagedOp{kind: ChangeDelete, table: tableName, uuid: rowUUID})
	return nil
}

// Commit applies every staged op to the live database atomically and
// freezes the resulting change set for ForEachChange/Iterator. It is the
// transaction_commit half of spec §6.1; durability of the resulting delta
// on disk is the database file layer's concern (spec §4.C), not this call's.
func (tx *Transaction) Commit() error {
	if tx.committed || tx.aborted {
		return errs.New(errs.KindConstraint, "transaction already finished")
	}
	// Check every op before applying any, so a failing op changes nothing.
	deleted := make(map[string]bool)
	for _, op := range tx.ops {
		key := op.table + "\x00" + op.uuid
		if op.kind == ChangeInsert {
			delete(deleted, key)
			continue
		}
		if table, err := tx.db.Table(op.table); err != nil {
			return err
		} else if _, ok := table.Row(op.uuid); !ok || deleted[key] {
			return errs.New(errs.KindConstraint, "row %s not found in table %q", op.uuid, op.table)
		}
		deleted[key] = op.kind == ChangeDelete
	}
	for _, op := range tx.ops {
		table, err := tx.db.Table(op.table)
		if err != nil {
			return err
		}
		switch op.kind {
		case ChangeInsert:
			table.rows[op.uuid] = op.row
			tx.changes = append(tx.changes, Change{Table: op.table, Schema: table.schema, UUID: op.uuid, Kind: ChangeInsert, New: op.row})
		case ChangeModify:
			old, ok := table.Row(op.uuid)
			if !ok {
				return errs.New(errs.KindConstraint, "row %s not found in table %q", op.uuid, op.table)
			}
			changed := diffFields(old, op.row, table.schema)
			if len(changed) == 0 {
				continue // no-op modify, spec §4.B: omit entirely
			}
			table.rows[op.uuid] = op.row
			tx.changes = append(tx.changes, Change{Table: op.table, Schema: table.schema, UUID: op.uuid, Kind: ChangeModify, Old: old, New: op.row, Changed: changed})
		case ChangeDelete:
			old, ok := table.Row(op.uuid)
			if !ok {
				return errs.New(errs.KindConstraint, "row %s not found in table %q", op.uuid, op.table)
			}
			delete(table.rows, op.uuid)
			tx.changes = append(tx.changes, Change{Table: op.table, Schema: table.schema, UUID: op.uuid, Kind: ChangeDelete, Old: old})
		}
	}
	tx.committed = true
	return nil
}

func diffFields(old, updated *Row, schema TableSchema) map[int]bool {
	changed := make(map[int]bool)
	for _, col := range schema.Columns {
		if col.Index == schema.uuidIndex {
			continue
		}
		if old.Get(col) != updated.Get(col) {
			changed[col.Index] = true
		}
	}
	return changed
}

// Abort discards every staged op without touching the database.
func (tx *Transaction) Abort() {
	if tx.committed {
		return
	}
	tx.ops = nil
	tx.aborted = true
}

// ForEachChange visits every change in this transaction's committed set,
// the callback-shaped external interface (spec §6.1); Iterator below is
// the typed-iterator replacement spec §9 asks for internally.
func (tx *Transaction) ForEachChange(fn func(Change) error) error {
	for _, c := range tx.changes {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

// Iterator returns a ChangeIterator over this transaction's committed
// changes, in commit order.
func (tx *Transaction) Iterator() ChangeIterator {
	return &sliceIterator{changes: tx.changes}
}
