package dbfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opsdb/core/pkg/errs"
	"github.com/opsdb/core/pkg/jsonlog"
	"github.com/opsdb/core/pkg/model"
)

func testSchema(t *testing.T) model.Schema {
	t.Helper()
	raw := []byte(`{
		"name": "testdb",
		"version": "1.0.0",
		"cksum": "",
		"tables": {
			"widgets": {
				"columns": {
					"_uuid": {"index": 0, "type": "uuid", "persistent": false},
					"name":  {"index": 1, "type": "string", "persistent": true},
					"count": {"index": 2, "type": "integer", "persistent": true}
				}
			}
		}
	}`)
	schema, err := model.SchemaFromJSON(raw)
	if err != nil {
		t.Fatalf("parsing test schema: %v", err)
	}
	return schema
}

func testSchemaWithLegacyColumn(t *testing.T) model.Schema {
	t.Helper()
	raw := []byte(`{
		"name": "testdb",
		"version": "1.0.0",
		"cksum": "",
		"tables": {
			"widgets": {
				"columns": {
					"_uuid":  {"index": 0, "type": "uuid", "persistent": false},
					"name":   {"index": 1, "type": "string", "persistent": true},
					"count":  {"index": 2, "type": "integer", "persistent": true},
					"legacy": {"index": 3, "type": "string", "persistent": true}
				}
			}
		}
	}`)
	schema, err := model.SchemaFromJSON(raw)
	if err != nil {
		t.Fatalf("parsing legacy test schema: %v", err)
	}
	return schema
}

func TestCreateAndOpenEmptyDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	schema := testSchema(t)

	f, err := Create(path, schema, Options{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f2, err := Open(path, nil, false, Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f2.Close()

	if !f2.Schema().Equal(schema) {
		t.Error("reopened schema does not match the one written at create")
	}
	table, err := f2.Database().Table("widgets")
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	if len(table.Rows()) != 0 {
		t.Errorf("expected empty table, got %d rows", len(table.Rows()))
	}
}

func TestCommitPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	schema := testSchema(t)

	f, err := Create(path, schema, Options{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	tx := f.Database().Begin()
	row, err := tx.Insert("widgets")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	col, _ := schema.Tables["widgets"].Column("name")
	row.Set(col, model.StringDatum("sprocket"))
	if err := tx.Commit(); err != nil {
		t.Fatalf("tx commit: %v", err)
	}
	if err := f.Commit(tx, true); err != nil {
		t.Fatalf("file commit: %v", err)
	}
	rowUUID := row.UUID
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f2, err := Open(path, nil, false, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f2.Close()

	table, err := f2.Database().Table("widgets")
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	got, ok := table.Row(rowUUID)
	if !ok {
		t.Fatalf("row %s missing after reopen", rowUUID)
	}
	if got.Get(col).String() != "sprocket" {
		t.Errorf("name = %q, want sprocket", got.Get(col).String())
	}
}

func TestReadOnlyRejectsCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	schema := testSchema(t)

	f, err := Create(path, schema, Options{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.Close()

	f2, err := Open(path, nil, true, Options{})
	if err != nil {
		t.Fatalf("open read-only: %v", err)
	}
	defer f2.Close()

	tx := f2.Database().Begin()
	if _, err := tx.Insert("widgets"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	tx.Commit()

	if err := f2.Commit(tx, true); !errs.Is(err, errs.KindIO) {
		t.Fatalf("expected KindIO error committing to a read-only file, got %v", err)
	}
}

func TestConvertingModeSkipsUnknownColumnOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	oldSchema := testSchemaWithLegacyColumn(t)

	f, err := Create(path, oldSchema, Options{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	tx := f.Database().Begin()
	row, err := tx.Insert("widgets")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	legacyCol, _ := oldSchema.Tables["widgets"].Column("legacy")
	row.Set(legacyCol, model.StringDatum("old-value"))
	nameCol, _ := oldSchema.Tables["widgets"].Column("name")
	row.Set(nameCol, model.StringDatum("kept"))
	rowUUID := row.UUID
	if err := tx.Commit(); err != nil {
		t.Fatalf("tx commit: %v", err)
	}
	if err := f.Commit(tx, true); err != nil {
		t.Fatalf("file commit: %v", err)
	}
	f.Close()

	newSchema := testSchema(t) // no "legacy" column
	f2, err := Open(path, &newSchema, false, Options{})
	if err != nil {
		t.Fatalf("converting open: %v", err)
	}
	defer f2.Close()

	table, err := f2.Database().Table("widgets")
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	got, ok := table.Row(rowUUID)
	if !ok {
		t.Fatalf("row missing after converting open")
	}
	if got.Get(nameCol).String() != "kept" {
		t.Errorf("name = %q, want kept", got.Get(nameCol).String())
	}
}

func TestCompactPreservesStateAndShrinksLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	schema := testSchema(t)

	f, err := Create(path, schema, Options{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	nameCol, _ := schema.Tables["widgets"].Column("name")
	var lastUUID string
	for i := 0; i < 5; i++ {
		tx := f.Database().Begin()
		row, err := tx.Insert("widgets")
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		row.Set(nameCol, model.StringDatum("row"))
		lastUUID = row.UUID
		if err := tx.Commit(); err != nil {
			t.Fatalf("tx commit %d: %v", i, err)
		}
		if err := f.Commit(tx, true); err != nil {
			t.Fatalf("file commit %d: %v", i, err)
		}
	}

	sizeBefore := fileSize(t, path)

	if err := f.Compact(); err != nil {
		t.Fatalf("compact: %v", err)
	}

	sizeAfter := fileSize(t, path)
	if sizeAfter >= sizeBefore {
		t.Errorf("expected compaction to shrink the log: before=%d after=%d", sizeBefore, sizeAfter)
	}

	table, err := f.Database().Table("widgets")
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	if len(table.Rows()) != 5 {
		t.Errorf("expected 5 rows live after compaction, got %d", len(table.Rows()))
	}
	if _, ok := table.Row(lastUUID); !ok {
		t.Errorf("row %s missing after compaction", lastUUID)
	}

	f.Close()
	f2, err := Open(path, nil, false, Options{})
	if err != nil {
		t.Fatalf("reopen after compact: %v", err)
	}
	defer f2.Close()
	table2, err := f2.Database().Table("widgets")
	if err != nil {
		t.Fatalf("table after reopen: %v", err)
	}
	if len(table2.Rows()) != 5 {
		t.Errorf("expected 5 rows after reopening a compacted log, got %d", len(table2.Rows()))
	}
}

func TestCorruptedTailReplaysCleanlyAndIsOverwritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	schema := testSchema(t)

	f, err := Create(path, schema, Options{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	tx := f.Database().Begin()
	row, err := tx.Insert("widgets")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	goodUUID := row.UUID
	if err := tx.Commit(); err != nil {
		t.Fatalf("tx commit: %v", err)
	}
	if err := f.Commit(tx, true); err != nil {
		t.Fatalf("file commit: %v", err)
	}
	f.Close()

	file, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if _, err := file.WriteString("CORESTATE 9999 0000000000000000000000000000000000000000\n{garbage\n"); err != nil {
		t.Fatalf("append garbage: %v", err)
	}
	file.Close()

	f2, err := Open(path, nil, false, Options{})
	if err != nil {
		t.Fatalf("open with corrupted tail: %v", err)
	}
	defer f2.Close()

	table, err := f2.Database().Table("widgets")
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	if _, ok := table.Row(goodUUID); !ok {
		t.Error("the good transaction before the corrupted tail should still have replayed")
	}

	tx2 := f2.Database().Begin()
	if _, err := tx2.Insert("widgets"); err != nil {
		t.Fatalf("insert after truncation: %v", err)
	}
	tx2.Commit()
	if err := f2.Commit(tx2, true); err != nil {
		t.Fatalf("commit after truncated tail should overwrite the garbage cleanly: %v", err)
	}
}

// TestModifyThenDeleteLeavesEmptyTableAndFourRecords is scenario S3: starting
// from a single inserted row, modify it in one transaction and delete it in
// another, then reopen. The row is gone but every transaction still left its
// own record on disk: schema, insert, modify, delete.
func TestModifyThenDeleteLeavesEmptyTableAndFourRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	schema := testSchema(t)

	f, err := Create(path, schema, Options{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	nameCol, _ := schema.Tables["widgets"].Column("name")
	countCol, _ := schema.Tables["widgets"].Column("count")

	tx1 := f.Database().Begin()
	row, err := tx1.Insert("widgets")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	row.Set(nameCol, model.StringDatum("sprocket"))
	rowUUID := row.UUID
	if err := tx1.Commit(); err != nil {
		t.Fatalf("tx1 commit: %v", err)
	}
	if err := f.Commit(tx1, true); err != nil {
		t.Fatalf("file commit 1: %v", err)
	}

	tx2 := f.Database().Begin()
	working, err := tx2.Modify("widgets", rowUUID)
	if err != nil {
		t.Fatalf("modify: %v", err)
	}
	working.Set(countCol, model.IntDatum(2))
	if err := tx2.Commit(); err != nil {
		t.Fatalf("tx2 commit: %v", err)
	}
	if err := f.Commit(tx2, true); err != nil {
		t.Fatalf("file commit 2: %v", err)
	}

	tx3 := f.Database().Begin()
	if err := tx3.Delete("widgets", rowUUID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := tx3.Commit(); err != nil {
		t.Fatalf("tx3 commit: %v", err)
	}
	if err := f.Commit(tx3, true); err != nil {
		t.Fatalf("file commit 3: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if n := countLogRecords(t, path); n != 4 {
		t.Errorf("expected 4 log records (schema, insert, modify, delete), got %d", n)
	}

	f2, err := Open(path, nil, false, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f2.Close()

	table, err := f2.Database().Table("widgets")
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	if len(table.Rows()) != 0 {
		t.Errorf("expected an empty table after modify-then-delete, got %d rows", len(table.Rows()))
	}
	if _, ok := table.Row(rowUUID); ok {
		t.Error("deleted row should not reappear after reopen")
	}
}

func countLogRecords(t *testing.T, path string) int {
	t.Helper()
	l, err := jsonlog.Open(path, jsonlog.StandaloneMagic, jsonlog.ModeReadOnly, jsonlog.LockNo)
	if err != nil {
		t.Fatalf("opening log to count records: %v", err)
	}
	defer l.Close()

	n := 0
	for {
		if _, err := l.Read(); err != nil {
			break
		}
		n++
	}
	return n
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	return info.Size()
}
