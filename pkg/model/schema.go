package model

import (
	"encoding/json"
	"sort"

	"github.com/opsdb/core/pkg/errs"
)

// ColumnSchema names one column: its index (position, used for the changed
// bitmap the engine's change iterator carries), its type, and whether it is
// persistent (non-persistent columns are never written to the log).
type ColumnSchema struct {
	Name       string
	Index      int
	Type       Type
	Persistent bool
}

type columnSchemaJSON struct {
	Index      int    `json:"index"`
	Type       string `json:"type"`
	Persistent bool   `json:"persistent"`
}

// TableSchema names a table's columns, including the distinguished UUID
// column that is never serialized as a regular field (spec §4.B).
type TableSchema struct {
	Name      string
	Columns   map[string]ColumnSchema
	uuidIndex int
}

// UUIDColumnIndex is the column index that row UUIDs occupy and that the
// codec must never emit as a regular field.
func (t TableSchema) UUIDColumnIndex() int { return t.uuidIndex }

// Column looks up a column by name.
func (t TableSchema) Column(name string) (ColumnSchema, bool) {
	c, ok := t.Columns[name]
	return c, ok
}

// Schema is the mandatory first record of a standalone log (spec §3).
type Schema struct {
	Name     string
	Version  string
	Checksum string
	Tables   map[string]TableSchema
}

type schemaJSON struct {
	Name     string                       `json:"name"`
	Version  string                       `json:"version"`
	Checksum string                       `json:"cksum"`
	Tables   map[string]tableSchemaJSON   `json:"tables"`
}

type tableSchemaJSON struct {
	Columns map[string]columnSchemaJSON `json:"columns"`
}

// ToJSON renders the schema the way it is written as record 0.
func (s Schema) ToJSON() (json.RawMessage, error) {
	out := schemaJSON{
		Name:     s.Name,
		Version:  s.Version,
		Checksum: s.Checksum,
		Tables:   make(map[string]tableSchemaJSON, len(s.Tables)),
	}
	for name, t := range s.Tables {
		cols := make(map[string]columnSchemaJSON, len(t.Columns))
		for cname, c := range t.Columns {
			cols[cname] = columnSchemaJSON{Index: c.Index, Type: c.Type.String(), Persistent: c.Persistent}
		}
		out.Tables[name] = tableSchemaJSON{Columns: cols}
	}
	return json.Marshal(out)
}

// SchemaFromJSON parses a schema record's payload.
func SchemaFromJSON(raw json.RawMessage) (Schema, error) {
	var in schemaJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return Schema{}, errs.Wrap(errs.KindSyntax, err, "invalid schema record")
	}
	s := Schema{
		Name:     in.Name,
		Version:  in.Version,
		Checksum: in.Checksum,
		Tables:   make(map[string]TableSchema, len(in.Tables)),
	}
	for name, t := range in.Tables {
		cols := make(map[string]ColumnSchema, len(t.Columns))
		uuidIdx := -1
		for cname, c := range t.Columns {
			typ, err := typeFromString(c.Type)
			if err != nil {
				return Schema{}, errs.Wrap(errs.KindSyntax, err, "table %q column %q", name, cname)
			}
			cols[cname] = ColumnSchema{Name: cname, Index: c.Index, Type: typ, Persistent: c.Persistent}
			if typ == TypeUUID {
				uuidIdx = c.Index
			}
		}
		s.Tables[name] = TableSchema{Name: name, Columns: cols, uuidIndex: uuidIdx}
	}
	return s, nil
}

// Clone performs a deep copy, used when opening with an alternate schema —
// the on-disk schema is still read but discarded (spec §4.C step 2).
func (s Schema) Clone() Schema {
	out := Schema{Name: s.Name, Version: s.Version, Checksum: s.Checksum, Tables: make(map[string]TableSchema, len(s.Tables))}
	for name, t := range s.Tables {
		cols := make(map[string]ColumnSchema, len(t.Columns))
		for cname, c := range t.Columns {
			cols[cname] = c
		}
		out.Tables[name] = TableSchema{Name: t.Name, Columns: cols, uuidIndex: t.uuidIndex}
	}
	return out
}

// Equal compares two schemas structurally, used by "needs-conversion"
// (spec §6.3).
func (s Schema) Equal(o Schema) bool {
	if s.Name != o.Name || len(s.Tables) != len(o.Tables) {
		return false
	}
	for name, t := range s.Tables {
		ot, ok := o.Tables[name]
		if !ok || len(t.Columns) != len(ot.Columns) {
			return false
		}
		for cname, c := range t.Columns {
			oc, ok := ot.Columns[cname]
			if !ok || oc != c {
				return false
			}
		}
	}
	return true
}

// sortedTableNames returns table names in sorted order. The codec and the
// inspector do not use it: both iterate maps, so their table order is not
// fixed.
func (s Schema) sortedTableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
