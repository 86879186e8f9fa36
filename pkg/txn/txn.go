// Package txn implements the transaction delta codec (spec §4.B): encoding
// a transaction's change set into the delta JSON shape, and decoding that
// JSON back into operations applied to a model.Database. It is grounded on
// the teacher's pkg/storage/transaction_write.go, which buffers a write set
// and then applies it atomically — the same two-phase shape, but encoding
// to the spec's JSON delta instead of a protobuf WAL entry.
package txn

import (
	"encoding/json"
	"time"

	"github.com/opsdb/core/pkg/errs"
	"github.com/opsdb/core/pkg/model"
)

const (
	dateKey    = "_date"
	commentKey = "_comment"
)

// Encode serializes a transaction's committed change set into the delta
// JSON shape (spec §4.B). It returns nil (no error) and a nil payload when
// there is nothing to persist — "If the overall result has no tables, no
// record is written and the commit is a no-op on disk."
func Encode(changes model.ChangeIterator, comment string) (json.RawMessage, error) {
	tables := map[string]map[string]json.RawMessage{}

	for {
		c, ok := changes.Next()
		if !ok {
			break
		}

		rowJSON, omit, err := encodeChange(c)
		if err != nil {
			return nil, err
		}
		if omit {
			continue
		}

		table, ok := tables[c.Table]
		if !ok {
			table = map[string]json.RawMessage{}
			tables[c.Table] = table
		}
		table[c.UUID] = rowJSON
	}

	if len(tables) == 0 {
		return nil, nil
	}

	out := map[string]json.RawMessage{}
	for name, rows := range tables {
		raw, err := json.Marshal(rows)
		if err != nil {
			return nil, errs.Wrap(errs.KindSyntax, err, "encoding table %q delta", name)
		}
		out[name] = raw
	}

	dateRaw, _ := json.Marshal(time.Now().UnixMilli())
	out[dateKey] = dateRaw
	if comment != "" {
		commentRaw, err := json.Marshal(comment)
		if err != nil {
			return nil, errs.Wrap(errs.KindSyntax, err, "encoding comment")
		}
		out[commentKey] = commentRaw
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return nil, errs.Wrap(errs.KindSyntax, err, "encoding transaction delta")
	}
	return raw, nil
}

// encodeChange renders one change as either JSON null (delete) or a JSON
// object of non-UUID persistent columns: for an insert, those whose value
// is not the type default; for a modify, those marked changed. omit is true when a modify ends up with no fields to persist
// (spec §4.B: "the row is omitted entirely").
func encodeChange(c model.Change) (json.RawMessage, bool, error) {
	if c.Kind == model.ChangeDelete {
		return json.RawMessage("null"), false, nil
	}

	row := c.New
	schema := c.Schema
	fields := map[string]json.RawMessage{}

	for name, col := range schema.Columns {
		if col.Index == schema.UUIDColumnIndex() {
			continue
		}
		if !col.Persistent {
			continue
		}
		if c.Kind == model.ChangeModify && !c.Changed[col.Index] {
			continue
		}
		v := row.Get(col)
		if c.Kind == model.ChangeInsert && v.IsDefault() {
			continue
		}
		raw, err := v.ToJSON()
		if err != nil {
			return nil, false, errs.Wrap(errs.KindSyntax, err, "encoding column %q", name)
		}
		fields[name] = raw
	}

	if c.Kind == model.ChangeModify && len(fields) == 0 {
		return nil, true, nil
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, false, errs.Wrap(errs.KindSyntax, err, "encoding row %s", c.UUID)
	}
	return raw, false, nil
}
