package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/opsdb/core/pkg/jsonlog"
	"github.com/opsdb/core/pkg/model"
)

const (
	dateKey    = "_date"
	commentKey = "_comment"
)

// renderStandalone prints the schema record, then one rendering per
// transaction delta record (spec §4.E). It keeps a uuid->last-known-name
// map as a plain local variable so it is freed the moment Render returns,
// resolving the leaked-map note in spec §9 by simply not making it
// long-lived package state.
func renderStandalone(ctx context.Context, w io.Writer, log *jsonlog.Log, verbosity int) error {
	schemaRaw, err := log.Read()
	if err != nil {
		return err
	}
	schema, err := model.SchemaFromJSON(schemaRaw)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "schema: %q %s (cksum %s), %d tables\n", schema.Name, schema.Version, schema.Checksum, len(schema.Tables))

	names := map[string]string{} // row uuid -> last known "name" column value

	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, err := log.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		n++
		if err := renderTransaction(w, n, payload, names, verbosity); err != nil {
			return err
		}
	}
}

func renderTransaction(w io.Writer, n int, payload json.RawMessage, names map[string]string, verbosity int) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(payload, &top); err != nil {
		fmt.Fprintf(w, "record %d: not a transaction object: %v\n", n, err)
		return nil
	}

	date := ""
	if raw, ok := top[dateKey]; ok {
		date = formatDate(raw)
	}
	comment := ""
	if raw, ok := top[commentKey]; ok {
		json.Unmarshal(raw, &comment)
	}

	fmt.Fprintf(w, "record %d: date=%s", n, date)
	if comment != "" {
		fmt.Fprintf(w, " comment=%q", comment)
	}
	fmt.Fprintln(w)

	if verbosity < 1 {
		return nil
	}

	for tableName, rawRows := range top {
		if tableName == dateKey || tableName == commentKey {
			continue
		}
		var rows map[string]json.RawMessage
		if err := json.Unmarshal(rawRows, &rows); err != nil {
			fmt.Fprintf(w, "  table %s: malformed: %v\n", tableName, err)
			continue
		}
		for rowUUID, rawVal := range rows {
			label := rowUUID
			if known, ok := names[rowUUID]; ok {
				label = fmt.Sprintf("%s (%s)", rowUUID, known)
			}

			if string(rawVal) == "null" {
				fmt.Fprintf(w, "  table %s row %s: deleted\n", tableName, label)
				delete(names, rowUUID)
				continue
			}

			var fields map[string]json.RawMessage
			json.Unmarshal(rawVal, &fields)
			if nameRaw, ok := fields["name"]; ok {
				var nm string
				if json.Unmarshal(nameRaw, &nm) == nil {
					names[rowUUID] = nm
					label = fmt.Sprintf("%s (%s)", rowUUID, nm)
				}
			}

			fmt.Fprintf(w, "  table %s row %s: %d column(s) changed\n", tableName, label, len(fields))
			if verbosity >= 2 {
				for col, raw := range fields {
					fmt.Fprintf(w, "    %s = %s\n", col, raw)
				}
			}
		}
	}
	return nil
}

// formatDate decodes _date's numeric value and renders it as local time
// with millisecond precision (spec §4.E). Old standalone databases wrote
// Unix seconds; current ones write Unix milliseconds. A value that still
// fits a signed 32-bit int is read as seconds, matching the on-disk format
// that existed before timestamps needed more range (spec §9).
func formatDate(raw json.RawMessage) string {
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return string(raw)
	}
	var t time.Time
	if n <= math.MaxInt32 {
		t = time.Unix(n, 0)
	} else {
		t = time.UnixMilli(n)
	}
	return t.Local().Format("2006-01-02T15:04:05.000Z07:00")
}
