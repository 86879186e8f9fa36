package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/opsdb/core/pkg/jsonlog"
)

// clusteredFields is the vocabulary of top-level keys a clustered log
// entry is recognized by — name only, no semantic validation (spec §4.E).
// It is grounded on the Command{Op, Data} shape dispatched by a Raft FSM's
// Apply method in the example corpus: a log entry is just a JSON object
// whose known keys this tool prints, leaving everything else opaque.
var clusteredFields = []string{"term", "index", "data", "servers", "vote"}

// renderClustered prints one line per clustered log entry, naming
// whichever of the recognized fields are present (spec §4.E). This module
// never writes this format and never interprets "data" or "servers"
// beyond printing them; it exists purely so operators can inspect a
// clustered log with the same tool they use for a standalone one.
func renderClustered(ctx context.Context, w io.Writer, log *jsonlog.Log, verbosity int) error {
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

		var entry map[string]json.RawMessage
		if err := json.Unmarshal(payload, &entry); err != nil {
			fmt.Fprintf(w, "entry %d: not a JSON object: %v\n", n, err)
			continue
		}

		present := make([]string, 0, len(clusteredFields))
		for _, name := range clusteredFields {
			if _, ok := entry[name]; ok {
				present = append(present, name)
			}
		}
		fmt.Fprintf(w, "entry %d: fields=%v\n", n, present)

		if verbosity < 1 {
			continue
		}
		if raw, ok := entry["term"]; ok {
			fmt.Fprintf(w, "  term=%s\n", raw)
		}
		if raw, ok := entry["index"]; ok {
			fmt.Fprintf(w, "  index=%s\n", raw)
		}
		if raw, ok := entry["vote"]; ok {
			fmt.Fprintf(w, "  vote=%s\n", raw)
		}
		if verbosity >= 2 {
			if raw, ok := entry["data"]; ok {
				fmt.Fprintf(w, "  data=%s\n", raw)
			}
			if raw, ok := entry["servers"]; ok {
				fmt.Fprintf(w, "  servers=%s\n", raw)
			}
		}
	}
}
