package main

import (
	"encoding/json"
	"os"

	"github.com/opsdb/core/pkg/errs"
	"github.com/opsdb/core/pkg/model"
)

// Default paths used when a command's leading positional argument is
// omitted (spec §6.3: "Commands operate on a default database path if
// omitted").
const (
	defaultDBPath     = "db.json"
	defaultSchemaPath = "schema.json"
)

func readSchemaFile(path string) (model.Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Schema{}, errs.Wrap(errs.KindIO, err, "reading schema file %s", path)
	}
	return model.SchemaFromJSON(json.RawMessage(raw))
}

// argOr returns args[idx] if present, else def — used to default a leading
// positional argument that spec §6.3 documents as optional.
func argOr(args []string, idx int, def string) string {
	if idx < len(args) {
		return args[idx]
	}
	return def
}
