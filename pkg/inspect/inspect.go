// Package inspect implements the log inspection tool (spec §4.E): a
// sequential, read-only record reader and renderer for both the
// standalone format this module writes and the clustered (consensus-log)
// format it only ever reads. It is grounded on the teacher's
// pkg/storage/cursor.go rendering idiom — walk records in order, render
// one line (or more, at higher verbosity) per record — generalized to two
// distinct record shapes instead of one.
package inspect

import (
	"context"
	"io"

	"github.com/opsdb/core/pkg/errs"
	"github.com/opsdb/core/pkg/jsonlog"
)

// Render writes a human-readable rendering of the log at path to w.
// Verbosity follows spec §6.3's show-log "-m" flag: 0 is one line per
// record, higher values add more detail per record. ctx is checked
// between records so a caller can cancel a long render (spec §5).
func Render(ctx context.Context, w io.Writer, path string, verbosity int) error {
	magic, err := jsonlog.SniffMagic(path)
	if err != nil {
		return err
	}

	log, err := jsonlog.Open(path, magic, jsonlog.ModeReadOnly, jsonlog.LockNo)
	if err != nil {
		return err
	}
	defer log.Close()

	switch magic {
	case jsonlog.StandaloneMagic:
		return renderStandalone(ctx, w, log, verbosity)
	case jsonlog.ClusteredMagic:
		return renderClustered(ctx, w, log, verbosity)
	default:
		return errs.New(errs.KindIO, "unrecognized log magic %q in %s", magic, path)
	}
}
