// Package dbfile implements the database file layer (spec §4.C) and its
// snapshot writer (spec §4.D): open a standalone log, replay it into a
// live model.Database, append transaction deltas, and compact the log into
// a fresh schema-plus-snapshot when it has grown too large relative to its
// last snapshot. It is grounded on the teacher's StorageEngine.Recover
// (open-then-replay loop) and checkpoint.go (write-temp-then-rename
// compaction).
package dbfile

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/opsdb/core/pkg/jsonlog"
)

// Compaction gate thresholds (spec §4.C): a log is only ever compacted once
// all four conditions hold — enough wall-clock time has passed since the
// last attempt, enough transactions have accumulated, the log has grown
// past an absolute floor, and it has grown past a multiple of the last
// snapshot's size.
const (
	CompactMinInterval   = 10 * time.Minute
	CompactRetryInterval = time.Minute

	compactMinTransactions = 100
	compactMinLogBytes     = 10 * 1024 * 1024
	compactSizeRatio       = 4
)

// Options configures an opened File. The zero value is a usable (no-op
// logging, no metrics, auto locking) configuration.
type Options struct {
	// Logger receives the "log and swallow" replay-corruption warnings and
	// compaction-failure notices (spec §7 propagation policy). Nil means
	// discard.
	Logger *zerolog.Logger

	// Metrics, if non-nil, is incremented/set on every commit and
	// compaction. Nil means metrics are not collected.
	Metrics *Metrics

	// Locking controls the advisory lock taken on the underlying log file.
	Locking jsonlog.Locking
}

func (o Options) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}
