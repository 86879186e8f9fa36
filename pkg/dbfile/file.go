package dbfile

import (
	"io"
	"sync"
	"time"

	"github.com/opsdb/core/pkg/errs"
	"github.com/opsdb/core/pkg/jsonlog"
	"github.com/opsdb/core/pkg/model"
	"github.com/opsdb/core/pkg/txn"
)

// File is an open standalone database: one log, one live in-memory
// database replayed from it, and the bookkeeping needed to decide when to
// compact (spec §4.C).
type File struct {
	mu sync.Mutex

	log      *jsonlog.Log
	db       *model.Database
	opts     Options
	readOnly bool

	nTransactions int
	snapshotBytes int64
	nextCompact   time.Time
}

// Open opens path, replays it into a fresh model.Database, and returns the
// resulting File (spec §4.C steps 1-6).
//
// altSchema, if non-nil, replaces the on-disk schema in memory without
// touching the file — the first step of an online conversion (spec §4.C
// step 2, spec §6.3 "convert"). When altSchema differs from the on-disk
// schema, replay runs in converting mode: unknown tables and columns named
// by old transaction deltas are silently skipped instead of erroring
// (spec §3 "Converting mode").
func Open(path string, altSchema *model.Schema, readOnly bool, opts Options) (*File, error) {
	mode := jsonlog.ModeReadWrite
	if readOnly {
		mode = jsonlog.ModeReadOnly
	}

	log, err := jsonlog.Open(path, jsonlog.StandaloneMagic, mode, opts.Locking)
	if err != nil {
		return nil, err
	}

	schemaRaw, err := log.Read()
	if err != nil {
		log.Close()
		return nil, errs.Wrap(errs.KindIO, err, "reading schema record of %s", path)
	}
	onDiskSchema, err := model.SchemaFromJSON(schemaRaw)
	if err != nil {
		log.Close()
		return nil, err
	}

	schema := onDiskSchema
	converting := false
	if altSchema != nil {
		schema = altSchema.Clone()
		converting = !schema.Equal(onDiskSchema)
	}

	db := model.NewDatabase(schema)
	logger := opts.logger()

	n := 0
replay:
	for {
		payload, err := log.Read()
		switch {
		case err == io.EOF:
			break replay
		case err != nil:
			logger.Warn().Err(err).Str("path", path).Msg("stopping replay at corrupted or truncated record")
			if !readOnly {
				if tErr := log.TruncateTail(); tErr != nil {
					logger.Warn().Err(tErr).Str("path", path).Msg("could not truncate corrupted tail")
				}
			}
			break replay
		}

		if _, err := txn.Decode(db, payload, converting); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("stopping replay at undecodable transaction")
			log.Unread(payload)
			if !readOnly {
				if tErr := log.TruncateTail(); tErr != nil {
					logger.Warn().Err(tErr).Str("path", path).Msg("could not truncate undecodable tail")
				}
			}
			break replay
		}
		n++
	}

	f := &File{
		log:           log,
		db:            db,
		opts:          opts,
		readOnly:      readOnly,
		nTransactions: n,
		snapshotBytes: log.Offset(),
		nextCompact:   time.Now().Add(CompactMinInterval),
	}
	if opts.Metrics != nil {
		opts.Metrics.LogBytes.Set(float64(log.Offset()))
		opts.Metrics.SnapshotBytes.Set(float64(f.snapshotBytes))
	}
	return f, nil
}

// Create makes a brand new database file at path: a fresh log containing
// only the schema record, matching the "create" CLI command (spec §6.3).
// It fails if path already exists.
func Create(path string, schema model.Schema, opts Options) (*File, error) {
	log, err := jsonlog.Open(path, jsonlog.StandaloneMagic, jsonlog.ModeCreateExclusive, opts.Locking)
	if err != nil {
		return nil, err
	}

	raw, err := schema.ToJSON()
	if err != nil {
		log.Close()
		return nil, err
	}
	if err := log.Write(raw); err != nil {
		log.Close()
		return nil, err
	}
	if err := log.Commit(); err != nil {
		log.Close()
		return nil, err
	}

	f := &File{
		log:           log,
		db:            model.NewDatabase(schema),
		opts:          opts,
		snapshotBytes: log.Offset(),
		nextCompact:   time.Now().Add(CompactMinInterval),
	}
	if opts.Metrics != nil {
		opts.Metrics.LogBytes.Set(float64(log.Offset()))
		opts.Metrics.SnapshotBytes.Set(float64(f.snapshotBytes))
	}
	return f, nil
}

// Database returns the live, replayed database. Callers run queries and
// stage transactions against it directly (spec §6.1).
func (f *File) Database() *model.Database { return f.db }

// Schema returns the database's current in-memory schema.
func (f *File) Schema() model.Schema { return f.db.Schema() }

// Path returns the underlying log's filesystem path.
func (f *File) Path() string { return f.log.Path() }

// Commit encodes tx's committed change set and appends it to the log
// (spec §4.C). When durable is true the log is fsynced before returning.
// A transaction with no persisted changes is a no-op: nothing is written
// (spec §4.B). After a successful append, Commit evaluates the compaction
// gate and compacts inline if due; a compaction failure is logged but does
// not fail the commit (spec §7).
func (f *File) Commit(tx *model.Transaction, durable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.readOnly {
		return errs.New(errs.KindIO, "database file %s is open read-only", f.log.Path())
	}

	payload, err := txn.Encode(tx.Iterator(), tx.Comment())
	if err != nil {
		return err
	}
	if payload == nil {
		return nil
	}

	if err := f.log.Write(payload); err != nil {
		return err
	}
	if durable {
		if err := f.log.Commit(); err != nil {
			return err
		}
	}
	f.nTransactions++

	if f.opts.Metrics != nil {
		f.opts.Metrics.CommitsTotal.Inc()
		f.opts.Metrics.LogBytes.Set(float64(f.log.Offset()))
	}

	if f.shouldCompactLocked() {
		if err := f.compactLocked(); err != nil {
			f.opts.logger().Warn().Err(err).Str("path", f.log.Path()).Msg("compaction failed, will retry later")
			f.nextCompact = time.Now().Add(CompactRetryInterval)
		}
	}
	return nil
}

func (f *File) shouldCompactLocked() bool {
	now := time.Now()
	if now.Before(f.nextCompact) {
		return false
	}
	if f.nTransactions < compactMinTransactions {
		return false
	}
	logBytes := f.log.Offset()
	if logBytes < compactMinLogBytes {
		return false
	}
	if logBytes < f.snapshotBytes*compactSizeRatio {
		return false
	}
	return true
}

// Compact forces a compaction regardless of the gate, the implementation
// behind the "compact" CLI command (spec §6.3).
func (f *File) Compact() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.compactLocked()
}

func (f *File) compactLocked() error {
	if f.readOnly {
		return errs.New(errs.KindIO, "database file %s is open read-only", f.log.Path())
	}

	newLog, err := f.log.ReplaceStart()
	if err != nil {
		return err
	}

	schemaRaw, err := f.db.Schema().ToJSON()
	if err != nil {
		return err
	}
	if err := newLog.Write(schemaRaw); err != nil {
		return err
	}

	snapshotRaw, err := buildSnapshotTransaction(f.db)
	if err != nil {
		return err
	}
	if snapshotRaw != nil {
		if err := newLog.Write(snapshotRaw); err != nil {
			return err
		}
	}

	if err := f.log.ReplaceCommit(newLog); err != nil {
		return err
	}

	f.snapshotBytes = f.log.Offset()
	// The mega-transaction snapshot is itself record 1, so the post-compact
	// count is 1, not 0 (spec §4.C step 4) — unless the database held no
	// rows at all, in which case no snapshot record was written.
	if snapshotRaw != nil {
		f.nTransactions = 1
	} else {
		f.nTransactions = 0
	}
	now := time.Now()
	f.nextCompact = now.Add(CompactMinInterval)

	if f.opts.Metrics != nil {
		f.opts.Metrics.CompactionsTotal.Inc()
		f.opts.Metrics.SnapshotBytes.Set(float64(f.snapshotBytes))
		f.opts.Metrics.LogBytes.Set(float64(f.snapshotBytes))
	}
	return nil
}

// CompactTo writes a fresh schema-plus-snapshot log to dstPath, leaving f's
// own log untouched — the "compact [db [dst]]" and "convert [db [schema
// [dst]]]" copy-out modes (spec §6.3), as opposed to Compact's in-place
// replace-swap.
func (f *File) CompactTo(dstPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	newLog, err := jsonlog.Open(dstPath, jsonlog.StandaloneMagic, jsonlog.ModeCreateExclusive, f.opts.Locking)
	if err != nil {
		return err
	}

	schemaRaw, err := f.db.Schema().ToJSON()
	if err != nil {
		newLog.Close()
		return err
	}
	if err := newLog.Write(schemaRaw); err != nil {
		newLog.Close()
		return err
	}

	snapshotRaw, err := buildSnapshotTransaction(f.db)
	if err != nil {
		newLog.Close()
		return err
	}
	if snapshotRaw != nil {
		if err := newLog.Write(snapshotRaw); err != nil {
			newLog.Close()
			return err
		}
	}

	if err := newLog.Commit(); err != nil {
		newLog.Close()
		return err
	}
	return newLog.Close()
}

// Close flushes and releases the underlying log.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.log.Close()
}
