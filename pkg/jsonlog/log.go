package jsonlog

import (
	"bufio"
	"encoding/json"
	"io"
	"math"
	"os"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/opsdb/core/pkg/errs"
)

// Log is an open handle on one record file: a magic, a mode, an optional
// advisory lock, a buffered writer, and a sequential reader with one-record
// pushback (spec §4.A).
type Log struct {
	mu sync.Mutex

	path  string
	magic string
	mode  Mode

	file   *os.File
	writer *bufio.Writer
	reader *bufio.Reader

	offset      int64 // byte position just past the last record written (the file's end when opened for write)
	readOff     int64 // byte position the reader has consumed from the OS file
	lastReadOff int64 // byte position readOff held just before the most recent successful Read
	unreadBuf   *json.RawMessage

	locked   bool
	lockFile *os.File
}

// Open opens path under the given magic/mode/locking (spec §4.A). Modes:
// read-only, read-write, create-exclusive ("create-exclusive fails if the
// path exists"). locking=auto takes the lock iff opening for write.
func Open(path, magic string, mode Mode, locking Locking) (*Log, error) {
	var flags int
	switch mode {
	case ModeReadOnly:
		flags = os.O_RDONLY
	case ModeReadWrite:
		flags = os.O_RDWR | os.O_CREATE
	case ModeCreateExclusive:
		flags = os.O_RDWR | os.O_CREATE | os.O_EXCL
	default:
		return nil, errs.New(errs.KindIO, "unknown open mode %d", mode)
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "open %s", path)
	}

	// The reader goes through ReadAt from the start of the file, so it is
	// independent of the file position that the writer appends at.
	l := &Log{
		path:   path,
		magic:  magic,
		mode:   mode,
		file:   f,
		reader: bufio.NewReader(io.NewSectionReader(f, 0, math.MaxInt64)),
	}
	if mode != ModeReadOnly {
		l.writer = bufio.NewWriter(f)
		if off, err := f.Seek(0, io.SeekEnd); err == nil {
			l.offset = off
		}
	}

	wantLock := locking == LockYes || (locking == LockAuto && mode != ModeReadOnly)
	if wantLock {
		if err := l.lock(); err != nil {
			f.Close()
			return nil, err
		}
	}

	return l, nil
}

// Offset returns the byte position just past the last successfully
// written record.
func (l *Log) Offset() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.offset
}

// Read sequentially yields the next record's parsed JSON payload. It
// returns io.EOF when the log is exhausted. Any integrity failure (bad
// length, checksum mismatch, truncated payload, or magic mismatch) returns
// an *errs.Error naming the offset and leaves the log position just before
// the bad record (spec §4.A).
func (l *Log) Read() (json.RawMessage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.unreadBuf != nil {
		v := *l.unreadBuf
		l.unreadBuf = nil
		return v, nil
	}

	startOff := l.readOff
	line, err := l.reader.ReadString('\n')
	if err == io.EOF && line == "" {
		return nil, io.EOF
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "reading header at offset %d", startOff)
	}

	h, err := parseHeader(line, startOff)
	if err != nil {
		return nil, err
	}
	if h.magic != l.magic {
		return nil, errs.New(errs.KindIO, "magic mismatch at offset %d: got %q want %q", startOff, h.magic, l.magic)
	}

	payload := make([]byte, h.len)
	if _, err := io.ReadFull(l.reader, payload); err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "truncated payload at offset %d", startOff)
	}
	trailer := make([]byte, 1)
	if _, err := io.ReadFull(l.reader, trailer); err != nil || trailer[0] != '\n' {
		return nil, errs.New(errs.KindIO, "missing record trailer at offset %d", startOff)
	}

	if checksum(payload) != h.sha1 {
		return nil, errs.New(errs.KindIO, "checksum mismatch at offset %d", startOff)
	}
	if !json.Valid(payload) {
		return nil, errs.New(errs.KindSyntax, "record at offset %d is not valid JSON", startOff)
	}

	recordLen := int64(len(line)) + int64(h.len) + 1
	l.lastReadOff = l.readOff
	l.readOff += recordLen
	return json.RawMessage(payload), nil
}

// Unread pushes back the most recently read record so the next Read
// returns it again, and rewinds readOff to just before that record so a
// following TruncateTail discards it rather than keeping it on disk. Used
// by replay to stop cleanly at the first undecodable record (spec §4.A).
func (l *Log) Unread(v json.RawMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := append(json.RawMessage(nil), v...)
	l.unreadBuf = &cp
	l.readOff = l.lastReadOff
}

// Write appends a record: serialize the JSON payload, hash it, emit
// header, emit payload. Buffered; not guaranteed durable until Commit
// (spec §4.A).
func (l *Log) Write(v json.RawMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writer == nil {
		return errs.New(errs.KindIO, "log %s is not open for write", l.path)
	}
	if !json.Valid(v) {
		return errs.New(errs.KindSyntax, "refusing to write invalid JSON payload")
	}

	sum := checksum(v)
	h := header{magic: l.magic, len: len(v), sha1: sum}
	if _, err := l.writer.WriteString(h.String()); err != nil {
		return errs.Wrap(errs.KindIO, err, "writing record header")
	}
	if _, err := l.writer.Write(v); err != nil {
		return errs.Wrap(errs.KindIO, err, "writing record payload")
	}
	if err := l.writer.WriteByte('\n'); err != nil {
		return errs.Wrap(errs.KindIO, err, "writing record trailer")
	}

	l.offset += int64(len(h.String())) + int64(len(v)) + 1
	return nil
}

// Commit fsyncs the underlying file, making any unflushed writes durable.
func (l *Log) Commit() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.commitLocked()
}

func (l *Log) commitLocked() error {
	if l.writer != nil {
		if err := l.writer.Flush(); err != nil {
			return errs.Wrap(errs.KindIO, err, "flushing log %s", l.path)
		}
	}
	if err := l.file.Sync(); err != nil {
		return errs.Wrap(errs.KindIO, err, "fsync log %s", l.path)
	}
	return nil
}

// ReplaceStart creates a sibling temporary log in the same directory,
// opened for write with the same magic, for the caller to write the
// replacement contents into (spec §4.A).
func (l *Log) ReplaceStart() (*Log, error) {
	tmp := l.path + ".tmp"
	os.Remove(tmp)
	return Open(tmp, l.magic, ModeCreateExclusive, LockNo)
}

// ReplaceCommit atomically swaps newLog's file into l's path (rename, plus
// fsync of the containing directory via natefinch/atomic), then reassigns
// l to observe the new file. On failure the old file is untouched
// (spec §4.A).
func (l *Log) ReplaceCommit(newLog *Log) error {
	if err := newLog.Commit(); err != nil {
		return err
	}
	newLog.mu.Lock()
	tmpPath := newLog.path
	newLog.file.Close()
	newLog.mu.Unlock()

	if err := atomic.ReplaceFile(tmpPath, l.path); err != nil {
		return errs.Wrap(errs.KindIO, err, "atomically replacing %s", l.path)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lockFile != nil {
		l.unlockLocked()
	}
	if err := l.file.Close(); err != nil {
		return errs.Wrap(errs.KindIO, err, "closing old log %s", l.path)
	}

	f, err := os.OpenFile(l.path, os.O_RDWR, 0644)
	if err != nil {
		return errs.Wrap(errs.KindIO, err, "reopening replaced log %s", l.path)
	}
	l.file = f
	l.writer = bufio.NewWriter(f)
	l.reader = bufio.NewReader(f)
	l.readOff = 0
	l.unreadBuf = nil
	if off, err := f.Seek(0, io.SeekEnd); err == nil {
		l.offset = off
	}
	return nil
}

// Close releases OS resources and the advisory lock, if any.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var err error
	if l.writer != nil {
		if fErr := l.writer.Flush(); fErr != nil {
			err = fErr
		}
	}
	if l.lockFile != nil {
		l.unlockLocked()
	}
	if cErr := l.file.Close(); cErr != nil && err == nil {
		err = cErr
	}
	if err != nil {
		return errs.Wrap(errs.KindIO, err, "closing log %s", l.path)
	}
	return nil
}

// Path returns the filesystem path this log was opened from.
func (l *Log) Path() string { return l.path }

// TruncateTail discards everything past the last record successfully
// returned by Read (after Unread, everything from the start of the
// pushed-back record on), repositioning the writer so the next Write overwrites
// a corrupted or truncated trailing record instead of appending after it
// (spec §4.C replay: tolerate a truncated tail, then resume writing over
// it).
func (l *Log) TruncateTail() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writer == nil {
		return errs.New(errs.KindIO, "log %s is not open for write", l.path)
	}
	if err := l.file.Truncate(l.readOff); err != nil {
		return errs.Wrap(errs.KindIO, err, "truncating log %s to offset %d", l.path, l.readOff)
	}
	if _, err := l.file.Seek(l.readOff, io.SeekStart); err != nil {
		return errs.Wrap(errs.KindIO, err, "seeking log %s to offset %d", l.path, l.readOff)
	}
	l.writer = bufio.NewWriter(l.file)
	l.reader = bufio.NewReader(l.file)
	l.unreadBuf = nil
	l.offset = l.readOff
	return nil
}
