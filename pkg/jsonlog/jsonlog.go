// Package jsonlog implements the log container (spec §4.A): an
// append-only file of length-prefixed, checksummed JSON records, plus the
// atomic replace protocol compaction uses. It is the JSON-record analogue
// of the teacher's pkg/wal — same header/payload/checksum shape, same
// buffered-writer-plus-sequential-reader split, but an ASCII header over a
// binary one, since spec §3/§6.2 fix the wire format to
// "<MAGIC> <LEN> <SHA1>\n<payload>\n".
package jsonlog

// Magic tokens identify which log variant a file holds. StandaloneMagic is
// the only one this module ever writes; ClusteredMagic is recognized only
// by pkg/inspect (spec §1: the clustered log's file format is described
// only to the extent the inspection tool must recognize it).
const (
	StandaloneMagic = "CORESTATE"
	ClusteredMagic  = "CORECLUSTER"
)

// Mode selects how Open treats the underlying file.
type Mode int

const (
	ModeReadOnly Mode = iota
	ModeReadWrite
	ModeCreateExclusive
)

// Locking selects whether Open takes an advisory flock.
type Locking int

const (
	LockAuto Locking = iota // lock iff opening for write
	LockYes
	LockNo
)
