// Package errs defines the single structured error kind used across the
// persistence core. Every fallible operation in jsonlog, txn, dbfile, and
// inspect returns an *Error rather than an ad-hoc error value, so callers
// can branch on Kind without string-matching messages. The one exception
// is a cancelled render in inspect, which returns the context's error.
package errs

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind classifies the failure so callers (and the CLI) can decide how to
// react without parsing the message.
type Kind int

const (
	// KindIO covers open/read/write/rename/fsync failures, truncated
	// tails, checksum mismatches, and magic mismatches.
	KindIO Kind = iota
	// KindSyntax covers JSON that violates the delta or schema shape.
	KindSyntax
	// KindUnknownTable covers a table name absent from the schema.
	KindUnknownTable
	// KindUnknownColumn covers a column name absent from a table schema.
	KindUnknownColumn
	// KindConstraint covers a value that fails to satisfy its column type.
	KindConstraint
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindSyntax:
		return "syntax"
	case KindUnknownTable:
		return "unknown-table"
	case KindUnknownColumn:
		return "unknown-column"
	case KindConstraint:
		return "constraint"
	default:
		return "unknown"
	}
}

// Error is the one structured error kind that propagates out of every
// fallible operation in this module. It composes a local message with an
// optional wrapped inner error, per spec.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

// Unwrap lets errors.Is/errors.As see through to the wrapped cause.
func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no wrapped cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error around cause, preserving it as the Unwrap target.
// The cause is first run through cockroachdb/errors.WithStack so a stack
// trace is attached without altering its message.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	if cause == nil {
		return New(kind, format, args...)
	}
	return &Error{
		Kind:  kind,
		Msg:   fmt.Sprintf(format, args...),
		Cause: errors.WithStack(cause),
	}
}

// Is reports whether err is an *Error of the given kind, looking through
// any wrapping the standard errors package understands.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
