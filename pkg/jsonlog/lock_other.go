//go:build !unix

package jsonlog

// lock is a no-op on platforms without flock; locking=yes on such a
// platform is still honored at the API level (no error), matching the
// "without locking, behavior is undefined and the caller is responsible"
// clause for unsupported platforms (spec §5).
func (l *Log) lock() error {
	l.locked = true
	return nil
}

func (l *Log) unlockLocked() {
	l.locked = false
}
