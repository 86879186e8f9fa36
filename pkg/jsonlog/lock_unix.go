//go:build unix

package jsonlog

import (
	"os"
	"syscall"

	"github.com/opsdb/core/pkg/errs"
)

// lock takes a non-blocking advisory exclusive flock on a sibling ".lock"
// file, grounded on the flock idiom used for cross-process file locking
// in the corpus (non-blocking LOCK_EX|LOCK_NB, released on close).
func (l *Log) lock() error {
	lf, err := os.OpenFile(l.path+".lock", os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return errs.Wrap(errs.KindIO, err, "opening lock file for %s", l.path)
	}
	if err := syscall.Flock(int(lf.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		lf.Close()
		return errs.Wrap(errs.KindIO, err, "locking %s", l.path)
	}
	l.lockFile = lf
	l.locked = true
	return nil
}

func (l *Log) unlockLocked() {
	syscall.Flock(int(l.lockFile.Fd()), syscall.LOCK_UN)
	l.lockFile.Close()
	l.lockFile = nil
	l.locked = false
}
