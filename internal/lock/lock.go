// Package lock provides mutual exclusion between backup runs via a lease
// file in the backup directory.
//
// The original cron job had no overlap protection: a slow run could race a
// following invocation on the same staging filename. The lease file closes
// that gap - one backup routine per database at a time. Acquisition is
// non-blocking; a held lock fails the run immediately and the scheduler's
// next invocation is the retry.
package lock

import (
	"errors"
	"fmt"
	"os"
)

// ErrLocked is returned when another process holds the lease.
var ErrLocked = errors.New("another backup is already running")

// Lock is a held lease. Release it when the run completes.
type Lock struct {
	f    *os.File
	path string
}

// Acquire takes the lease file at path, creating it if needed.
// Returns ErrLocked (wrapped) if another process holds it.
func Acquire(path string) (*Lock, error) {
	l, err := acquire(path)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	return l, nil
}

// Release drops the lease and removes the file. Safe to call once.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := l.release()
	l.f = nil
	return err
}

// Path returns the lease file path.
func (l *Lock) Path() string { return l.path }
