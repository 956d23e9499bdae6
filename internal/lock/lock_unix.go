//go:build !windows

// lock_unix.go implements the lease with flock(2).
//
// flock releases automatically when the process dies, so a crashed run
// never leaves a stale lease behind. The lock file itself may remain on
// disk; that is harmless because only the kernel lock, not the file's
// existence, grants the lease.

package lock

import (
	"os"
	"syscall"
)

func acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if err == syscall.EWOULDBLOCK {
			return nil, ErrLocked
		}
		return nil, err
	}

	return &Lock{f: f, path: path}, nil
}

func (l *Lock) release() error {
	// Unlock before close so a waiter sees a clean handoff.
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	err := l.f.Close()
	_ = os.Remove(l.path)
	return err
}
