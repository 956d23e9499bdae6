//go:build windows

// lock_windows.go implements the lease with exclusive file creation.
//
// Windows has no flock equivalent in the standard library, so the lease is
// the existence of the file itself (O_EXCL). A crashed run can leave a
// stale lease that must be removed by hand; acceptable for a maintenance
// tool that runs under a scheduler with alerting.

package lock

import "os"

func acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrLocked
		}
		return nil, err
	}
	return &Lock{f: f, path: path}, nil
}

func (l *Lock) release() error {
	err := l.f.Close()
	_ = os.Remove(l.path)
	return err
}
