// Package runlog appends the human-readable run log kept next to the
// artifacts (<backup_dir>/backup.log).
//
// One timestamped line per event, a dashed separator after each run, no
// rotation of its own - unbounded growth is an accepted limitation. The
// log is strictly operational: failures signal through error returns and
// the process exit code, never by inspecting this file. Writes are
// best-effort; a failing log never fails a backup, it only warns on
// stderr (same policy as the catalog).
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dlarsson-se/walback/internal/clock"
)

// FileName is the log filename inside the backup directory.
const FileName = "backup.log"

const separator = "----------------------------------------"

// Logger appends events to the run log.
type Logger struct {
	f     *os.File
	clock clock.Clock
}

// Open opens (creating if needed) the run log in dir for appending.
func Open(dir string, c clock.Clock) (*Logger, error) {
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open run log %s: %w", path, err)
	}
	return &Logger{f: f, clock: c}, nil
}

// Event appends one timestamped line.
func (l *Logger) Event(format string, args ...any) {
	if l == nil || l.f == nil {
		return
	}
	ts := l.clock.Now().Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("%s %s\n", ts, fmt.Sprintf(format, args...))
	if _, err := l.f.WriteString(line); err != nil {
		fmt.Fprintf(os.Stderr, "walback: run log write failed: %v\n", err)
	}
}

// Separator appends the end-of-run separator line.
func (l *Logger) Separator() {
	if l == nil || l.f == nil {
		return
	}
	if _, err := l.f.WriteString(separator + "\n"); err != nil {
		fmt.Fprintf(os.Stderr, "walback: run log write failed: %v\n", err)
	}
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// Timestamp formats t the way Event does, exposed for tests.
func Timestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
