// Package source is the boundary to the live SQLite database being backed
// up. The database is owned by another process (the bot); this package
// never changes its journal mode, never takes an exclusive lock on it, and
// relies on the engine's own checkpoint semantics for consistency.
package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	// Register sqlite driver
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when the database file does not exist.
	ErrNotFound = errors.New("database file not found")

	// ErrCheckpointBusy is returned when the checkpoint could not run to
	// completion because a reader or writer held it off. The copy that
	// would follow could miss unflushed WAL content, so the run aborts.
	ErrCheckpointBusy = errors.New("checkpoint incomplete: database busy")
)

// DB is an open handle on the live database.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens the database file at path. The file must already exist - a
// backup tool has no business creating databases. The caller should call
// Close when done.
func Open(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat database %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	// Busy timeout: the bot may hold short write locks. Five seconds is
	// generous for its workload while still failing a genuinely stuck run.
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &DB{db: db, path: path}, nil
}

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// Close releases the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Checkpoint flushes all pending WAL content into the main database file
// using FULL mode, so a subsequent file copy is self-consistent on its own.
// Returns ErrCheckpointBusy (wrapped) when SQLite reports the checkpoint
// could not complete.
func (d *DB) Checkpoint(ctx context.Context) error {
	// wal_checkpoint reports (busy, wal_pages, checkpointed_pages).
	var busy, walPages, checkpointed int
	row := d.db.QueryRowContext(ctx, `PRAGMA wal_checkpoint(FULL)`)
	if err := row.Scan(&busy, &walPages, &checkpointed); err != nil {
		return fmt.Errorf("WAL checkpoint: %w", err)
	}
	if busy != 0 {
		return fmt.Errorf("WAL checkpoint: %w", ErrCheckpointBusy)
	}
	return nil
}

// IntegrityCheck runs PRAGMA integrity_check and fails unless the result
// is exactly "ok".
func (d *DB) IntegrityCheck(ctx context.Context) error {
	var result string
	row := d.db.QueryRowContext(ctx, `PRAGMA integrity_check`)
	if err := row.Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// CopyTo duplicates the database file byte-for-byte to dst and fsyncs it.
// No lock is held against concurrent writers during the copy; consistency
// comes from running Checkpoint first while the writer is between
// transactions. dst is removed on failure.
func (d *DB) CopyTo(dst string) (int64, error) {
	in, err := os.Open(d.path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", d.path, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		os.Remove(dst)
		return 0, fmt.Errorf("copy %s: %w", d.path, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dst)
		return 0, fmt.Errorf("sync %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return 0, fmt.Errorf("close %s: %w", dst, err)
	}
	return n, nil
}
