// Package catalog persists the outcome of every run in a small SQLite
// database kept next to the artifacts (<backup_dir>/catalog.db).
//
// The run log is for humans; the catalog is for queries: `history` reads
// recent runs from it and `verify` looks up recorded checksums. Its
// filename does not match the artifact pattern, so rotation never touches
// it. Recording is best-effort - a backup must succeed even if its
// bookkeeping cannot be written - but open/migrate errors are surfaced so
// a misconfigured backup directory is noticed.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	// Register sqlite driver
	_ "modernc.org/sqlite"
)

// FileName is the catalog filename inside the backup directory.
const FileName = "catalog.db"

// ErrNoChecksum is returned when no recorded checksum exists for an artifact.
var ErrNoChecksum = errors.New("no recorded checksum for artifact")

// Run is one recorded invocation of the backup runner.
type Run struct {
	ID        int64  `json:"id"`
	StartedAt int64  `json:"started_at"` // unix seconds
	EndedAt   int64  `json:"ended_at"`
	Phase     string `json:"phase"` // last phase reached
	Artifact  string `json:"artifact,omitempty"`
	Size      int64  `json:"size,omitempty"`     // compressed bytes
	Checksum  string `json:"checksum,omitempty"` // hex BLAKE2b-256
	Pruned    int    `json:"pruned"`             // artifacts rotated away
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// Catalog is an open handle on the catalog database.
type Catalog struct {
	db *sql.DB
}

// Open opens (creating and migrating if needed) the catalog in dir.
func Open(dir string) (*Catalog, error) {
	path := filepath.Join(dir, FileName)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate catalog %s: %w", path, err)
	}
	return &Catalog{db: db}, nil
}

// Close releases the catalog connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Append records a completed run.
func (c *Catalog) Append(ctx context.Context, r Run) error {
	success := 0
	if r.Success {
		success = 1
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO runs (started_at, ended_at, phase, artifact, size, checksum, pruned, success, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.StartedAt, r.EndedAt, r.Phase,
		nilIfEmpty(r.Artifact), nilIfZero(r.Size), nilIfEmpty(r.Checksum),
		r.Pruned, success, nilIfEmpty(r.Error),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Recent returns the most recent n runs, newest first.
func (c *Catalog) Recent(ctx context.Context, n int) ([]Run, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, started_at, ended_at, phase, artifact, size, checksum, pruned, success, error
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var artifact, checksum, errMsg sql.NullString
		var size sql.NullInt64
		var success int
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.EndedAt, &r.Phase,
			&artifact, &size, &checksum, &r.Pruned, &success, &errMsg); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Artifact = artifact.String
		r.Size = size.Int64
		r.Checksum = checksum.String
		r.Error = errMsg.String
		r.Success = success == 1
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Checksum returns the recorded checksum for an artifact filename.
// Returns ErrNoChecksum when the artifact was never recorded (e.g. it was
// produced before the catalog existed).
func (c *Catalog) Checksum(ctx context.Context, artifact string) (string, error) {
	var sum sql.NullString
	row := c.db.QueryRowContext(ctx, `
		SELECT checksum FROM runs
		WHERE artifact = ? AND success = 1
		ORDER BY id DESC LIMIT 1`, artifact)
	err := row.Scan(&sum)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !sum.Valid) {
		return "", fmt.Errorf("%w: %s", ErrNoChecksum, artifact)
	}
	if err != nil {
		return "", fmt.Errorf("query checksum: %w", err)
	}
	return sum.String, nil
}

// migrate creates the runs table if it doesn't exist.
func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at INTEGER NOT NULL,
			ended_at   INTEGER NOT NULL,
			phase      TEXT NOT NULL,
			artifact   TEXT,
			size       INTEGER,
			checksum   TEXT,
			pruned     INTEGER NOT NULL DEFAULT 0,
			success    INTEGER NOT NULL,
			error      TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
		CREATE INDEX IF NOT EXISTS idx_runs_artifact ON runs(artifact);
	`)
	return err
}

// nilIfEmpty returns nil for empty strings, reducing NULL checks in queries.
func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nilIfZero returns nil for zero values, indicating "not reached" in queries.
func nilIfZero(n int64) *int64 {
	if n == 0 {
		return nil
	}
	return &n
}
