// Package backup implements the backup runner: a strictly linear routine
// that produces one durable, compressed, point-in-time snapshot of a live
// SQLite database and enforces the retention policy over previous ones.
//
// The state machine is Start → Locked → Checkpointed → Copied → Compressed
// → Rotated → Done, with no branching and no retries. A failure in lock,
// checkpoint, copy or compress halts the run where it stands and surfaces
// through the returned error; the invoking scheduler owns alerting and the
// next invocation is the implicit retry. Rotation is the one exception: by
// then the valuable artifact exists, so rotation failures are collected in
// the Result instead of failing the run.
//
// Known leftovers by phase, deliberate and documented rather than handled:
//   - compress failure keeps the uncompressed staging copy as a recovery
//     artifact (the data survives even when gzip cannot finish);
//   - nothing cleans recovery copies from earlier failed runs, but Plan
//     skips their names so they are never overwritten.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dlarsson-se/walback/internal/artifact"
	"github.com/dlarsson-se/walback/internal/catalog"
	"github.com/dlarsson-se/walback/internal/clock"
	"github.com/dlarsson-se/walback/internal/compress"
	"github.com/dlarsson-se/walback/internal/lock"
	"github.com/dlarsson-se/walback/internal/rotate"
	"github.com/dlarsson-se/walback/internal/runlog"
	"github.com/dlarsson-se/walback/internal/source"
)

// LockFileName is the lease filename inside the backup directory.
const LockFileName = "walback.lock"

// Phase names the steps of the runner, in order. The Result records the
// last phase reached so the catalog can show where a failed run stopped.
type Phase string

const (
	PhaseLock       Phase = "lock"
	PhaseCheckpoint Phase = "checkpoint"
	PhaseCopy       Phase = "copy"
	PhaseCompress   Phase = "compress"
	PhaseRotate     Phase = "rotate"
	PhaseDone       Phase = "done"
)

// Options configures a run. Database and BackupDir are mandatory.
type Options struct {
	Database         string        // path to the live database file
	BackupDir        string        // where artifacts, log and catalog live
	Prefix           string        // artifact name prefix
	Retention        time.Duration // rotation window
	CompressionLevel int           // gzip level 1-9
	SkipRotate       bool          // produce the artifact but leave old ones
}

// Result reports a completed (or failed) run.
type Result struct {
	Phase      Phase    `json:"phase"` // last phase reached
	Artifact   string   `json:"artifact,omitempty"`
	Size       int64    `json:"size,omitempty"`     // compressed bytes
	Checksum   string   `json:"checksum,omitempty"` // hex BLAKE2b-256
	Pruned     int      `json:"pruned"`
	RotateErrs []string `json:"rotate_errors,omitempty"` // non-fatal
	StartedAt  int64    `json:"started_at"`
	EndedAt    int64    `json:"ended_at"`
}

// Runner executes backup runs. Construct with New.
type Runner struct {
	opts  Options
	clock clock.Clock
	log   *runlog.Logger
	cat   *catalog.Catalog
}

// New validates options and returns a Runner. The run log and catalog are
// optional (nil disables them); the CLI wires both, tests may wire neither.
func New(opts Options, c clock.Clock, log *runlog.Logger, cat *catalog.Catalog) (*Runner, error) {
	if opts.Database == "" {
		return nil, fmt.Errorf("database path not configured")
	}
	if opts.BackupDir == "" {
		return nil, fmt.Errorf("backup directory not configured")
	}
	if opts.Prefix == "" {
		opts.Prefix = "database"
	}
	if opts.CompressionLevel == 0 {
		opts.CompressionLevel = compress.DefaultLevel
	}
	if opts.Retention < 0 {
		return nil, fmt.Errorf("retention must be >= 0, got %s", opts.Retention)
	}
	if c == nil {
		c = clock.System()
	}
	return &Runner{opts: opts, clock: c, log: log, cat: cat}, nil
}

// Run executes one backup: lock, checkpoint, copy, compress, rotate.
// On error the Result still reports the phase reached and anything
// produced so far. The outcome is recorded in the catalog either way.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	res := Result{StartedAt: r.clock.Now().Unix()}

	r.log.Event("backup run started (database %s)", r.opts.Database)
	defer r.log.Separator()

	err := r.run(ctx, &res)

	res.EndedAt = r.clock.Now().Unix()
	r.record(ctx, res, err)

	if err != nil {
		r.log.Event("backup run failed in %s phase: %v", res.Phase, err)
		return res, err
	}
	r.log.Event("backup run completed: %s", filepath.Base(res.Artifact))
	return res, nil
}

func (r *Runner) run(ctx context.Context, res *Result) error {
	now := r.clock.Now()

	// Lock. The backup directory must exist before anything else can;
	// creating it here keeps first deployment to a single cron line.
	res.Phase = PhaseLock
	if err := os.MkdirAll(r.opts.BackupDir, 0755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	lease, err := lock.Acquire(filepath.Join(r.opts.BackupDir, LockFileName))
	if err != nil {
		return err
	}
	defer lease.Release()

	final, staging, seq, err := artifact.Plan(r.opts.BackupDir, r.opts.Prefix, now)
	if err != nil {
		return err
	}
	if seq > 0 {
		r.log.Event("artifact name collision, using sequence %02d", seq)
	}

	// Checkpoint. Must complete before the copy or the copy could miss
	// WAL content and be unrestorable on its own.
	res.Phase = PhaseCheckpoint
	r.log.Event("checkpoint: start")
	db, err := source.Open(r.opts.Database)
	if err != nil {
		return err
	}
	if err := db.Checkpoint(ctx); err != nil {
		db.Close()
		return err
	}
	r.log.Event("checkpoint: done")

	// Copy.
	res.Phase = PhaseCopy
	r.log.Event("copy: start (%s)", filepath.Base(staging))
	n, err := db.CopyTo(staging)
	db.Close()
	if err != nil {
		return err
	}
	r.log.Event("copy: done (%d bytes)", n)

	// Compress. On failure the staging copy stays behind on purpose: an
	// uncompressed snapshot beats no snapshot.
	res.Phase = PhaseCompress
	r.log.Event("compress: start (level %d)", r.opts.CompressionLevel)
	cres, err := compress.File(staging, final, r.opts.CompressionLevel)
	if err != nil {
		r.log.Event("compress: failed, keeping %s for recovery", filepath.Base(staging))
		return err
	}
	if err := os.Remove(staging); err != nil {
		// The artifact is already in place; a lingering staging copy is
		// wasted disk, not a failed backup.
		r.log.Event("compress: could not remove staging copy: %v", err)
	}
	res.Artifact = final
	res.Size = cres.Size
	res.Checksum = cres.Checksum
	r.log.Event("compress: done (%d bytes, blake2b %s)", cres.Size, shortSum(cres.Checksum))

	// Rotate. Non-fatal from here on: the artifact exists.
	res.Phase = PhaseRotate
	if r.opts.SkipRotate {
		r.log.Event("rotate: skipped")
		res.Phase = PhaseDone
		return nil
	}
	r.log.Event("rotate: start (retention %s)", r.opts.Retention)
	rres, err := rotate.Run(os.Stderr, r.opts.BackupDir, r.opts.Prefix, rotate.Options{
		Retention: r.opts.Retention,
		Now:       now,
		Exclude:   filepath.Base(final),
	})
	if err != nil {
		res.RotateErrs = append(res.RotateErrs, err.Error())
	}
	for _, e := range rres.Errs {
		res.RotateErrs = append(res.RotateErrs, e.Error())
	}
	res.Pruned = rres.Deleted
	for _, msg := range res.RotateErrs {
		r.log.Event("rotate: %s", msg)
	}
	r.log.Event("rotate: done (%d deleted)", rres.Deleted)

	res.Phase = PhaseDone
	return nil
}

// record writes the run outcome to the catalog, best-effort.
func (r *Runner) record(ctx context.Context, res Result, runErr error) {
	if r.cat == nil {
		return
	}
	run := catalog.Run{
		StartedAt: res.StartedAt,
		EndedAt:   res.EndedAt,
		Phase:     string(res.Phase),
		Size:      res.Size,
		Checksum:  res.Checksum,
		Pruned:    res.Pruned,
		Success:   runErr == nil,
	}
	if res.Artifact != "" {
		run.Artifact = filepath.Base(res.Artifact)
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := r.cat.Append(ctx, run); err != nil {
		fmt.Fprintf(os.Stderr, "walback: catalog write failed: %v\n", err)
	}
}

// shortSum abbreviates a checksum for log lines.
func shortSum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
