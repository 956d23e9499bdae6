// run.go implements the "walback run" command - the backup runner itself.
//
// Design: run opens the run log and catalog before constructing the
// runner, so even a run that fails in its first phase leaves a trace in
// both. The catalog is best-effort (a broken catalog must not stop
// backups); the run log likewise. Only the backup itself decides the exit
// code.

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dlarsson-se/walback/internal/backup"
	"github.com/dlarsson-se/walback/internal/catalog"
	"github.com/dlarsson-se/walback/internal/duration"
	"github.com/dlarsson-se/walback/internal/runlog"
)

func newRunCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "run",
		Short: "Take a backup: checkpoint, copy, compress, rotate",
		Long: `Takes one point-in-time backup of the configured database.

Phases run strictly in order: checkpoint, copy, compress, rotate. A
failure before the artifact exists aborts with a non-zero exit code.
Rotation failures are reported but do not fail the run - by then the
backup has already been produced.`,
		Args: cobra.NoArgs,
		RunE: runRun,
	}
	c.Flags().String("retention", "", "Retention window override (e.g., 90d, 12w)")
	c.Flags().Int("level", 0, "Gzip compression level 1-9 (overrides config)")
	c.Flags().Bool("skip-rotate", false, "Produce the artifact but leave old ones")
	return c
}

func runRun(c *cobra.Command, _ []string) error {
	cfg, err := Settings()
	if err != nil {
		return PrintJSONError(err)
	}

	opts := backup.Options{
		Database:         cfg.Database,
		BackupDir:        cfg.BackupDir,
		Prefix:           cfg.ArtifactPrefix(),
		Retention:        cfg.RetentionWindow(),
		CompressionLevel: cfg.CompressionLevel(),
	}

	if v, _ := c.Flags().GetString("retention"); v != "" {
		d, err := duration.Parse(v)
		if err != nil {
			return PrintJSONError(fmt.Errorf("parse retention %q: %w", v, err))
		}
		opts.Retention = d
	}
	if v, _ := c.Flags().GetInt("level"); v != 0 {
		opts.CompressionLevel = v
	}
	opts.SkipRotate, _ = c.Flags().GetBool("skip-rotate")

	if opts.BackupDir == "" {
		return PrintJSONError(fmt.Errorf("backup directory not configured (set backup_dir or pass --backup-dir)"))
	}
	if err := os.MkdirAll(opts.BackupDir, 0755); err != nil {
		return PrintJSONError(fmt.Errorf("create backup dir: %w", err))
	}

	clk := Clock()

	// Run log and catalog are best-effort: warn and carry on without them.
	log, err := runlog.Open(opts.BackupDir, clk)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: run log unavailable: %v\n", err)
	}
	defer log.Close()

	cat, err := catalog.Open(opts.BackupDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: catalog unavailable: %v\n", err)
		cat = nil
	}
	if cat != nil {
		defer cat.Close()
	}

	runner, err := backup.New(opts, clk, log, cat)
	if err != nil {
		return PrintJSONError(err)
	}

	res, err := runner.Run(c.Context())
	if err != nil {
		// A failed backup must exit non-zero even in JSON mode - the exit
		// code, not the output, is the scheduler's failure channel. Print
		// the JSON error here and silence cobra's duplicate.
		ferr := fmt.Errorf("backup failed in %s phase: %w", res.Phase, err)
		if JSON() {
			_ = PrintJSON(map[string]string{"error": ferr.Error()})
			c.SilenceErrors = true
			c.SilenceUsage = true
		}
		return ferr
	}

	for _, msg := range res.RotateErrs {
		fmt.Fprintf(os.Stderr, "warning: rotate: %s\n", msg)
	}

	if JSON() {
		return PrintJSON(res)
	}
	fmt.Fprintf(Out(), "Backup complete: %s (%d bytes", filepath.Base(res.Artifact), res.Size)
	if res.Pruned > 0 {
		fmt.Fprintf(Out(), ", %d rotated", res.Pruned)
	}
	fmt.Fprintln(Out(), ")")
	return nil
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}
