// prune.go implements the "walback prune" command - rotation standalone.
//
// Separated from run.go because prune is destructive on its own and needs
// confirmation prompts and dry-run support, mirroring the run command's
// rotate phase without producing an artifact first.

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dlarsson-se/walback/internal/backup"
	"github.com/dlarsson-se/walback/internal/duration"
	"github.com/dlarsson-se/walback/internal/lock"
	"github.com/dlarsson-se/walback/internal/rotate"
	"github.com/dlarsson-se/walback/internal/runlog"
)

func newPruneCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "prune",
		Short: "Delete artifacts older than the retention window",
		Long: `Delete backup artifacts older than the retention window.

This is irreversible. Use --force to skip confirmation.
Only files matching the artifact naming convention are ever considered;
the run log, the catalog and anything else in the backup directory are
never touched.

Duration formats: 90d (days), 12w (weeks), 3m (months)`,
		Args: cobra.NoArgs,
		RunE: runPrune,
	}
	c.Flags().String("older-than", "", "Retention override (e.g., 30d); defaults to configured retention")
	c.Flags().BoolP("dry-run", "n", false, "Show what would be deleted")
	return c
}

func runPrune(c *cobra.Command, _ []string) error {
	cfg, err := Settings()
	if err != nil {
		return PrintJSONError(err)
	}
	if cfg.BackupDir == "" {
		return PrintJSONError(fmt.Errorf("backup directory not configured (set backup_dir or pass --backup-dir)"))
	}

	retention := cfg.RetentionWindow()
	if v, _ := c.Flags().GetString("older-than"); v != "" {
		d, err := duration.Parse(v)
		if err != nil {
			return PrintJSONError(fmt.Errorf("parse duration %q: %w", v, err))
		}
		retention = d
	}
	dryRun, _ := c.Flags().GetBool("dry-run")

	clk := Clock()
	opts := rotate.Options{
		Retention: retention,
		Now:       clk.Now(),
		DryRun:    dryRun,
	}

	if dryRun {
		// JSON mode gets the structured result instead of the per-file
		// "Would delete" lines.
		w := io.Writer(Out())
		if JSON() {
			w = io.Discard
		}
		res, err := rotate.Run(w, cfg.BackupDir, cfg.ArtifactPrefix(), opts)
		if err != nil {
			return PrintJSONError(fmt.Errorf("prune dry run: %w", err))
		}
		if JSON() {
			return PrintJSON(res)
		}
		if res.Deleted == 0 {
			fmt.Fprintln(Out(), "No artifacts to prune")
		} else {
			fmt.Fprintf(Out(), "\nWould delete %d artifact(s)\n", res.Deleted)
		}
		return nil
	}

	if !Force() {
		fmt.Fprintf(Out(), "Permanently delete artifacts older than %s? This cannot be undone. [y/N] ", retention)
		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return PrintJSONError(fmt.Errorf("reading confirmation: %w", err))
		}
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Fprintln(Out(), "Cancelled")
			return nil
		}
	}

	// Same lease as run: prune and a concurrent run's rotate phase must
	// not race over the same files.
	lease, err := lock.Acquire(filepath.Join(cfg.BackupDir, backup.LockFileName))
	if err != nil {
		return PrintJSONError(err)
	}
	defer lease.Release()

	log, err := runlog.Open(cfg.BackupDir, clk)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: run log unavailable: %v\n", err)
	}
	defer log.Close()

	res, err := rotate.Run(Out(), cfg.BackupDir, cfg.ArtifactPrefix(), opts)
	if err != nil {
		log.Event("prune: failed: %v", err)
		log.Separator()
		return PrintJSONError(fmt.Errorf("prune: %w", err))
	}

	for _, e := range res.Errs {
		fmt.Fprintf(os.Stderr, "warning: %v\n", e)
		log.Event("prune: %v", e)
	}
	log.Event("prune: %d deleted (retention %s)", res.Deleted, retention)
	log.Separator()

	if JSON() {
		return PrintJSON(res)
	}
	if res.Deleted == 0 {
		fmt.Fprintln(Out(), "No artifacts to prune")
	} else {
		fmt.Fprintf(Out(), "Pruned %d artifact(s)\n", res.Deleted)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(newPruneCmd())
}
