// history.go implements the "walback history" command, reading recent runs
// from the catalog. Failed runs show their phase and error so a broken cron
// job can be diagnosed without shelling into the backup directory.

package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dlarsson-se/walback/internal/catalog"
)

func newHistoryCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "history",
		Short: "Show recent backup runs from the catalog",
		Long: `Show recent runs recorded in the catalog, newest first.

Failed runs list the phase they stopped in and the error. The run log
(backup.log) carries the same information in chronological prose.`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}
	c.Flags().IntP("limit", "n", 10, "Number of runs to show")
	return c
}

func runHistory(c *cobra.Command, _ []string) error {
	cfg, err := Settings()
	if err != nil {
		return PrintJSONError(err)
	}
	if cfg.BackupDir == "" {
		return PrintJSONError(fmt.Errorf("backup directory not configured (set backup_dir or pass --backup-dir)"))
	}

	limit, _ := c.Flags().GetInt("limit")
	if limit < 1 {
		limit = 10
	}

	cat, err := catalog.Open(cfg.BackupDir)
	if err != nil {
		return PrintJSONError(fmt.Errorf("history: %w", err))
	}
	defer cat.Close()

	runs, err := cat.Recent(c.Context(), limit)
	if err != nil {
		return PrintJSONError(fmt.Errorf("history: %w", err))
	}

	if JSON() {
		return PrintJSON(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(Out(), "No runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(Out(), 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tRESULT\tARTIFACT\tSIZE\tPRUNED")
	for _, r := range runs {
		started := time.Unix(r.StartedAt, 0).Format("2006-01-02 15:04")
		result := "ok"
		if !r.Success {
			result = fmt.Sprintf("FAILED (%s)", r.Phase)
		}
		artifact := r.Artifact
		if artifact == "" {
			artifact = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", started, result, artifact, r.Size, r.Pruned)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, r := range runs {
		if !r.Success && r.Error != "" {
			fmt.Fprintf(Out(), "\n%s: %s\n",
				time.Unix(r.StartedAt, 0).Format("2006-01-02 15:04"), r.Error)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(newHistoryCmd())
}
