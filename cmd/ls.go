// ls.go implements the "walback ls" command, listing artifacts by scanning
// the backup directory through the artifact naming convention.

package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dlarsson-se/walback/internal/artifact"
)

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List backup artifacts",
		Long: `List artifacts in the backup directory, oldest first.

Ages derive from the timestamp in the artifact name, the same way
rotation ages them.`,
		Args: cobra.NoArgs,
		RunE: runLs,
	}
}

func runLs(_ *cobra.Command, _ []string) error {
	cfg, err := Settings()
	if err != nil {
		return PrintJSONError(err)
	}
	if cfg.BackupDir == "" {
		return PrintJSONError(fmt.Errorf("backup directory not configured (set backup_dir or pass --backup-dir)"))
	}

	infos, err := artifact.Scan(cfg.BackupDir, cfg.ArtifactPrefix())
	if err != nil {
		return PrintJSONError(fmt.Errorf("ls: %w", err))
	}

	if JSON() {
		return PrintJSON(infos)
	}

	if len(infos) == 0 {
		fmt.Fprintln(Out(), "No artifacts found")
		return nil
	}

	now := Clock().Now()
	tw := tabwriter.NewWriter(Out(), 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tAGE")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Name, info.Size, ageLabel(info.Age(now)))
	}
	return tw.Flush()
}

// ageLabel renders an age in the largest sensible unit.
func ageLabel(d time.Duration) string {
	switch {
	case d < 0:
		return "future"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func init() {
	rootCmd.AddCommand(newLsCmd())
}
