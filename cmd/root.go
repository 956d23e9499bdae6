// root.go defines the root command and CLI execution entry point.
//
// Separated from flags.go to isolate cobra setup from flag state.
//
// Design: commands register themselves with the root command from their
// files' init() functions, so adding a command never touches this file.
// There is no persistent setup beyond flag validation - every command
// resolves its own configuration, because a backup tool must work from a
// bare cron line with nothing but flags.

package cmd

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/dlarsson-se/walback/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "walback",
	Version: version.Short(),
	Short:   "Point-in-time backups for a live SQLite database",
	Long: `walback produces compressed, timestamped snapshots of a live WAL-mode
SQLite database and enforces a retention policy over them.

A run is checkpoint, copy, compress, rotate - strictly in that order.
Invoke it from cron or a systemd timer; walback does not schedule itself.`,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if output != "" && !slices.Contains(validOutputFormats, output) {
			return fmt.Errorf("invalid output format: %s (valid: %v)", output, validOutputFormats)
		}
		return nil
	},
}

// Execute runs the root command. Exit code 1 signals failure to the
// invoking scheduler; that exit code, not the run log, is the failure
// channel.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// RootCmd returns the root command for testing.
func RootCmd() *cobra.Command {
	return rootCmd
}
