// flags.go defines global CLI flags and accessors for shared state.
//
// Separated from root.go to isolate flag definitions from command logic.
//
// Design: flags are package-level variables bound to the root command,
// with env-var fallbacks so a cron line can stay free of repeated flags.
// Settings() merges the config file with flag overrides into the values
// commands actually consume.

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dlarsson-se/walback/internal/clock"
	"github.com/dlarsson-se/walback/internal/config"
)

var validOutputFormats = []string{"json"}

var (
	output     string
	configPath string
	dbPath     string
	backupDir  string
	force      bool
)

// out is the output writer for commands. Defaults to os.Stdout.
// Tests can replace this to capture output.
var out io.Writer = os.Stdout

// Out returns the output writer.
func Out() io.Writer { return out }

// SetOut sets the output writer (for testing).
func SetOut(w io.Writer) { out = w }

// Force returns the force flag value.
func Force() bool { return force }

// JSON returns true if JSON output is requested.
func JSON() bool { return output == "json" }

// ConfigPath returns the explicit config file path.
// Priority: --config flag > WALBACK_CONFIG env var > empty (use discovery).
func ConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return os.Getenv("WALBACK_CONFIG")
}

// DB returns the database path override.
// Priority: --db flag > WALBACK_DB env var > empty (use config).
func DB() string {
	if dbPath != "" {
		return dbPath
	}
	return os.Getenv("WALBACK_DB")
}

// BackupDir returns the backup directory override.
// Priority: --backup-dir flag > WALBACK_BACKUP_DIR env var > empty (use config).
func BackupDir() string {
	if backupDir != "" {
		return backupDir
	}
	return os.Getenv("WALBACK_BACKUP_DIR")
}

// Clock returns the clock commands should use for naming and ageing
// artifacts. WALBACK_NOW (RFC3339) pins it - a test and debugging hook,
// not a user-facing feature.
func Clock() clock.Clock {
	if v := os.Getenv("WALBACK_NOW"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return clock.Fixed(t)
		}
		fmt.Fprintf(os.Stderr, "walback: ignoring malformed WALBACK_NOW %q\n", v)
	}
	return clock.System()
}

// Settings loads the configuration and applies flag/env overrides.
func Settings() (*config.Config, error) {
	cfg, err := config.Load(ConfigPath())
	if err != nil {
		return nil, err
	}
	if v := DB(); v != "" {
		cfg.Database = v
	}
	if v := BackupDir(); v != "" {
		cfg.BackupDir = v
	}
	return cfg, nil
}

// PrintJSON marshals v to JSON and writes it to the output writer.
// Returns nil if output format is not JSON.
func PrintJSON(v any) error {
	if output != "json" {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(out, string(b))
	return nil
}

// PrintJSONError prints an error in JSON format if output is JSON.
// Returns nil if error was printed (suppressing cobra's duplicate), or the
// original error if not.
func PrintJSONError(err error) error {
	if output != "json" || err == nil {
		return err
	}
	// If we cannot print the error, checking the print error is futile.
	_ = PrintJSON(map[string]string{"error": err.Error()})
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "Output format: json")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (skip discovery)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database file path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&backupDir, "backup-dir", "", "Backup directory (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&force, "force", false, "Skip confirmations and overwrite checks")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return validOutputFormats, cobra.ShellCompDirectiveNoFileComp
	})
}
