// init.go implements the "walback init" command for deployment setup.
//
// Design: init writes a local .walback/config.yaml next to wherever the
// scheduler will invoke walback from, creates the backup directory and
// opens the catalog once so the first cron run starts with everything in
// place. It refuses to clobber an existing local config unless --force.

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dlarsson-se/walback/internal/catalog"
	"github.com/dlarsson-se/walback/internal/config"
	"github.com/dlarsson-se/walback/internal/source"
)

func newInitCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "init",
		Short: "Set up a local walback deployment",
		Long: `Creates .walback/config.yaml in the current directory, pointing at the
database and backup directory given by --db and --backup-dir. The backup
directory is created and its catalog initialised.

  walback init --db /srv/bot/bot.db --backup-dir /srv/backups

The database file must already exist; init will not create one.
Use "walback config" to adjust retention, prefix or compression later.`,
		Args: cobra.NoArgs,
		RunE: runInit,
	}
	return c
}

func runInit(_ *cobra.Command, _ []string) error {
	dbPath, dir := DB(), BackupDir()
	if dbPath == "" || dir == "" {
		return PrintJSONError(fmt.Errorf("init requires --db and --backup-dir"))
	}

	// Fail early on a typo'd database path rather than on the first run.
	db, err := source.Open(dbPath)
	if err != nil {
		return PrintJSONError(fmt.Errorf("init: %w", err))
	}
	db.Close()

	if !Force() {
		if _, err := os.Stat(config.LocalPath()); err == nil {
			return PrintJSONError(fmt.Errorf("%s already exists (use --force to overwrite)", config.LocalPath()))
		}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return PrintJSONError(fmt.Errorf("create backup dir: %w", err))
	}

	cat, err := catalog.Open(dir)
	if err != nil {
		return PrintJSONError(fmt.Errorf("init catalog: %w", err))
	}
	cat.Close()

	cfg := &config.Config{
		Database:  dbPath,
		BackupDir: dir,
	}
	if err := cfg.SaveScope(config.ScopeLocal); err != nil {
		return PrintJSONError(fmt.Errorf("write config: %w", err))
	}

	if JSON() {
		return PrintJSON(map[string]string{
			"config":     config.LocalPath(),
			"database":   dbPath,
			"backup_dir": dir,
		})
	}
	fmt.Fprintf(Out(), "Initialised walback deployment in %s\n", config.LocalPath())
	return nil
}

func init() {
	rootCmd.AddCommand(newInitCmd())
}
