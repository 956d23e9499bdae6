// restore.go implements the "walback restore" command.
//
// Restore is deliberately dumb: decompress an artifact to a destination
// path. It never writes over the live database unless --force is given,
// and it never touches the backup directory's own files. Pointing the bot
// at the restored file is the operator's job.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dlarsson-se/walback/internal/compress"
	"github.com/dlarsson-se/walback/internal/progress"
	"github.com/dlarsson-se/walback/internal/source"
)

func newRestoreCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "restore <artifact> <destination>",
		Short: "Decompress an artifact to a destination path",
		Long: `Restore a backup artifact to a plain SQLite database file.

The artifact is given as a bare filename (looked up in the backup
directory) or as a path. An existing destination is refused unless
--force is given. Stop the process that owns the database before
restoring over its file.`,
		Args: cobra.ExactArgs(2),
		RunE: runRestore,
	}
	c.Flags().Bool("verify", false, "Run an integrity check on the restored file")
	return c
}

func runRestore(c *cobra.Command, args []string) error {
	path, name, err := resolveArtifact(args[0])
	if err != nil {
		return PrintJSONError(err)
	}
	dst := args[1]

	spin := progress.NewSpinner(fmt.Sprintf("Restoring %s", name))
	spin.Start()
	defer spin.Stop()

	if err := compress.Decompress(path, dst, Force()); err != nil {
		return PrintJSONError(fmt.Errorf("restore: %w", err))
	}

	if verify, _ := c.Flags().GetBool("verify"); verify {
		spin.Tick()
		db, err := source.Open(dst)
		if err != nil {
			return PrintJSONError(fmt.Errorf("restore: %w", err))
		}
		defer db.Close()
		if err := db.IntegrityCheck(c.Context()); err != nil {
			return PrintJSONError(fmt.Errorf("restored file failed verification: %w", err))
		}
	}
	spin.Stop()

	if JSON() {
		return PrintJSON(map[string]string{"artifact": name, "restored": dst})
	}
	fmt.Fprintf(Out(), "Restored %s to %s\n", name, dst)
	return nil
}

func init() {
	rootCmd.AddCommand(newRestoreCmd())
}
