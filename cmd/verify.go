// verify.go implements the "walback verify" command.
//
// Verification answers the question a backup tool must be able to answer
// before anyone needs a restore: is this artifact actually usable? It
// checks three things in order - the compressed bytes against the catalog
// checksum (when one was recorded), that the artifact decompresses, and
// that SQLite's own integrity check passes on the result.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dlarsson-se/walback/internal/catalog"
	"github.com/dlarsson-se/walback/internal/compress"
	"github.com/dlarsson-se/walback/internal/progress"
	"github.com/dlarsson-se/walback/internal/source"
)

// ErrChecksumMismatch means the artifact bytes no longer match the checksum
// recorded when it was produced.
var ErrChecksumMismatch = errors.New("checksum mismatch")

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <artifact>",
		Short: "Check an artifact's checksum and database integrity",
		Long: `Verify a backup artifact.

The artifact is given as a bare filename (looked up in the backup
directory) or as a path. Verification recomputes the artifact checksum
and compares it against the catalog, then decompresses to a temporary
file and runs SQLite's integrity check on it. The artifact itself is
never modified.

Artifacts recorded before the catalog existed have no stored checksum;
those skip the comparison and still get the integrity check.`,
		Args: cobra.ExactArgs(1),
		RunE: runVerify,
	}
}

func runVerify(c *cobra.Command, args []string) error {
	path, name, err := resolveArtifact(args[0])
	if err != nil {
		return PrintJSONError(err)
	}

	spin := progress.NewSpinner(fmt.Sprintf("Verifying %s", name))
	spin.Start()
	defer spin.Stop()

	sum, err := compress.Checksum(path)
	if err != nil {
		return PrintJSONError(fmt.Errorf("verify: %w", err))
	}
	spin.Tick()

	checksumState, err := compareCatalog(c.Context(), name, sum)
	if err != nil {
		return PrintJSONError(err)
	}
	spin.Tick()

	// Decompress into a scratch dir; the integrity check needs a real file.
	tmp, err := os.MkdirTemp("", "walback-verify-")
	if err != nil {
		return PrintJSONError(fmt.Errorf("verify: %w", err))
	}
	defer os.RemoveAll(tmp)

	dbPath := filepath.Join(tmp, "verify.db")
	if err := compress.Decompress(path, dbPath, false); err != nil {
		return PrintJSONError(fmt.Errorf("verify: artifact does not decompress: %w", err))
	}
	spin.Tick()

	db, err := source.Open(dbPath)
	if err != nil {
		return PrintJSONError(fmt.Errorf("verify: %w", err))
	}
	defer db.Close()

	if err := db.IntegrityCheck(c.Context()); err != nil {
		return PrintJSONError(fmt.Errorf("verify %s: %w", name, err))
	}
	spin.Stop()

	if JSON() {
		return PrintJSON(map[string]string{
			"artifact":  name,
			"checksum":  sum,
			"catalog":   checksumState,
			"integrity": "ok",
		})
	}
	fmt.Fprintf(Out(), "%s: OK (checksum %s, integrity ok)\n", name, checksumState)
	return nil
}

// compareCatalog checks sum against the recorded checksum for name.
// Returns a short label for reporting: "verified" when it matched,
// "unrecorded" when the catalog has nothing for this artifact.
func compareCatalog(ctx context.Context, name, sum string) (string, error) {
	cfg, err := Settings()
	if err != nil {
		return "", err
	}
	if cfg.BackupDir == "" {
		return "unrecorded", nil
	}

	cat, err := catalog.Open(cfg.BackupDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: catalog unavailable: %v\n", err)
		return "unrecorded", nil
	}
	defer cat.Close()

	recorded, err := cat.Checksum(ctx, name)
	if errors.Is(err, catalog.ErrNoChecksum) {
		return "unrecorded", nil
	}
	if err != nil {
		return "", fmt.Errorf("verify: %w", err)
	}
	if recorded != sum {
		return "", fmt.Errorf("verify %s: %w: recorded %s, got %s",
			name, ErrChecksumMismatch, shortHex(recorded), shortHex(sum))
	}
	return "verified", nil
}

// resolveArtifact turns the user's argument into an absolute-ish path and
// the bare artifact name the catalog is keyed by. A bare name resolves
// inside the configured backup directory; anything with a separator is a
// path.
func resolveArtifact(arg string) (path, name string, err error) {
	if strings.ContainsRune(arg, os.PathSeparator) || strings.ContainsRune(arg, '/') {
		if _, err := os.Stat(arg); err != nil {
			return "", "", fmt.Errorf("artifact not found: %s", arg)
		}
		return arg, filepath.Base(arg), nil
	}

	cfg, err := Settings()
	if err != nil {
		return "", "", err
	}
	if cfg.BackupDir == "" {
		return "", "", fmt.Errorf("backup directory not configured (set backup_dir or pass --backup-dir)")
	}
	path = filepath.Join(cfg.BackupDir, arg)
	if _, err := os.Stat(path); err != nil {
		return "", "", fmt.Errorf("artifact not found: %s", path)
	}
	return path, arg, nil
}

func shortHex(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}

func init() {
	rootCmd.AddCommand(newVerifyCmd())
}
