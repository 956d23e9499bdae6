// Testing Strategy Design Decision:
//
// The cmd/ package contains CLI integration tests that exercise the full stack:
// command parsing -> backup runner -> SQLite and the filesystem.
//
// Each test gets a fixture database resembling the one walback was built
// for: a dice-bot's WAL-mode SQLite file with a few tables and rows. Tests
// drive the built binary exactly the way cron would, pinning the clock
// through WALBACK_NOW where artifact names or ages matter.

package cmd

import (
	"compress/gzip"
	"database/sql"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

var (
	binaryPath string
	buildOnce  sync.Once
	buildErr   error
)

// buildBinary compiles the walback binary once for all tests.
func buildBinary(t *testing.T) string {
	t.Helper()

	buildOnce.Do(func() {
		tmpDir, err := os.MkdirTemp("", "walback-test-bin-*")
		if err != nil {
			buildErr = err
			return
		}

		binaryName := "walback"
		if os.PathSeparator == '\\' {
			binaryName = "walback.exe"
		}
		binaryPath = filepath.Join(tmpDir, binaryName)

		// Find project root (parent of cmd/)
		wd := mustGetwd()
		projectRoot := filepath.Dir(wd)

		cmd := exec.Command("go", "build", "-o", binaryPath, ".")
		cmd.Dir = projectRoot
		if out, err := cmd.CombinedOutput(); err != nil {
			buildErr = &buildError{err: err, output: string(out)}
			return
		}
	})

	if buildErr != nil {
		t.Fatalf("failed to build binary: %v", buildErr)
	}
	return binaryPath
}

type buildError struct {
	err    error
	output string
}

func (e *buildError) Error() string {
	return e.err.Error() + "\n" + e.output
}

func mustGetwd() string {
	dir, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	return dir
}

// testEnv holds test environment state: a working directory with a local
// config pointing at a fixture database and a backup directory.
type testEnv struct {
	t      *testing.T
	dir    string
	db     string
	backup string
	binary string
	env    []string
}

// newTestEnv creates a temporary deployment: fixture database, backup
// directory and a local .walback/config.yaml written by init.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	binary := buildBinary(t)
	dir := t.TempDir()

	env := &testEnv{
		t:      t,
		dir:    dir,
		db:     filepath.Join(dir, "bot.db"),
		backup: filepath.Join(dir, "backups"),
		binary: binary,
	}

	createFixtureDB(t, env.db)
	env.run("init", "--db", env.db, "--backup-dir", env.backup)

	return env
}

// setNow pins the tool's clock for subsequent invocations. TZ is pinned
// too so artifact names derived from the pinned instant are stable across
// host timezones.
func (e *testEnv) setNow(ts time.Time) {
	kept := e.env[:0]
	for _, v := range e.env {
		if !strings.HasPrefix(v, "WALBACK_NOW=") && !strings.HasPrefix(v, "TZ=") {
			kept = append(kept, v)
		}
	}
	e.env = append(kept, "WALBACK_NOW="+ts.Format(time.RFC3339), "TZ=UTC")
}

// run executes walback with the given args and returns combined output.
func (e *testEnv) run(args ...string) string {
	e.t.Helper()
	out, err := e.runErr(args...)
	if err != nil {
		e.t.Fatalf("walback %v failed: %v\noutput: %s", args, err, out)
	}
	return out
}

// runErr executes walback and returns combined output and any error.
func (e *testEnv) runErr(args ...string) (string, error) {
	e.t.Helper()

	cmd := exec.Command(e.binary, args...)
	cmd.Dir = e.dir
	cmd.Env = append(os.Environ(), e.env...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// runStdin executes walback with stdin input.
func (e *testEnv) runStdin(input string, args ...string) string {
	e.t.Helper()

	cmd := exec.Command(e.binary, args...)
	cmd.Dir = e.dir
	cmd.Env = append(os.Environ(), e.env...)
	cmd.Stdin = strings.NewReader(input)
	out, err := cmd.CombinedOutput()
	if err != nil {
		e.t.Fatalf("walback %v failed: %v\noutput: %s", args, err, out)
	}
	return string(out)
}

// contains checks if output contains expected string.
func (e *testEnv) contains(output, expected string) {
	e.t.Helper()
	assert.Contains(e.t, output, expected)
}

// artifacts returns the artifact filenames currently in the backup
// directory, sorted.
func (e *testEnv) artifacts() []string {
	e.t.Helper()
	matches, err := filepath.Glob(filepath.Join(e.backup, "*.db.gz"))
	require.NoError(e.t, err)
	var names []string
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	return names
}

// gunzip decompresses an artifact in the backup directory and returns its
// raw bytes.
func (e *testEnv) gunzip(name string) []byte {
	e.t.Helper()
	f, err := os.Open(filepath.Join(e.backup, name))
	require.NoError(e.t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(e.t, err)
	defer gz.Close()
	data, err := io.ReadAll(gz)
	require.NoError(e.t, err)
	return data
}

// createFixtureDB builds a WAL-mode SQLite database with the shape of the
// dice bot's: rolls, users and guild_channels, with a handful of rows.
func createFixtureDB(t *testing.T, path string) {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`PRAGMA journal_mode=WAL`)
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE users (
			user_id    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			first_seen INTEGER NOT NULL
		);
		CREATE TABLE guild_channels (
			guild_id   INTEGER NOT NULL,
			channel_id INTEGER NOT NULL,
			PRIMARY KEY (guild_id, channel_id)
		);
		CREATE TABLE rolls (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id   INTEGER NOT NULL,
			channel_id INTEGER NOT NULL,
			user_id    INTEGER NOT NULL REFERENCES users(user_id),
			expr       TEXT NOT NULL,
			result     INTEGER NOT NULL,
			rolled_at  INTEGER NOT NULL
		);
	`)
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO users (user_id, name, first_seen) VALUES
			(1001, 'alva', 1700000000),
			(1002, 'bjorn', 1700000100);
		INSERT INTO guild_channels (guild_id, channel_id) VALUES
			(42, 4200), (42, 4201);
		INSERT INTO rolls (guild_id, channel_id, user_id, expr, result, rolled_at) VALUES
			(42, 4200, 1001, '2d6+3', 11, 1700000200),
			(42, 4200, 1002, '1d20', 17, 1700000300),
			(42, 4201, 1001, '4d8', 19, 1700000400);
	`)
	require.NoError(t, err)
}

// addRolls appends rows so the WAL has fresh content between runs.
func addRolls(t *testing.T, path string, n int) {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	for i := 0; i < n; i++ {
		_, err = db.Exec(`
			INSERT INTO rolls (guild_id, channel_id, user_id, expr, result, rolled_at)
			VALUES (42, 4200, 1001, '1d6', ?, ?)`,
			1+i%6, 1700001000+i)
		require.NoError(t, err)
	}
}
