package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	t.Run("produces artifact", func(t *testing.T) {
		env := newTestEnv(t)
		env.setNow(time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC))

		out := env.run("run")
		env.contains(out, "Backup complete")

		names := env.artifacts()
		require.Len(t, names, 1)
		assert.Equal(t, "database_20260115_0300.db.gz", names[0])
	})

	t.Run("artifact matches database bytes", func(t *testing.T) {
		env := newTestEnv(t)
		env.setNow(time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC))
		env.run("run")

		names := env.artifacts()
		require.Len(t, names, 1)

		// The checkpoint ran before the copy, so the decompressed artifact
		// must be byte-identical to the database file as it stands now.
		want, err := os.ReadFile(env.db)
		require.NoError(t, err)
		assert.Equal(t, want, env.gunzip(names[0]))
	})

	t.Run("second run picks up new rows", func(t *testing.T) {
		env := newTestEnv(t)
		env.setNow(time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC))
		env.run("run")

		addRolls(t, env.db, 20)

		env.setNow(time.Date(2026, 1, 16, 3, 0, 0, 0, time.UTC))
		env.run("run")

		names := env.artifacts()
		require.Len(t, names, 2)
		first := env.gunzip("database_20260115_0300.db.gz")
		second := env.gunzip("database_20260116_0300.db.gz")
		assert.NotEqual(t, first, second)
		assert.Greater(t, len(second), 0)
	})

	t.Run("same-minute collision gets sequence suffix", func(t *testing.T) {
		env := newTestEnv(t)
		env.setNow(time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC))
		env.run("run")
		env.run("run")

		names := env.artifacts()
		require.Len(t, names, 2)
		assert.Contains(t, names, "database_20260115_0300.db.gz")
		assert.Contains(t, names, "database_20260115_0300_02.db.gz")
	})

	t.Run("no staging copy left behind", func(t *testing.T) {
		env := newTestEnv(t)
		env.run("run")

		matches, err := filepath.Glob(filepath.Join(env.backup, "*.db"))
		require.NoError(t, err)
		for _, m := range matches {
			assert.Equal(t, "catalog.db", filepath.Base(m))
		}
	})

	t.Run("missing database fails before artifact", func(t *testing.T) {
		env := newTestEnv(t)
		require.NoError(t, os.Remove(env.db))

		out, err := env.runErr("run")
		require.Error(t, err)
		assert.Contains(t, out, "checkpoint")
		assert.Empty(t, env.artifacts())
	})
}

func TestRun_Rotation(t *testing.T) {
	env := newTestEnv(t)

	env.setNow(time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC))
	env.run("run")

	// Two days later with a one-day retention: the first artifact ages out,
	// the fresh one survives.
	env.setNow(time.Date(2026, 1, 17, 3, 0, 0, 0, time.UTC))
	out := env.run("run", "--retention", "1d")
	env.contains(out, "1 rotated")

	names := env.artifacts()
	require.Len(t, names, 1)
	assert.Equal(t, "database_20260117_0300.db.gz", names[0])
}

func TestRun_RetentionBoundary(t *testing.T) {
	// An artifact exactly at the window edge is kept; deletion needs
	// strictly older.
	env := newTestEnv(t)

	env.setNow(time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC))
	env.run("run")

	env.setNow(time.Date(2026, 1, 16, 3, 0, 0, 0, time.UTC))
	env.run("run", "--retention", "1d")

	assert.Len(t, env.artifacts(), 2)
}

func TestRun_SkipRotate(t *testing.T) {
	env := newTestEnv(t)

	env.setNow(time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC))
	env.run("run")

	env.setNow(time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC))
	env.run("run", "--retention", "1d", "--skip-rotate")

	assert.Len(t, env.artifacts(), 2)
}

func TestRun_WritesRunLog(t *testing.T) {
	env := newTestEnv(t)
	env.run("run")

	data, err := os.ReadFile(filepath.Join(env.backup, "backup.log"))
	require.NoError(t, err)
	log := string(data)

	assert.Contains(t, log, "checkpoint: done")
	assert.Contains(t, log, "compress: done")
	assert.Contains(t, log, "backup run completed")
	assert.Contains(t, log, strings.Repeat("-", 40))
}

func TestRun_FailureLoggedAndRecorded(t *testing.T) {
	env := newTestEnv(t)
	env.run("run")
	require.NoError(t, os.Remove(env.db))

	_, err := env.runErr("run")
	require.Error(t, err)

	data, err := os.ReadFile(filepath.Join(env.backup, "backup.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "backup run failed in checkpoint phase")

	out := env.run("history")
	env.contains(out, "FAILED (checkpoint)")
}

func TestRun_JSONFailureExitsNonZero(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.Remove(env.db))

	// JSON mode reports the failure as JSON but still exits non-zero so
	// schedulers and monitors see it.
	out, err := env.runErr("run", "-o", "json")
	require.Error(t, err)
	assert.Contains(t, out, `"error"`)
	assert.Contains(t, out, "checkpoint")
	assert.Empty(t, env.artifacts())
}

func TestRun_JSON(t *testing.T) {
	env := newTestEnv(t)
	env.setNow(time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC))

	out := env.run("run", "-o", "json")
	env.contains(out, `"phase":"done"`)
	env.contains(out, "database_20260115_0300.db.gz")
	env.contains(out, `"checksum"`)
}
