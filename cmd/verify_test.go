package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	t.Run("intact artifact", func(t *testing.T) {
		env := newTestEnv(t)
		env.setNow(time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC))
		env.run("run")

		out := env.run("verify", "database_20260115_0300.db.gz")
		env.contains(out, "OK")
		env.contains(out, "verified")
	})

	t.Run("by path", func(t *testing.T) {
		env := newTestEnv(t)
		env.setNow(time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC))
		env.run("run")

		out := env.run("verify", filepath.Join(env.backup, "database_20260115_0300.db.gz"))
		env.contains(out, "OK")
	})

	t.Run("tampered artifact fails checksum", func(t *testing.T) {
		env := newTestEnv(t)
		env.setNow(time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC))
		env.run("run")

		path := filepath.Join(env.backup, "database_20260115_0300.db.gz")
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
		require.NoError(t, err)
		_, err = f.Write([]byte("garbage"))
		require.NoError(t, err)
		require.NoError(t, f.Close())

		out, err := env.runErr("verify", "database_20260115_0300.db.gz")
		require.Error(t, err)
		assert.Contains(t, out, "checksum mismatch")
	})

	t.Run("unrecorded artifact still integrity-checked", func(t *testing.T) {
		env := newTestEnv(t)
		env.setNow(time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC))
		env.run("run")

		// An artifact the catalog has never seen: same bytes, new name.
		src := filepath.Join(env.backup, "database_20260115_0300.db.gz")
		dst := filepath.Join(env.backup, "database_20260101_0300.db.gz")
		data, err := os.ReadFile(src)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(dst, data, 0644))

		out := env.run("verify", "database_20260101_0300.db.gz")
		env.contains(out, "OK")
		env.contains(out, "unrecorded")
	})

	t.Run("not gzip fails", func(t *testing.T) {
		env := newTestEnv(t)
		writeFakeArtifact(t, env, "database_20260101_0300.db.gz")

		out, err := env.runErr("verify", "database_20260101_0300.db.gz")
		require.Error(t, err)
		assert.Contains(t, out, "decompress")
	})

	t.Run("missing artifact", func(t *testing.T) {
		env := newTestEnv(t)

		out, err := env.runErr("verify", "database_20260101_0300.db.gz")
		require.Error(t, err)
		assert.Contains(t, out, "artifact not found")
	})
}

func TestVerify_LeavesArtifactUntouched(t *testing.T) {
	env := newTestEnv(t)
	env.setNow(time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC))
	env.run("run")

	path := filepath.Join(env.backup, "database_20260115_0300.db.gz")
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	env.run("verify", "database_20260115_0300.db.gz")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
