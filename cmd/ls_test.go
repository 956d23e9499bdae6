package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLs(t *testing.T) {
	t.Run("empty directory", func(t *testing.T) {
		env := newTestEnv(t)
		out := env.run("ls")
		env.contains(out, "No artifacts found")
	})

	t.Run("lists oldest first", func(t *testing.T) {
		env := newTestEnv(t)
		env.setNow(time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC))
		env.run("run")
		env.setNow(time.Date(2026, 1, 16, 3, 0, 0, 0, time.UTC))
		env.run("run")

		out := env.run("ls")
		env.contains(out, "NAME")
		env.contains(out, "AGE")

		first := strings.Index(out, "database_20260115_0300.db.gz")
		second := strings.Index(out, "database_20260116_0300.db.gz")
		require.GreaterOrEqual(t, first, 0)
		require.GreaterOrEqual(t, second, 0)
		assert.Less(t, first, second)
	})

	t.Run("ignores non-matching files", func(t *testing.T) {
		env := newTestEnv(t)
		env.run("run")

		out := env.run("ls")
		assert.NotContains(t, out, "catalog.db")
		assert.NotContains(t, out, "backup.log")
	})

	t.Run("name-derived ages", func(t *testing.T) {
		env := newTestEnv(t)
		writeFakeArtifact(t, env, "database_20260113_0300.db.gz")
		env.setNow(time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC))

		out := env.run("ls")
		env.contains(out, "2d")
	})

	t.Run("json", func(t *testing.T) {
		env := newTestEnv(t)
		env.setNow(time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC))
		env.run("run")

		out := env.run("ls", "-o", "json")
		env.contains(out, `"name":"database_20260115_0300.db.gz"`)
		env.contains(out, `"timestamp"`)
	})
}
