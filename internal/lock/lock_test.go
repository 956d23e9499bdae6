package lock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walback.lock")

	l, err := Acquire(path)
	require.NoError(t, err)
	assert.Equal(t, path, l.Path())
	assert.FileExists(t, path)

	require.NoError(t, l.Release())
}

func TestAcquire_Held(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walback.lock")

	l, err := Acquire(path)
	require.NoError(t, err)
	defer l.Release()

	_, err = Acquire(path)
	assert.ErrorIs(t, err, ErrLocked)
}

func TestAcquire_AfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walback.lock")

	l, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, l.Release())

	// A released lease leaves nothing stale behind.
	l2, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, l2.Release())
}

func TestRelease_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walback.lock")

	l, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, l.Release())
	assert.NoError(t, l.Release())
}

func TestAcquire_UnwritableDir(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0555))
	defer os.Chmod(dir, 0755)

	_, err := Acquire(filepath.Join(dir, "walback.lock"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrLocked)
}
