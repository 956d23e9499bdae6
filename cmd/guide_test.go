package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuide(t *testing.T) {
	env := newTestEnv(t)

	// Piped output gets raw markdown.
	out := env.run("guide")
	env.contains(out, "walback")
	env.contains(out, "checkpoint")
}

func TestGuide_UnknownPage(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.runErr("guide", "nonsense")
	require.Error(t, err)
	assert.Contains(t, out, "not found")
}
