package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const flowYAML = `
id: demo
version: 1.0.0
initialStep: name
steps:
  - id: name
    type: text
    question: Name?
    next: outcome:done
outcomes:
  outcome:done: { type: eligible }
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "quiz version ")
}

func TestValidateAndGraphCommands(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo.yaml"), []byte(flowYAML), 0o644))

	out, err := execute(t, "validate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "ok   demo@1.0.0")

	out, err = execute(t, "graph", "demo", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")

	broken := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(broken, "demo.yaml"), []byte("id: x\nversion: 1.0.0\nsteps: []\n"), 0o644))
	_, err = execute(t, "validate", "--dir", broken)
	assert.Error(t, err)
}

func TestSessionCommands(t *testing.T) {
	out, err := execute(t, "session", "ls", "--state-dir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found.")
}
