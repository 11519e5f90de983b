package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dylan-euc/client-side-quiz/pkg/adapters/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlFlow = `id: skin
version: 1.0.0
initialStep: q
steps:
  - id: q
    type: text
    next: ""
`

const jsonFlow = `{"id": "hair", "version": "2.0.0", "initialStep": "q", "steps": [{"id": "q", "type": "text", "next": ""}]}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoader_LoadFlows(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "skin.yaml"), yamlFlow)
	writeFile(t, filepath.Join(dir, "nested", "hair.json"), jsonFlow)
	writeFile(t, filepath.Join(dir, "README.md"), "# not a flow")

	loader := file.NewLoader(dir)
	flows, err := loader.LoadFlows(context.Background())
	require.NoError(t, err)
	require.Len(t, flows, 2)
	assert.Equal(t, "hair", flows[0].ID)
	assert.Equal(t, "skin", flows[1].ID)

	sum, ok := loader.Checksum("skin", "1.0.0")
	require.True(t, ok)
	assert.Len(t, sum, 64)
	_, ok = loader.Checksum("skin", "9.9.9")
	assert.False(t, ok)
}

func TestLoader_ParseErrorNamesFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.yaml"), "id: [")

	_, err := file.NewLoader(dir).LoadFlows(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
}

func TestLoader_Watch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "skin.yaml"), yamlFlow)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := file.NewLoader(dir).Watch(ctx)
	require.NoError(t, err)

	writeFile(t, filepath.Join(dir, "skin.yaml"), yamlFlow+"name: Skin\n")

	select {
	case _, ok := <-ch:
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload signal")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}
