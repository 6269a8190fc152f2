package game

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPatches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patches.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
"1.20.4":
  entity_metadata:
    maxFieldId: 30
"1.21.0":
  login:
    compression: false
`), 0o644))

	patches, err := LoadPatches(path)
	require.NoError(t, err)
	require.Len(t, patches, 2)
	meta, ok := patches["1.20.4"]["entity_metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 30, meta["maxFieldId"])
}

func TestLoadPatchesMissingFile(t *testing.T) {
	patches, err := LoadPatches(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Nil(t, patches)

	patches, err = LoadPatches("")
	require.NoError(t, err)
	assert.Nil(t, patches)
}

func TestLoadPatchesMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patches.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0o644))
	_, err := LoadPatches(path)
	require.Error(t, err)
}
