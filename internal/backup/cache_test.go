package backup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/phrazzld/functest/internal/reference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDump(t *testing.T, cacheDir, name string, withRefs bool) string {
	t.Helper()
	dir := filepath.Join(cacheDir, DumpDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	file := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(file, []byte("dump"), 0o644))
	if withRefs {
		require.NoError(t, os.WriteFile(reference.PathFor(file), []byte("{}"), 0o644))
	}
	return file
}

func TestListDumps(t *testing.T) {
	cacheDir := t.TempDir()
	writeDump(t, cacheDir, "test_bbb.sql", false)
	writeDump(t, cacheDir, "test_aaa.pgdmp", true)
	writeDump(t, cacheDir, "notes.txt", false)
	writeDump(t, cacheDir, "other.pgdmp", false)

	dumps, err := ListDumps(cacheDir)
	require.NoError(t, err)
	require.Len(t, dumps, 2)

	assert.Equal(t, "aaa", dumps[0].Hash)
	assert.Equal(t, "pgsql", dumps[0].Engine)
	assert.EqualValues(t, 4, dumps[0].Size)
	assert.True(t, dumps[0].Usable())

	assert.Equal(t, "bbb", dumps[1].Hash)
	assert.Equal(t, "mysql", dumps[1].Engine)
	assert.False(t, dumps[1].Usable())
}

func TestListDumps_MissingDirectory(t *testing.T) {
	dumps, err := ListDumps(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, dumps)
}

func TestRemoveDumps(t *testing.T) {
	cacheDir := t.TempDir()
	keep := writeDump(t, cacheDir, "test_keep.pgdmp", true)
	drop := writeDump(t, cacheDir, "test_drop.pgdmp", true)

	removed, err := RemoveDumps(cacheDir, "drop")
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "drop", removed[0].Hash)
	assert.NoFileExists(t, drop)
	assert.NoFileExists(t, reference.PathFor(drop))
	assert.FileExists(t, keep)

	removed, err = RemoveDumps(cacheDir)
	require.NoError(t, err)
	assert.Len(t, removed, 1)
	assert.NoFileExists(t, keep)
}
