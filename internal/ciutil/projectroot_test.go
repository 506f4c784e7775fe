package ciutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindProjectRoot_EnvOverride(t *testing.T) {
	clearEnv(t, EnvGitHubActions, EnvGitLabCI)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, GoModFile), []byte("module example.com/x\n"), 0o644))
	t.Setenv(EnvProjectRoot, root)

	got, err := FindProjectRoot(nil)
	require.NoError(t, err)
	assert.Equal(t, root, got)
}

func TestFindProjectRoot_InvalidOverride(t *testing.T) {
	t.Setenv(EnvProjectRoot, t.TempDir())

	_, err := FindProjectRoot(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidProjectRoot)
}

func TestFindProjectRootByTraversal(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, GoModFile), []byte("module example.com/x\n"), 0o644))
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	got, err := findProjectRootByTraversal(nested, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, root, got)
}

func TestDefaultCacheDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, GoModFile), []byte("module example.com/x\n"), 0o644))
	t.Setenv(EnvProjectRoot, root)

	dir, err := DefaultCacheDir(nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "var", "cache", "test"), dir)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
