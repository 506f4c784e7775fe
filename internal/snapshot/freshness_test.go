package snapshot_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phrazzld/functest/internal/fixture"
	"github.com/phrazzld/functest/internal/objectmanager"
	"github.com/phrazzld/functest/internal/platform/logger"
	"github.com/phrazzld/functest/internal/reference"
	"github.com/phrazzld/functest/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sourceFixture reports an explicit source file.
type sourceFixture struct {
	name   string
	source string
	deps   []fixture.Fixture
}

func (f *sourceFixture) FixtureName() string { return f.name }
func (f *sourceFixture) SourceFile() string  { return f.source }
func (f *sourceFixture) Dependencies() []fixture.Fixture {
	return f.deps
}
func (f *sourceFixture) Load(context.Context, objectmanager.Manager, *reference.Repository) error {
	return nil
}

func touch(t *testing.T, path string, mtime time.Time) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestFreshnessChecker_IsUpToDate(t *testing.T) {
	dir := t.TempDir()
	backupTime := time.Now().Add(-time.Hour).Truncate(time.Second)
	backupFile := touch(t, filepath.Join(dir, "test_abc.pgdmp"), backupTime)

	older := touch(t, filepath.Join(dir, "older.go"), backupTime.Add(-time.Minute))
	equal := touch(t, filepath.Join(dir, "equal.go"), backupTime)
	newer := touch(t, filepath.Join(dir, "newer.go"), backupTime.Add(time.Minute))

	tests := []struct {
		name     string
		fixtures []fixture.Fixture
		expected bool
	}{
		{
			name:     "no fixtures",
			expected: true,
		},
		{
			name:     "older source",
			fixtures: []fixture.Fixture{&sourceFixture{name: "a", source: older}},
			expected: true,
		},
		{
			name:     "equal modification time is fresh",
			fixtures: []fixture.Fixture{&sourceFixture{name: "a", source: equal}},
			expected: true,
		},
		{
			name:     "newer source",
			fixtures: []fixture.Fixture{&sourceFixture{name: "a", source: newer}},
			expected: false,
		},
		{
			name: "newer dependency",
			fixtures: []fixture.Fixture{&sourceFixture{
				name:   "a",
				source: older,
				deps:   []fixture.Fixture{&sourceFixture{name: "b", source: newer}},
			}},
			expected: false,
		},
		{
			name: "unknown sources are skipped",
			fixtures: []fixture.Fixture{
				&sourceFixture{name: "a", source: ""},
				&sourceFixture{name: "b", source: filepath.Join(dir, "missing.go")},
				&sourceFixture{name: "c", source: older},
			},
			expected: true,
		},
	}

	checker := &snapshot.FreshnessChecker{Logger: logger.Discard()}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fresh, err := checker.IsUpToDate(tt.fixtures, backupFile)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, fresh)
		})
	}
}

func TestFreshnessChecker_MissingBackup(t *testing.T) {
	checker := &snapshot.FreshnessChecker{Logger: logger.Discard()}

	_, err := checker.IsUpToDate(nil, filepath.Join(t.TempDir(), "missing.pgdmp"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFreshnessChecker_SubSecondResolution(t *testing.T) {
	dir := t.TempDir()
	backupTime := time.Now().Add(-time.Hour).Truncate(time.Second)
	backupFile := touch(t, filepath.Join(dir, "test_abc.pgdmp"), backupTime)
	source := touch(t, filepath.Join(dir, "fixture.go"), backupTime.Add(500*time.Millisecond))

	st, err := os.Stat(source)
	require.NoError(t, err)
	if !st.ModTime().After(backupTime) {
		t.Skip("filesystem does not keep sub-second modification times")
	}

	checker := &snapshot.FreshnessChecker{Logger: logger.Discard()}
	fresh, err := checker.IsUpToDate([]fixture.Fixture{&sourceFixture{name: "a", source: source}}, backupFile)
	require.NoError(t, err)
	assert.False(t, fresh)
}
