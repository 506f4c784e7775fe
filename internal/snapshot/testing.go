package snapshot

import (
	"testing"

	"github.com/phrazzld/functest/internal/fixture"
	"github.com/phrazzld/functest/internal/objectmanager"
	"github.com/stretchr/testify/require"
)

// MustLoadFixtures loads fixtures and fails the test on any error.
func MustLoadFixtures(t testing.TB, o *Orchestrator, session *Session, m objectmanager.Manager, fixtures ...fixture.Fixture) *fixture.Executor {
	t.Helper()
	executor, err := o.LoadFixtures(t.Context(), session, m, fixtures...)
	require.NoError(t, err, "failed to load fixtures")
	return executor
}
