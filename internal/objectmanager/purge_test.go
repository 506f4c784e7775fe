package objectmanager_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/phrazzld/functest/internal/dbconn"
	"github.com/phrazzld/functest/internal/objectmanager"
	"github.com/phrazzld/functest/internal/objectmanager/orm"
	"github.com/phrazzld/functest/internal/platform/logger"
	"github.com/phrazzld/functest/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	usersMeta = schema.Metadata{
		Name:       "app.User",
		Table:      "users",
		Definition: `CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, email TEXT NOT NULL)`,
	}
	postsMeta = schema.Metadata{
		Name:       "app.Post",
		Table:      "posts",
		Definition: `CREATE TABLE posts (id INTEGER PRIMARY KEY AUTOINCREMENT, user_id INTEGER NOT NULL REFERENCES users(id))`,
	}
)

func newORM(t *testing.T) *orm.Manager {
	t.Helper()
	ctx := context.Background()

	conn, err := dbconn.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "purge.db")+"?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	tool := schema.NewSQLTool(conn.DB, conn.Engine(), usersMeta, postsMeta)
	require.NoError(t, tool.Create(ctx))

	m := orm.New(conn, tool, logger.Discard())
	m.Persist("INSERT INTO users (email) VALUES ('a@example.com')")
	m.Persist("INSERT INTO posts (user_id) VALUES (1)")
	require.NoError(t, m.Flush(ctx))
	return m
}

func count(t *testing.T, m *orm.Manager, table string) int {
	t.Helper()
	var n int
	require.NoError(t, m.QueryRowContext(context.Background(), "SELECT count(*) FROM "+table).Scan(&n))
	return n
}

func TestKind(t *testing.T) {
	tests := []struct {
		kind      objectmanager.Kind
		name      string
		snapshots bool
	}{
		{objectmanager.KindORM, "orm", true},
		{objectmanager.KindDocumentStore, "document_store", false},
		{objectmanager.KindContentRepository, "content_repository", false},
		{objectmanager.Kind(42), "kind(42)", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.kind.String())
			assert.Equal(t, tt.snapshots, tt.kind.SupportsSnapshots())
		})
	}
}

func TestSQLPurger(t *testing.T) {
	for _, mode := range []objectmanager.PurgeMode{objectmanager.PurgeModeDelete, objectmanager.PurgeModeTruncate} {
		t.Run(mode.String(), func(t *testing.T) {
			ctx := context.Background()
			m := newORM(t)

			purger, err := objectmanager.NewPurger(m, mode)
			require.NoError(t, err)
			require.NoError(t, purger.Purge(ctx), "referencing tables are purged first")

			assert.Equal(t, 0, count(t, m, "users"))
			assert.Equal(t, 0, count(t, m, "posts"))

			m.Persist("INSERT INTO users (email) VALUES ('b@example.com')")
			require.NoError(t, m.Flush(ctx))

			var id int
			require.NoError(t, m.QueryRowContext(ctx, "SELECT id FROM users").Scan(&id))
			if mode == objectmanager.PurgeModeTruncate {
				assert.Equal(t, 1, id, "truncate restarts identities")
			} else {
				assert.Equal(t, 2, id, "delete keeps identities")
			}
		})
	}
}

type bareManager struct{ kind objectmanager.Kind }

func (b bareManager) Kind() objectmanager.Kind  { return b.kind }
func (bareManager) Flush(context.Context) error { return nil }
func (bareManager) Clear()                      {}

func TestNewPurger_Unsupported(t *testing.T) {
	for _, kind := range []objectmanager.Kind{
		objectmanager.KindORM,
		objectmanager.KindDocumentStore,
		objectmanager.KindContentRepository,
		objectmanager.Kind(0),
	} {
		t.Run(kind.String(), func(t *testing.T) {
			_, err := objectmanager.NewPurger(bareManager{kind: kind}, objectmanager.PurgeModeDelete)
			assert.ErrorIs(t, err, objectmanager.ErrUnsupportedManager)
		})
	}
}
