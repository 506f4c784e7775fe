package docstore

import (
	"context"
	"testing"

	"github.com/phrazzld/functest/internal/objectmanager"
	"github.com/phrazzld/functest/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type account struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_PutFlushGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Put("accounts", "1", account{Name: "Ada", Email: "ada@example.com"}))
	n, err := s.Count(ctx, "accounts")
	require.NoError(t, err)
	assert.Equal(t, 0, n, "nothing is written before flush")

	require.NoError(t, s.Flush(ctx))

	var got account
	require.NoError(t, s.Get(ctx, "accounts", "1", &got))
	assert.Equal(t, "Ada", got.Name)

	require.NoError(t, s.Put("accounts", "1", account{Name: "Ada L."}))
	require.NoError(t, s.Flush(ctx))
	require.NoError(t, s.Get(ctx, "accounts", "1", &got))
	assert.Equal(t, "Ada L.", got.Name, "put replaces an existing document")

	n, err = s.Count(ctx, "accounts")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_GetMissing(t *testing.T) {
	var got account
	err := openTestStore(t).Get(context.Background(), "accounts", "missing", &got)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Put("accounts", "1", account{Name: "Ada"}))
	s.Clear()
	require.NoError(t, s.Flush(ctx))

	n, err := s.Count(ctx, "accounts")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStore_Purge(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	assert.Equal(t, objectmanager.KindDocumentStore, s.Kind())

	require.NoError(t, s.Put("accounts", "1", account{Name: "Ada"}))
	require.NoError(t, s.Put("orders", "1", map[string]int{"total": 3}))
	require.NoError(t, s.Flush(ctx))

	collections, err := s.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"accounts", "orders"}, collections)

	purger, err := objectmanager.NewPurger(s, objectmanager.PurgeModeDelete)
	require.NoError(t, err)
	require.NoError(t, purger.Purge(ctx))

	collections, err = s.Collections(ctx)
	require.NoError(t, err)
	assert.Empty(t, collections)
}

func TestStore_PutRejectsUnencodable(t *testing.T) {
	err := openTestStore(t).Put("accounts", "1", make(chan int))
	assert.Error(t, err)
}
