package reference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct{ id string }

func (u user) ReferenceType() string { return "app.User" }
func (u user) ReferenceID() string   { return u.id }

func TestRepository_SetGet(t *testing.T) {
	repo := NewRepository()
	repo.Set("user-admin", Of(user{id: "42"}))

	ref, err := repo.Get("user-admin")
	require.NoError(t, err)
	assert.Equal(t, Reference{Type: "app.User", ID: "42"}, ref)
	assert.True(t, repo.Has("user-admin"))

	_, err = repo.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_AddRejectsDuplicates(t *testing.T) {
	repo := NewRepository()
	require.NoError(t, repo.Add("a", Reference{Type: "t", ID: "1"}))

	err := repo.Add("a", Reference{Type: "t", ID: "2"})

	assert.ErrorIs(t, err, ErrDuplicate)
	ref, _ := repo.Get("a")
	assert.Equal(t, "1", ref.ID)
}

func TestRepository_SaveLoad(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "db_dump", "test_abc.pgdmp")

	repo := NewRepository()
	repo.Set("user-admin", Reference{Type: "app.User", ID: "1"})
	repo.Set("org-main", Reference{Type: "app.Organization", ID: "7"})
	require.NoError(t, repo.Save(dump))

	_, err := os.Stat(dump + ".ser")
	require.NoError(t, err, "reference file lives next to the dump")

	loaded := NewRepository()
	loaded.Set("stale", Reference{Type: "x", ID: "y"})
	require.NoError(t, loaded.Load(dump))

	assert.Equal(t, []string{"org-main", "user-admin"}, loaded.Names())
	assert.Equal(t, 2, loaded.Len())
	assert.False(t, loaded.Has("stale"))
}

func TestRepository_LoadMissingFile(t *testing.T) {
	err := NewRepository().Load(filepath.Join(t.TempDir(), "nope.sql"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
