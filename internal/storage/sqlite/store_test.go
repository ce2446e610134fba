package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/artpar/layertree/internal/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestStore_SaveLoad(t *testing.T) {
	store, err := NewInMemory()
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	// Initially missing
	_, err = store.Load(ctx, interfaces.KeyFolders)
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	require.NoError(t, store.Save(ctx, interfaces.KeyFolders, []byte("root: []\n")))

	got, err := store.Load(ctx, interfaces.KeyFolders)
	require.NoError(t, err)
	assert.Equal(t, "root: []\n", string(got))

	// Replace
	require.NoError(t, store.Save(ctx, interfaces.KeyFolders, []byte("root: [a]\n")))
	got, err = store.Load(ctx, interfaces.KeyFolders)
	require.NoError(t, err)
	assert.Equal(t, "root: [a]\n", string(got))

	ts, err := store.UpdatedAt(ctx, interfaces.KeyFolders)
	require.NoError(t, err)
	assert.False(t, ts.IsZero())
}

func TestStore_Closed(t *testing.T) {
	store, err := NewInMemory()
	require.NoError(t, err)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	ctx := context.Background()
	assert.ErrorIs(t, store.Save(ctx, "k", []byte("v")), ErrStoreClosed)
	_, err = store.Load(ctx, "k")
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layers.db")
	ctx := context.Background()

	store, err := New(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, interfaces.KeyZOrder, []byte("entries: []\n")))
	require.NoError(t, store.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx, interfaces.KeyZOrder)
	require.NoError(t, err)
	assert.Equal(t, "entries: []\n", string(got))
}

func TestNewWithDB(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	store, err := NewWithDB(db)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "layers", []byte("x")))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM layer_state").Scan(&count))
	assert.Equal(t, 1, count)
}
