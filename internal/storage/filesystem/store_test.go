package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/artpar/layertree/internal/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	t.Run("creates directory if not exists", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "data")

		store, err := NewStore(dir)
		require.NoError(t, err)
		assert.Equal(t, dir, store.BasePath())

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("round trips a document", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		require.NoError(t, store.Save(ctx, interfaces.KeyZOrder, []byte("entries: []\n")))

		got, err := store.Load(ctx, interfaces.KeyZOrder)
		require.NoError(t, err)
		assert.Equal(t, "entries: []\n", string(got))

		_, err = os.Stat(filepath.Join(store.BasePath(), "zorder.yaml"))
		assert.NoError(t, err)
	})

	t.Run("overwrites previous value", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		require.NoError(t, store.Save(ctx, "folders", []byte("v1")))
		require.NoError(t, store.Save(ctx, "folders", []byte("v2")))

		got, err := store.Load(ctx, "folders")
		require.NoError(t, err)
		assert.Equal(t, "v2", string(got))
	})

	t.Run("missing key", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		_, err = store.Load(ctx, "missing")
		assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
	})

	t.Run("rejects path-like keys", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		assert.Error(t, store.Save(ctx, "../escape", []byte("x")))
		assert.Error(t, store.Save(ctx, "", []byte("x")))
	})
}

func TestStore_KeysAndDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, "zorder", []byte("a")))
	require.NoError(t, store.Save(ctx, "layers", []byte("b")))
	require.NoError(t, os.WriteFile(filepath.Join(store.BasePath(), "notes.txt"), []byte("x"), 0644))

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"zorder", "layers"}, keys)

	require.NoError(t, store.Delete(ctx, "zorder"))
	assert.ErrorIs(t, store.Delete(ctx, "zorder"), interfaces.ErrKeyNotFound)

	keys, err = store.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"layers"}, keys)
}
