package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/artpar/layertree/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSQLiteStore runs the standard store test suite against SQLite.
func TestSQLiteStore(t *testing.T) {
	history.RunStoreTests(t, func() (history.Store, func()) {
		store, err := NewInMemory()
		require.NoError(t, err)
		return store, func() {
			store.Close()
		}
	})
}

func TestSQLiteStore_Persistence(t *testing.T) {
	t.Run("data persists to disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "history.db")

		store, err := New(path)
		require.NoError(t, err)

		id, err := store.Add(context.Background(), history.Entry{
			Rows:         []int{3},
			InsertBefore: 0,
			Applied:      true,
			Moved:        []string{"roads"},
		})
		require.NoError(t, err)
		require.NoError(t, store.Close())

		reopened, err := New(path)
		require.NoError(t, err)
		defer reopened.Close()

		got, err := reopened.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, []string{"roads"}, got.Moved)
		assert.True(t, got.Applied)
	})
}

func TestSQLiteStore_Concurrent(t *testing.T) {
	t.Run("handles concurrent writes", func(t *testing.T) {
		store, err := NewInMemory()
		require.NoError(t, err)
		defer store.Close()

		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					_, err := store.Add(ctx, history.Entry{Rows: []int{i, j}, Applied: true})
					assert.NoError(t, err)
				}
			}(i)
		}
		wg.Wait()

		count, err := store.Count(ctx, history.QueryOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(100), count)
	})
}

func TestSQLiteStore_Closed(t *testing.T) {
	store, err := NewInMemory()
	require.NoError(t, err)
	require.NoError(t, store.Close())
	assert.NoError(t, store.Close())

	ctx := context.Background()
	_, err = store.Add(ctx, history.Entry{})
	assert.ErrorIs(t, err, history.ErrStoreClosed)
	_, err = store.Get(ctx, "x")
	assert.ErrorIs(t, err, history.ErrStoreClosed)
	_, err = store.List(ctx, history.QueryOptions{})
	assert.ErrorIs(t, err, history.ErrStoreClosed)
	_, err = store.Stats(ctx)
	assert.ErrorIs(t, err, history.ErrStoreClosed)
	assert.ErrorIs(t, store.Clear(ctx), history.ErrStoreClosed)
}
