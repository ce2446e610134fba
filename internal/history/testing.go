package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreTests runs the standard store test suite against any Store implementation.
// Use this to verify that a Store implementation correctly implements the interface.
func RunStoreTests(t *testing.T, newStore func() (Store, func())) {
	t.Run("Add", func(t *testing.T) {
		runAddTests(t, newStore)
	})
	t.Run("Get", func(t *testing.T) {
		runGetTests(t, newStore)
	})
	t.Run("List", func(t *testing.T) {
		runListTests(t, newStore)
	})
	t.Run("Delete", func(t *testing.T) {
		runDeleteTests(t, newStore)
	})
	t.Run("Prune", func(t *testing.T) {
		runPruneTests(t, newStore)
	})
	t.Run("Stats", func(t *testing.T) {
		runStatsTests(t, newStore)
	})
}

func applied(rows []int, before int, moved ...string) Entry {
	return Entry{
		Timestamp:    time.Now(),
		Rows:         rows,
		InsertBefore: before,
		Applied:      true,
		Moved:        moved,
	}
}

func rejected(reason string) Entry {
	return Entry{
		Timestamp:    time.Now(),
		Rows:         []int{0},
		InsertBefore: 0,
		Reason:       reason,
	}
}

func runAddTests(t *testing.T, newStore func() (Store, func())) {
	t.Run("adds entry and returns ID", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		id, err := store.Add(context.Background(), applied([]int{2}, 0, "l1"))

		require.NoError(t, err)
		assert.NotEmpty(t, id)
	})

	t.Run("round trips every field", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		entry := Entry{
			Timestamp:    time.Now(),
			Rows:         []int{1, 2},
			InsertBefore: 5,
			Applied:      false,
			Reason:       "conflict",
			Error:        "move would place a folder inside itself",
			Moved:        []string{"f1", "l2"},
			ZOrder:       []string{"l2", "l1"},
		}

		id, err := store.Add(context.Background(), entry)
		require.NoError(t, err)

		got, err := store.Get(context.Background(), id)
		require.NoError(t, err)

		assert.Equal(t, entry.Rows, got.Rows)
		assert.Equal(t, entry.InsertBefore, got.InsertBefore)
		assert.False(t, got.Applied)
		assert.Equal(t, entry.Reason, got.Reason)
		assert.Equal(t, entry.Error, got.Error)
		assert.Equal(t, entry.Moved, got.Moved)
		assert.Equal(t, entry.ZOrder, got.ZOrder)
		assert.WithinDuration(t, entry.Timestamp, got.Timestamp, time.Second)
	})

	t.Run("stamps entries without a timestamp", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		id, err := store.Add(context.Background(), Entry{Rows: []int{0}, InsertBefore: 2, Applied: true})
		require.NoError(t, err)

		got, err := store.Get(context.Background(), id)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now(), got.Timestamp, time.Minute)
	})

	t.Run("generates unique IDs", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		ids := make(map[string]bool)
		for i := 0; i < 10; i++ {
			id, err := store.Add(context.Background(), applied([]int{i}, 0))
			require.NoError(t, err)
			assert.False(t, ids[id], "Duplicate ID generated")
			ids[id] = true
		}
	})
}

func runGetTests(t *testing.T, newStore func() (Store, func())) {
	t.Run("returns error for non-existent entry", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		_, err := store.Get(context.Background(), "non-existent-id")

		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("returns error for empty ID", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		_, err := store.Get(context.Background(), "")

		assert.ErrorIs(t, err, ErrInvalidID)
	})
}

func runListTests(t *testing.T, newStore func() (Store, func())) {
	seed := func(t *testing.T, store Store) {
		entries := []Entry{
			applied([]int{2}, 0, "l1"),
			rejected("no-op move"),
			applied([]int{1, 2}, 4, "f1", "l2"),
			rejected("depth mismatch"),
			rejected("no-op move"),
		}
		for _, e := range entries {
			_, err := store.Add(context.Background(), e)
			require.NoError(t, err)
		}
	}

	t.Run("lists all entries newest first", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		now := time.Now()
		for i := 0; i < 3; i++ {
			e := applied([]int{i}, 0)
			e.Timestamp = now.Add(time.Duration(i) * time.Hour)
			_, err := store.Add(context.Background(), e)
			require.NoError(t, err)
		}

		entries, err := store.List(context.Background(), QueryOptions{})

		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, []int{2}, entries[0].Rows)
		assert.Equal(t, []int{0}, entries[2].Rows)
	})

	t.Run("filters by outcome", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		seed(t, store)

		ok, err := store.List(context.Background(), QueryOptions{AppliedOnly: true})
		require.NoError(t, err)
		assert.Len(t, ok, 2)

		refused, err := store.List(context.Background(), QueryOptions{RejectedOnly: true})
		require.NoError(t, err)
		assert.Len(t, refused, 3)
	})

	t.Run("filters by reason", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		seed(t, store)

		count, err := store.Count(context.Background(), QueryOptions{Reason: "no-op move"})

		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("filters by moved id", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		seed(t, store)

		entries, err := store.List(context.Background(), QueryOptions{Moved: "l2"})

		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, []string{"f1", "l2"}, entries[0].Moved)
	})

	t.Run("filters by time range", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		now := time.Now()
		for _, ts := range []time.Time{now.Add(-48 * time.Hour), now.Add(-time.Hour), now} {
			e := applied([]int{0}, 2)
			e.Timestamp = ts
			_, err := store.Add(context.Background(), e)
			require.NoError(t, err)
		}

		entries, err := store.List(context.Background(), QueryOptions{After: now.Add(-24 * time.Hour)})

		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("applies pagination", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		for i := 0; i < 10; i++ {
			e := applied([]int{i}, 0)
			e.Timestamp = time.Now().Add(time.Duration(i) * time.Second)
			_, err := store.Add(context.Background(), e)
			require.NoError(t, err)
		}

		page1, err := store.List(context.Background(), QueryOptions{Limit: 3})
		require.NoError(t, err)
		assert.Len(t, page1, 3)

		page2, err := store.List(context.Background(), QueryOptions{Limit: 3, Offset: 3})
		require.NoError(t, err)
		assert.Len(t, page2, 3)
		assert.NotEqual(t, page1[0].ID, page2[0].ID)

		rest, err := store.List(context.Background(), QueryOptions{Offset: 8})
		require.NoError(t, err)
		assert.Len(t, rest, 2)
	})
}

func runDeleteTests(t *testing.T, newStore func() (Store, func())) {
	t.Run("deletes existing entry", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		id, err := store.Add(context.Background(), applied([]int{1}, 0))
		require.NoError(t, err)

		require.NoError(t, store.Delete(context.Background(), id))

		_, err = store.Get(context.Background(), id)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("returns error for non-existent entry", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		err := store.Delete(context.Background(), "non-existent")

		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("clear removes all entries", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		for i := 0; i < 5; i++ {
			_, err := store.Add(context.Background(), applied([]int{i}, 0))
			require.NoError(t, err)
		}

		require.NoError(t, store.Clear(context.Background()))

		count, err := store.Count(context.Background(), QueryOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})
}

func runPruneTests(t *testing.T, newStore func() (Store, func())) {
	t.Run("prunes entries older than duration", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		now := time.Now()
		for _, ts := range []time.Time{now.Add(-48 * time.Hour), now.Add(-47 * time.Hour), now.Add(-12 * time.Hour), now} {
			e := applied([]int{0}, 2)
			e.Timestamp = ts
			_, err := store.Add(context.Background(), e)
			require.NoError(t, err)
		}

		result, err := store.Prune(context.Background(), PruneOptions{OlderThan: 24 * time.Hour})

		require.NoError(t, err)
		assert.Equal(t, int64(2), result.DeletedCount)

		count, err := store.Count(context.Background(), QueryOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("prunes keeping last N entries", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		for i := 0; i < 10; i++ {
			e := applied([]int{i}, 0)
			e.Timestamp = time.Now().Add(time.Duration(i) * time.Second)
			_, err := store.Add(context.Background(), e)
			require.NoError(t, err)
		}

		result, err := store.Prune(context.Background(), PruneOptions{KeepLast: 5})

		require.NoError(t, err)
		assert.Equal(t, int64(5), result.DeletedCount)

		remaining, err := store.List(context.Background(), QueryOptions{})
		require.NoError(t, err)
		require.Len(t, remaining, 5)
		assert.Equal(t, []int{9}, remaining[0].Rows)
	})

	t.Run("no options prunes nothing", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		_, err := store.Add(context.Background(), applied([]int{0}, 2))
		require.NoError(t, err)

		result, err := store.Prune(context.Background(), PruneOptions{})

		require.NoError(t, err)
		assert.Equal(t, int64(0), result.DeletedCount)
	})
}

func runStatsTests(t *testing.T, newStore func() (Store, func())) {
	t.Run("returns correct statistics", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		for _, e := range []Entry{
			applied([]int{2}, 0),
			applied([]int{3}, 1),
			rejected("no-op move"),
			rejected("no-op move"),
			rejected("z-type mismatch"),
		} {
			_, err := store.Add(context.Background(), e)
			require.NoError(t, err)
		}

		stats, err := store.Stats(context.Background())

		require.NoError(t, err)
		assert.Equal(t, int64(5), stats.TotalEntries)
		assert.Equal(t, int64(2), stats.Applied)
		assert.Equal(t, int64(3), stats.Rejected)
		assert.Equal(t, int64(2), stats.ReasonCounts["no-op move"])
		assert.Equal(t, int64(1), stats.ReasonCounts["z-type mismatch"])
		assert.InDelta(t, 0.4, stats.ApplyRate, 0.01)
	})

	t.Run("returns empty stats for empty store", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		stats, err := store.Stats(context.Background())

		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.TotalEntries)
		assert.Zero(t, stats.ApplyRate)
	})
}
