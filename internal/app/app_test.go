package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/artpar/layertree/internal/drag"
	"github.com/artpar/layertree/internal/folder"
	"github.com/artpar/layertree/internal/history"
	historysqlite "github.com/artpar/layertree/internal/history/sqlite"
	"github.com/artpar/layertree/internal/interfaces"
	"github.com/artpar/layertree/internal/layers"
	"github.com/artpar/layertree/internal/storage/memory"
	"github.com/artpar/layertree/internal/zorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, opts ...Option) (*App, *memory.Store) {
	t.Helper()
	store := memory.New()
	app, err := New(append([]Option{WithGateway(store)}, opts...)...)
	require.NoError(t, err)
	return app, store
}

func rowIDs(app *App) []string {
	var out []string
	for _, n := range app.View().Rows() {
		out = append(out, n.ID())
	}
	return out
}

func addLayers(t *testing.T, app *App, ids ...string) {
	t.Helper()
	ctx := context.Background()
	for i := len(ids) - 1; i >= 0; i-- {
		require.NoError(t, app.AddLayer(ctx, layers.Descriptor{ID: ids[i], ZType: "feature"}, ""))
	}
}

func TestNewApp(t *testing.T) {
	t.Run("creates app with defaults", func(t *testing.T) {
		app, _ := newTestApp(t)
		assert.NotNil(t, app)
		assert.Equal(t, DefaultConfig(), app.Config())
		assert.Equal(t, 0, app.View().Len())
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Store = "nfs"
		_, err := New(WithConfig(cfg), WithGateway(memory.New()))
		assert.Error(t, err)

		cfg = DefaultConfig()
		cfg.CrossZType = "sometimes"
		_, err = New(WithConfig(cfg), WithGateway(memory.New()))
		assert.Error(t, err)
	})

	t.Run("opens a memory store", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Store = StoreMemory
		app, err := New(WithConfig(cfg))
		require.NoError(t, err)
		assert.NotNil(t, app.History())
		assert.NoError(t, app.Close())
	})

	t.Run("history can be turned off", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Store = StoreMemory
		cfg.History = false
		app, err := New(WithConfig(cfg))
		require.NoError(t, err)
		defer app.Close()
		assert.Nil(t, app.History())
	})

	t.Run("given store has no journal", func(t *testing.T) {
		app, _ := newTestApp(t)
		assert.Nil(t, app.History())
	})

	t.Run("opens a file store", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DataDir = filepath.Join(t.TempDir(), "data")
		cfg.Store = StoreFile

		app, err := New(WithConfig(cfg))
		require.NoError(t, err)
		defer app.Close()

		require.NoError(t, app.AddLayer(context.Background(), layers.Descriptor{ID: "roads"}, ""))
		for _, key := range []string{interfaces.KeyLayers, interfaces.KeyZOrder, interfaces.KeyFolders} {
			_, err := os.Stat(filepath.Join(cfg.DataDir, key+".yaml"))
			assert.NoError(t, err, key)
		}
	})

	t.Run("sqlite store survives a reopen", func(t *testing.T) {
		ctx := context.Background()
		cfg := DefaultConfig()
		cfg.DataDir = t.TempDir()
		cfg.Store = StoreSQLite

		app, err := New(WithConfig(cfg))
		require.NoError(t, err)
		addLayers(t, app, "a", "b")
		require.NoError(t, app.Close())

		reopened, err := New(WithConfig(cfg))
		require.NoError(t, err)
		defer reopened.Close()
		require.NoError(t, reopened.Load(ctx))

		assert.Equal(t, []string{"a", "b"}, reopened.ZOrder().IDs())
		assert.Equal(t, []string{"a", "b"}, rowIDs(reopened))
	})
}

func TestApp_AddLayer(t *testing.T) {
	ctx := context.Background()

	t.Run("joins every structure", func(t *testing.T) {
		app, store := newTestApp(t)
		require.NoError(t, app.AddLayer(ctx, layers.Descriptor{ID: "base", ZType: "tile"}, ""))
		require.NoError(t, app.AddLayer(ctx, layers.Descriptor{ID: "roads", ZType: "feature"}, ""))

		assert.Equal(t, []string{"roads", "base"}, app.ZOrder().IDs(), "feature sorts above tile")
		assert.Equal(t, []string{"roads", "base"}, app.Folders().RootIDs())
		assert.Equal(t, []string{"roads", "base"}, rowIDs(app))
		assert.Equal(t, 2, app.Layers().Len())
		assert.Positive(t, store.Saves())
	})

	t.Run("group members enter the z-order in order", func(t *testing.T) {
		app, _ := newTestApp(t)
		require.NoError(t, app.AddLayer(ctx, layers.Descriptor{ID: "g", ZType: "feature", Members: []string{"m1", "m2"}}, ""))

		assert.Equal(t, []string{"m1", "m2"}, app.ZOrder().IDs())
		assert.Equal(t, []string{"g"}, rowIDs(app))
	})

	t.Run("rolls back on a member clash", func(t *testing.T) {
		app, _ := newTestApp(t)
		require.NoError(t, app.AddLayer(ctx, layers.Descriptor{ID: "g1", Members: []string{"m1"}}, ""))

		err := app.AddLayer(ctx, layers.Descriptor{ID: "g2", Members: []string{"m1", "m2"}}, "")
		assert.ErrorIs(t, err, zorder.ErrDuplicate)

		_, ok := app.Layers().Get("g2")
		assert.False(t, ok)
		assert.Equal(t, []string{"m1"}, app.ZOrder().IDs())
		assert.False(t, app.Folders().Contains("g2"))
	})

	t.Run("rolls back on an unknown parent", func(t *testing.T) {
		app, _ := newTestApp(t)
		err := app.AddLayer(ctx, layers.Descriptor{ID: "roads"}, "nowhere")
		assert.ErrorIs(t, err, folder.ErrNotFound)
		assert.Equal(t, 0, app.Layers().Len())
		assert.Equal(t, 0, app.ZOrder().Len())
	})

	t.Run("duplicate id", func(t *testing.T) {
		app, _ := newTestApp(t)
		addLayers(t, app, "roads")
		assert.ErrorIs(t, app.AddLayer(ctx, layers.Descriptor{ID: "roads"}, ""), layers.ErrDuplicate)
	})
}

func TestApp_RemoveLayer(t *testing.T) {
	ctx := context.Background()
	app, _ := newTestApp(t)
	require.NoError(t, app.AddLayer(ctx, layers.Descriptor{ID: "g", Members: []string{"m1", "m2"}}, ""))
	addLayers(t, app, "roads")

	require.NoError(t, app.RemoveLayer(ctx, "g"))

	assert.Equal(t, []string{"roads"}, app.ZOrder().IDs())
	assert.Equal(t, []string{"roads"}, rowIDs(app))
	assert.ErrorIs(t, app.RemoveLayer(ctx, "g"), layers.ErrNotFound)
}

func TestApp_Folders(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) *App {
		app, _ := newTestApp(t)
		addLayers(t, app, "a", "b", "c")
		return app
	}

	t.Run("create folder from rows", func(t *testing.T) {
		app := setup(t)
		id, err := app.CreateFolder(ctx, "", []int{2, 1})
		require.NoError(t, err)

		item, ok := app.Folders().Get(id)
		require.True(t, ok)
		assert.Equal(t, DefaultFolderName, item.Name)
		assert.Equal(t, []string{"b", "c"}, item.Children)
		assert.Equal(t, []string{"a", id, "b", "c"}, rowIDs(app))
	})

	t.Run("nested folder keeps the parent", func(t *testing.T) {
		app := setup(t)
		outer, err := app.CreateFolder(ctx, "outer", []int{0, 1})
		require.NoError(t, err)
		// rows: outer, a, b, c
		inner, err := app.CreateFolder(ctx, "inner", []int{2})
		require.NoError(t, err)

		parent, _ := app.Folders().ParentOf(inner)
		assert.Equal(t, outer, parent)
		assert.Equal(t, []string{"a", inner}, app.Folders().Children(outer))
	})

	t.Run("only layers can be foldered", func(t *testing.T) {
		app := setup(t)
		_, err := app.CreateFolder(ctx, "x", []int{0, 1})
		require.NoError(t, err)

		_, err = app.CreateFolder(ctx, "y", []int{0})
		assert.ErrorIs(t, err, ErrNotLayers)
		_, err = app.CreateFolder(ctx, "y", nil)
		assert.ErrorIs(t, err, ErrNotLayers)
	})

	t.Run("edit folder", func(t *testing.T) {
		app := setup(t)
		id, err := app.CreateOrEditFolder(ctx, folder.Spec{ID: "f", Name: "F", Children: []string{"a", "b"}})
		require.NoError(t, err)
		assert.Equal(t, "f", id)

		_, err = app.CreateOrEditFolder(ctx, folder.Spec{ID: "f", Name: "F", Collapsed: true, Children: []string{"a", "b"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"f", "c"}, rowIDs(app))
	})

	t.Run("unfolder promotes children", func(t *testing.T) {
		app := setup(t)
		_, err := app.CreateOrEditFolder(ctx, folder.Spec{ID: "f", Children: []string{"b", "c"}})
		require.NoError(t, err)

		require.NoError(t, app.Unfolder(ctx, "f"))
		assert.Equal(t, []string{"a", "b", "c"}, rowIDs(app))
		assert.False(t, app.Folders().Contains("f"))
		assert.Equal(t, 3, app.Layers().Len())
	})

	t.Run("remove folder tree drops its layers", func(t *testing.T) {
		app := setup(t)
		_, err := app.CreateOrEditFolder(ctx, folder.Spec{ID: "f", Children: []string{"b", "c"}})
		require.NoError(t, err)

		removed, err := app.RemoveFolderTree(ctx, "f")
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, removed)
		assert.Equal(t, []string{"a"}, rowIDs(app))
		assert.Equal(t, []string{"a"}, app.ZOrder().IDs())
		assert.Equal(t, 1, app.Layers().Len())
	})

	t.Run("folder hook fires", func(t *testing.T) {
		app := setup(t)
		var events []folder.Event
		app.RegisterHook(interfaces.HookFolderChanged, func(ctx context.Context, data any) (any, error) {
			events = append(events, data.(folder.Event))
			return data, nil
		})

		_, err := app.CreateOrEditFolder(ctx, folder.Spec{ID: "f", Children: []string{"a"}})
		require.NoError(t, err)
		require.NoError(t, app.Unfolder(ctx, "f"))

		require.Len(t, events, 2)
		assert.Equal(t, folder.EventCreated, events[0].Type)
		assert.Equal(t, folder.EventRemoved, events[1].Type)
	})
}

func TestApp_Move(t *testing.T) {
	ctx := context.Background()

	t.Run("applies a valid move", func(t *testing.T) {
		app, _ := newTestApp(t)
		addLayers(t, app, "L1", "L2", "L3")
		_, err := app.CreateOrEditFolder(ctx, folder.Spec{ID: "F", Children: []string{"L1", "L2"}})
		require.NoError(t, err)
		require.Equal(t, []string{"F", "L1", "L2", "L3"}, rowIDs(app))

		var moved []interfaces.MoveRequest
		app.RegisterHook(interfaces.HookMoveApplied, func(ctx context.Context, data any) (any, error) {
			moved = append(moved, data.(interfaces.MoveRequest))
			return data, nil
		})

		out, err := app.Move(ctx, []int{3}, 1)
		require.NoError(t, err)
		assert.True(t, out.Applied)
		assert.Equal(t, []string{"F", "L3", "L1", "L2"}, rowIDs(app))
		assert.Equal(t, []string{"L3", "L1", "L2"}, app.ZOrder().IDs())
		require.Len(t, moved, 1)
		assert.Equal(t, 1, moved[0].InsertBefore)
	})

	t.Run("refuses a no-op", func(t *testing.T) {
		app, store := newTestApp(t)
		addLayers(t, app, "L1", "L2")
		saves := store.Saves()

		assert.Equal(t, drag.NoOp, app.CheckMove([]int{0}, 1))
		out, err := app.Move(ctx, []int{0}, 1)
		require.NoError(t, err)
		assert.False(t, out.Applied)
		assert.Equal(t, drag.NoOp, out.Reason)
		assert.Equal(t, saves, store.Saves())
	})

	t.Run("refuses mixed depths", func(t *testing.T) {
		app, _ := newTestApp(t)
		addLayers(t, app, "L1", "L2", "L3")
		_, err := app.CreateOrEditFolder(ctx, folder.Spec{ID: "F", Children: []string{"L1"}})
		require.NoError(t, err)

		assert.Equal(t, drag.DepthMismatch, app.CheckMove([]int{1, 2}, 4))
	})

	t.Run("reject policy blocks cross z-type drops", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.CrossZType = "reject"
		app, _ := newTestApp(t, WithConfig(cfg))
		require.NoError(t, app.AddLayer(ctx, layers.Descriptor{ID: "base", ZType: "tile"}, ""))
		require.NoError(t, app.AddLayer(ctx, layers.Descriptor{ID: "roads", ZType: "feature"}, ""))
		require.NoError(t, app.AddLayer(ctx, layers.Descriptor{ID: "rivers", ZType: "feature"}, ""))
		require.Equal(t, []string{"rivers", "roads", "base"}, rowIDs(app))

		assert.Equal(t, drag.ZTypeMismatch, app.CheckMove([]int{0}, 2))
		assert.Equal(t, drag.ReasonNone, app.CheckMove([]int{1}, 0))
	})
}

func TestApp_History(t *testing.T) {
	ctx := context.Background()

	newJournaled := func(t *testing.T) (*App, history.Store) {
		journal, err := historysqlite.NewInMemory()
		require.NoError(t, err)
		t.Cleanup(func() { journal.Close() })

		app, _ := newTestApp(t, WithHistory(journal))
		addLayers(t, app, "L1", "L2", "L3")
		return app, journal
	}

	t.Run("records applied moves", func(t *testing.T) {
		app, journal := newJournaled(t)

		out, err := app.Move(ctx, []int{2}, 0)
		require.NoError(t, err)
		require.True(t, out.Applied)

		entries, err := journal.List(ctx, history.QueryOptions{})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, entries[0].Applied)
		assert.Equal(t, []int{2}, entries[0].Rows)
		assert.Equal(t, 0, entries[0].InsertBefore)
		assert.Equal(t, []string{"L3"}, entries[0].Moved)
		assert.Equal(t, []string{"L3", "L1", "L2"}, entries[0].ZOrder)
	})

	t.Run("records refusals with the reason", func(t *testing.T) {
		app, journal := newJournaled(t)

		out, err := app.Move(ctx, []int{0}, 1)
		require.NoError(t, err)
		require.False(t, out.Applied)

		entries, err := journal.List(ctx, history.QueryOptions{RejectedOnly: true})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, drag.NoOp.String(), entries[0].Reason)
		assert.Equal(t, []string{"L1"}, entries[0].Moved)
	})

	t.Run("journal failure does not fail the move", func(t *testing.T) {
		app, journal := newJournaled(t)
		require.NoError(t, journal.Close())

		out, err := app.Move(ctx, []int{2}, 0)
		require.NoError(t, err)
		assert.True(t, out.Applied)
	})
}

func TestApp_Load(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	app, err := New(WithGateway(store))
	require.NoError(t, err)
	addLayers(t, app, "a", "b")

	t.Run("restores the saved tree", func(t *testing.T) {
		loaded, err := New(WithGateway(store))
		require.NoError(t, err)
		require.NoError(t, loaded.Load(ctx))
		assert.Equal(t, []string{"a", "b"}, rowIDs(loaded))
		assert.Equal(t, []string{"a", "b"}, loaded.ZOrder().IDs())
	})

	t.Run("repairs layers missing from the orderings", func(t *testing.T) {
		require.NoError(t, app.Layers().Add(layers.Descriptor{ID: "c", ZType: "feature"}))
		require.NoError(t, app.Layers().Save(ctx))

		loaded, err := New(WithGateway(store))
		require.NoError(t, err)
		require.NoError(t, loaded.Load(ctx))
		assert.Contains(t, rowIDs(loaded), "c")
		assert.GreaterOrEqual(t, loaded.ZOrder().Position("c"), 0)
	})
}

func TestApp_RegisterHook(t *testing.T) {
	t.Run("refresh has a built-in handler", func(t *testing.T) {
		app, _ := newTestApp(t)
		assert.Len(t, app.GetHooks(interfaces.HookRefresh), 1)
	})

	t.Run("registers multiple hooks for same event", func(t *testing.T) {
		app, _ := newTestApp(t)

		app.RegisterHook(interfaces.HookLayerAdded, func(ctx context.Context, data any) (any, error) {
			return data, nil
		})
		app.RegisterHook(interfaces.HookLayerAdded, func(ctx context.Context, data any) (any, error) {
			return data, nil
		})

		hooks := app.GetHooks(interfaces.HookLayerAdded)
		assert.Len(t, hooks, 2)
	})
}

func TestApp_ExecuteHooks(t *testing.T) {
	t.Run("executes hooks in order", func(t *testing.T) {
		var order []int
		app, _ := newTestApp(t)

		app.RegisterHook(interfaces.HookLayerAdded, func(ctx context.Context, data any) (any, error) {
			order = append(order, 1)
			return data, nil
		})
		app.RegisterHook(interfaces.HookLayerAdded, func(ctx context.Context, data any) (any, error) {
			order = append(order, 2)
			return data, nil
		})

		ctx := context.Background()
		_, err := app.ExecuteHooks(ctx, interfaces.HookLayerAdded, nil)

		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, order)
	})

	t.Run("passes data through hook chain", func(t *testing.T) {
		app, _ := newTestApp(t)

		app.RegisterHook(interfaces.HookLayerAdded, func(ctx context.Context, data any) (any, error) {
			n := data.(int)
			return n + 1, nil
		})
		app.RegisterHook(interfaces.HookLayerAdded, func(ctx context.Context, data any) (any, error) {
			n := data.(int)
			return n * 2, nil
		})

		ctx := context.Background()
		result, err := app.ExecuteHooks(ctx, interfaces.HookLayerAdded, 5)

		require.NoError(t, err)
		assert.Equal(t, 12, result) // (5 + 1) * 2 = 12
	})

	t.Run("hook failure does not undo the change", func(t *testing.T) {
		app, _ := newTestApp(t)
		app.RegisterHook(interfaces.HookLayerAdded, func(ctx context.Context, data any) (any, error) {
			return nil, errors.New("listener down")
		})

		require.NoError(t, app.AddLayer(context.Background(), layers.Descriptor{ID: "roads"}, ""))
		assert.Equal(t, 1, app.Layers().Len())
	})
}
