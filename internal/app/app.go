package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/artpar/layertree/internal/drag"
	"github.com/artpar/layertree/internal/folder"
	"github.com/artpar/layertree/internal/history"
	historysqlite "github.com/artpar/layertree/internal/history/sqlite"
	"github.com/artpar/layertree/internal/interfaces"
	"github.com/artpar/layertree/internal/layers"
	"github.com/artpar/layertree/internal/node"
	"github.com/artpar/layertree/internal/rows"
	"github.com/artpar/layertree/internal/storage/filesystem"
	"github.com/artpar/layertree/internal/storage/memory"
	"github.com/artpar/layertree/internal/storage/sqlite"
	"github.com/artpar/layertree/internal/zorder"
)

// DefaultFolderName names folders created from a layer selection.
const DefaultFolderName = "New Folder"

// ErrNotLayers is returned when a folder is requested for rows that are not
// all layers.
var ErrNotLayers = errors.New("selection contains rows that are not layers")

// HookHandler is a function that handles a hook event.
type HookHandler = interfaces.HookHandler

// App is the main application container with dependency injection. It owns
// the z-order and the folder hierarchy and is the only place that mutates
// both.
type App struct {
	config      Config
	logger      *slog.Logger
	gateway     interfaces.Gateway
	ownsGateway bool
	hooks       map[string][]HookHandler
	journal     history.Store
	ownsJournal bool

	registry  *layers.Registry
	zorder    *zorder.Index
	folders   *folder.Hierarchy
	view      *rows.View
	validator *drag.Validator
	executor  *drag.Executor
}

// Option is a function that configures the App.
type Option func(*App)

// New creates a new App with the given options. Without WithGateway the
// store named by the config is opened.
func New(opts ...Option) (*App, error) {
	app := &App{
		config: DefaultConfig(),
		logger: slog.New(slog.DiscardHandler),
		hooks:  make(map[string][]HookHandler),
	}

	for _, opt := range opts {
		opt(app)
	}

	if err := app.config.Validate(); err != nil {
		return nil, err
	}
	policy, err := app.policy()
	if err != nil {
		return nil, err
	}

	if app.gateway == nil {
		gw, err := openGateway(app.config)
		if err != nil {
			return nil, err
		}
		app.gateway = gw
		app.ownsGateway = true

		if app.journal == nil && app.config.History {
			journal, err := openJournal(app.config)
			if err != nil {
				gw.Close()
				return nil, err
			}
			app.journal = journal
			app.ownsJournal = true
		}
	}

	app.registry = layers.NewRegistry(app.gateway)
	app.zorder = zorder.New(app.gateway, zorder.WithZTypes(app.config.ZTypes...))
	app.folders = folder.New(app.gateway)
	app.view = rows.NewView(app.folders, app.registry)
	app.validator = drag.NewValidator(app.view, app.zorder, policy, app.view)
	app.executor = drag.NewExecutor(app.view, app.zorder, app.folders,
		drag.WithExpander(app.registry),
		drag.WithMover(app.view),
		drag.WithRefresher(interfaces.RefreshFunc(app.refresh)),
		drag.WithLogger(app.logger),
	)

	app.RegisterHook(interfaces.HookRefresh, func(ctx context.Context, data any) (any, error) {
		app.view.Rebuild()
		return data, nil
	})
	app.folders.OnChange(func(ev folder.Event) {
		app.logger.Debug("folder changed", slog.String("id", ev.ID), slog.String("type", ev.Type.String()))
		app.fire(context.Background(), interfaces.HookFolderChanged, ev)
	})

	return app, nil
}

// WithConfig sets the application configuration.
func WithConfig(cfg Config) Option {
	return func(a *App) {
		a.config = cfg
	}
}

// WithGateway sets the store. The App does not close a store it was given.
func WithGateway(gw interfaces.Gateway) Option {
	return func(a *App) {
		a.gateway = gw
	}
}

// WithHistory sets the move journal. Without it a journal is only opened
// next to a store the App opens itself.
func WithHistory(store history.Store) Option {
	return func(a *App) {
		a.journal = store
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// Config returns the application configuration.
func (a *App) Config() Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// View returns the flattened rows.
func (a *App) View() *rows.View { return a.view }

// ZOrder returns the z-order index.
func (a *App) ZOrder() *zorder.Index { return a.zorder }

// Folders returns the folder hierarchy.
func (a *App) Folders() *folder.Hierarchy { return a.folders }

// Layers returns the layer registry.
func (a *App) Layers() *layers.Registry { return a.registry }

// History returns the move journal, or nil when moves are not recorded.
func (a *App) History() history.Store { return a.journal }

// Close releases the store and journal if the App opened them.
func (a *App) Close() error {
	var errs []error
	if a.ownsJournal {
		errs = append(errs, a.journal.Close())
	}
	if a.ownsGateway {
		errs = append(errs, a.gateway.Close())
	}
	return errors.Join(errs...)
}

// Load reads layers, z-order and folders from the store, then repairs any
// layer missing from either ordering.
func (a *App) Load(ctx context.Context) error {
	if err := a.registry.Load(ctx); err != nil {
		return err
	}
	if err := a.zorder.Load(ctx); err != nil {
		return err
	}
	if err := a.folders.Load(ctx); err != nil {
		return err
	}

	for _, d := range a.registry.List() {
		if !a.folders.Contains(d.ID) {
			a.logger.Warn("layer missing from folders", slog.String("id", d.ID))
			if err := a.folders.AddLayer(d.ID, ""); err != nil {
				return err
			}
		}
		for _, id := range d.ZOrderIDs() {
			if a.zorder.Position(id) < 0 {
				a.logger.Warn("layer missing from z-order", slog.String("id", id))
				if err := a.zorder.Add(id, d.ZType); err != nil {
					return err
				}
			}
		}
	}

	a.view.Rebuild()
	return nil
}

// Save writes layers, z-order and folders to the store.
func (a *App) Save(ctx context.Context) error {
	a.zorder.Update()
	return errors.Join(
		a.registry.Save(ctx),
		a.zorder.Save(ctx),
		a.folders.Persist(ctx),
	)
}

// AddLayer puts a layer on the map: it joins the registry, the top of its
// z-type partition, and the top of parentID ("" for the root).
func (a *App) AddLayer(ctx context.Context, d layers.Descriptor, parentID string) error {
	if err := a.registry.Add(d); err != nil {
		return err
	}

	ids := d.ZOrderIDs()
	var added []string
	undo := func() {
		a.registry.Remove(d.ID)
		for _, id := range added {
			a.zorder.Remove(id)
		}
	}
	for i := len(ids) - 1; i >= 0; i-- {
		if err := a.zorder.Add(ids[i], d.ZType); err != nil {
			undo()
			return fmt.Errorf("failed to add %s to z-order: %w", d.ID, err)
		}
		added = append(added, ids[i])
	}
	if err := a.folders.AddLayer(d.ID, parentID); err != nil {
		undo()
		return fmt.Errorf("failed to add %s to folders: %w", d.ID, err)
	}

	a.logger.Debug("layer added", slog.String("id", d.ID), slog.String("ztype", d.ZType))
	a.fire(ctx, interfaces.HookLayerAdded, d)
	return a.commit(ctx)
}

// RemoveLayer takes a layer off the map.
func (a *App) RemoveLayer(ctx context.Context, id string) error {
	d, ok := a.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", layers.ErrNotFound, id)
	}
	a.dropLayer(d)

	a.logger.Debug("layer removed", slog.String("id", id))
	a.fire(ctx, interfaces.HookLayerRemoved, d)
	return a.commit(ctx)
}

// CreateOrEditFolder creates or edits a folder and returns its id.
func (a *App) CreateOrEditFolder(ctx context.Context, spec folder.Spec) (string, error) {
	id, err := a.folders.CreateOrEditFolder(spec)
	if err != nil {
		return "", err
	}
	return id, a.commit(ctx)
}

// CreateFolder wraps the layers at rows in a new folder under the first
// row's parent. An empty name uses DefaultFolderName.
func (a *App) CreateFolder(ctx context.Context, name string, selected []int) (string, error) {
	if len(selected) == 0 {
		return "", fmt.Errorf("%w: empty selection", ErrNotLayers)
	}
	if name == "" {
		name = DefaultFolderName
	}

	var children []string
	parentID := ""
	for i, r := range rows.Normalize(selected) {
		n, ok := a.view.NodeAt(r)
		if !ok || !node.IsLayerLike(n) {
			return "", fmt.Errorf("%w: row %d", ErrNotLayers, r)
		}
		if i == 0 {
			parentID, _ = a.folders.ParentOf(n.ID())
		}
		children = append(children, n.ID())
	}

	return a.CreateOrEditFolder(ctx, folder.Spec{
		Name:     name,
		ParentID: parentID,
		Children: children,
	})
}

// Unfolder removes a folder and promotes its children in its place.
func (a *App) Unfolder(ctx context.Context, id string) error {
	if err := a.folders.RemoveFolder(id); err != nil {
		return err
	}
	return a.commit(ctx)
}

// RemoveFolderTree removes a folder together with every layer under it.
func (a *App) RemoveFolderTree(ctx context.Context, id string) ([]string, error) {
	removed, err := a.folders.RemoveFolderTree(id)
	if err != nil {
		return nil, err
	}
	for _, layerID := range removed {
		d, ok := a.registry.Get(layerID)
		if !ok {
			continue
		}
		a.dropLayer(d)
		a.fire(ctx, interfaces.HookLayerRemoved, d)
	}
	return removed, a.commit(ctx)
}

// CheckMove runs both drag checks without changing anything.
func (a *App) CheckMove(selected []int, insertBefore int) drag.Reason {
	if reason := a.validator.CheckDragRows(selected); reason != drag.ReasonNone {
		return reason
	}
	return a.validator.CheckDragMove(selected, insertBefore)
}

// Move validates and applies a drag of the rows to insertBefore. Every
// attempt is recorded in the journal, refused ones included.
func (a *App) Move(ctx context.Context, selected []int, insertBefore int) (drag.Outcome, error) {
	moved := a.rowIDs(selected)

	if reason := a.CheckMove(selected, insertBefore); reason != drag.ReasonNone {
		a.logger.Info("move refused", slog.Any("rows", selected), slog.Int("before", insertBefore), slog.String("reason", reason.String()))
		out := drag.Rejected(reason, nil)
		a.record(ctx, selected, insertBefore, moved, out)
		return out, nil
	}

	out, err := a.executor.DoMove(ctx, selected, insertBefore)
	if ctx.Err() != nil {
		return out, err
	}
	if out.Applied {
		a.fire(ctx, interfaces.HookMoveApplied, interfaces.MoveRequest{Rows: selected, InsertBefore: insertBefore})
	}
	a.record(ctx, selected, insertBefore, moved, out)
	return out, err
}

// RegisterHook registers a hook handler for the given hook name.
func (a *App) RegisterHook(hook string, handler HookHandler) {
	if a.hooks[hook] == nil {
		a.hooks[hook] = make([]HookHandler, 0)
	}
	a.hooks[hook] = append(a.hooks[hook], handler)
}

// GetHooks returns all handlers for the given hook.
func (a *App) GetHooks(hook string) []HookHandler {
	return a.hooks[hook]
}

// ExecuteHooks executes all handlers for the given hook in order.
func (a *App) ExecuteHooks(ctx context.Context, hook string, data any) (any, error) {
	handlers := a.hooks[hook]
	result := data

	for _, handler := range handlers {
		var err error
		result, err = handler(ctx, result)
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// Internal helpers

// dropLayer removes every trace of d. Missing pieces are ignored.
func (a *App) dropLayer(d layers.Descriptor) {
	a.registry.Remove(d.ID)
	for _, id := range d.ZOrderIDs() {
		a.zorder.Remove(id)
	}
	a.folders.RemoveLayer(d.ID)
}

// commit persists everything and refreshes the view.
func (a *App) commit(ctx context.Context) error {
	err := a.Save(ctx)
	a.refresh(ctx)
	if err != nil {
		a.logger.Error("failed to save layer tree", slog.Any("err", err))
	}
	return err
}

// record appends a drag to the journal. A journal failure is logged and
// never fails the move.
func (a *App) record(ctx context.Context, selected []int, insertBefore int, moved []string, out drag.Outcome) {
	if a.journal == nil {
		return
	}

	entry := history.Entry{
		Timestamp:    time.Now(),
		Rows:         append([]int(nil), selected...),
		InsertBefore: insertBefore,
		Applied:      out.Applied,
		Moved:        moved,
		ZOrder:       a.zorder.IDs(),
	}
	if !out.Applied {
		entry.Reason = out.Reason.String()
	}
	if out.Err != nil {
		entry.Error = out.Err.Error()
	}

	if _, err := a.journal.Add(ctx, entry); err != nil {
		a.logger.Warn("failed to record move", slog.Any("err", err))
	}
}

// rowIDs returns the ids of the rows that resolve.
func (a *App) rowIDs(selected []int) []string {
	var ids []string
	for _, r := range selected {
		if n, ok := a.view.NodeAt(r); ok {
			ids = append(ids, n.ID())
		}
	}
	return ids
}

func (a *App) refresh(ctx context.Context) {
	a.fire(ctx, interfaces.HookRefresh, nil)
}

// fire runs hooks whose failure must not undo the change that raised them.
func (a *App) fire(ctx context.Context, hook string, data any) {
	if _, err := a.ExecuteHooks(ctx, hook, data); err != nil {
		a.logger.Warn("hook failed", slog.String("hook", hook), slog.Any("err", err))
	}
}

func (a *App) policy() (drag.Policy, error) {
	cross, err := drag.ParseCrossZTypePolicy(a.config.CrossZType)
	if err != nil {
		return drag.Policy{}, err
	}
	return drag.Policy{CrossZType: cross, Mode: node.ParseMoveMode(a.config.MoveMode)}, nil
}

func openJournal(cfg Config) (history.Store, error) {
	if cfg.Store == StoreMemory {
		return historysqlite.NewInMemory()
	}

	dir, err := cfg.ResolvedDataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := historysqlite.New(filepath.Join(dir, "history.db"))
	if err != nil {
		return nil, err
	}
	return store, nil
}

func openGateway(cfg Config) (interfaces.Gateway, error) {
	if cfg.Store == StoreMemory {
		return memory.New(), nil
	}

	dir, err := cfg.ResolvedDataDir()
	if err != nil {
		return nil, err
	}

	switch cfg.Store {
	case StoreSQLite:
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := sqlite.New(filepath.Join(dir, "layertree.db"))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		store, err := filesystem.NewStore(dir)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}
