package drag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/artpar/layertree/internal/folder"
	"github.com/artpar/layertree/internal/interfaces"
	"github.com/artpar/layertree/internal/node"
	"github.com/artpar/layertree/internal/zorder"
)

// Expander maps tree layer ids to the ids they occupy in the z-order. A group
// expands to its members; a plain layer maps to itself.
type Expander interface {
	ZOrderIDs(ids []string) []string
}

type identity struct{}

func (identity) ZOrderIDs(ids []string) []string { return ids }

// Executor applies a validated drag to the z-order and the folder hierarchy
// as one transaction.
type Executor struct {
	rows      RowSource
	zorder    *zorder.Index
	folders   *folder.Hierarchy
	expander  Expander
	mover     StructuralMover
	refresher interfaces.Refresher
	logger    *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExpander sets how folder children expand into z-order ids.
func WithExpander(x Expander) ExecutorOption {
	return func(e *Executor) {
		e.expander = x
	}
}

// WithMover sets the structural move used for generic rows.
func WithMover(m StructuralMover) ExecutorOption {
	return func(e *Executor) {
		e.mover = m
	}
}

// WithRefresher sets the signal emitted after an applied move.
func WithRefresher(r interfaces.Refresher) ExecutorOption {
	return func(e *Executor) {
		e.refresher = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = l
	}
}

// NewExecutor creates an executor over both orderings.
func NewExecutor(rows RowSource, ix *zorder.Index, h *folder.Hierarchy, opts ...ExecutorOption) *Executor {
	e := &Executor{
		rows:     rows,
		zorder:   ix,
		folders:  h,
		expander: identity{},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// target is the resolved drop point.
type target struct {
	node node.Node
	// after places the movers below the target instead of above it.
	after bool
	// zIDs are the z-order ids the movers land next to.
	zIDs []string
	// anchor is the hierarchy id the movers land next to. Empty means
	// into, the folder to drop inside.
	anchor string
	into   string
}

// DoMove drops rows before row insertBefore. An index equal to the row count
// drops after the last row.
//
// Both orderings are staged together: if either refuses a relocation, both
// are restored and the outcome is Rejected. The returned error is only set
// when the committed state could not be persisted.
func (e *Executor) DoMove(ctx context.Context, rows []int, insertBefore int) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	if insertBefore < 0 {
		return e.reject(InvalidIndex, nil), nil
	}
	if len(rows) == 0 {
		return e.reject(UnresolvedNode, nil), nil
	}
	first, ok := e.rows.NodeAt(rows[0])
	if !ok {
		return e.reject(UnresolvedNode, nil), nil
	}

	if !node.IsStructural(first) {
		return e.moveGeneric(ctx, first, rows, insertBefore)
	}

	movers := make([]node.Node, 0, len(rows))
	for _, r := range sortedRows(rows) {
		n, ok := e.rows.NodeAt(r)
		if !ok {
			return e.reject(UnresolvedNode, nil), nil
		}
		if !node.IsStructural(n) {
			return e.reject(StructuralMismatch, nil), nil
		}
		movers = append(movers, n)
	}

	treeIDs, zIDs := e.expandMovers(movers)

	tgt, ok := e.resolveTarget(insertBefore, treeIDs, zIDs)
	if !ok {
		return e.reject(NoTarget, nil), nil
	}
	if contains(treeIDs, tgt.node.ID()) || e.underMovers(tgt.node.ID(), treeIDs) {
		return e.reject(NoOp, nil), nil
	}

	zSnap := e.zorder.Snapshot()
	treeSnap := e.folders.Snapshot()

	if err := e.relocate(tgt, treeIDs, zIDs); err != nil {
		e.zorder.Restore(zSnap)
		e.folders.Restore(treeSnap)
		return e.reject(Conflict, err), nil
	}

	e.logger.Debug("move applied",
		slog.Any("tree_ids", treeIDs),
		slog.Any("zorder_ids", zIDs),
		slog.String("target", tgt.node.ID()),
		slog.Bool("after", tgt.after))

	e.zorder.Update()
	err := errors.Join(e.zorder.Save(ctx), e.folders.Persist(ctx))
	e.refresh(ctx)
	if err != nil {
		e.logger.Error("failed to persist move", slog.Any("err", err))
		return Applied(), fmt.Errorf("failed to persist move: %w", err)
	}
	return Applied(), nil
}

func (e *Executor) moveGeneric(ctx context.Context, first node.Node, rows []int, insertBefore int) (Outcome, error) {
	if !node.SupportsInternalDrag(first) || e.mover == nil {
		return e.reject(CapabilityMismatch, nil), nil
	}
	if err := e.mover.MoveRows(rows, insertBefore); err != nil {
		return e.reject(Conflict, err), nil
	}
	e.refresh(ctx)
	return Applied(), nil
}

// resolveTarget walks up from insertBefore past generic rows to the nearest
// structural row. Passing over a row, or starting past the end, flips the
// placement to after.
func (e *Executor) resolveTarget(insertBefore int, moving, movingZ []string) (target, bool) {
	i, after := insertBefore, false
	if n := e.rows.Len(); i >= n {
		i, after = n-1, true
	}
	for ; i >= 0; i-- {
		n, ok := e.rows.NodeAt(i)
		if ok && node.IsStructural(n) {
			return e.expandTarget(n, after, moving, movingZ), true
		}
		after = true
	}
	return target{}, false
}

func (e *Executor) expandTarget(n node.Node, after bool, moving, movingZ []string) target {
	t := target{node: n, after: after}

	f, ok := n.(*node.Folder)
	if !ok {
		t.anchor = n.ID()
		t.zIDs = node.LayerIDs(n)
		return t
	}

	var layers []string
	for _, c := range e.folders.Children(f.ID()) {
		if contains(moving, c) {
			continue
		}
		if item, ok := e.folders.Get(c); ok && !item.IsFolder() {
			layers = append(layers, c)
		}
	}
	t.zIDs = e.expander.ZOrderIDs(layers)
	switch {
	case len(layers) == 0:
		// Only sub-folders: land next to the nearest descendant layer so the
		// folder's layers stay together in the z-order.
		t.into = f.ID()
		t.zIDs = without(e.expander.ZOrderIDs(e.folders.DescendantLayers(f.ID())), movingZ)
	case after:
		t.anchor = layers[len(layers)-1]
	default:
		t.anchor = layers[0]
	}
	return t
}

// expandMovers returns the hierarchy ids that move and the z-order ids that
// move with them. A folder moves as one hierarchy entry but drags every
// layer beneath it through the z-order.
func (e *Executor) expandMovers(movers []node.Node) (treeIDs, zIDs []string) {
	seenTree := make(map[string]bool)
	seenZ := make(map[string]bool)
	for _, n := range movers {
		if !seenTree[n.ID()] {
			seenTree[n.ID()] = true
			treeIDs = append(treeIDs, n.ID())
		}

		var ids []string
		switch v := n.(type) {
		case *node.Folder:
			ids = e.expander.ZOrderIDs(e.folders.DescendantLayers(v.ID()))
		default:
			ids = node.LayerIDs(n)
		}
		for _, id := range ids {
			if !seenZ[id] {
				seenZ[id] = true
				zIDs = append(zIDs, id)
			}
		}
	}
	return treeIDs, zIDs
}

func (e *Executor) relocate(t target, treeIDs, zIDs []string) error {
	if err := e.relocateZOrder(t, zIDs); err != nil {
		return err
	}
	return e.relocateTree(t, treeIDs)
}

// relocateZOrder keeps the moving block contiguous and in its current order.
// Tree "after" is z-order "below", hence before = !after.
func (e *Executor) relocateZOrder(t target, zIDs []string) error {
	targets := make(map[string]bool, len(t.zIDs))
	for _, id := range t.zIDs {
		targets[id] = true
	}

	var moving []string
	for _, id := range zIDs {
		if targets[id] {
			continue
		}
		if e.zorder.Position(id) < 0 {
			return fmt.Errorf("%w: %s", zorder.ErrNotFound, id)
		}
		moving = append(moving, id)
	}

	anchor := e.zAnchor(t)
	if anchor == "" || len(moving) == 0 {
		return nil
	}

	sort.SliceStable(moving, func(i, j int) bool {
		return e.zorder.Position(moving[i]) < e.zorder.Position(moving[j])
	})

	if !t.after {
		for _, id := range moving {
			if err := e.zorder.Move(id, anchor, true); err != nil {
				return err
			}
		}
		return nil
	}
	for i := len(moving) - 1; i >= 0; i-- {
		if err := e.zorder.Move(moving[i], anchor, false); err != nil {
			return err
		}
	}
	return nil
}

// zAnchor is the top-most target id when placing above, the bottom-most
// when placing below.
func (e *Executor) zAnchor(t target) string {
	anchor, best := "", -1
	for _, id := range t.zIDs {
		p := e.zorder.Position(id)
		if p < 0 {
			continue
		}
		if best < 0 || (!t.after && p < best) || (t.after && p > best) {
			anchor, best = id, p
		}
	}
	return anchor
}

func (e *Executor) relocateTree(t target, treeIDs []string) error {
	if t.into != "" {
		if t.after {
			for _, id := range treeIDs {
				if err := e.folders.MoveInto(id, t.into, -1); err != nil {
					return err
				}
			}
			return nil
		}
		for i := len(treeIDs) - 1; i >= 0; i-- {
			if err := e.folders.MoveInto(treeIDs[i], t.into, 0); err != nil {
				return err
			}
		}
		return nil
	}

	if !t.after {
		for _, id := range treeIDs {
			if err := e.folders.Move(id, t.anchor, false); err != nil {
				return err
			}
		}
		return nil
	}
	for i := len(treeIDs) - 1; i >= 0; i-- {
		if err := e.folders.Move(treeIDs[i], t.anchor, true); err != nil {
			return err
		}
	}
	return nil
}

// underMovers reports whether id sits inside the subtree of a moving folder.
func (e *Executor) underMovers(id string, treeIDs []string) bool {
	for {
		parent, ok := e.folders.ParentOf(id)
		if !ok || parent == "" {
			return false
		}
		if contains(treeIDs, parent) {
			return true
		}
		id = parent
	}
}

func (e *Executor) refresh(ctx context.Context) {
	if e.refresher != nil {
		e.refresher.Refresh(ctx)
	}
}

func (e *Executor) reject(reason Reason, err error) Outcome {
	attrs := []any{slog.String("reason", reason.String())}
	if err != nil {
		attrs = append(attrs, slog.Any("err", err))
	}
	e.logger.Info("move rejected", attrs...)
	return Rejected(reason, err)
}

func sortedRows(rows []int) []int {
	out := append([]int(nil), rows...)
	sort.Ints(out)
	return out
}

func without(ids, drop []string) []string {
	var out []string
	for _, id := range ids {
		if !contains(drop, id) {
			out = append(out, id)
		}
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
