package rows

import (
	"errors"
	"fmt"
	"sync"

	"github.com/artpar/layertree/internal/folder"
	"github.com/artpar/layertree/internal/layers"
	"github.com/artpar/layertree/internal/node"
)

// Common errors.
var (
	ErrNoRows     = errors.New("no rows to move")
	ErrNotGeneric = errors.New("row is not a generic node")
	ErrBadTarget  = errors.New("invalid drop target")
)

// View is the flattened layer tree as the user sees it: one row per visible
// node, in tree order. Folder rows are followed by their children unless the
// folder is collapsed; every row is followed by the generic nodes attached to
// it.
type View struct {
	mu       sync.RWMutex
	folders  *folder.Hierarchy
	registry *layers.Registry
	generics map[string][]*node.Generic
	rows     []node.Node
	byID     map[string]int
}

// NewView creates a view over the hierarchy and layer registry.
func NewView(folders *folder.Hierarchy, registry *layers.Registry) *View {
	v := &View{
		folders:  folders,
		registry: registry,
		generics: make(map[string][]*node.Generic),
	}
	v.Rebuild()
	return v
}

// Rebuild re-flattens the tree. Call it after any structural change.
func (v *View) Rebuild() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rebuild()
}

// Len returns the number of rows.
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.rows)
}

// NodeAt returns the node at row i. Stale indices resolve to nothing.
func (v *View) NodeAt(i int) (node.Node, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if i < 0 || i >= len(v.rows) {
		return nil, false
	}
	return v.rows[i], true
}

// IndexOf returns the row of id, or -1 when it is not visible.
func (v *View) IndexOf(id string) int {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if i, ok := v.byID[id]; ok {
		return i
	}
	return -1
}

// Rows returns a copy of all rows.
func (v *View) Rows() []node.Node {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]node.Node(nil), v.rows...)
}

// AttachGeneric hangs g under parentID, after any generic siblings.
func (v *View) AttachGeneric(parentID string, g *node.Generic) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.generics[parentID] = append(v.generics[parentID], g)
	v.rebuild()
}

// DetachGeneric removes a generic node and everything attached under it.
func (v *View) DetachGeneric(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.unlinkGeneric(id) {
		return false
	}
	v.dropGenericSubtree(id)
	v.rebuild()
	return true
}

// AllowsMove is the default tree drag rule: the insertion index lies within
// the rows and the drop target is not inside any moving subtree.
func (v *View) AllowsMove(rows []int, insertBefore int) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if len(rows) == 0 || insertBefore < 0 || insertBefore > len(v.rows) {
		return false
	}
	for _, r := range rows {
		if r < 0 || r >= len(v.rows) {
			return false
		}
		if insertBefore < len(v.rows) && v.within(v.rows[insertBefore], v.rows[r].ID()) {
			return false
		}
	}
	return true
}

// MoveRows is the default structural move for generic rows. Dropped on a
// generic row, the moving rows become its siblings; dropped on a structural
// row, they become its first generic children. An index equal to Len drops
// after the last row.
func (v *View) MoveRows(rows []int, insertBefore int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(rows) == 0 {
		return ErrNoRows
	}

	after := false
	if insertBefore == len(v.rows) {
		insertBefore--
		after = true
	}
	if insertBefore < 0 || insertBefore >= len(v.rows) {
		return fmt.Errorf("%w: row %d", ErrBadTarget, insertBefore)
	}
	target := v.rows[insertBefore]

	var moving []*node.Generic
	for _, r := range rows {
		if r < 0 || r >= len(v.rows) {
			return fmt.Errorf("%w: row %d", ErrBadTarget, r)
		}
		g, ok := v.rows[r].(*node.Generic)
		if !ok {
			return fmt.Errorf("%w: row %d", ErrNotGeneric, r)
		}
		if g.ID() == target.ID() || v.within(target, g.ID()) {
			return fmt.Errorf("%w: %s is inside %s", ErrBadTarget, target.ID(), g.ID())
		}
		moving = append(moving, g)
	}

	for _, g := range moving {
		v.unlinkGeneric(g.ID())
	}

	if _, ok := target.(*node.Generic); ok {
		parent := target.ParentID()
		list := v.generics[parent]
		at := 0
		for i, g := range list {
			if g.ID() == target.ID() {
				at = i
				break
			}
		}
		if after {
			at++
		}
		v.generics[parent] = spliceGenerics(list, at, moving)
	} else {
		v.generics[target.ID()] = spliceGenerics(v.generics[target.ID()], 0, moving)
	}

	v.rebuild()
	return nil
}

// Internal helpers

func (v *View) rebuild() {
	v.rows = v.rows[:0]
	v.byID = make(map[string]int)
	for _, id := range v.folders.RootIDs() {
		v.addItem(id, 0, "", id)
	}
}

func (v *View) addItem(id string, depth int, parent, root string) {
	item, ok := v.folders.Get(id)
	if !ok {
		return
	}
	pos := node.Position{Depth: depth, ParentID: parent, RootID: root}

	if item.IsFolder() {
		v.push(node.NewFolder(id, item.Name, item.Collapsed, item.Children, pos))
		if !item.Collapsed {
			for _, c := range item.Children {
				v.addItem(c, depth+1, id, root)
			}
		}
	} else {
		d, _ := v.registry.Get(id)
		if d.IsGroup() {
			v.push(node.NewGroup(id, d.ZType, d.Members, pos))
		} else {
			v.push(node.NewLayer(id, d.ZType, pos))
		}
	}
	v.addGenerics(id, depth+1, root)
}

func (v *View) addGenerics(parent string, depth int, root string) {
	for _, g := range v.generics[parent] {
		placed := g.WithPosition(node.Position{Depth: depth, ParentID: parent, RootID: root})
		v.push(placed)
		v.addGenerics(g.ID(), depth+1, root)
	}
}

func (v *View) push(n node.Node) {
	v.byID[n.ID()] = len(v.rows)
	v.rows = append(v.rows, n)
}

// within reports whether n sits at or below the row with id ancestorID.
func (v *View) within(n node.Node, ancestorID string) bool {
	for n != nil {
		if n.ID() == ancestorID {
			return true
		}
		i, ok := v.byID[n.ParentID()]
		if !ok {
			return false
		}
		n = v.rows[i]
	}
	return false
}

func (v *View) unlinkGeneric(id string) bool {
	for parent, list := range v.generics {
		for i, g := range list {
			if g.ID() == id {
				v.generics[parent] = append(list[:i:i], list[i+1:]...)
				return true
			}
		}
	}
	return false
}

func (v *View) dropGenericSubtree(id string) {
	for _, g := range v.generics[id] {
		v.dropGenericSubtree(g.ID())
	}
	delete(v.generics, id)
}

func spliceGenerics(list []*node.Generic, at int, items []*node.Generic) []*node.Generic {
	out := make([]*node.Generic, 0, len(list)+len(items))
	out = append(out, list[:at]...)
	out = append(out, items...)
	return append(out, list[at:]...)
}
