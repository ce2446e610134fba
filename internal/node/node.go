package node

// Kind identifies the variant of a tree node.
type Kind int

const (
	KindLayer Kind = iota
	KindFolder
	KindGroup
	KindGeneric
)

func (k Kind) String() string {
	switch k {
	case KindLayer:
		return "layer"
	case KindFolder:
		return "folder"
	case KindGroup:
		return "group"
	case KindGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// MoveMode describes how a generic node is being dropped onto its target.
type MoveMode int

const (
	ModeReorder MoveMode = iota
	ModeReparent
)

// ParseMoveMode maps a config value to a MoveMode. Unknown values reorder.
func ParseMoveMode(s string) MoveMode {
	if s == "reparent" {
		return ModeReparent
	}
	return ModeReorder
}

// Node is a row in the layer tree. The variant set is closed: *Layer, *Folder,
// *Group and *Generic are the only implementations.
type Node interface {
	ID() string
	Kind() Kind
	Depth() int

	// ParentID returns the id of the owning row, or "" at the top level.
	ParentID() string

	// RootID returns the id of the top-level row this node hangs under.
	// A top-level node is its own root.
	RootID() string

	node()
}

// Capability lets an opaque node opt into drag and drop.
type Capability interface {
	SupportsInternalDrag() bool
	CanDropInternal(target Node, mode MoveMode) bool
}

// Position is the placement shared by every variant.
type Position struct {
	Depth    int
	ParentID string
	RootID   string
}

type base struct {
	id  string
	pos Position
}

func (b *base) ID() string       { return b.id }
func (b *base) Depth() int       { return b.pos.Depth }
func (b *base) ParentID() string { return b.pos.ParentID }
func (b *base) node()            {}

func (b *base) RootID() string {
	if b.pos.RootID == "" {
		return b.id
	}
	return b.pos.RootID
}

// Layer is a leaf wrapping a single map layer.
type Layer struct {
	base
	zType string
}

// NewLayer creates a layer node.
func NewLayer(id, zType string, pos Position) *Layer {
	return &Layer{base: base{id: id, pos: pos}, zType: zType}
}

func (l *Layer) Kind() Kind      { return KindLayer }
func (l *Layer) LayerID() string { return l.id }
func (l *Layer) ZType() string   { return l.zType }

// Folder is a user-organized container of layers and folders.
type Folder struct {
	base
	name      string
	collapsed bool
	children  []string
}

// NewFolder creates a folder node. children is copied.
func NewFolder(id, name string, collapsed bool, children []string, pos Position) *Folder {
	return &Folder{
		base:      base{id: id, pos: pos},
		name:      name,
		collapsed: collapsed,
		children:  append([]string(nil), children...),
	}
}

func (f *Folder) Kind() Kind      { return KindFolder }
func (f *Folder) Name() string    { return f.name }
func (f *Folder) Collapsed() bool { return f.collapsed }

// Children returns the ordered ids owned by the folder.
func (f *Folder) Children() []string {
	return append([]string(nil), f.children...)
}

// HasChildren reports whether the folder owns anything.
func (f *Folder) HasChildren() bool { return len(f.children) > 0 }

// Group is a layer-like row backed by several underlying layers that always
// move together.
type Group struct {
	base
	zType   string
	members []string
}

// NewGroup creates a group node. members is copied.
func NewGroup(id, zType string, members []string, pos Position) *Group {
	return &Group{
		base:    base{id: id, pos: pos},
		zType:   zType,
		members: append([]string(nil), members...),
	}
}

func (g *Group) Kind() Kind    { return KindGroup }
func (g *Group) ZType() string { return g.zType }

// Members returns the underlying layer ids in order.
func (g *Group) Members() []string {
	return append([]string(nil), g.members...)
}

// Generic is an opaque row whose drag behavior is decided by its Capability.
type Generic struct {
	base
	label string
	caps  Capability
}

// NewGeneric creates a generic node. A nil capability never drags.
func NewGeneric(id, label string, caps Capability, pos Position) *Generic {
	return &Generic{base: base{id: id, pos: pos}, label: label, caps: caps}
}

func (g *Generic) Kind() Kind    { return KindGeneric }
func (g *Generic) Label() string { return g.label }

func (g *Generic) SupportsInternalDrag() bool {
	return g.caps != nil && g.caps.SupportsInternalDrag()
}

func (g *Generic) CanDropInternal(target Node, mode MoveMode) bool {
	return g.caps != nil && g.caps.CanDropInternal(target, mode)
}

// WithPosition returns a copy of the generic node placed at pos.
func (g *Generic) WithPosition(pos Position) *Generic {
	c := *g
	c.pos = pos
	return &c
}
