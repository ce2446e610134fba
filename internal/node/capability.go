package node

// IsStructural reports whether n is a Layer, Group or Folder. Structural rows
// take part in z-order and folder containment; everything else is opaque.
func IsStructural(n Node) bool {
	switch n.(type) {
	case *Layer, *Group, *Folder:
		return true
	default:
		return false
	}
}

// IsLayerLike reports whether n is backed by map layers (Layer or Group).
func IsLayerLike(n Node) bool {
	switch n.(type) {
	case *Layer, *Group:
		return true
	default:
		return false
	}
}

// SupportsInternalDrag answers the capability query for any variant.
// Structural nodes report false: they are dragged by the structural rules.
func SupportsInternalDrag(n Node) bool {
	if g, ok := n.(*Generic); ok {
		return g.SupportsInternalDrag()
	}
	return false
}

// ZTypeOf returns the z-type tag of a layer-like node.
func ZTypeOf(n Node) (string, bool) {
	switch v := n.(type) {
	case *Layer:
		return v.ZType(), true
	case *Group:
		return v.ZType(), true
	default:
		return "", false
	}
}

// LayerIDs expands a layer-like node into the layer ids it stands for in the
// z-order: the layer itself, or every group member.
func LayerIDs(n Node) []string {
	switch v := n.(type) {
	case *Layer:
		return []string{v.LayerID()}
	case *Group:
		return v.Members()
	default:
		return nil
	}
}

// Capabilities adapts a pair of functions to Capability.
type Capabilities struct {
	Drag bool
	Drop func(target Node, mode MoveMode) bool
}

func (c Capabilities) SupportsInternalDrag() bool { return c.Drag }

func (c Capabilities) CanDropInternal(target Node, mode MoveMode) bool {
	if c.Drop == nil {
		return c.Drag
	}
	return c.Drop(target, mode)
}
