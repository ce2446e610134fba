package drag

import (
	"github.com/artpar/layertree/internal/node"
	"github.com/artpar/layertree/internal/zorder"
)

// Validator decides whether a proposed drag is legal. It never mutates
// anything; every check is total over stale or out of range rows.
type Validator struct {
	rows   RowSource
	zorder *zorder.Index
	policy Policy
	rule   StructuralRule
}

// NewValidator creates a validator over rows. ix may be nil, in which case
// z-types come from the nodes alone. rule is the base tree rule for generic
// rows; nil accepts every position.
func NewValidator(rows RowSource, ix *zorder.Index, policy Policy, rule StructuralRule) *Validator {
	return &Validator{
		rows:   rows,
		zorder: ix,
		policy: policy,
		rule:   rule,
	}
}

// Policy returns the rules in force.
func (v *Validator) Policy() Policy { return v.policy }

// CanDragRows reports whether the selection may be picked up at all.
func (v *Validator) CanDragRows(rows []int) bool {
	return v.CheckDragRows(rows) == ReasonNone
}

// CheckDragRows is CanDragRows with the reason for a refusal.
//
// Structural rows are always draggable. Generic rows need the internal drag
// capability and may not sit at depth 0. Every further row must share the
// first row's classification and depth.
func (v *Validator) CheckDragRows(rows []int) Reason {
	if len(rows) == 0 {
		return UnresolvedNode
	}
	first, ok := v.rows.NodeAt(rows[0])
	if !ok {
		return UnresolvedNode
	}

	structural := node.IsStructural(first)
	if !structural {
		if !node.SupportsInternalDrag(first) {
			return CapabilityMismatch
		}
		if first.Depth() == 0 {
			return DepthMismatch
		}
	}

	for _, r := range rows[1:] {
		n, ok := v.rows.NodeAt(r)
		if !ok {
			return UnresolvedNode
		}
		if node.IsStructural(n) != structural {
			return StructuralMismatch
		}
		if n.Depth() != first.Depth() {
			return DepthMismatch
		}
		if !structural && !node.SupportsInternalDrag(n) {
			return CapabilityMismatch
		}
	}
	return ReasonNone
}

// CanDragMove reports whether the selection may be dropped before row
// insertBefore.
func (v *Validator) CanDragMove(rows []int, insertBefore int) bool {
	return v.CheckDragMove(rows, insertBefore) == ReasonNone
}

// CheckDragMove is CanDragMove with the reason for a refusal. A folder drop
// is always accepted; DoMove turns a drop inside the folder's own subtree
// into NoOp.
func (v *Validator) CheckDragMove(rows []int, insertBefore int) Reason {
	if insertBefore < 0 {
		return InvalidIndex
	}
	if len(rows) == 0 {
		return UnresolvedNode
	}
	moving, ok := v.rows.NodeAt(rows[0])
	if !ok {
		return UnresolvedNode
	}

	switch n := moving.(type) {
	case *node.Folder:
		return ReasonNone
	case *node.Layer, *node.Group:
		return v.checkLayerMove(rows, insertBefore)
	case *node.Generic:
		return v.checkGenericMove(n, rows, insertBefore)
	default:
		return UnresolvedNode
	}
}

func (v *Validator) checkLayerMove(rows []int, insertBefore int) Reason {
	for _, r := range rows {
		if r == insertBefore || r == insertBefore-1 {
			return NoOp
		}
	}

	if prev, ok := v.rows.NodeAt(insertBefore - 1); ok && prev.Kind() == node.KindFolder {
		return ReasonNone
	}

	target, ok := v.rows.NodeAt(insertBefore)
	if !ok {
		return UnresolvedNode
	}
	if v.policy.CrossZType == RejectCrossZType {
		targetZ, ok := v.zTypeOf(target)
		if !ok {
			return ReasonNone
		}
		for _, r := range rows {
			n, ok := v.rows.NodeAt(r)
			if !ok {
				return UnresolvedNode
			}
			if z, ok := v.zTypeOf(n); ok && z != targetZ {
				return ZTypeMismatch
			}
		}
	}
	return ReasonNone
}

func (v *Validator) checkGenericMove(moving *node.Generic, rows []int, insertBefore int) Reason {
	if !moving.SupportsInternalDrag() {
		return CapabilityMismatch
	}
	if v.rule != nil && !v.rule.AllowsMove(rows, insertBefore) {
		return StructuralMismatch
	}
	target, ok := v.rows.NodeAt(insertBefore)
	if !ok {
		return UnresolvedNode
	}
	if target.RootID() != moving.RootID() {
		return RootMismatch
	}
	if !moving.CanDropInternal(target, v.policy.Mode) {
		return CapabilityMismatch
	}
	return ReasonNone
}

// zTypeOf prefers the z-order's record, which is authoritative once a layer
// is placed, and falls back to the tag carried by the node.
func (v *Validator) zTypeOf(n node.Node) (string, bool) {
	if !node.IsLayerLike(n) {
		return "", false
	}
	if v.zorder != nil {
		for _, id := range node.LayerIDs(n) {
			if z, ok := v.zorder.ZType(id); ok {
				return z, true
			}
		}
	}
	return node.ZTypeOf(n)
}
