package drag

import (
	"fmt"
	"strings"

	"github.com/artpar/layertree/internal/node"
)

// CrossZTypePolicy decides whether a layer may be dropped next to a layer of
// another z-type.
type CrossZTypePolicy int

const (
	AllowCrossZType CrossZTypePolicy = iota
	RejectCrossZType
)

func (p CrossZTypePolicy) String() string {
	if p == RejectCrossZType {
		return "reject"
	}
	return "allow"
}

// ParseCrossZTypePolicy accepts "allow" (or "") and "reject".
func ParseCrossZTypePolicy(s string) (CrossZTypePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "allow":
		return AllowCrossZType, nil
	case "reject":
		return RejectCrossZType, nil
	default:
		return AllowCrossZType, fmt.Errorf("unknown cross z-type policy %q", s)
	}
}

// Policy holds the tunable drag rules.
type Policy struct {
	CrossZType CrossZTypePolicy
	Mode       node.MoveMode
}

// DefaultPolicy allows cross z-type drops and reorders generic rows.
func DefaultPolicy() Policy {
	return Policy{CrossZType: AllowCrossZType, Mode: node.ModeReorder}
}

// RowSource resolves visible rows to nodes. Stale indices resolve to nothing.
type RowSource interface {
	NodeAt(i int) (node.Node, bool)
	Len() int
}

// StructuralRule is the base tree drag rule applied to generic rows.
type StructuralRule interface {
	AllowsMove(rows []int, insertBefore int) bool
}

// StructuralMover performs the base tree move for generic rows.
type StructuralMover interface {
	MoveRows(rows []int, insertBefore int) error
}
