package drag

import (
	"fmt"
	"strconv"
	"strings"
)

// Reason explains why a drag was refused.
type Reason int

const (
	ReasonNone Reason = iota
	InvalidIndex
	UnresolvedNode
	CapabilityMismatch
	DepthMismatch
	RootMismatch
	StructuralMismatch
	NoOp
	ZTypeMismatch
	NoTarget
	Conflict
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case InvalidIndex:
		return "invalid index"
	case UnresolvedNode:
		return "unresolved node"
	case CapabilityMismatch:
		return "capability mismatch"
	case DepthMismatch:
		return "depth mismatch"
	case RootMismatch:
		return "root mismatch"
	case StructuralMismatch:
		return "structural mismatch"
	case NoOp:
		return "no-op move"
	case ZTypeMismatch:
		return "z-type mismatch"
	case NoTarget:
		return "no drop target"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Outcome is the result of DoMove. A rejected move leaves both orderings
// untouched; Err carries the structure error behind a Conflict.
type Outcome struct {
	Applied bool
	Reason  Reason
	Err     error
}

// Applied is the outcome of a committed move.
func Applied() Outcome {
	return Outcome{Applied: true}
}

// Rejected is the outcome of a refused move.
func Rejected(reason Reason, err error) Outcome {
	return Outcome{Reason: reason, Err: err}
}

func (o Outcome) String() string {
	if o.Applied {
		return "applied"
	}
	if o.Err != nil {
		return fmt.Sprintf("rejected: %s: %v", o.Reason, o.Err)
	}
	return "rejected: " + o.Reason.String()
}

// ParseIndex converts a user supplied insertion index. Anything that is not a
// whole number maps to -1, which every check rejects as InvalidIndex.
func ParseIndex(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return -1
	}
	return n
}
