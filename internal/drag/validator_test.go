package drag

import (
	"testing"

	"github.com/artpar/layertree/internal/node"
	"github.com/artpar/layertree/internal/storage/memory"
	"github.com/artpar/layertree/internal/zorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRows []node.Node

func (f fakeRows) NodeAt(i int) (node.Node, bool) {
	if i < 0 || i >= len(f) {
		return nil, false
	}
	return f[i], true
}

func (f fakeRows) Len() int { return len(f) }

type ruleFunc func(rows []int, insertBefore int) bool

func (f ruleFunc) AllowsMove(rows []int, insertBefore int) bool { return f(rows, insertBefore) }

var draggable = node.Capabilities{Drag: true}

// sampleRows:
//
//	0 F
//	1   L1 (feature)
//	2   L2 (tile)
//	3     x1
//	4     x2
//	5 L3 (feature)
//	6   y1
//	7 G (tile, M1 M2)
//	8   n1 (not draggable)
//	9 z0 (generic at the top level)
func sampleRows() fakeRows {
	return fakeRows{
		node.NewFolder("F", "Folder", false, []string{"L1", "L2"}, node.Position{}),
		node.NewLayer("L1", "feature", node.Position{Depth: 1, ParentID: "F", RootID: "F"}),
		node.NewLayer("L2", "tile", node.Position{Depth: 1, ParentID: "F", RootID: "F"}),
		node.NewGeneric("x1", "", draggable, node.Position{Depth: 2, ParentID: "L2", RootID: "F"}),
		node.NewGeneric("x2", "", draggable, node.Position{Depth: 2, ParentID: "L2", RootID: "F"}),
		node.NewLayer("L3", "feature", node.Position{}),
		node.NewGeneric("y1", "", draggable, node.Position{Depth: 1, ParentID: "L3", RootID: "L3"}),
		node.NewGroup("G", "tile", []string{"M1", "M2"}, node.Position{}),
		node.NewGeneric("n1", "", node.Capabilities{}, node.Position{Depth: 1, ParentID: "G", RootID: "G"}),
		node.NewGeneric("z0", "", draggable, node.Position{}),
	}
}

func TestValidator_CheckDragRows(t *testing.T) {
	v := NewValidator(sampleRows(), nil, DefaultPolicy(), nil)

	tests := []struct {
		name string
		rows []int
		want Reason
	}{
		{"single folder", []int{0}, ReasonNone},
		{"single layer", []int{5}, ReasonNone},
		{"layers at one depth", []int{1, 2}, ReasonNone},
		{"folder and layers at the top", []int{0, 5, 7}, ReasonNone},
		{"generic siblings", []int{3, 4}, ReasonNone},
		{"layers at different depths", []int{1, 5}, DepthMismatch},
		{"layer with generic", []int{1, 3}, StructuralMismatch},
		{"generic with layer", []int{6, 5}, StructuralMismatch},
		{"generics at different depths", []int{3, 6}, DepthMismatch},
		{"generic without capability", []int{8}, CapabilityMismatch},
		{"follower without capability", []int{6, 8}, CapabilityMismatch},
		{"generic at the top level", []int{9}, DepthMismatch},
		{"stale first row", []int{10}, UnresolvedNode},
		{"stale follower", []int{1, 42}, UnresolvedNode},
		{"empty selection", nil, UnresolvedNode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.CheckDragRows(tt.rows))
			assert.Equal(t, tt.want == ReasonNone, v.CanDragRows(tt.rows))
		})
	}
}

func TestValidator_CheckDragMove(t *testing.T) {
	v := NewValidator(sampleRows(), nil, DefaultPolicy(), nil)

	tests := []struct {
		name         string
		rows         []int
		insertBefore int
		want         Reason
	}{
		{"negative index", []int{5}, -1, InvalidIndex},
		{"non-numeric index", []int{5}, ParseIndex("top"), InvalidIndex},
		{"stale row", []int{42}, 0, UnresolvedNode},
		{"empty selection", nil, 0, UnresolvedNode},

		{"folder to the top", []int{0}, 0, ReasonNone},
		{"folder onto itself", []int{0}, 1, ReasonNone},
		{"folder past the end", []int{0}, 10, ReasonNone},

		{"layer onto its own row", []int{5}, 5, NoOp},
		{"layer just below itself", []int{5}, 6, NoOp},
		{"any row adjacent", []int{1, 5}, 2, NoOp},
		{"layer into folder", []int{5}, 1, ReasonNone},
		{"layer before layer", []int{5}, 2, ReasonNone},
		{"layer across z-types allowed", []int{1}, 7, ReasonNone},
		{"group before layer", []int{7}, 5, ReasonNone},
		{"layer past the end", []int{5}, 10, UnresolvedNode},

		{"generic reorder", []int{3}, 4, ReasonNone},
		{"generic to another root", []int{3}, 6, RootMismatch},
		{"generic without capability", []int{8}, 3, CapabilityMismatch},
		{"generic past the end", []int{3}, 10, UnresolvedNode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.CheckDragMove(tt.rows, tt.insertBefore))
			assert.Equal(t, tt.want == ReasonNone, v.CanDragMove(tt.rows, tt.insertBefore))
		})
	}
}

func TestValidator_FolderMovesAnywhere(t *testing.T) {
	rows := sampleRows()
	v := NewValidator(rows, nil, DefaultPolicy(), nil)
	for i := 0; i <= rows.Len(); i++ {
		assert.True(t, v.CanDragMove([]int{0}, i), "index %d", i)
	}
}

func TestValidator_CrossZTypePolicy(t *testing.T) {
	policy := Policy{CrossZType: RejectCrossZType}

	t.Run("node tags", func(t *testing.T) {
		v := NewValidator(sampleRows(), nil, policy, nil)

		assert.Equal(t, ZTypeMismatch, v.CheckDragMove([]int{5}, 2))
		assert.Equal(t, ReasonNone, v.CheckDragMove([]int{7}, 2), "tile onto tile")
		assert.Equal(t, ReasonNone, v.CheckDragMove([]int{5}, 1), "into a folder")
		assert.Equal(t, ReasonNone, v.CheckDragMove([]int{2}, 4), "target is not layer-like")
	})

	t.Run("z-order record wins", func(t *testing.T) {
		ix := zorder.New(memory.New())
		require.NoError(t, ix.Add("L3", "tile"))

		v := NewValidator(sampleRows(), ix, policy, nil)
		assert.Equal(t, ReasonNone, v.CheckDragMove([]int{5}, 2))
	})
}

func TestValidator_GenericRules(t *testing.T) {
	t.Run("structural rule", func(t *testing.T) {
		var gotRows []int
		var gotBefore int
		rule := ruleFunc(func(rows []int, insertBefore int) bool {
			gotRows, gotBefore = rows, insertBefore
			return false
		})
		v := NewValidator(sampleRows(), nil, DefaultPolicy(), rule)

		assert.Equal(t, StructuralMismatch, v.CheckDragMove([]int{3}, 4))
		assert.Equal(t, []int{3}, gotRows)
		assert.Equal(t, 4, gotBefore)
	})

	t.Run("drop capability sees target and mode", func(t *testing.T) {
		var gotTarget node.Node
		var gotMode node.MoveMode
		caps := node.Capabilities{Drag: true, Drop: func(target node.Node, mode node.MoveMode) bool {
			gotTarget, gotMode = target, mode
			return false
		}}
		rows := sampleRows()
		rows[3] = node.NewGeneric("x1", "", caps, node.Position{Depth: 2, ParentID: "L2", RootID: "F"})

		v := NewValidator(rows, nil, Policy{Mode: node.ModeReparent}, nil)
		assert.Equal(t, CapabilityMismatch, v.CheckDragMove([]int{3}, 4))
		require.NotNil(t, gotTarget)
		assert.Equal(t, "x2", gotTarget.ID())
		assert.Equal(t, node.ModeReparent, gotMode)
	})
}

func TestParseIndex(t *testing.T) {
	assert.Equal(t, 3, ParseIndex("3"))
	assert.Equal(t, 0, ParseIndex(" 0 "))
	assert.Equal(t, -1, ParseIndex("-2"))
	assert.Equal(t, -1, ParseIndex("1.5"))
	assert.Equal(t, -1, ParseIndex(""))
}

func TestPolicy(t *testing.T) {
	p, err := ParseCrossZTypePolicy("Reject")
	require.NoError(t, err)
	assert.Equal(t, RejectCrossZType, p)
	assert.Equal(t, "reject", p.String())

	p, err = ParseCrossZTypePolicy("")
	require.NoError(t, err)
	assert.Equal(t, AllowCrossZType, p)

	_, err = ParseCrossZTypePolicy("sometimes")
	assert.Error(t, err)

	assert.Equal(t, AllowCrossZType, DefaultPolicy().CrossZType)
}
