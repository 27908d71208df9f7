// Package condition implements the boolean condition-tree expressions
// attached to simple breakpoints. Trees are parsed once from the flat
// wire format (internal/wire.DecodeCondTree) into an arena of nodes
// indexed by position — never by pointer — so that freeing a tree is
// simply dropping the slice.
package condition

import (
	"fmt"

	"github.com/GoAethereal/dbgclient/internal/wire"
)

// Tree is a parsed, ready-to-evaluate condition expression. Node 0 is
// always the root — a node's children may name any index in the node
// list, including one that appears later in the stream. Cycle safety is
// enforced at evaluation time (Eval), not by a child-before-parent
// ordering constraint on indices.
type Tree struct {
	nodes []wire.CondNode
}

// Parse decodes the flat SET_BREAKPOINT_CONDITION wire payload into a
// Tree. It does not evaluate anything — evaluation happens per-hit via
// Eval.
func Parse(data []byte) (*Tree, error) {
	nodes, err := wire.DecodeCondTree(data)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("condition: empty condition tree")
	}
	return &Tree{nodes: nodes}, nil
}

func (t *Tree) root() wire.CondNode {
	return t.nodes[0]
}
