package wire_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GoAethereal/dbgclient/internal/wire"
)

// buildNode encodes a single flat condition-tree node.
func buildNode(t wire.NodeType, operand []byte, children ...uint32) []byte {
	buf := make([]byte, 0, 8+len(operand)+4+4*len(children))
	tmp := make([]byte, 4)
	binary.BigEndian.PutUint32(tmp, uint32(t))
	buf = append(buf, tmp...)
	binary.BigEndian.PutUint32(tmp, uint32(len(operand)))
	buf = append(buf, tmp...)
	buf = append(buf, operand...)
	binary.BigEndian.PutUint32(tmp, uint32(len(children)))
	buf = append(buf, tmp...)
	for _, c := range children {
		binary.BigEndian.PutUint32(tmp, c)
		buf = append(buf, tmp...)
	}
	return buf
}

// TestDecodeCondTreeEAXEqualsZero decodes the three nodes of
// Relation("==", Identifier("EAX"), Number(0)) with the Relation placed
// last (node 2), naming the two earlier nodes as its children. It checks
// decoding only; evaluation would take node 0 as the root.
func TestDecodeCondTreeEAXEqualsZero(t *testing.T) {
	numberPayload := make([]byte, 4)
	binary.BigEndian.PutUint32(numberPayload, 0)

	var data []byte
	data = append(data, buildNode(wire.NodeIdentifier, []byte("EAX"))...)  // node 0
	data = append(data, buildNode(wire.NodeNumber, numberPayload)...)      // node 1
	data = append(data, buildNode(wire.NodeRelation, []byte{0}, 0, 1)...)  // node 2

	nodes, err := wire.DecodeCondTree(data)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	require.Equal(t, wire.NodeIdentifier, nodes[0].Type)
	require.Equal(t, "EAX", string(nodes[0].Operand))
	require.Equal(t, wire.NodeNumber, nodes[1].Type)
	require.Equal(t, wire.NodeRelation, nodes[2].Type)
	require.Equal(t, []uint32{0, 1}, nodes[2].Children)
}

// TestDecodeCondTreeAcceptsForwardReference builds the root (Relation) as
// node 0, referencing its operands at indices 1 and 2 — the layout
// ConditionParser.cpp produces by emitting a combiner before the nodes it
// combines, and parsed correctly only because DecodeCondTree links
// children after every node in the stream has been collected.
func TestDecodeCondTreeAcceptsForwardReference(t *testing.T) {
	numberPayload := make([]byte, 4)
	binary.BigEndian.PutUint32(numberPayload, 0)

	var data []byte
	data = append(data, buildNode(wire.NodeRelation, []byte{0}, 1, 2)...)  // node 0 (root)
	data = append(data, buildNode(wire.NodeIdentifier, []byte("EAX"))...) // node 1
	data = append(data, buildNode(wire.NodeNumber, numberPayload)...)     // node 2

	nodes, err := wire.DecodeCondTree(data)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	require.Equal(t, []uint32{1, 2}, nodes[0].Children)
}

func TestDecodeCondTreeRejectsOutOfBoundsReference(t *testing.T) {
	data := buildNode(wire.NodeRelation, []byte{0}, 5)
	_, err := wire.DecodeCondTree(data)
	require.Error(t, err)
}

func TestDecodeCondTreeRejectsBadOperandLength(t *testing.T) {
	data := buildNode(wire.NodeNumber, []byte{1, 2})
	_, err := wire.DecodeCondTree(data)
	require.Error(t, err)
}

func TestDecodeCondTreeRejectsEmptyIdentifier(t *testing.T) {
	data := buildNode(wire.NodeIdentifier, nil)
	_, err := wire.DecodeCondTree(data)
	require.Error(t, err)
}
