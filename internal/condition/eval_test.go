package condition_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GoAethereal/dbgclient/internal/condition"
	"github.com/GoAethereal/dbgclient/internal/wire"
)

type fakeRegisters map[string]uint64

func (r fakeRegisters) Register(name string) (uint64, bool) {
	v, ok := r[name]
	return v, ok
}

type fakeMemory map[wire.Addr][]byte

func (m fakeMemory) ReadMemory(addr wire.Addr, size int) ([]byte, error) {
	buf, ok := m[addr]
	if !ok {
		return nil, errShortRead
	}
	return buf[:size], nil
}

var errShortRead = errors.New("condition: no memory at address")

func encodeNode(t wire.NodeType, operand []byte, children ...uint32) []byte {
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

func numberPayload(v uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return buf
}

// eaxEqualsZero builds Relation("==", Identifier("EAX"), Number(0)). The
// root (Relation) is node 0 and forward-references its operands, the way
// a combiner is commonly emitted before the nodes it combines.
func eaxEqualsZero() []byte {
	var data []byte
	data = append(data, encodeNode(wire.NodeRelation, []byte{byte(condition.RelEqual)}, 1, 2)...) // 0 (root)
	data = append(data, encodeNode(wire.NodeIdentifier, []byte("EAX"))...)                         // 1
	data = append(data, encodeNode(wire.NodeNumber, numberPayload(0))...)                          // 2
	return data
}

func TestConditionFalseWhenEAXNonzero(t *testing.T) {
	tree, err := condition.Parse(eaxEqualsZero())
	require.NoError(t, err)
	ok := tree.Eval(fakeRegisters{"EAX": 1}, fakeMemory{}, 32)
	require.False(t, ok)
}

func TestConditionTrueWhenEAXZero(t *testing.T) {
	tree, err := condition.Parse(eaxEqualsZero())
	require.NoError(t, err)
	ok := tree.Eval(fakeRegisters{"EAX": 0}, fakeMemory{}, 32)
	require.True(t, ok)
}

func TestConditionUnknownRegisterIsFalse(t *testing.T) {
	tree, err := condition.Parse(eaxEqualsZero())
	require.NoError(t, err)
	ok := tree.Eval(fakeRegisters{}, fakeMemory{}, 32)
	require.False(t, ok)
}

func TestConditionMemoryRead(t *testing.T) {
	var data []byte
	data = append(data, encodeNode(wire.NodeRelation, []byte{byte(condition.RelEqual)}, 1, 4)...) // 0 (root)
	data = append(data, encodeNode(wire.NodeMemory, nil, 2)...)                                   // 1: reads *EBX
	data = append(data, encodeNode(wire.NodeSub, nil, 3)...)                                       // 2: wraps node 3
	data = append(data, encodeNode(wire.NodeIdentifier, []byte("EBX"))...)                         // 3: address source
	data = append(data, encodeNode(wire.NodeNumber, numberPayload(0x2a))...)                       // 4

	tree, err := condition.Parse(data)
	require.NoError(t, err)

	mem := fakeMemory{wire.Addr(0x8000): numberPayload(0x2a)}
	ok := tree.Eval(fakeRegisters{"EBX": 0x8000}, mem, 32)
	require.True(t, ok)
}

func TestConditionFormulaAnd(t *testing.T) {
	var data []byte
	data = append(data, encodeNode(wire.NodeFormula, []byte{byte(condition.FormulaAnd)}, 1, 2)...) // 0 (root)
	data = append(data, encodeNode(wire.NodeNumber, numberPayload(1))...)                           // 1
	data = append(data, encodeNode(wire.NodeNumber, numberPayload(0))...)                           // 2

	tree, err := condition.Parse(data)
	require.NoError(t, err)
	require.False(t, tree.Eval(fakeRegisters{}, fakeMemory{}, 32))
}
