package dbgclient

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GoAethereal/dbgclient/internal/wire"
)

func TestReloadRingEmpty(t *testing.T) {
	r := newReloadRing()
	_, ok := r.tick()
	assert.False(t, ok)
}

func TestReloadRingRotates(t *testing.T) {
	r := newReloadRing()
	r.push(wire.Addr(0x1000), 4)
	r.push(wire.Addr(0x2000), 8)

	first, ok := r.tick()
	assert.True(t, ok)
	assert.Equal(t, wire.Addr(0x1000), first.addr)

	second, ok := r.tick()
	assert.True(t, ok)
	assert.Equal(t, wire.Addr(0x2000), second.addr)

	third, ok := r.tick()
	assert.True(t, ok)
	assert.Equal(t, wire.Addr(0x1000), third.addr, "ring wraps back to the first entry")
}

func TestReloadRingCapsAtFive(t *testing.T) {
	r := newReloadRing()
	for i := 0; i < 7; i++ {
		r.push(wire.Addr(0x1000+i), 4)
	}
	assert.Len(t, r.entries, reloadRingSize)
	// Oldest two pushes (0x1000, 0x1001) were evicted; the ring now holds
	// 0x1002..0x1006.
	e, _ := r.tick()
	assert.Equal(t, wire.Addr(0x1002), e.addr)
}
