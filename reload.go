package dbgclient

import "github.com/GoAethereal/dbgclient/internal/wire"

// reloadRingSize bounds how many recent (addr, size) pairs are remembered.
const reloadRingSize = 5

// reloadEntry is one remembered READ_MEMORY request.
type reloadEntry struct {
	addr wire.Addr
	size int
}

// reloadRing remembers the last few memory reads so the idle controller can
// re-read and push them to the peer without an explicit poll. It rotates
// like a fixed-capacity FIFO: pushing past
// capacity drops the oldest entry, and ticking walks the slots round-robin
// regardless of how full the ring currently is.
type reloadRing struct {
	entries []reloadEntry
	next    int
}

func newReloadRing() *reloadRing {
	return &reloadRing{}
}

// push records a READ_MEMORY(addr, size) request, most-recent-last.
func (r *reloadRing) push(addr wire.Addr, size int) {
	e := reloadEntry{addr: addr, size: size}
	if len(r.entries) < reloadRingSize {
		r.entries = append(r.entries, e)
		return
	}
	copy(r.entries, r.entries[1:])
	r.entries[reloadRingSize-1] = e
}

// tick returns the next entry to re-read in rotation, and false if the ring
// is empty.
func (r *reloadRing) tick() (reloadEntry, bool) {
	if len(r.entries) == 0 {
		return reloadEntry{}, false
	}
	e := r.entries[r.next%len(r.entries)]
	r.next++
	return e, true
}
