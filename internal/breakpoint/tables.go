// Package breakpoint implements a three-class breakpoint manager:
// simple/echo/stepping breakpoint tables, the overwrite-style
// patch/unpatch of debuggee code, overlap policy on SET, the "recently
// removed" race-safety sets, hit dispatch, the simple-breakpoint
// step-over loop, and condition evaluation hookup, in the style of the
// breakpoint-map/original-byte-restore idiom used by tracee-process
// backends.
package breakpoint

import (
	"errors"
	"fmt"

	"github.com/GoAethereal/dbgclient/internal/backend"
	"github.com/GoAethereal/dbgclient/internal/condition"
	"github.com/GoAethereal/dbgclient/internal/wire"
)

// Bp is one installed breakpoint.
type Bp struct {
	Addr     wire.Addr
	Kind     backend.BPKind
	Original []byte
}

// Sentinel errors covering the breakpoint subsystem's error cases. Batch
// SET/REMOVE replies carry these as a per-address result code; single
// operations return them directly.
var (
	ErrDuplicateBreakpoint   = errors.New("breakpoint: duplicate breakpoint")
	ErrNoBreakpointAtAddress = errors.New("breakpoint: no breakpoint at address")
	ErrHigherBreakpointExists = errors.New("breakpoint: higher-priority breakpoint exists")
	ErrInvalidBreakpoint     = errors.New("breakpoint: invalid breakpoint")
	ErrInvalidBreakpointType = errors.New("breakpoint: invalid breakpoint type")
	ErrCouldntSetBreakpoint  = errors.New("breakpoint: could not set breakpoint")
	ErrCouldntRemoveBreakpoint = errors.New("breakpoint: could not remove breakpoint")
	ErrOriginalDataNotAvailable = errors.New("breakpoint: original data not available")
)

// Tables is the breakpoint bookkeeping: three disjoint live sets, three
// "recently removed" sets that resolve the remove-vs-pending-hit race, a
// per-thread current-hit map driving the step-over loop, and the
// per-address condition trees.
type Tables struct {
	simple   map[wire.Addr]*Bp
	echo     map[wire.Addr]*Bp
	stepping map[wire.Addr]*Bp

	recentlyRemoved [3]map[wire.Addr]struct{} // indexed by backend.BPKind

	currentHit map[backend.ThreadID]wire.Addr
	conditions map[wire.Addr]*condition.Tree
}

func newTables() *Tables {
	return &Tables{
		simple:   make(map[wire.Addr]*Bp),
		echo:     make(map[wire.Addr]*Bp),
		stepping: make(map[wire.Addr]*Bp),
		recentlyRemoved: [3]map[wire.Addr]struct{}{
			backend.BPSimple:   make(map[wire.Addr]struct{}),
			backend.BPEcho:     make(map[wire.Addr]struct{}),
			backend.BPStepping: make(map[wire.Addr]struct{}),
		},
		currentHit: make(map[backend.ThreadID]wire.Addr),
		conditions: make(map[wire.Addr]*condition.Tree),
	}
}

func (t *Tables) setFor(kind backend.BPKind) map[wire.Addr]*Bp {
	switch kind {
	case backend.BPSimple:
		return t.simple
	case backend.BPEcho:
		return t.echo
	case backend.BPStepping:
		return t.stepping
	}
	return nil
}

func (t *Tables) kindAt(addr wire.Addr) (backend.BPKind, bool) {
	if _, ok := t.simple[addr]; ok {
		return backend.BPSimple, true
	}
	if _, ok := t.echo[addr]; ok {
		return backend.BPEcho, true
	}
	if _, ok := t.stepping[addr]; ok {
		return backend.BPStepping, true
	}
	return 0, false
}

// overlapAction is the result of applying the overlap-policy table to a
// SET request.
type overlapAction int

const (
	actionInstall overlapAction = iota
	actionUpgrade
	actionReject
)

// overlapPolicy decides, given what's already installed at an address
// (none if !exists) and what is being requested, whether to install
// fresh, remove-then-install (upgrade), or reject with
// ErrDuplicateBreakpoint / ErrHigherBreakpointExists.
func overlapPolicy(existing backend.BPKind, exists bool, requested backend.BPKind) (overlapAction, error) {
	if !exists {
		return actionInstall, nil
	}
	if existing == requested {
		return actionReject, ErrDuplicateBreakpoint
	}
	switch {
	case existing == backend.BPEcho && requested == backend.BPSimple:
		return actionUpgrade, nil
	case existing == backend.BPStepping && requested == backend.BPSimple:
		return actionUpgrade, nil
	case existing == backend.BPEcho && requested == backend.BPStepping:
		return actionUpgrade, nil
	case existing == backend.BPSimple && (requested == backend.BPEcho || requested == backend.BPStepping):
		return actionReject, ErrHigherBreakpointExists
	case existing == backend.BPStepping && requested == backend.BPEcho:
		return actionReject, ErrHigherBreakpointExists
	}
	return actionReject, fmt.Errorf("breakpoint: unhandled overlap of %s over %s", requested, existing)
}
