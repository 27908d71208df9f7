package breakpoint

import (
	"context"
	"fmt"

	"github.com/GoAethereal/dbgclient/internal/backend"
	"github.com/GoAethereal/dbgclient/internal/condition"
	"github.com/GoAethereal/dbgclient/internal/logging"
	"github.com/GoAethereal/dbgclient/internal/syncutil"
	"github.com/GoAethereal/dbgclient/internal/wire"
)

// AddrResult is one entry of a SET/REMOVE batch reply: the address and its
// per-address result code (nil means success).
type AddrResult struct {
	Addr wire.Addr
	Err  error
}

// Manager owns the three breakpoint tables, patches/unpatches the
// debuggee through a PlatformBackend, and drives hit dispatch, the
// simple-breakpoint step-over loop, and condition evaluation. All methods
// are called from the session controller's single goroutine. mu is an
// internal/syncutil.Mutex that no method locks; Manager does no locking of
// its own.
type Manager struct {
	mu     syncutil.Mutex
	tables *Tables
	be     backend.PlatformBackend
	log    *logging.Logger

	// alreadyStepped records threads whose single-step has completed
	// during a step-over, so a concurrent hit on another thread can be
	// rerouted while one thread's step is in flight. Because
	// PlatformBackend.SingleStep is required to be synchronous and return
	// promptly, a step-over never actually straddles a PumpEvents call in
	// this implementation — the set still exists so a future backend with
	// async single-step, or a test exercising that shape, has somewhere to
	// record progress.
	alreadyStepped map[backend.ThreadID]struct{}
}

// NewManager constructs a Manager bound to be.
func NewManager(be backend.PlatformBackend, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Default()
	}
	return &Manager{
		mu:             syncutil.New(),
		tables:         newTables(),
		be:             be,
		log:            log,
		alreadyStepped: make(map[backend.ThreadID]struct{}),
	}
}

// Set installs a single breakpoint of kind at addr, applying the overlap
// policy between simple, echo, and stepping breakpoints sharing an
// address.
func (m *Manager) Set(kind backend.BPKind, addr wire.Addr) error {
	return m.set(kind, addr, false)
}

// set is Set with the batch's "more to come" hint passed on to SetBPRaw.
func (m *Manager) set(kind backend.BPKind, addr wire.Addr, moreToCome bool) error {
	existingKind, exists := m.tables.kindAt(addr)
	action, err := overlapPolicy(existingKind, exists, kind)
	if action == actionReject {
		return err
	}

	// Capture the original bytes before tearing down the lower-priority
	// breakpoint being upgraded: removeLocked may fake the actual unpatch
	// for a canTraceCount==false echo breakpoint, leaving the patch byte
	// physically in memory, so storeOriginal must not re-read memory after
	// that point.
	original, err := m.storeOriginal(addr)
	if err != nil {
		return err
	}

	if action == actionUpgrade {
		if err := m.removeLocked(existingKind, addr, true); err != nil {
			return err
		}
	}
	if err := m.be.SetBPRaw(addr, moreToCome); err != nil {
		return fmt.Errorf("%w: %v", ErrCouldntSetBreakpoint, err)
	}
	m.tables.setFor(kind)[addr] = &Bp{Addr: addr, Kind: kind, Original: original}
	delete(m.tables.recentlyRemoved[kind], addr)
	return nil
}

// storeOriginal returns the pre-patch bytes at addr. When a live breakpoint
// of any kind already holds addr, its stored original is reused; otherwise
// the bytes are read from the backend, so an address set again after its
// breakpoint was removed is read again. A live breakpoint's stored
// original is never rewritten.
func (m *Manager) storeOriginal(addr wire.Addr) ([]byte, error) {
	for _, kind := range [3]backend.BPKind{backend.BPSimple, backend.BPEcho, backend.BPStepping} {
		if bp, ok := m.tables.setFor(kind)[addr]; ok {
			return bp.Original, nil
		}
	}
	original, err := m.be.StoreOriginal(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOriginalDataNotAvailable, err)
	}
	return original, nil
}

// SetBatch processes a SETBP/SETBPE/SETBPS batch in order, telling the
// backend "more to come" for every address but the last.
func (m *Manager) SetBatch(kind backend.BPKind, addrs []wire.Addr) []AddrResult {
	results := make([]AddrResult, len(addrs))
	for i, addr := range addrs {
		results[i] = AddrResult{Addr: addr, Err: m.set(kind, addr, i != len(addrs)-1)}
	}
	return results
}

// Remove tears down a single breakpoint of kind at addr, moving it to the
// matching "recently removed" set and scrubbing any thread parked on it.
func (m *Manager) Remove(kind backend.BPKind, addr wire.Addr) error {
	return m.removeLocked(kind, addr, false)
}

func (m *Manager) removeLocked(kind backend.BPKind, addr wire.Addr, moreToCome bool) error {
	set := m.tables.setFor(kind)
	bp, ok := set[addr]
	if !ok {
		return ErrInvalidBreakpoint
	}

	// A canTraceCount==false echo breakpoint has already been consumed by
	// the backend; faking success avoids issuing a remove against a patch
	// that is no longer there.
	faked := kind == backend.BPEcho && !m.be.Options().CanTraceCount
	if !faked {
		if err := m.be.RemoveBPRaw(addr, bp.Original, moreToCome); err != nil {
			return fmt.Errorf("%w: %v", ErrCouldntRemoveBreakpoint, err)
		}
	}

	delete(set, addr)
	m.tables.recentlyRemoved[kind][addr] = struct{}{}
	delete(m.tables.conditions, addr)
	for tid, a := range m.tables.currentHit {
		if a == addr {
			delete(m.tables.currentHit, tid)
		}
	}
	return nil
}

// RemoveBatch processes a REMBP/REMBPE/REMBPS batch in order.
func (m *Manager) RemoveBatch(kind backend.BPKind, addrs []wire.Addr) []AddrResult {
	results := make([]AddrResult, len(addrs))
	for i, addr := range addrs {
		results[i] = AddrResult{Addr: addr, Err: m.removeLocked(kind, addr, i != len(addrs)-1)}
	}
	return results
}

// ClearAll removes every breakpoint of every kind, used by DETACH/
// TERMINATE.
func (m *Manager) ClearAll() []AddrResult {
	var all []wire.Addr
	kinds := []backend.BPKind{backend.BPSimple, backend.BPEcho, backend.BPStepping}
	var results []AddrResult
	for _, kind := range kinds {
		for addr := range m.tables.setFor(kind) {
			all = append(all, addr)
		}
	}
	for i, addr := range all {
		kind, ok := m.tables.kindAt(addr)
		if !ok {
			continue
		}
		results = append(results, AddrResult{Addr: addr, Err: m.removeLocked(kind, addr, i != len(all)-1)})
	}
	return results
}

// SetCondition attaches a condition tree to the simple breakpoint at addr,
// replacing any prior tree.
func (m *Manager) SetCondition(addr wire.Addr, data []byte) error {
	if _, ok := m.tables.simple[addr]; !ok {
		return ErrNoBreakpointAtAddress
	}
	tree, err := condition.Parse(data)
	if err != nil {
		return fmt.Errorf("breakpoint: invalid condition tree: %w", err)
	}
	m.tables.conditions[addr] = tree
	return nil
}

// ClearRecentlyRemoved empties the three "recently removed" sets, called
// at the natural bounding points for forgetting stale removals: module
// unload, detach, and the next halt.
func (m *Manager) ClearRecentlyRemoved() {
	for _, kind := range [3]backend.BPKind{backend.BPSimple, backend.BPEcho, backend.BPStepping} {
		m.tables.recentlyRemoved[kind] = make(map[wire.Addr]struct{})
	}
}

// PruneModule removes every breakpoint (of any kind) in [base, base+size)
// without touching debuggee memory or the peer — the unload event itself
// is the notification.
func (m *Manager) PruneModule(base wire.Addr, size uint64) {
	hi := base + wire.Addr(size)
	kinds := []backend.BPKind{backend.BPSimple, backend.BPEcho, backend.BPStepping}
	for _, kind := range kinds {
		set := m.tables.setFor(kind)
		for addr := range set {
			if addr >= base && addr < hi {
				delete(set, addr)
				delete(m.tables.conditions, addr)
			}
		}
	}
	for tid, a := range m.tables.currentHit {
		if a >= base && a < hi {
			delete(m.tables.currentHit, tid)
		}
	}
}

// HandleEvent runs the hit-dispatch algorithm against a raw
// backend.DebugEvent. Most event kinds pass through unchanged; BpHit is
// resolved against the tables to find the actual breakpoint class (the
// raw event's own BPKind field is ignored — only the tables know what's
// really installed at that address) and may produce zero, one, or more
// outgoing events. ModuleUnloaded additionally prunes the tables as a
// side effect before passing through.
func (m *Manager) HandleEvent(ctx context.Context, ev backend.DebugEvent) ([]backend.DebugEvent, error) {
	switch ev.Kind {
	case backend.EventBPHit:
		return m.dispatchHit(ev.BPAddr, ev.TID)
	case backend.EventModuleUnloaded:
		m.PruneModule(ev.Module.Base, ev.Module.Size)
		m.ClearRecentlyRemoved()
		return []backend.DebugEvent{ev}, nil
	default:
		return []backend.DebugEvent{ev}, nil
	}
}

// dispatchHit implements the four-way hit-dispatch rule: echo wins over
// stepping, stepping wins over simple, and an address matching none of
// the tables is either a spontaneous halt or a generic exception.
func (m *Manager) dispatchHit(addr wire.Addr, tid backend.ThreadID) ([]backend.DebugEvent, error) {
	_, recentEcho := m.tables.recentlyRemoved[backend.BPEcho][addr]
	if _, ok := m.tables.echo[addr]; ok || recentEcho {
		return m.echoHit(addr, tid)
	}
	_, recentStepping := m.tables.recentlyRemoved[backend.BPStepping][addr]
	if _, ok := m.tables.stepping[addr]; ok || recentStepping {
		return m.steppingHit(addr, tid)
	}
	_, recentSimple := m.tables.recentlyRemoved[backend.BPSimple][addr]
	if _, ok := m.tables.simple[addr]; ok || recentSimple {
		return m.simpleHit(addr, tid)
	}
	if m.be.CanSpontaneouslyHalt() {
		return nil, nil
	}
	return []backend.DebugEvent{{Kind: backend.EventException, TID: tid, ExceptionCode: 0}}, nil
}

func (m *Manager) rewindAndSnapshot(addr wire.Addr, tid backend.ThreadID) (backend.RegisterContainer, error) {
	if err := m.be.SetIP(tid, addr); err != nil {
		return backend.RegisterContainer{}, err
	}
	return m.be.ReadRegisters(tid)
}

// simpleHit implements the Simple breakpoint hit algorithm: rewind,
// snapshot, evaluate condition, unpatch, then either park the thread and
// notify the peer (condition true) or step over transparently (condition
// false or absent).
func (m *Manager) simpleHit(addr wire.Addr, tid backend.ThreadID) ([]backend.DebugEvent, error) {
	bp, ok := m.tables.simple[addr]
	if !ok {
		// Already removed, but recentlyRemoved still names it: the
		// race-safety rule fires the hit exactly once anyway. The patch
		// is gone, so there is no condition to check and nothing to park.
		regs, err := m.rewindAndSnapshot(addr, tid)
		if err != nil {
			return nil, err
		}
		return []backend.DebugEvent{{Kind: backend.EventBPHit, BPKind: backend.BPSimple, BPAddr: addr, TID: tid, Regs: regs}}, nil
	}
	regs, err := m.rewindAndSnapshot(addr, tid)
	if err != nil {
		return nil, err
	}

	met := true
	if tree, ok := m.tables.conditions[addr]; ok {
		met = tree.Eval(regs, m.be, m.be.AddressSize())
	}

	if err := m.be.RemoveBPRaw(addr, bp.Original, false); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCouldntRemoveBreakpoint, err)
	}

	if met {
		m.tables.currentHit[tid] = addr
		return []backend.DebugEvent{{Kind: backend.EventBPHit, BPKind: backend.BPSimple, BPAddr: addr, TID: tid, Regs: regs}}, nil
	}

	// Condition false: never wake the peer. Step over right now.
	if err := m.stepOverAndRearm(tid, addr); err != nil {
		return nil, err
	}
	if err := m.be.ResumeThread(tid); err != nil {
		return nil, err
	}
	return nil, nil
}

// echoHit implements the Echo breakpoint hit algorithm.
// PlatformBackend.Options().CanTraceCount == true means the backend can
// re-arm internally and the peer is never bothered; CanTraceCount ==
// false means the backend already consumed the trap and the peer must
// re-arm explicitly.
func (m *Manager) echoHit(addr wire.Addr, tid backend.ThreadID) ([]backend.DebugEvent, error) {
	regs, err := m.rewindAndSnapshot(addr, tid)
	if err != nil {
		return nil, err
	}

	if m.be.Options().CanTraceCount {
		bp, ok := m.tables.echo[addr]
		if ok {
			if err := m.be.RemoveBPRaw(addr, bp.Original, false); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCouldntRemoveBreakpoint, err)
			}
			if _, _, err := m.be.SingleStep(tid); err != nil {
				return nil, err
			}
			if err := m.be.SetBPRaw(addr, false); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCouldntSetBreakpoint, err)
			}
			if err := m.be.ResumeThread(tid); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	// Backend consumed the echo breakpoint; it never survives the hit
	// unless re-armed by the peer.
	delete(m.tables.echo, addr)
	m.tables.recentlyRemoved[backend.BPEcho][addr] = struct{}{}
	return []backend.DebugEvent{{Kind: backend.EventBPHit, BPKind: backend.BPEcho, BPAddr: addr, TID: tid, Regs: regs}}, nil
}

// steppingHit implements the Stepping breakpoint hit algorithm: clear
// every stepping breakpoint, not just the one hit.
func (m *Manager) steppingHit(addr wire.Addr, tid backend.ThreadID) ([]backend.DebugEvent, error) {
	regs, err := m.rewindAndSnapshot(addr, tid)
	if err != nil {
		return nil, err
	}
	for a, bp := range m.tables.stepping {
		if err := m.be.RemoveBPRaw(a, bp.Original, a != addr); err != nil {
			m.log.Warn("stepping breakpoint cleanup failed", "addr", fmt.Sprintf("%#x", a), "err", err)
		}
		delete(m.tables.stepping, a)
		m.tables.recentlyRemoved[backend.BPStepping][a] = struct{}{}
	}
	return []backend.DebugEvent{{Kind: backend.EventBPHit, BPKind: backend.BPStepping, BPAddr: addr, TID: tid, Regs: regs}}, nil
}

// Resume implements the simple-hit step-over loop driven by a RESUME
// command for thread tid.
func (m *Manager) Resume(tid backend.ThreadID) error {
	addr, parked := m.tables.currentHit[tid]
	if !parked {
		return m.be.ResumeProcess()
	}
	if err := m.stepOverAndRearm(tid, addr); err != nil {
		return err
	}
	return m.be.ResumeProcess()
}

// stepOverAndRearm executes the original instruction at addr on tid and
// re-installs the simple breakpoint's patch. It does not itself resume
// the thread or process — the caller decides whether that means
// ResumeThread (transparent step-over on a false condition) or
// ResumeProcess (peer-issued RESUME).
func (m *Manager) stepOverAndRearm(tid backend.ThreadID, addr wire.Addr) error {
	if _, _, err := m.be.SingleStep(tid); err != nil {
		return fmt.Errorf("breakpoint: single-step during step-over: %w", err)
	}
	m.alreadyStepped[tid] = struct{}{}

	if err := m.be.SetBPRaw(addr, false); err != nil {
		return fmt.Errorf("%w: %v", ErrCouldntSetBreakpoint, err)
	}
	delete(m.tables.currentHit, tid)
	return m.be.ResumeAfterStepping(tid, addr)
}

// CurrentHit reports the address thread tid is parked on, if any. Exposed
// for tests asserting that the number of parked threads never exceeds the
// number of live threads.
func (m *Manager) CurrentHit(tid backend.ThreadID) (wire.Addr, bool) {
	addr, ok := m.tables.currentHit[tid]
	return addr, ok
}

// Snapshot returns the live addresses in each table, for tests asserting
// that the three tables stay pairwise disjoint.
func (m *Manager) Snapshot() (simple, echo, stepping []wire.Addr) {
	for a := range m.tables.simple {
		simple = append(simple, a)
	}
	for a := range m.tables.echo {
		echo = append(echo, a)
	}
	for a := range m.tables.stepping {
		stepping = append(stepping, a)
	}
	return
}

// InRecentlyRemoved reports whether addr is in kind's recently-removed
// set, for tests covering the remove-vs-pending-hit race.
func (m *Manager) InRecentlyRemoved(kind backend.BPKind, addr wire.Addr) bool {
	_, ok := m.tables.recentlyRemoved[kind][addr]
	return ok
}
