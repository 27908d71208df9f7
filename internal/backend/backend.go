// Package backend defines the PlatformBackend capability interface: the
// boundary between the session controller/breakpoint manager and the
// OS- or engine-specific code that actually drives a debuggee. Other
// concrete implementations (remote GDB stub, kernel pipe, Windows, WinCE)
// would live
// alongside the ones here — this package ships the interface, a mock
// used by the controller/breakpoint-manager test suites, and one
// concrete implementation (native Linux ptrace).
package backend

import "github.com/GoAethereal/dbgclient/internal/wire"

// ThreadID identifies a debuggee thread. The value is entirely
// backend-defined — a remote-stub backend may use 0 as a correlation
// token when no threads are known, so 0 is an ordinary, valid ThreadID
// throughout this module rather than a sentinel.
type ThreadID uint32

// RegisterContainer is a thread's register snapshot, keyed by the same
// names RegisterDescriptors() advertises.
type RegisterContainer struct {
	TID    ThreadID
	Values map[string]uint64
}

// Register implements internal/condition.Registers so a condition tree can
// read Identifier nodes directly from a snapshot taken at breakpoint hit.
func (r RegisterContainer) Register(name string) (uint64, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// RegisterDescription describes one register the backend exposes, used to
// build the information string.
type RegisterDescription struct {
	Name     string
	Size     int // size in bytes
	Editable bool
}

// ExceptionAction is the default disposition for a platform exception:
// halt the debuggee, pass it straight to the app's own handler, or skip
// the app's handler and let the OS apply its default action.
type ExceptionAction int

const (
	ActionHalt ExceptionAction = iota
	ActionPassToApp
	ActionSkipAppHandler
)

// DebugException describes one entry of the backend's platform exception
// list.
type DebugException struct {
	Code          uint64
	Name          string
	DefaultAction ExceptionAction
}

// DebuggerOptions is the capability flag set the information string
// reports. BreakpointCount is -1 when the backend does not report a
// count; that sentinel is suppressed from the rendered information
// string rather than printed literally.
type DebuggerOptions struct {
	CanAttach               bool
	CanDetach               bool
	CanTerminate            bool
	CanMemmap               bool
	CanMultithread          bool
	CanValidMemory          bool
	CanSoftwareBreakpoint   bool
	CanHalt                 bool
	HaltBeforeCommunicating bool
	HasStack                bool
	PageSize                uint32
	CanBreakOnModuleLoad    bool
	CanBreakOnModuleUnload  bool
	CanTraceCount           bool
	BreakpointCount         int
}

// ProcessDescription is one entry of LIST_PROCESSES.
type ProcessDescription struct {
	PID  uint32
	Name string
}

// FileEntry is one entry of a LIST_FILES/LIST_FILES_PATH listing.
type FileEntry struct {
	Name  string
	IsDir bool
	Size  uint64
}

// FileListing is the result of ListFiles.
type FileListing struct {
	Path    string
	Entries []FileEntry
}

// ModuleInfo describes a loaded/unloaded module.
type ModuleInfo struct {
	Name string
	Base wire.Addr
	Size uint64
}

// ThreadState distinguishes a newly created thread's initial state.
type ThreadState int

const (
	ThreadRunning ThreadState = iota
	ThreadSuspended
)

// BPKind names one of the three breakpoint classes. Defined here
// (rather than only in internal/breakpoint) because a DebugEvent must be
// able to name which kind was hit without creating an import cycle back
// into internal/breakpoint.
type BPKind int

const (
	BPSimple BPKind = iota
	BPEcho
	BPStepping
)

func (k BPKind) String() string {
	switch k {
	case BPSimple:
		return "simple"
	case BPEcho:
		return "echo"
	case BPStepping:
		return "stepping"
	}
	return "unknown"
}

// EventKind discriminates DebugEvent's union.
type EventKind int

const (
	EventBPHit EventKind = iota
	EventExceptionBPRemoved
	EventProcessExited
	EventThreadCreated
	EventThreadExited
	EventModuleLoaded
	EventModuleUnloaded
	EventException
	EventProcessStarted
)

// DebugEvent is the discriminated union PumpEvents reports. Only the
// fields relevant to Kind are populated; the rest are zero.
type DebugEvent struct {
	Kind EventKind

	// EventBPHit / EventExceptionBPRemoved
	BPAddr wire.Addr
	BPKind BPKind

	// EventBPHit / EventThreadCreated / EventThreadExited / EventException
	TID ThreadID

	// EventBPHit
	Regs RegisterContainer

	// EventThreadCreated
	State ThreadState

	// EventModuleLoaded / EventModuleUnloaded
	Module ModuleInfo

	// EventException
	ExceptionCode uint64

	// EventProcessStarted
	StartModule ModuleInfo
	StartThread ThreadID
}

// PlatformBackend is the full capability set the session controller and
// breakpoint manager consume. Every method is required to be synchronous
// and to return promptly — the controller's only suspension points are
// transport reads/writes and PumpEvents.
type PlatformBackend interface {
	Attach() error
	Start(path string, argv []string) error
	Detach() error
	Terminate() error

	Halt() error
	ResumeProcess() error
	ResumeThread(tid ThreadID) error
	SuspendThread(tid ThreadID) error
	// SingleStep executes exactly one instruction on tid and reports the
	// (possibly different, on some backends) thread id and the resulting
	// program counter.
	SingleStep(tid ThreadID) (newTID ThreadID, newPC wire.Addr, err error)

	ReadMemory(addr wire.Addr, size int) ([]byte, error)
	WriteMemory(addr wire.Addr, data []byte) error

	ReadRegisters(tid ThreadID) (RegisterContainer, error)
	SetRegister(tid ThreadID, index int, val uint64) error
	GetIP(tid ThreadID) (wire.Addr, error)
	SetIP(tid ThreadID, addr wire.Addr) error

	// SetBPRaw patches the original bytes at addr with the backend's trap
	// instruction. moreToCome tells the backend another set/remove in the
	// same batch follows, so it may defer a cache flush until the batch
	// completes.
	SetBPRaw(addr wire.Addr, moreToCome bool) error
	// RemoveBPRaw restores original at addr.
	RemoveBPRaw(addr wire.Addr, original []byte, moreToCome bool) error
	// StoreOriginal reads and returns the BreakpointByteWidth() bytes at
	// addr before any patch is applied. The breakpoint manager calls it
	// when setting a breakpoint at an address no live breakpoint holds.
	StoreOriginal(addr wire.Addr) ([]byte, error)
	// BreakpointByteWidth is the number of original bytes a patch
	// overwrites (1 on x86, 4 on ARM).
	BreakpointByteWidth() int

	ValidMemory(anchor wire.Addr) (lo, hi wire.Addr, err error)
	MemMap() ([]wire.Addr, error)

	ListProcesses() ([]ProcessDescription, error)
	ListFiles(path string) (FileListing, error)

	// PumpEvents drains whatever the OS/debug engine has queued since the
	// last call into a batch of DebugEvents, in the order the backend
	// reported them. This is the single point where the controller
	// serializes backend-reported activity against peer commands.
	PumpEvents() ([]DebugEvent, error)

	RegisterDescriptors() []RegisterDescription
	AddressSize() int // 32 or 64
	Options() DebuggerOptions
	PlatformExceptions() []DebugException
	SetExceptionAction(code uint64, action ExceptionAction)
	// ResumeAfterStepping is the platform-specific hook the step-over loop
	// invokes after re-arming a simple breakpoint. Some backends must
	// single-step past the restored instruction rather than letting the
	// process run free, to avoid losing a coincident stepping breakpoint.
	ResumeAfterStepping(tid ThreadID, addr wire.Addr) error

	// CanSpontaneouslyHalt reports whether an unrecognized stop should be
	// treated as a user-initiated halt rather than surfaced as a generic
	// exception event.
	CanSpontaneouslyHalt() bool
}
