package backend

import (
	"fmt"
	"sync"

	"github.com/GoAethereal/dbgclient/internal/wire"
)

// Mock is a table-driven fake PlatformBackend used by the controller and
// breakpoint-manager test suites: every behavior is a plain field the
// test sets up front rather than a generated stub.
type Mock struct {
	mu sync.Mutex

	Mem       map[wire.Addr][]byte
	Regs      map[ThreadID]RegisterContainer
	PC        map[ThreadID]wire.Addr
	Processes []ProcessDescription
	Files     FileListing

	PendingEvents []DebugEvent

	AddrSize    int
	Opts        DebuggerOptions
	Exceptions  []DebugException
	RegisterDes []RegisterDescription
	SpontHalt   bool

	// Fail* let a test force an error return from the matching method.
	FailReadMemory  error
	FailWriteMemory error
	FailSingleStep  error
	FailSetBP       error
	FailRemoveBP    error
	FailStoreOrig   error

	BPWidth int

	Terminated bool
	Detached   bool
}

var _ PlatformBackend = (*Mock)(nil)

// NewMock returns a ready-to-use Mock with sane zero values: an empty
// memory image, 1-byte breakpoint patch width, 64-bit addressing.
func NewMock() *Mock {
	return &Mock{
		Mem:      make(map[wire.Addr][]byte),
		Regs:     make(map[ThreadID]RegisterContainer),
		PC:       make(map[ThreadID]wire.Addr),
		AddrSize: 64,
		BPWidth:  1,
	}
}

func (m *Mock) Attach() error          { return nil }
func (m *Mock) Start(string, []string) error { return nil }
func (m *Mock) Detach() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Detached = true
	return nil
}
func (m *Mock) Terminate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Terminated = true
	return nil
}

func (m *Mock) Halt() error                       { return nil }
func (m *Mock) ResumeProcess() error               { return nil }
func (m *Mock) ResumeThread(ThreadID) error        { return nil }
func (m *Mock) SuspendThread(ThreadID) error       { return nil }

func (m *Mock) SingleStep(tid ThreadID) (ThreadID, wire.Addr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSingleStep != nil {
		return tid, 0, m.FailSingleStep
	}
	m.PC[tid]++
	return tid, m.PC[tid], nil
}

func (m *Mock) ReadMemory(addr wire.Addr, size int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailReadMemory != nil {
		return nil, m.FailReadMemory
	}
	buf := make([]byte, size)
	for i := 0; i < size; i++ {
		if b, ok := m.Mem[addr+wire.Addr(i)]; ok && len(b) > 0 {
			buf[i] = b[0]
		}
	}
	return buf, nil
}

func (m *Mock) WriteMemory(addr wire.Addr, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWriteMemory != nil {
		return m.FailWriteMemory
	}
	for i, b := range data {
		m.Mem[addr+wire.Addr(i)] = []byte{b}
	}
	return nil
}

func (m *Mock) ReadRegisters(tid ThreadID) (RegisterContainer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.Regs[tid]; ok {
		return r, nil
	}
	return RegisterContainer{TID: tid, Values: map[string]uint64{}}, nil
}

func (m *Mock) SetRegister(tid ThreadID, index int, val uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.Regs[tid]
	if !ok {
		r = RegisterContainer{TID: tid, Values: map[string]uint64{}}
	}
	r.Values[fmt.Sprintf("R%d", index)] = val
	m.Regs[tid] = r
	return nil
}

func (m *Mock) GetIP(tid ThreadID) (wire.Addr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PC[tid], nil
}

func (m *Mock) SetIP(tid ThreadID, addr wire.Addr) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PC[tid] = addr
	return nil
}

func (m *Mock) SetBPRaw(addr wire.Addr, moreToCome bool) error {
	if m.FailSetBP != nil {
		return m.FailSetBP
	}
	return nil
}

func (m *Mock) RemoveBPRaw(addr wire.Addr, original []byte, moreToCome bool) error {
	if m.FailRemoveBP != nil {
		return m.FailRemoveBP
	}
	return m.WriteMemory(addr, original)
}

func (m *Mock) StoreOriginal(addr wire.Addr) ([]byte, error) {
	if m.FailStoreOrig != nil {
		return nil, m.FailStoreOrig
	}
	return m.ReadMemory(addr, m.BreakpointByteWidth())
}

func (m *Mock) BreakpointByteWidth() int {
	if m.BPWidth == 0 {
		return 1
	}
	return m.BPWidth
}

func (m *Mock) ValidMemory(anchor wire.Addr) (wire.Addr, wire.Addr, error) {
	return 0, ^wire.Addr(0), nil
}

func (m *Mock) MemMap() ([]wire.Addr, error) { return nil, nil }

func (m *Mock) ListProcesses() ([]ProcessDescription, error) { return m.Processes, nil }

func (m *Mock) ListFiles(path string) (FileListing, error) { return m.Files, nil }

// PumpEvents drains PendingEvents exactly once, the way a test queues
// events up front and then lets the controller/manager consume them.
func (m *Mock) PumpEvents() ([]DebugEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev := m.PendingEvents
	m.PendingEvents = nil
	return ev, nil
}

// QueueEvent appends ev to PendingEvents; a test drives a scenario by
// calling this and then having the controller poll PumpEvents.
func (m *Mock) QueueEvent(ev DebugEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PendingEvents = append(m.PendingEvents, ev)
}

func (m *Mock) RegisterDescriptors() []RegisterDescription { return m.RegisterDes }
func (m *Mock) AddressSize() int                           { return m.AddrSize }
func (m *Mock) Options() DebuggerOptions                   { return m.Opts }
func (m *Mock) PlatformExceptions() []DebugException       { return m.Exceptions }
func (m *Mock) SetExceptionAction(code uint64, action ExceptionAction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Exceptions {
		if m.Exceptions[i].Code == code {
			m.Exceptions[i].DefaultAction = action
			return
		}
	}
	m.Exceptions = append(m.Exceptions, DebugException{Code: code, DefaultAction: action})
}

func (m *Mock) ResumeAfterStepping(ThreadID, wire.Addr) error { return nil }

func (m *Mock) CanSpontaneouslyHalt() bool { return m.SpontHalt }
