//go:build linux

package backend

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/GoAethereal/dbgclient/internal/logging"
	"github.com/GoAethereal/dbgclient/internal/wire"
)

// x86TrapInstruction is the single INT3 byte ptrace-based breakpoints
// overwrite at the target address, a one-byte patch restored verbatim
// on removal.
var x86TrapInstruction = []byte{0xCC}

// regOrder fixes the integer register-descriptor order reported to the
// peer and the index SET_REGISTER's regIndex argument addresses. It
// mirrors the field order of unix.PtraceRegs on amd64.
var regOrder = []string{
	"R15", "R14", "R13", "R12", "RBP", "RBX", "R11", "R10", "R9", "R8",
	"RAX", "RCX", "RDX", "RSI", "RDI", "ORIG_RAX", "RIP", "CS", "EFLAGS",
	"RSP", "SS", "FS_BASE", "GS_BASE", "DS", "ES", "FS", "GS",
}

// Native is a PlatformBackend driving a real process via Linux ptrace(2).
// It is the one concrete backend here, standing as proof that
// internal/breakpoint and the session controller are genuinely
// platform-abstract; a GDB-remote or Windows backend would implement the
// same interface without touching either.
type Native struct {
	mu     sync.Mutex
	pid    int
	tids   map[ThreadID]int
	logger *logging.Logger

	exceptionActions map[uint64]ExceptionAction
}

var _ PlatformBackend = (*Native)(nil)

// NewNative creates a Native backend bound to no process yet; Start or a
// future attach-by-pid call populates pid.
func NewNative(logger *logging.Logger) *Native {
	if logger == nil {
		logger = logging.Default()
	}
	return &Native{
		tids:             make(map[ThreadID]int),
		logger:           logger,
		exceptionActions: make(map[uint64]ExceptionAction),
	}
}

// Start launches path with argv under ptrace, the way a Linux tracer
// always must: fork via exec.Cmd with Ptrace:true in SysProcAttr so the
// child raises SIGTRAP on exec, then the parent waits for that trap
// before doing anything else.
func (n *Native) Start(path string, argv []string) error {
	runtime.LockOSThread()

	cmd := exec.Command(path, argv...)
	cmd.SysProcAttr = &unix.SysProcAttr{Ptrace: true}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("backend: start %s: %w", path, err)
	}

	var ws unix.WaitStatus
	if _, err := unix.Wait4(cmd.Process.Pid, &ws, 0, nil); err != nil {
		return fmt.Errorf("backend: wait for initial trap: %w", err)
	}

	n.mu.Lock()
	n.pid = cmd.Process.Pid
	n.tids[ThreadID(n.pid)] = n.pid
	n.mu.Unlock()
	return nil
}

func (n *Native) Attach() error {
	n.mu.Lock()
	pid := n.pid
	n.mu.Unlock()
	if pid == 0 {
		return fmt.Errorf("backend: no target process selected")
	}
	if err := unix.PtraceAttach(pid); err != nil {
		return fmt.Errorf("backend: ptrace attach %d: %w", pid, err)
	}
	var ws unix.WaitStatus
	_, err := unix.Wait4(pid, &ws, 0, nil)
	return err
}

func (n *Native) Detach() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, pid := range n.tids {
		if err := unix.PtraceDetach(pid); err != nil {
			return fmt.Errorf("backend: ptrace detach %d: %w", pid, err)
		}
	}
	return nil
}

func (n *Native) Terminate() error {
	n.mu.Lock()
	pid := n.pid
	n.mu.Unlock()
	if pid == 0 {
		return nil
	}
	return unix.Kill(pid, unix.SIGKILL)
}

func (n *Native) Halt() error {
	n.mu.Lock()
	pid := n.pid
	n.mu.Unlock()
	return unix.Kill(pid, unix.SIGSTOP)
}

func (n *Native) ResumeProcess() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, pid := range n.tids {
		if err := unix.PtraceCont(pid, 0); err != nil {
			return err
		}
	}
	return nil
}

func (n *Native) ResumeThread(tid ThreadID) error {
	n.mu.Lock()
	pid, ok := n.tids[tid]
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("backend: unknown thread %d", tid)
	}
	return unix.PtraceCont(pid, 0)
}

func (n *Native) SuspendThread(tid ThreadID) error {
	n.mu.Lock()
	pid, ok := n.tids[tid]
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("backend: unknown thread %d", tid)
	}
	return unix.Tgkill(n.pid, pid, unix.SIGSTOP)
}

func (n *Native) SingleStep(tid ThreadID) (ThreadID, wire.Addr, error) {
	n.mu.Lock()
	pid, ok := n.tids[tid]
	n.mu.Unlock()
	if !ok {
		return tid, 0, fmt.Errorf("backend: unknown thread %d", tid)
	}
	if err := unix.PtraceSingleStep(pid); err != nil {
		return tid, 0, err
	}
	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return tid, 0, err
	}
	pc, err := n.GetIP(tid)
	return tid, pc, err
}

func (n *Native) ReadMemory(addr wire.Addr, size int) ([]byte, error) {
	n.mu.Lock()
	pid := n.pid
	n.mu.Unlock()
	buf := make([]byte, size)
	got, err := unix.PtracePeekData(pid, uintptr(addr), buf)
	if err != nil {
		return nil, fmt.Errorf("backend: read memory at %#x: %w", addr, err)
	}
	return buf[:got], nil
}

func (n *Native) WriteMemory(addr wire.Addr, data []byte) error {
	n.mu.Lock()
	pid := n.pid
	n.mu.Unlock()
	_, err := unix.PtracePokeData(pid, uintptr(addr), data)
	if err != nil {
		return fmt.Errorf("backend: write memory at %#x: %w", addr, err)
	}
	return nil
}

func (n *Native) ReadRegisters(tid ThreadID) (RegisterContainer, error) {
	n.mu.Lock()
	pid, ok := n.tids[tid]
	n.mu.Unlock()
	if !ok {
		return RegisterContainer{}, fmt.Errorf("backend: unknown thread %d", tid)
	}
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return RegisterContainer{}, fmt.Errorf("backend: get registers: %w", err)
	}
	return RegisterContainer{TID: tid, Values: regsToMap(&regs)}, nil
}

func (n *Native) SetRegister(tid ThreadID, index int, val uint64) error {
	n.mu.Lock()
	pid, ok := n.tids[tid]
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("backend: unknown thread %d", tid)
	}
	if index < 0 || index >= len(regOrder) {
		return fmt.Errorf("backend: invalid register index %d", index)
	}
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return err
	}
	setRegByIndex(&regs, index, val)
	return unix.PtraceSetRegs(pid, &regs)
}

func (n *Native) GetIP(tid ThreadID) (wire.Addr, error) {
	r, err := n.ReadRegisters(tid)
	if err != nil {
		return 0, err
	}
	return wire.Addr(r.Values["RIP"]), nil
}

func (n *Native) SetIP(tid ThreadID, addr wire.Addr) error {
	n.mu.Lock()
	pid, ok := n.tids[tid]
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("backend: unknown thread %d", tid)
	}
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return err
	}
	regs.Rip = uint64(addr)
	return unix.PtraceSetRegs(pid, &regs)
}

func (n *Native) SetBPRaw(addr wire.Addr, moreToCome bool) error {
	return n.WriteMemory(addr, x86TrapInstruction)
}

func (n *Native) RemoveBPRaw(addr wire.Addr, original []byte, moreToCome bool) error {
	return n.WriteMemory(addr, original)
}

func (n *Native) StoreOriginal(addr wire.Addr) ([]byte, error) {
	return n.ReadMemory(addr, n.BreakpointByteWidth())
}

func (n *Native) BreakpointByteWidth() int { return len(x86TrapInstruction) }

func (n *Native) ValidMemory(anchor wire.Addr) (wire.Addr, wire.Addr, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/maps", n.pid))
	if err != nil {
		return 0, 0, err
	}
	lo, hi, ok := findMappingContaining(string(data), uint64(anchor))
	if !ok {
		return 0, 0, fmt.Errorf("backend: %#x is not in any mapped region", anchor)
	}
	return wire.Addr(lo), wire.Addr(hi), nil
}

func (n *Native) MemMap() ([]wire.Addr, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/maps", n.pid))
	if err != nil {
		return nil, err
	}
	return parseMapBases(string(data)), nil
}

func (n *Native) ListProcesses() ([]ProcessDescription, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}
	var procs []ProcessDescription
	for _, e := range entries {
		pid, ok := parsePid(e.Name())
		if !ok {
			continue
		}
		name, _ := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
		procs = append(procs, ProcessDescription{PID: uint32(pid), Name: trimNewline(string(name))})
	}
	return procs, nil
}

func (n *Native) ListFiles(path string) (FileListing, error) {
	if path == "" {
		path = "/"
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return FileListing{}, err
	}
	listing := FileListing{Path: path}
	for _, e := range entries {
		info, err := e.Info()
		size := uint64(0)
		if err == nil {
			size = uint64(info.Size())
		}
		listing.Entries = append(listing.Entries, FileEntry{
			Name:  e.Name(),
			IsDir: e.IsDir(),
			Size:  size,
		})
	}
	return listing, nil
}

// PumpEvents reaps any stopped child with a non-blocking wait4, the way a
// single-threaded ptrace tracer must poll rather than block forever.
func (n *Native) PumpEvents() ([]DebugEvent, error) {
	n.mu.Lock()
	pid := n.pid
	n.mu.Unlock()
	if pid == 0 {
		return nil, nil
	}
	var ws unix.WaitStatus
	wpid, err := unix.Wait4(pid, &ws, unix.WNOHANG, nil)
	if err != nil || wpid == 0 {
		return nil, nil
	}
	switch {
	case ws.Exited():
		return []DebugEvent{{Kind: EventProcessExited}}, nil
	case ws.Stopped() && ws.StopSignal() == unix.SIGTRAP:
		tid := ThreadID(wpid)
		pc, _ := n.GetIP(tid)
		regs, _ := n.ReadRegisters(tid)
		return []DebugEvent{{Kind: EventBPHit, BPAddr: pc - 1, TID: tid, Regs: regs}}, nil
	case ws.Stopped():
		tid := ThreadID(wpid)
		return []DebugEvent{{Kind: EventException, TID: tid, ExceptionCode: uint64(ws.StopSignal())}}, nil
	}
	return nil, nil
}

func (n *Native) RegisterDescriptors() []RegisterDescription {
	descs := make([]RegisterDescription, 0, len(regOrder))
	for _, name := range regOrder {
		descs = append(descs, RegisterDescription{Name: name, Size: 8, Editable: name != "CS" && name != "SS"})
	}
	return descs
}

func (n *Native) AddressSize() int { return 64 }

func (n *Native) Options() DebuggerOptions {
	return DebuggerOptions{
		CanAttach:               true,
		CanDetach:               true,
		CanTerminate:            true,
		CanMemmap:               true,
		CanMultithread:          true,
		CanValidMemory:          true,
		CanSoftwareBreakpoint:   true,
		CanHalt:                true,
		HaltBeforeCommunicating: false,
		HasStack:                true,
		PageSize:                4096,
		CanBreakOnModuleLoad:    false,
		CanBreakOnModuleUnload:  false,
		CanTraceCount:           true,
		BreakpointCount:         -1,
	}
}

func (n *Native) PlatformExceptions() []DebugException {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]DebugException, 0, len(n.exceptionActions))
	for code, action := range n.exceptionActions {
		out = append(out, DebugException{Code: code, DefaultAction: action})
	}
	return out
}

func (n *Native) SetExceptionAction(code uint64, action ExceptionAction) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.exceptionActions[code] = action
}

// ResumeAfterStepping does nothing on Native. It neither re-arms a
// coincident stepping breakpoint itself nor raises a synthetic hit for it:
// a stepping breakpoint still patched at the next instruction traps on its
// own once the process resumes, and the next PumpEvents reports that
// SIGTRAP.
func (n *Native) ResumeAfterStepping(tid ThreadID, addr wire.Addr) error {
	return nil
}

func (n *Native) CanSpontaneouslyHalt() bool { return true }

func regsToMap(regs *unix.PtraceRegs) map[string]uint64 {
	return map[string]uint64{
		"R15": regs.R15, "R14": regs.R14, "R13": regs.R13, "R12": regs.R12,
		"RBP": regs.Rbp, "RBX": regs.Rbx, "R11": regs.R11, "R10": regs.R10,
		"R9": regs.R9, "R8": regs.R8, "RAX": regs.Rax, "RCX": regs.Rcx,
		"RDX": regs.Rdx, "RSI": regs.Rsi, "RDI": regs.Rdi,
		"ORIG_RAX": regs.Orig_rax, "RIP": regs.Rip, "CS": regs.Cs,
		"EFLAGS": regs.Eflags, "RSP": regs.Rsp, "SS": regs.Ss,
		"FS_BASE": regs.Fs_base, "GS_BASE": regs.Gs_base,
		"DS": regs.Ds, "ES": regs.Es, "FS": regs.Fs, "GS": regs.Gs,
	}
}

func setRegByIndex(regs *unix.PtraceRegs, index int, val uint64) {
	switch regOrder[index] {
	case "R15":
		regs.R15 = val
	case "R14":
		regs.R14 = val
	case "R13":
		regs.R13 = val
	case "R12":
		regs.R12 = val
	case "RBP":
		regs.Rbp = val
	case "RBX":
		regs.Rbx = val
	case "RAX":
		regs.Rax = val
	case "RCX":
		regs.Rcx = val
	case "RDX":
		regs.Rdx = val
	case "RSI":
		regs.Rsi = val
	case "RDI":
		regs.Rdi = val
	case "RIP":
		regs.Rip = val
	case "RSP":
		regs.Rsp = val
	case "EFLAGS":
		regs.Eflags = val
	}
}

// findMappingContaining scans the text of /proc/<pid>/maps (one
// "lo-hi perms ..." line per VMA) for the region containing addr.
func findMappingContaining(maps string, addr uint64) (lo, hi uint64, ok bool) {
	for _, line := range strings.Split(maps, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		bounds := strings.SplitN(fields[0], "-", 2)
		if len(bounds) != 2 {
			continue
		}
		lo, err1 := strconv.ParseUint(bounds[0], 16, 64)
		hi, err2 := strconv.ParseUint(bounds[1], 16, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		if addr >= lo && addr < hi {
			return lo, hi, true
		}
	}
	return 0, 0, false
}

// parseMapBases extracts every VMA's start address from /proc/<pid>/maps
// text for MEMMAP.
func parseMapBases(maps string) []wire.Addr {
	var bases []wire.Addr
	for _, line := range strings.Split(maps, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		bounds := strings.SplitN(fields[0], "-", 2)
		if len(bounds) != 2 {
			continue
		}
		lo, err := strconv.ParseUint(bounds[0], 16, 64)
		if err != nil {
			continue
		}
		bases = append(bases, wire.Addr(lo))
	}
	return bases
}

func parsePid(name string) (int, bool) {
	pid, err := strconv.Atoi(name)
	if err != nil {
		return 0, false
	}
	return pid, true
}

func trimNewline(s string) string {
	return strings.TrimRight(s, "\n")
}
