package dbgclient

import (
	"github.com/GoAethereal/dbgclient/internal/backend"
	"github.com/GoAethereal/dbgclient/internal/breakpoint"
	"github.com/GoAethereal/dbgclient/internal/wire"
)

// replyPairs is a fixed table, keyed by request command, of the matching
// (success, error) reply commands. Every
// post-attach request command the schema table (internal/wire/schema.go)
// recognizes has an entry here except the handshake-only commands
// (REQUEST_TARGET, QUERY_DEBUGGER_EVENT_SETTINGS, ATTACH_SUCCESS,
// ATTACH_ERROR), which handshake.go drives directly rather than through
// this table.
var replyPairs = map[wire.Command][2]wire.Command{
	wire.CmdClearAll:                 {wire.CmdClearAllSucc, wire.CmdClearAllErr},
	wire.CmdDetach:                   {wire.CmdDetachSucc, wire.CmdDetachErr},
	wire.CmdTerminate:                {wire.CmdTerminateSucc, wire.CmdTerminateErr},
	wire.CmdMemMap:                   {wire.CmdMemMapSucc, wire.CmdMemMapErr},
	wire.CmdHalt:                     {wire.CmdHaltSucc, wire.CmdHaltErr},
	wire.CmdListProcesses:            {wire.CmdListProcessesSucc, wire.CmdListProcessesErr},
	wire.CmdCancelTargetSelection:    {wire.CmdCancelTargetSelectionSucc, wire.CmdCancelTargetSelectionErr},
	wire.CmdListFiles:                {wire.CmdListFilesSucc, wire.CmdListFilesErr},
	wire.CmdRegisters:                {wire.CmdRegistersSucc, wire.CmdRegistersErr},
	wire.CmdResume:                   {wire.CmdResumeSucc, wire.CmdResumeErr},
	wire.CmdSingleStep:               {wire.CmdSingleStepSucc, wire.CmdSingleStepErr},
	wire.CmdSelectProcess:            {wire.CmdSelectProcessSucc, wire.CmdSelectProcessErr},
	wire.CmdSuspendThread:            {wire.CmdSuspendThreadSucc, wire.CmdSuspendThreadErr},
	wire.CmdResumeThread:             {wire.CmdResumeThreadSucc, wire.CmdResumeThreadErr},
	wire.CmdSetActiveThread:          {wire.CmdSetActiveThreadSucc, wire.CmdSetActiveThreadErr},
	wire.CmdSetBP:                    {wire.CmdSetBPSucc, wire.CmdSetBPErr},
	wire.CmdSetBPE:                   {wire.CmdSetBPESucc, wire.CmdSetBPEErr},
	wire.CmdSetBPS:                   {wire.CmdSetBPSSucc, wire.CmdSetBPSErr},
	wire.CmdRemBP:                    {wire.CmdRemBPSucc, wire.CmdRemBPErr},
	wire.CmdRemBPE:                   {wire.CmdRemBPESucc, wire.CmdRemBPEErr},
	wire.CmdRemBPS:                   {wire.CmdRemBPSSucc, wire.CmdRemBPSErr},
	wire.CmdValidMem:                 {wire.CmdValidMemSucc, wire.CmdValidMemErr},
	wire.CmdReadMemory:               {wire.CmdReadMemorySucc, wire.CmdReadMemoryErr},
	wire.CmdSetRegister:              {wire.CmdSetRegisterSucc, wire.CmdSetRegisterErr},
	wire.CmdSearch:                   {wire.CmdSearchSucc, wire.CmdSearchErr},
	wire.CmdListFilesPath:            {wire.CmdListFilesPathSucc, wire.CmdListFilesPathErr},
	wire.CmdSelectFile:               {wire.CmdSelectFileSucc, wire.CmdSelectFileErr},
	wire.CmdSetBreakpointCondition:   {wire.CmdSetBreakpointConditionSucc, wire.CmdSetBreakpointConditionErr},
	wire.CmdWriteMemory:              {wire.CmdWriteMemorySucc, wire.CmdWriteMemoryErr},
	wire.CmdSetExceptionsOptions:     {wire.CmdSetExceptionsOptionsSucc, wire.CmdSetExceptionsOptionsErr},
	wire.CmdSetDebuggerEventSettings: {wire.CmdSetDebuggerEventSettingsSucc, wire.CmdSetDebuggerEventSettingsErr},
}

func successReplyFor(cmd wire.Command) (wire.Command, bool) {
	p, ok := replyPairs[cmd]
	if !ok {
		return 0, false
	}
	return p[0], true
}

func errorReplyFor(cmd wire.Command) (wire.Command, bool) {
	p, ok := replyPairs[cmd]
	if !ok {
		return 0, false
	}
	return p[1], true
}

// handle runs one peer-issued command's business logic, returning the
// success reply's argument list or an error to be converted into the
// matching error reply's status code.
func (c *Controller) handle(cmd wire.Command, args []wire.Argument) ([]wire.Argument, error) {
	switch cmd {
	case wire.CmdClearAll:
		return encodeAddrResults(c.bp.ClearAll()), nil
	case wire.CmdDetach:
		return c.handleDetach()
	case wire.CmdTerminate:
		return c.handleTerminate()
	case wire.CmdMemMap:
		return c.handleMemMap()
	case wire.CmdHalt:
		c.bp.ClearRecentlyRemoved()
		return nil, c.be.Halt()
	case wire.CmdListProcesses:
		return c.handleListProcesses()
	case wire.CmdCancelTargetSelection:
		return nil, nil
	case wire.CmdListFiles:
		return c.handleListFiles("")
	case wire.CmdRegisters:
		return c.handleRegisters()
	case wire.CmdResume:
		return nil, c.bp.Resume(c.activeThread)
	case wire.CmdSingleStep:
		return c.handleSingleStep()
	case wire.CmdSelectProcess, wire.CmdSelectFile:
		return nil, ErrUnsupported // target already fixed before ATTACHED
	case wire.CmdSuspendThread:
		return nil, c.be.SuspendThread(backend.ThreadID(args[0].Integer()))
	case wire.CmdResumeThread:
		return nil, c.be.ResumeThread(backend.ThreadID(args[0].Integer()))
	case wire.CmdSetActiveThread:
		c.activeThread = backend.ThreadID(args[0].Integer())
		return nil, nil
	case wire.CmdSetBP:
		return c.handleSetBatch(backend.BPSimple, args)
	case wire.CmdSetBPE:
		return c.handleSetBatch(backend.BPEcho, args)
	case wire.CmdSetBPS:
		return c.handleSetBatch(backend.BPStepping, args)
	case wire.CmdRemBP:
		return c.handleRemBatch(backend.BPSimple, args)
	case wire.CmdRemBPE:
		return c.handleRemBatch(backend.BPEcho, args)
	case wire.CmdRemBPS:
		return c.handleRemBatch(backend.BPStepping, args)
	case wire.CmdValidMem:
		return c.handleValidMem(args)
	case wire.CmdReadMemory:
		return c.handleReadMemory(args)
	case wire.CmdSetRegister:
		return nil, c.be.SetRegister(backend.ThreadID(args[0].Integer()), int(args[1].Integer()), uint64(args[2].Address()))
	case wire.CmdSearch:
		return c.handleSearch(args)
	case wire.CmdListFilesPath:
		return c.handleListFiles(string(args[0].Data()))
	case wire.CmdSetBreakpointCondition:
		return nil, c.bp.SetCondition(args[0].Address(), args[1].Data())
	case wire.CmdWriteMemory:
		return nil, c.be.WriteMemory(args[0].Address(), args[1].Data())
	case wire.CmdSetExceptionsOptions:
		return c.handleSetExceptionsOptions(args)
	case wire.CmdSetDebuggerEventSettings:
		return c.handleSetDebuggerEventSettings(args)
	default:
		return nil, ErrInvalidParameter
	}
}

func (c *Controller) handleDetach() ([]wire.Argument, error) {
	c.bp.ClearAll()
	c.bp.ClearRecentlyRemoved()
	if err := c.be.Detach(); err != nil {
		return nil, err
	}
	c.attached = false
	return nil, errSessionClosed
}

func (c *Controller) handleTerminate() ([]wire.Argument, error) {
	c.bp.ClearAll()
	c.bp.ClearRecentlyRemoved()
	if err := c.be.Terminate(); err != nil {
		return nil, err
	}
	c.attached = false
	return nil, errSessionClosed
}

func (c *Controller) handleMemMap() ([]wire.Argument, error) {
	addrs, err := c.be.MemMap()
	if err != nil {
		return nil, err
	}
	out := make([]wire.Argument, 0, len(addrs)+1)
	out = append(out, wire.IntegerArg(uint32(len(addrs))))
	for _, a := range addrs {
		out = append(out, wire.AddressArg(a))
	}
	return out, nil
}

func (c *Controller) handleListProcesses() ([]wire.Argument, error) {
	procs, err := c.be.ListProcesses()
	if err != nil {
		return nil, ErrCouldntGetProcesslist
	}
	out := make([]wire.Argument, 0, 2*len(procs)+1)
	out = append(out, wire.IntegerArg(uint32(len(procs))))
	for _, p := range procs {
		out = append(out, wire.DataArg([]byte(p.Name)), wire.IntegerArg(p.PID))
	}
	return out, nil
}

func (c *Controller) handleListFiles(path string) ([]wire.Argument, error) {
	listing, err := c.be.ListFiles(path)
	if err != nil {
		return nil, ErrCouldntGetFilelist
	}
	out := make([]wire.Argument, 0, 3*len(listing.Entries)+2)
	out = append(out, wire.DataArg([]byte(listing.Path)), wire.IntegerArg(uint32(len(listing.Entries))))
	for _, e := range listing.Entries {
		isDir := uint32(0)
		if e.IsDir {
			isDir = 1
		}
		out = append(out, wire.DataArg([]byte(e.Name)), wire.IntegerArg(isDir), wire.LongArg(e.Size))
	}
	return out, nil
}

func (c *Controller) handleRegisters() ([]wire.Argument, error) {
	regs, err := c.be.ReadRegisters(c.activeThread)
	if err != nil {
		return nil, err
	}
	descs := c.be.RegisterDescriptors()
	out := make([]wire.Argument, 0, 2*len(descs)+1)
	out = append(out, wire.IntegerArg(uint32(len(descs))))
	for _, d := range descs {
		v, _ := regs.Register(d.Name)
		out = append(out, wire.DataArg([]byte(d.Name)), wire.LongArg(v))
	}
	return out, nil
}

func (c *Controller) handleSingleStep() ([]wire.Argument, error) {
	tid, pc, err := c.be.SingleStep(c.activeThread)
	if err != nil {
		return nil, err
	}
	c.activeThread = tid
	return []wire.Argument{wire.IntegerArg(uint32(tid)), wire.AddressArg(pc)}, nil
}

func decodeAddrBatch(args []wire.Argument) []wire.Addr {
	n := args[0].Integer()
	addrs := make([]wire.Addr, 0, n)
	for _, a := range args[1:] {
		addrs = append(addrs, a.Address())
	}
	return addrs
}

func (c *Controller) handleSetBatch(kind backend.BPKind, args []wire.Argument) ([]wire.Argument, error) {
	results := c.bp.SetBatch(kind, decodeAddrBatch(args))
	return encodeAddrResults(results), nil
}

func (c *Controller) handleRemBatch(kind backend.BPKind, args []wire.Argument) ([]wire.Argument, error) {
	results := c.bp.RemoveBatch(kind, decodeAddrBatch(args))
	return encodeAddrResults(results), nil
}

func encodeAddrResults(results []breakpoint.AddrResult) []wire.Argument {
	out := make([]wire.Argument, 0, 2*len(results)+1)
	out = append(out, wire.IntegerArg(uint32(len(results))))
	for _, r := range results {
		out = append(out, wire.AddressArg(r.Addr), wire.IntegerArg(statusCode(r.Err)))
	}
	return out
}

func (c *Controller) handleValidMem(args []wire.Argument) ([]wire.Argument, error) {
	lo, hi, err := c.be.ValidMemory(args[0].Address())
	if err != nil {
		return nil, ErrNoValidMemory
	}
	return []wire.Argument{wire.AddressArg(lo), wire.AddressArg(hi)}, nil
}

func (c *Controller) handleReadMemory(args []wire.Argument) ([]wire.Argument, error) {
	base := args[0].Address()
	size := int(args[1].Address())
	if size <= 0 {
		return nil, ErrInvalidMemoryRange
	}
	data, err := c.be.ReadMemory(base, size)
	if err != nil {
		return nil, err
	}
	c.ring.push(base, size)
	return []wire.Argument{wire.DataArg(data)}, nil
}

// handleSearch implements SEARCH by scanning [from, to) in fixed-size
// chunks through ReadMemory, since PlatformBackend has no dedicated search
// primitive — the controller assembles the reply purely from simpler
// backend primitives.
const searchChunkSize = 4096

func (c *Controller) handleSearch(args []wire.Argument) ([]wire.Argument, error) {
	from := args[0].Address()
	to := args[1].Address()
	pattern := args[2].Data()
	if len(pattern) == 0 || to <= from {
		return nil, ErrInvalidMemoryRange
	}

	var matches []wire.Addr
	for cur := from; cur < to; {
		chunkLen := searchChunkSize
		if remaining := int(to - cur); remaining < chunkLen {
			chunkLen = remaining
		}
		readLen := chunkLen + len(pattern) - 1
		if over := int(to - cur); readLen > over {
			readLen = over
		}
		buf, err := c.be.ReadMemory(cur, readLen)
		if err != nil {
			cur += wire.Addr(chunkLen)
			continue
		}
		for i := 0; i+len(pattern) <= len(buf); i++ {
			if bytesEqual(buf[i:i+len(pattern)], pattern) {
				matches = append(matches, cur+wire.Addr(i))
			}
		}
		cur += wire.Addr(chunkLen)
	}

	out := make([]wire.Argument, 0, len(matches)+1)
	out = append(out, wire.IntegerArg(uint32(len(matches))))
	for _, m := range matches {
		out = append(out, wire.AddressArg(m))
	}
	return out, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (c *Controller) handleSetExceptionsOptions(args []wire.Argument) ([]wire.Argument, error) {
	for i := 0; i < len(args); i += 2 {
		code := args[i].Long()
		action := backend.ExceptionAction(args[i+1].Integer())
		c.be.SetExceptionAction(code, action)
	}
	return nil, nil
}

func (c *Controller) handleSetDebuggerEventSettings(args []wire.Argument) ([]wire.Argument, error) {
	settings := make([]uint32, len(args))
	for i, a := range args {
		settings[i] = a.Integer()
	}
	c.eventSettings = settings
	return nil, nil
}

// encodeEvent maps a backend.DebugEvent to its unsolicited wire command and
// argument list, a fixed table keyed by DebugEvent variant.
func encodeEvent(ev backend.DebugEvent) (wire.Command, []wire.Argument) {
	switch ev.Kind {
	case backend.EventBPHit:
		return bpHitCommand(ev.BPKind), []wire.Argument{
			wire.IntegerArg(uint32(ev.TID)),
			wire.AddressArg(ev.BPAddr),
			encodeRegs(ev.Regs),
		}
	case backend.EventExceptionBPRemoved:
		return wire.CmdBPERemSucc, []wire.Argument{wire.AddressArg(ev.BPAddr)}
	case backend.EventProcessExited:
		return wire.CmdProcessClosed, nil
	case backend.EventThreadCreated:
		return wire.CmdThreadCreated, []wire.Argument{wire.IntegerArg(uint32(ev.TID)), wire.IntegerArg(uint32(ev.State))}
	case backend.EventThreadExited:
		return wire.CmdThreadClosed, []wire.Argument{wire.IntegerArg(uint32(ev.TID))}
	case backend.EventModuleLoaded:
		return wire.CmdModuleLoaded, encodeModule(ev.Module)
	case backend.EventModuleUnloaded:
		return wire.CmdModuleUnloaded, encodeModule(ev.Module)
	case backend.EventException:
		return wire.CmdExceptionOccured, []wire.Argument{wire.IntegerArg(uint32(ev.TID)), wire.LongArg(ev.ExceptionCode)}
	case backend.EventProcessStarted:
		args := encodeModule(ev.StartModule)
		return wire.CmdProcessStart, append(args, wire.IntegerArg(uint32(ev.StartThread)))
	default:
		return wire.CmdExceptionOccured, []wire.Argument{wire.IntegerArg(uint32(ev.TID)), wire.LongArg(ev.ExceptionCode)}
	}
}

func bpHitCommand(kind backend.BPKind) wire.Command {
	switch kind {
	case backend.BPEcho:
		return wire.CmdBPEHit
	case backend.BPStepping:
		return wire.CmdBPSHit
	default:
		return wire.CmdBPHit
	}
}

func encodeModule(m backend.ModuleInfo) []wire.Argument {
	return []wire.Argument{wire.DataArg([]byte(m.Name)), wire.AddressArg(m.Base), wire.LongArg(m.Size)}
}

func encodeRegs(regs backend.RegisterContainer) wire.Argument {
	// Packed as a single data argument: count:u32be then (name-len:u32be,
	// name, value:u64be) tuples — the same length/type-tagged shape the
	// rest of the wire format uses, nested inside one Data payload because
	// the BP_HIT reply shape only carries a fixed 3-tuple.
	var buf []byte
	buf = appendU32(buf, uint32(len(regs.Values)))
	for name, v := range regs.Values {
		buf = appendU32(buf, uint32(len(name)))
		buf = append(buf, name...)
		buf = appendU64(buf, v)
	}
	return wire.DataArg(buf)
}

func appendU32(buf []byte, v uint32) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendU64(buf []byte, v uint64) []byte {
	return append(buf, byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32), byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
