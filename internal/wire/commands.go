package wire

// Command is the single contiguous enumeration covering every request,
// success reply, error reply and unsolicited event the wire protocol
// knows about. The numeric values are an independent assignment; what
// matters is that the implementation is internally consistent and that
// every command has exactly one success reply and one error reply (see
// successReplyFor/errorReplyFor in dispatch.go of the root package).
type Command uint32

const (
	// Requests with no arguments.
	CmdClearAll Command = iota + 1
	CmdDetach
	CmdTerminate
	CmdMemMap
	CmdHalt
	CmdListProcesses
	CmdCancelTargetSelection
	CmdListFiles
	CmdRegisters
	CmdResume
	CmdSingleStep

	// Requests with a single integer argument.
	CmdSelectProcess
	CmdSuspendThread
	CmdResumeThread
	CmdSetActiveThread

	// Batch breakpoint requests: 1 integer (count) + n addresses.
	CmdSetBP
	CmdSetBPE
	CmdSetBPS
	CmdRemBP
	CmdRemBPE
	CmdRemBPS

	// Single-address / small fixed-shape requests.
	CmdValidMem
	CmdReadMemory
	CmdSetRegister
	CmdSearch
	CmdListFilesPath
	CmdSelectFile
	CmdSetBreakpointCondition
	CmdWriteMemory
	CmdSetExceptionsOptions
	CmdSetDebuggerEventSettings
	CmdQueryDebuggerEventSettings

	// Handshake / attach flow commands.
	CmdRequestTarget
	CmdAttachSuccess
	CmdAttachError

	// Success reply commands (one per request above that produces a
	// reply distinguishable from a generic "ok").
	CmdClearAllSucc
	CmdDetachSucc
	CmdTerminateSucc
	CmdMemMapSucc
	CmdHaltSucc
	CmdListProcessesSucc
	CmdCancelTargetSelectionSucc
	CmdListFilesSucc
	CmdRegistersSucc
	CmdResumeSucc
	CmdSingleStepSucc
	CmdSelectProcessSucc
	CmdSuspendThreadSucc
	CmdResumeThreadSucc
	CmdSetActiveThreadSucc
	CmdSetBPSucc
	CmdSetBPESucc
	CmdSetBPSSucc
	CmdRemBPSucc
	CmdRemBPESucc
	CmdRemBPSSucc
	CmdValidMemSucc
	CmdReadMemorySucc
	CmdSetRegisterSucc
	CmdSearchSucc
	CmdListFilesPathSucc
	CmdSelectFileSucc
	CmdSetBreakpointConditionSucc
	CmdWriteMemorySucc
	CmdSetExceptionsOptionsSucc
	CmdSetDebuggerEventSettingsSucc

	// Error reply commands.
	CmdClearAllErr
	CmdDetachErr
	CmdTerminateErr
	CmdMemMapErr
	CmdHaltErr
	CmdListProcessesErr
	CmdCancelTargetSelectionErr
	CmdListFilesErr
	CmdRegistersErr
	CmdResumeErr
	CmdSingleStepErr
	CmdSelectProcessErr
	CmdSuspendThreadErr
	CmdResumeThreadErr
	CmdSetActiveThreadErr
	CmdSetBPErr
	CmdSetBPEErr
	CmdSetBPSErr
	CmdRemBPErr
	CmdRemBPEErr
	CmdRemBPSErr
	CmdValidMemErr
	CmdReadMemoryErr
	CmdSetRegisterErr
	CmdSearchErr
	CmdListFilesPathErr
	CmdSelectFileErr
	CmdSetBreakpointConditionErr
	CmdWriteMemoryErr
	CmdSetExceptionsOptionsErr
	CmdSetDebuggerEventSettingsErr

	// Unsolicited debug events (id=0 in the reply header).
	CmdInfo
	CmdProcessClosed
	CmdThreadCreated
	CmdThreadClosed
	CmdModuleLoaded
	CmdModuleUnloaded
	CmdProcessStart
	CmdExceptionOccured
	CmdBPHit
	CmdBPEHit
	CmdBPSHit
	CmdBPERemSucc
)

// String renders a human-readable command name, used in log lines and
// MalformedPacket error messages.
func (c Command) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	return "UNKNOWN_COMMAND"
}

var commandNames = map[Command]string{
	CmdClearAll:                  "CLEARALL",
	CmdDetach:                    "DETACH",
	CmdTerminate:                 "TERMINATE",
	CmdMemMap:                    "MEMMAP",
	CmdHalt:                      "HALT",
	CmdListProcesses:             "LIST_PROCESSES",
	CmdCancelTargetSelection:     "CANCEL_TARGET_SELECTION",
	CmdListFiles:                 "LIST_FILES",
	CmdRegisters:                 "REGISTERS",
	CmdResume:                    "RESUME",
	CmdSingleStep:                "SINGLE_STEP",
	CmdSelectProcess:             "SELECT_PROCESS",
	CmdSuspendThread:             "SUSPEND_THREAD",
	CmdResumeThread:              "RESUME_THREAD",
	CmdSetActiveThread:           "SET_ACTIVE_THREAD",
	CmdSetBP:                     "SETBP",
	CmdSetBPE:                    "SETBPE",
	CmdSetBPS:                    "SETBPS",
	CmdRemBP:                     "REMBP",
	CmdRemBPE:                    "REMBPE",
	CmdRemBPS:                    "REMBPS",
	CmdValidMem:                  "VALIDMEM",
	CmdReadMemory:                "READ_MEMORY",
	CmdSetRegister:               "SET_REGISTER",
	CmdSearch:                    "SEARCH",
	CmdListFilesPath:             "LIST_FILES_PATH",
	CmdSelectFile:                "SELECT_FILE",
	CmdSetBreakpointCondition:    "SET_BREAKPOINT_CONDITION",
	CmdWriteMemory:               "WRITE_MEMORY",
	CmdSetExceptionsOptions:      "SET_EXCEPTIONS_OPTIONS",
	CmdSetDebuggerEventSettings:  "SET_DEBUGGER_EVENT_SETTINGS",
	CmdQueryDebuggerEventSettings: "QUERY_DEBUGGER_EVENT_SETTINGS",
	CmdRequestTarget:             "REQUEST_TARGET",
	CmdAttachSuccess:             "ATTACH_SUCCESS",
	CmdAttachError:               "ATTACH_ERROR",
	CmdInfo:                      "INFO",
	CmdProcessClosed:             "PROCESS_CLOSED",
	CmdThreadCreated:             "THREAD_CREATED",
	CmdThreadClosed:              "THREAD_CLOSED",
	CmdModuleLoaded:              "MODULE_LOADED",
	CmdModuleUnloaded:            "MODULE_UNLOADED",
	CmdProcessStart:              "PROCESS_START",
	CmdExceptionOccured:          "EXCEPTION_OCCURED",
	CmdBPHit:                     "BP_HIT",
	CmdBPEHit:                    "BPE_HIT",
	CmdBPSHit:                    "BPS_HIT",
	CmdBPERemSucc:                "BPE_REM_SUCC",
}
