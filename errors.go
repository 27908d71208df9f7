package dbgclient

import (
	"errors"

	"github.com/GoAethereal/dbgclient/internal/breakpoint"
)

// Session-level errors not owned by internal/wire or internal/breakpoint.
// internal/wire already carries the Transport and Protocol kinds;
// internal/breakpoint already carries the Breakpoint kind; this package
// only adds its own catch-all entries plus the Config-validation error
// Options.Verify/Config.Verify use (ErrInvalidParameter).
var (
	ErrInvalidMemoryRange    = errors.New("dbgclient: invalid memory range")
	ErrInvalidRegisterIndex  = errors.New("dbgclient: invalid register index")
	ErrNoValidMemory         = errors.New("dbgclient: no valid memory at anchor")
	ErrUnsupported           = errors.New("dbgclient: unsupported before a target is attached")
	ErrNothingToRefresh      = errors.New("dbgclient: no memory range to refresh")
	ErrCouldntGetProcesslist = errors.New("dbgclient: could not get process list")
	ErrCouldntGetFilelist    = errors.New("dbgclient: could not get file list")
	ErrInvalidParameter      = errors.New("dbgclient: invalid parameter")
)

// statusCode maps an error to the single integer status an error reply
// carries on the wire. 0 always means success, so the code table starts
// at 1. Unrecognized backend errors (internal/backend returns plain
// errors rather than a taxonomy of its own) fall through to codeUnknown.
func statusCode(err error) uint32 {
	if err == nil {
		return 0
	}
	for i, sentinel := range codeTable {
		if errors.Is(err, sentinel) {
			return uint32(i + 1)
		}
	}
	return codeUnknown
}

const codeUnknown = 0xFFFFFFFF

var codeTable = []error{
	// Breakpoint (internal/breakpoint).
	breakpoint.ErrDuplicateBreakpoint,
	breakpoint.ErrNoBreakpointAtAddress,
	breakpoint.ErrHigherBreakpointExists,
	breakpoint.ErrInvalidBreakpoint,
	breakpoint.ErrInvalidBreakpointType,
	breakpoint.ErrCouldntSetBreakpoint,
	breakpoint.ErrCouldntRemoveBreakpoint,
	breakpoint.ErrOriginalDataNotAvailable,
	// Other (this package).
	ErrInvalidMemoryRange,
	ErrInvalidRegisterIndex,
	ErrNoValidMemory,
	ErrUnsupported,
	ErrNothingToRefresh,
	ErrCouldntGetProcesslist,
	ErrCouldntGetFilelist,
	ErrInvalidParameter,
}
