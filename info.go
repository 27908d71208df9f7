package dbgclient

import (
	"fmt"
	"strings"

	"github.com/GoAethereal/dbgclient/internal/backend"
)

// formatInfoString renders the pre-attach INFO payload: backend
// capability flags, the platform exception list with default actions,
// the register descriptors, and the target address size. The exact wire
// format is peer-defined; this picks a hierarchical, attribute-bearing
// text encoding in the style of a GDB target-description annex.
func formatInfoString(opts backend.DebuggerOptions, excs []backend.DebugException, regs []backend.RegisterDescription, addrSize int) string {
	var b strings.Builder

	b.WriteString("<debugger-info>\n")
	fmt.Fprintf(&b, "<options canAttach=%q canDetach=%q canTerminate=%q canMemmap=%q "+
		"canMultithread=%q canValidMemory=%q canSoftwareBreakpoint=%q canHalt=%q "+
		"haltBeforeCommunicating=%q hasStack=%q pageSize=%q canBreakOnModuleLoad=%q "+
		"canBreakOnModuleUnload=%q canTraceCount=%q",
		boolAttr(opts.CanAttach), boolAttr(opts.CanDetach), boolAttr(opts.CanTerminate),
		boolAttr(opts.CanMemmap), boolAttr(opts.CanMultithread), boolAttr(opts.CanValidMemory),
		boolAttr(opts.CanSoftwareBreakpoint), boolAttr(opts.CanHalt),
		boolAttr(opts.HaltBeforeCommunicating), boolAttr(opts.HasStack), numAttr(opts.PageSize),
		boolAttr(opts.CanBreakOnModuleLoad), boolAttr(opts.CanBreakOnModuleUnload),
		boolAttr(opts.CanTraceCount))
	// The unknown-count sentinel (-1) is omitted entirely rather than
	// printed literally, working around a known peer parser bug.
	if opts.BreakpointCount >= 0 {
		fmt.Fprintf(&b, " breakpointCount=%q", numAttr(opts.BreakpointCount))
	}
	b.WriteString("/>\n")

	b.WriteString("<exceptions>\n")
	for _, e := range excs {
		fmt.Fprintf(&b, "<exception code=%q name=%q default=%q/>\n", numAttr(e.Code), e.Name, actionAttr(e.DefaultAction))
	}
	b.WriteString("</exceptions>\n")

	b.WriteString("<registers>\n")
	for _, r := range regs {
		fmt.Fprintf(&b, "<register name=%q size=%q editable=%q/>\n", r.Name, numAttr(r.Size), boolAttr(r.Editable))
	}
	b.WriteString("</registers>\n")

	fmt.Fprintf(&b, "<address-size value=%q/>\n", numAttr(addrSize))
	b.WriteString("</debugger-info>\n")
	return b.String()
}

func numAttr(v any) string {
	return fmt.Sprint(v)
}

func boolAttr(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func actionAttr(a backend.ExceptionAction) string {
	switch a {
	case backend.ActionHalt:
		return "HALT"
	case backend.ActionPassToApp:
		return "PASS_TO_APP"
	case backend.ActionSkipAppHandler:
		return "SKIP_APP_HANDLER"
	default:
		return "HALT"
	}
}
