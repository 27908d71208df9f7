package dbgclient

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GoAethereal/dbgclient/internal/backend"
)

func TestFormatInfoStringOmitsNegativeBreakpointCount(t *testing.T) {
	opts := backend.DebuggerOptions{CanHalt: true, BreakpointCount: -1}
	s := formatInfoString(opts, nil, nil, 64)
	assert.NotContains(t, s, "breakpointCount", "the -1 sentinel must be suppressed entirely")
	assert.Contains(t, s, `canHalt="true"`)
}

func TestFormatInfoStringIncludesBreakpointCount(t *testing.T) {
	opts := backend.DebuggerOptions{BreakpointCount: 4}
	s := formatInfoString(opts, nil, nil, 32)
	assert.Contains(t, s, `breakpointCount="4"`)
}

func TestFormatInfoStringListsRegistersAndExceptions(t *testing.T) {
	opts := backend.DebuggerOptions{BreakpointCount: -1}
	excs := []backend.DebugException{{Code: 0xC0000005, Name: "ACCESS_VIOLATION", DefaultAction: backend.ActionHalt}}
	regs := []backend.RegisterDescription{{Name: "EAX", Size: 4, Editable: true}}
	s := formatInfoString(opts, excs, regs, 32)
	assert.Contains(t, s, `name="ACCESS_VIOLATION"`)
	assert.Contains(t, s, `default="HALT"`)
	assert.Contains(t, s, `name="EAX"`)
	assert.Contains(t, s, `address-size value="32"`)
}
