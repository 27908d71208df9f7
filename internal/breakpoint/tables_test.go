package breakpoint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GoAethereal/dbgclient/internal/backend"
)

func TestOverlapPolicyInstallOnEmpty(t *testing.T) {
	action, err := overlapPolicy(backend.BPSimple, false, backend.BPEcho)
	require.NoError(t, err)
	require.Equal(t, actionInstall, action)
}

func TestOverlapPolicyDuplicateRejected(t *testing.T) {
	for _, kind := range []backend.BPKind{backend.BPSimple, backend.BPEcho, backend.BPStepping} {
		action, err := overlapPolicy(kind, true, kind)
		require.ErrorIs(t, err, ErrDuplicateBreakpoint)
		require.Equal(t, actionReject, action)
	}
}

func TestOverlapPolicyUpgrades(t *testing.T) {
	cases := []struct {
		existing, requested backend.BPKind
	}{
		{backend.BPEcho, backend.BPSimple},
		{backend.BPStepping, backend.BPSimple},
		{backend.BPEcho, backend.BPStepping},
	}
	for _, c := range cases {
		action, err := overlapPolicy(c.existing, true, c.requested)
		require.NoError(t, err)
		require.Equal(t, actionUpgrade, action)
	}
}

func TestOverlapPolicyRejectsLowerOverSimple(t *testing.T) {
	for _, requested := range []backend.BPKind{backend.BPEcho, backend.BPStepping} {
		action, err := overlapPolicy(backend.BPSimple, true, requested)
		require.ErrorIs(t, err, ErrHigherBreakpointExists)
		require.Equal(t, actionReject, action)
	}
}

func TestOverlapPolicyRejectsEchoOverStepping(t *testing.T) {
	action, err := overlapPolicy(backend.BPStepping, true, backend.BPEcho)
	require.ErrorIs(t, err, ErrHigherBreakpointExists)
	require.Equal(t, actionReject, action)
}
