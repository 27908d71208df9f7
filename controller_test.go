package dbgclient

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/GoAethereal/cancel"
	"github.com/stretchr/testify/require"

	"github.com/GoAethereal/dbgclient/internal/backend"
	"github.com/GoAethereal/dbgclient/internal/logging"
	"github.com/GoAethereal/dbgclient/internal/wire"
)

// newTestSession wires a Controller to one end of an in-memory net.Pipe and
// hands the other end back as a plain net.Conn, so the test can play the
// peer's part directly against the wire codec the same way
// internal/wire/codec_test.go exercises it.
func newTestSession(t *testing.T, mock *backend.Mock) (peer net.Conn, runDone <-chan error) {
	t.Helper()
	return newTestSessionWithOptions(t, mock, Options{Port: 5039, TargetPath: "/bin/true"})
}

// newTestSessionWithOptions is newTestSession with caller-supplied Options,
// so tests can exercise the peer-driven target-selection path by leaving
// TargetPath empty.
func newTestSessionWithOptions(t *testing.T, mock *backend.Mock, opts Options) (peer net.Conn, runDone <-chan error) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { serverConn.Close(); clientConn.Close() })

	cfg := Config{
		Options: opts,
		Backend: mock,
		Logger:  logging.Default(),
	}
	ctx, cancelFn := cancel.Promote(context.Background())
	t.Cleanup(cancelFn)

	ctrl := newController(ctx, cfg, newNetTransport(serverConn))
	done := make(chan error, 1)
	go func() { done <- ctrl.Run() }()

	clientConn.SetDeadline(time.Now().Add(10 * time.Second))
	return clientConn, done
}

// driveHandshake plays the peer's half of the HANDSHAKE and pre-attach
// settings exchange, up to and including ATTACH_SUCCESS, and returns the
// shared codec used for the rest of the session.
func driveHandshake(t *testing.T, peer net.Conn) wire.Codec {
	t.Helper()
	codec := wire.Codec{}

	magic := make([]byte, 4)
	_, err := io.ReadFull(peer, magic)
	require.NoError(t, err)
	require.Equal(t, "NAVI", string(magic))

	query, err := codec.ReadPacket(peer)
	require.NoError(t, err)
	require.Equal(t, wire.CmdQueryDebuggerEventSettings, query.Header.Command)

	_, err = peer.Write(codec.EncodeReply(wire.CmdSetDebuggerEventSettings, 0, []wire.Argument{wire.IntegerArg(1)}))
	require.NoError(t, err)

	info, err := codec.ReadPacket(peer)
	require.NoError(t, err)
	require.Equal(t, wire.CmdInfo, info.Header.Command)
	require.Contains(t, string(info.Args[0].Data()), "<debugger-info>")

	attach, err := codec.ReadPacket(peer)
	require.NoError(t, err)
	require.Equal(t, wire.CmdAttachSuccess, attach.Header.Command)

	return codec
}

// TestControllerBasicSession exercises the basic set/hit/resume flow end
// to end: set a simple breakpoint, take the hit, resume past it, then
// tear down with TERMINATE.
func TestControllerBasicSession(t *testing.T) {
	mock := backend.NewMock()
	peer, runDone := newTestSession(t, mock)
	codec := driveHandshake(t, peer)

	const bpAddr = wire.Addr(0x401000)

	_, err := peer.Write(codec.EncodeReply(wire.CmdSetBP, 7, []wire.Argument{
		wire.IntegerArg(1),
		wire.AddressArg(bpAddr),
	}))
	require.NoError(t, err)

	setReply, err := codec.ReadPacket(peer)
	require.NoError(t, err)
	require.Equal(t, wire.CmdSetBPSucc, setReply.Header.Command)
	require.EqualValues(t, 7, setReply.Header.ID)
	require.EqualValues(t, 1, setReply.Args[0].Integer())
	require.Equal(t, bpAddr, setReply.Args[1].Address())
	require.EqualValues(t, 0, setReply.Args[2].Integer())

	mock.QueueEvent(backend.DebugEvent{Kind: backend.EventBPHit, BPAddr: bpAddr, TID: 42})

	hit, err := codec.ReadPacket(peer)
	require.NoError(t, err)
	require.Equal(t, wire.CmdBPHit, hit.Header.Command)
	require.EqualValues(t, 0, hit.Header.ID)
	require.EqualValues(t, 42, hit.Args[0].Integer())
	require.Equal(t, bpAddr, hit.Args[1].Address())

	_, err = peer.Write(codec.EncodeReply(wire.CmdSetActiveThread, 8, []wire.Argument{wire.IntegerArg(42)}))
	require.NoError(t, err)
	setActive, err := codec.ReadPacket(peer)
	require.NoError(t, err)
	require.Equal(t, wire.CmdSetActiveThreadSucc, setActive.Header.Command)
	require.EqualValues(t, 8, setActive.Header.ID)

	_, err = peer.Write(codec.EncodeReply(wire.CmdResume, 9, nil))
	require.NoError(t, err)
	resumeReply, err := codec.ReadPacket(peer)
	require.NoError(t, err)
	require.Equal(t, wire.CmdResumeSucc, resumeReply.Header.Command)
	require.EqualValues(t, 9, resumeReply.Header.ID)

	_, err = peer.Write(codec.EncodeReply(wire.CmdTerminate, 10, nil))
	require.NoError(t, err)
	termReply, err := codec.ReadPacket(peer)
	require.NoError(t, err)
	require.Equal(t, wire.CmdTerminateSucc, termReply.Header.Command)
	require.EqualValues(t, 10, termReply.Header.ID)

	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Controller.Run did not return after TERMINATE")
	}
	require.True(t, mock.Terminated)
}

// TestControllerRequestsTargetWhenPathNotFixed exercises the peer-driven
// target-selection flow: with no Options.TargetPath, the
// controller must prompt the peer with REQUEST_TARGET before waiting for
// SELECT_FILE, rather than silently blocking in its read loop.
func TestControllerRequestsTargetWhenPathNotFixed(t *testing.T) {
	mock := backend.NewMock()
	peer, runDone := newTestSessionWithOptions(t, mock, Options{Port: 5039})
	codec := wire.Codec{}

	magic := make([]byte, 4)
	_, err := io.ReadFull(peer, magic)
	require.NoError(t, err)
	require.Equal(t, "NAVI", string(magic))

	req, err := codec.ReadPacket(peer)
	require.NoError(t, err)
	require.Equal(t, wire.CmdRequestTarget, req.Header.Command)

	_, err = peer.Write(codec.EncodeReply(wire.CmdSelectFile, 1, []wire.Argument{wire.DataArg([]byte("/bin/true"))}))
	require.NoError(t, err)

	selectReply, err := codec.ReadPacket(peer)
	require.NoError(t, err)
	require.Equal(t, wire.CmdSelectFileSucc, selectReply.Header.Command)

	query, err := codec.ReadPacket(peer)
	require.NoError(t, err)
	require.Equal(t, wire.CmdQueryDebuggerEventSettings, query.Header.Command)

	_, err = peer.Write(codec.EncodeReply(wire.CmdSetDebuggerEventSettings, 0, []wire.Argument{wire.IntegerArg(1)}))
	require.NoError(t, err)

	info, err := codec.ReadPacket(peer)
	require.NoError(t, err)
	require.Equal(t, wire.CmdInfo, info.Header.Command)

	attach, err := codec.ReadPacket(peer)
	require.NoError(t, err)
	require.Equal(t, wire.CmdAttachSuccess, attach.Header.Command)

	_, err = peer.Write(codec.EncodeReply(wire.CmdTerminate, 2, nil))
	require.NoError(t, err)
	_, err = codec.ReadPacket(peer)
	require.NoError(t, err)

	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Controller.Run did not return after TERMINATE")
	}
}

// TestControllerSetBPRejectsSecondSimpleAtSameAddress exercises the
// overlap policy: two SETBP requests at the same address, the second
// reported as a per-address error rather than aborting the whole batch.
func TestControllerSetBPRejectsSecondSimpleAtSameAddress(t *testing.T) {
	mock := backend.NewMock()
	peer, runDone := newTestSession(t, mock)
	codec := driveHandshake(t, peer)

	const bpAddr = wire.Addr(0x500000)

	_, err := peer.Write(codec.EncodeReply(wire.CmdSetBP, 1, []wire.Argument{
		wire.IntegerArg(2),
		wire.AddressArg(bpAddr),
		wire.AddressArg(bpAddr),
	}))
	require.NoError(t, err)

	reply, err := codec.ReadPacket(peer)
	require.NoError(t, err)
	require.Equal(t, wire.CmdSetBPSucc, reply.Header.Command)
	require.EqualValues(t, 2, reply.Args[0].Integer())
	require.EqualValues(t, 0, reply.Args[2].Integer(), "first SETBP at a fresh address must succeed")
	require.NotEqualValues(t, 0, reply.Args[4].Integer(), "duplicate SETBP at the same address must fail")

	_, err = peer.Write(codec.EncodeReply(wire.CmdTerminate, 2, nil))
	require.NoError(t, err)
	_, err = codec.ReadPacket(peer)
	require.NoError(t, err)

	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Controller.Run did not return after TERMINATE")
	}
}
