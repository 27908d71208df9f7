package dbgclient

import (
	"github.com/GoAethereal/dbgclient/internal/wire"
)

// navMagic is the fixed 4-byte handshake: no version negotiation, no
// capability exchange, just this one fixed token.
var navMagic = []byte("NAVI")

// handshake implements the HANDSHAKE state: send the magic, then nothing
// else until the peer speaks first.
func (c *Controller) handshake() error {
	return c.t.Write(navMagic)
}

// selectTarget implements the READY state: when Options.TargetPath was not
// fixed by the caller, the peer drives target selection over
// LIST_PROCESSES / LIST_FILES / LIST_FILES_PATH / SELECT_PROCESS /
// SELECT_FILE / CANCEL_TARGET_SELECTION until it picks one, at which point
// selectTarget returns and the controller moves on to the pre-attach
// settings exchange.
func (c *Controller) selectTarget() error {
	if c.selectedPath != "" {
		return nil
	}
	buf := c.codec.EncodeReply(wire.CmdRequestTarget, 0, nil)
	if err := c.t.Write(buf); err != nil {
		return err
	}
	for {
		pkt, err := c.codec.ReadPacket(c.r)
		if err != nil {
			return err
		}
		if verr := wire.Validate(pkt.Header.Command, pkt.Args); verr != nil {
			c.replyErr(pkt.Header.Command, pkt.Header.ID, verr)
			continue
		}
		switch pkt.Header.Command {
		case wire.CmdSelectProcess:
			// The native PlatformBackend only ever debugs a process it
			// started itself (internal/backend/native_linux.go Start);
			// there is no primitive for attaching to an arbitrary running
			// pid. The peer's choice is still acknowledged and logged so a
			// future
			// attach-capable backend has somewhere to plug in.
			c.log.Info("target process selected", "pid", pkt.Args[0].Integer())
			c.replyOK(pkt.Header.Command, pkt.Header.ID, nil)
			return nil
		case wire.CmdSelectFile:
			c.selectedPath = string(pkt.Args[0].Data())
			c.replyOK(pkt.Header.Command, pkt.Header.ID, nil)
			return nil
		case wire.CmdCancelTargetSelection:
			c.replyOK(pkt.Header.Command, pkt.Header.ID, nil)
		case wire.CmdListProcesses, wire.CmdListFiles, wire.CmdListFilesPath:
			if err := c.dispatch(pkt); err != nil {
				return err
			}
		default:
			c.replyErr(pkt.Header.Command, pkt.Header.ID, ErrUnsupported)
		}
	}
}

// preAttachAndStart runs the pre-attach settings exchange followed
// immediately by the backend start/attach call and the
// ATTACH_SUCCESS/ATTACH_ERROR notification.
func (c *Controller) preAttachAndStart() error {
	queryBuf := c.codec.EncodeReply(wire.CmdQueryDebuggerEventSettings, 0, nil)
	if err := c.t.Write(queryBuf); err != nil {
		return err
	}

	pkt, err := c.codec.ReadPacket(c.r)
	if err != nil {
		return err
	}
	if pkt.Header.Command != wire.CmdSetDebuggerEventSettings {
		return &wire.MalformedPacketError{Command: pkt.Header.Command, Reason: "expected SET_DEBUGGER_EVENT_SETTINGS"}
	}
	if verr := wire.Validate(pkt.Header.Command, pkt.Args); verr != nil {
		return verr
	}
	if _, err := c.handleSetDebuggerEventSettings(pkt.Args); err != nil {
		return err
	}

	info := formatInfoString(c.be.Options(), c.be.PlatformExceptions(), c.be.RegisterDescriptors(), c.be.AddressSize())
	infoBuf := c.codec.EncodeReply(wire.CmdInfo, 0, []wire.Argument{wire.DataArg([]byte(info))})
	if err := c.t.Write(infoBuf); err != nil {
		return err
	}

	var startErr error
	if c.selectedPath != "" {
		startErr = c.be.Start(c.selectedPath, c.selectedArgv)
	} else {
		startErr = c.be.Attach()
	}

	if startErr != nil {
		buf := c.codec.EncodeReply(wire.CmdAttachError, 0, []wire.Argument{wire.IntegerArg(statusCode(startErr))})
		c.t.Write(buf)
		return startErr
	}

	c.attached = true
	buf := c.codec.EncodeReply(wire.CmdAttachSuccess, 0, nil)
	return c.t.Write(buf)
}
