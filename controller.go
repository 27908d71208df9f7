package dbgclient

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/GoAethereal/cancel"

	"github.com/GoAethereal/dbgclient/internal/backend"
	"github.com/GoAethereal/dbgclient/internal/breakpoint"
	"github.com/GoAethereal/dbgclient/internal/logging"
	"github.com/GoAethereal/dbgclient/internal/wire"
)

// idlePoll bounds how often the controller re-checks transport.HasData()
// and pumps the backend while nothing is happening. Both PlatformBackend
// implementations (internal/backend) return immediately when nothing is
// pending, so without this sleep an idle session would spin a CPU core.
const idlePoll = 2 * time.Millisecond

// errSessionClosed unwinds Run's command loop after DETACH, TERMINATE, or
// a ProcessExited event — all three are "send one more reply/event, then
// stop".
var errSessionClosed = errors.New("dbgclient: session closed")

// Controller is the session lifecycle state machine and command dispatch
// engine: it owns the full INIT→CLOSED lifecycle of exactly one peer,
// from handshake through attach, command dispatch, and event draining.
type Controller struct {
	ctx   cancel.Context
	cfg   Config
	t     Transport
	r     *transportReader
	codec wire.Codec
	log   *logging.Logger

	be backend.PlatformBackend
	bp *breakpoint.Manager

	activeThread backend.ThreadID
	attached     bool
	ring         *reloadRing

	eventSettings []uint32
	selectedPath  string
	selectedArgv  []string
}

func newController(ctx cancel.Context, cfg Config, t Transport) *Controller {
	return &Controller{
		ctx:          ctx,
		cfg:          cfg,
		t:            t,
		r:            &transportReader{t: t},
		codec:        cfg.codec(),
		log:          cfg.logger(),
		be:           cfg.Backend,
		bp:           breakpoint.NewManager(cfg.Backend, cfg.logger()),
		ring:         newReloadRing(),
		selectedPath: cfg.TargetPath,
		selectedArgv: cfg.TargetArgv,
	}
}

// transportReader adapts Transport's blocking-exact Read to io.Reader, the
// shape wire.Codec.ReadPacket expects.
type transportReader struct{ t Transport }

func (r *transportReader) Read(buf []byte) (int, error) {
	if err := r.t.Read(buf); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// Run drives the controller from HANDSHAKE through CLOSED. It returns
// nil on a clean peer disconnect or a
// controller-initiated close (DETACH/TERMINATE/ProcessExited), and the
// first transport error otherwise.
func (c *Controller) Run() error {
	if err := c.handshake(); err != nil {
		return unwrapClosed(err)
	}
	if err := c.selectTarget(); err != nil {
		return unwrapClosed(err)
	}
	if err := c.preAttachAndStart(); err != nil {
		return unwrapClosed(err)
	}

	for {
		has, err := c.t.HasData()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if has {
			if err := c.readAndDispatch(); err != nil {
				if errors.Is(err, errSessionClosed) {
					return nil
				}
				return err
			}
			continue
		}
		if err := c.drainEvents(); err != nil {
			if errors.Is(err, errSessionClosed) {
				return nil
			}
			return err
		}
		c.reloadTick()
		time.Sleep(idlePoll)
	}
}

func unwrapClosed(err error) error {
	if errors.Is(err, errSessionClosed) {
		return nil
	}
	return err
}

// readAndDispatch reads exactly one request packet and runs it through the
// command dispatch table.
func (c *Controller) readAndDispatch() error {
	pkt, err := c.codec.ReadPacket(c.r)
	if err != nil {
		return err
	}
	if verr := wire.Validate(pkt.Header.Command, pkt.Args); verr != nil {
		c.log.Warn("malformed packet", "cmd", pkt.Header.Command, "err", verr)
		c.replyErr(pkt.Header.Command, pkt.Header.ID, verr)
		return nil
	}
	return c.dispatch(pkt)
}

func (c *Controller) replyErr(cmd wire.Command, id uint32, err error) {
	errCmd, ok := errorReplyFor(cmd)
	if !ok {
		c.log.Warn("no error reply mapping", "cmd", cmd)
		return
	}
	buf := c.codec.EncodeReply(errCmd, id, []wire.Argument{wire.IntegerArg(statusCode(err))})
	if werr := c.t.Write(buf); werr != nil {
		c.log.Error("write failed", "err", werr)
	}
}

func (c *Controller) replyOK(cmd wire.Command, id uint32, args []wire.Argument) {
	succCmd, ok := successReplyFor(cmd)
	if !ok {
		c.log.Warn("no success reply mapping", "cmd", cmd)
		return
	}
	buf := c.codec.EncodeReply(succCmd, id, args)
	if werr := c.t.Write(buf); werr != nil {
		c.log.Error("write failed", "err", werr)
	}
}

// dispatch runs one command's handler and emits the matching success or
// error reply.
func (c *Controller) dispatch(pkt wire.Packet) error {
	args, err := c.handle(pkt.Header.Command, pkt.Args)
	if err != nil && !errors.Is(err, errSessionClosed) {
		c.replyErr(pkt.Header.Command, pkt.Header.ID, err)
		return nil
	}
	c.replyOK(pkt.Header.Command, pkt.Header.ID, args)
	if errors.Is(err, errSessionClosed) {
		return errSessionClosed
	}
	return nil
}

// drainEvents pumps the backend for newly queued debug events, then emits
// every resulting event as an unsolicited (id=0) reply.
func (c *Controller) drainEvents() error {
	if !c.attached {
		return nil
	}
	raw, err := c.be.PumpEvents()
	if err != nil {
		c.log.Warn("pump_events failed", "err", err)
		return nil
	}
	for _, ev := range raw {
		out, err := c.bp.HandleEvent(context.Background(), ev)
		if err != nil {
			c.log.Warn("event dispatch failed", "err", err)
			continue
		}
		for _, o := range out {
			if err := c.emitEvent(o); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Controller) emitEvent(ev backend.DebugEvent) error {
	cmd, args := encodeEvent(ev)
	buf := c.codec.EncodeReply(cmd, 0, args)
	if err := c.t.Write(buf); err != nil {
		return err
	}
	if ev.Kind == backend.EventProcessExited {
		return errSessionClosed
	}
	return nil
}

// reloadTick re-reads one ring entry each idle cycle and pushes it to the
// peer as an unsolicited reply, giving it a live memory view without an
// explicit poll.
func (c *Controller) reloadTick() {
	if !c.attached {
		return
	}
	e, ok := c.ring.tick()
	if !ok {
		return
	}
	data, err := c.be.ReadMemory(e.addr, e.size)
	if err != nil {
		return
	}
	buf := c.codec.EncodeReply(wire.CmdReadMemorySucc, 0, []wire.Argument{wire.DataArg(data)})
	c.t.Write(buf)
}
