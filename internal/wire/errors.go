package wire

import (
	"errors"
	"fmt"
)

// Transport-level errors. The codec itself never opens a
// connection; these are returned by ReadPacket when the underlying
// io.Reader fails, so the controller can distinguish "peer hung up" from
// "peer sent garbage".
var (
	ErrConnectionClosed = errors.New("wire: connection closed")
	ErrConnectionError  = errors.New("wire: connection error")
)

// MalformedPacketError is returned when a packet is structurally invalid:
// an argument's type/length disagrees with the command's schema, or
// arg_count exceeds the schema's maximum. It is non-fatal — the controller replies with an error packet and keeps the
// session open.
type MalformedPacketError struct {
	Command Command
	Reason  string
}

func (e *MalformedPacketError) Error() string {
	return fmt.Sprintf("wire: malformed packet for %s: %s", e.Command, e.Reason)
}

// UnknownCommandError is returned when a packet's command code is not in
// the fixed enumeration the codec knows about.
type UnknownCommandError struct {
	Command Command
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("wire: unknown command code %d", uint32(e.Command))
}

// PayloadTooLargeError is returned when a declared argument length exceeds
// the configured ceiling (default 16 MiB) before any allocation happens.
type PayloadTooLargeError struct {
	Declared uint32
	Ceiling  uint32
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("wire: argument length %d exceeds ceiling %d", e.Declared, e.Ceiling)
}
