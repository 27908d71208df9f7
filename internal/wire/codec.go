package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	headerSize = 12 // command:u32be, id:u32be, arg_count:u32be
	argHeaderSize = 8 // length:u32be, type:u32be

	// DefaultCeiling is the default bound on a single argument's
	// declared length, checked before any allocation happens.
	DefaultCeiling = 16 * 1024 * 1024

	// maxArgCount bounds the allocation ReadPacket performs for a
	// packet's argument slice, independent of any command's schema.
	// Schema validation (Validate) only runs after ReadPacket has
	// already returned a full Packet, so arg_count itself must be
	// bounded before it is ever trusted for sizing an allocation. The
	// single-peer session makes an unbounded arg_count a one-packet
	// denial of service otherwise.
	maxArgCount = 65536
)

// Codec reads and writes wire packets. It holds no connection state beyond
// the configured ceiling: pure serialization, no I/O policy, no state
// beyond the reader's cursor.
type Codec struct {
	// Ceiling bounds every argument's declared length. Zero means
	// DefaultCeiling.
	Ceiling uint32
}

func (c Codec) ceiling() uint32 {
	if c.Ceiling == 0 {
		return DefaultCeiling
	}
	return c.Ceiling
}

// EncodeReply serializes cmd/id/args into a wire packet. Encoding always
// succeeds: args are assumed to already satisfy the schema the caller is
// replying under.
func (c Codec) EncodeReply(cmd Command, id uint32, args []Argument) []byte {
	buf := make([]byte, headerSize)
	binary.BigEndian.PutUint32(buf[0:4], uint32(cmd))
	binary.BigEndian.PutUint32(buf[4:8], id)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(args)))
	for _, a := range args {
		hdr := make([]byte, argHeaderSize)
		binary.BigEndian.PutUint32(hdr[0:4], uint32(len(a.Payload)))
		binary.BigEndian.PutUint32(hdr[4:8], uint32(a.Type))
		buf = append(buf, hdr...)
		buf = append(buf, a.Payload...)
	}
	return buf
}

// ReadPacket reads exactly one packet from r, blocking until it is
// complete or an error occurs. It does not validate the
// packet against a command schema — callers that need schema validation
// should call Validate separately, so a caller that only wants the raw
// header/id (e.g. to reply with a generic error) still gets it even for
// an otherwise-malformed packet.
func (c Codec) ReadPacket(r io.Reader) (Packet, error) {
	hdr, err := readFull(r, headerSize)
	if err != nil {
		return Packet{}, wrapReadErr(err)
	}
	h := Header{
		Command:  Command(binary.BigEndian.Uint32(hdr[0:4])),
		ID:       binary.BigEndian.Uint32(hdr[4:8]),
		ArgCount: binary.BigEndian.Uint32(hdr[8:12]),
	}

	if h.ArgCount > maxArgCount {
		return Packet{}, &MalformedPacketError{Command: h.Command, Reason: fmt.Sprintf("arg_count %d exceeds maximum %d", h.ArgCount, maxArgCount)}
	}

	args := make([]Argument, 0, h.ArgCount)
	for i := uint32(0); i < h.ArgCount; i++ {
		argHdr, err := readFull(r, argHeaderSize)
		if err != nil {
			return Packet{}, wrapReadErr(err)
		}
		length := binary.BigEndian.Uint32(argHdr[0:4])
		typ := ArgType(binary.BigEndian.Uint32(argHdr[4:8]))
		if length > c.ceiling() {
			return Packet{}, &PayloadTooLargeError{Declared: length, Ceiling: c.ceiling()}
		}
		payload, err := readFull(r, int(length))
		if err != nil {
			return Packet{}, wrapReadErr(err)
		}
		args = append(args, Argument{Type: typ, Payload: payload})
	}

	return Packet{Header: h, Args: args}, nil
}

func readFull(r io.Reader, n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func wrapReadErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrConnectionClosed
	}
	return ErrConnectionError
}
