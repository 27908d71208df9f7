package wire_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoAethereal/dbgclient/internal/wire"
)

func TestEncodeReplyRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		cmd  wire.Command
		id   uint32
		args []wire.Argument
	}{
		{name: "no args", cmd: wire.CmdResumeSucc, id: 7, args: nil},
		{name: "integer", cmd: wire.CmdSetActiveThreadSucc, id: 42, args: []wire.Argument{wire.IntegerArg(9)}},
		{name: "address", cmd: wire.CmdValidMemSucc, id: 1, args: []wire.Argument{wire.AddressArg(0x1000), wire.AddressArg(0x2000)}},
		{name: "data", cmd: wire.CmdReadMemorySucc, id: 3, args: []wire.Argument{wire.DataArg([]byte{1, 2, 3, 4})}},
		{name: "long", cmd: wire.CmdExceptionOccured, id: 0, args: []wire.Argument{wire.IntegerArg(1), wire.AddressArg(0xdead), wire.LongArg(0xc0000005)}},
	}

	codec := wire.Codec{}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			encoded := codec.EncodeReply(c.cmd, c.id, c.args)
			pkt, err := codec.ReadPacket(bytes.NewReader(encoded))
			require.NoError(t, err)

			assert.Equal(t, c.cmd, pkt.Header.Command)
			assert.Equal(t, c.id, pkt.Header.ID)
			require.Len(t, pkt.Args, len(c.args))
			for i, a := range c.args {
				assert.Equal(t, a.Type, pkt.Args[i].Type)
				assert.Equal(t, a.Payload, pkt.Args[i].Payload)
			}
		})
	}
}

func TestAddressHighLowRecombination(t *testing.T) {
	a := wire.Addr(0x1122334455667788)
	arg := wire.AddressArg(a)
	require.Equal(t, []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}, arg.Payload)
	assert.Equal(t, a, arg.Address())
}

func TestReadPacketConnectionClosed(t *testing.T) {
	_, err := wire.Codec{}.ReadPacket(bytes.NewReader(nil))
	assert.ErrorIs(t, err, wire.ErrConnectionClosed)
}

func TestReadPacketShortHeaderIsConnectionClosed(t *testing.T) {
	_, err := wire.Codec{}.ReadPacket(bytes.NewReader([]byte{0, 0, 0}))
	assert.ErrorIs(t, err, wire.ErrConnectionClosed)
}

func TestReadPacketPayloadTooLarge(t *testing.T) {
	codec := wire.Codec{Ceiling: 4}
	buf := codec.EncodeReply(wire.CmdReadMemorySucc, 1, []wire.Argument{wire.DataArg([]byte{1, 2, 3, 4, 5})})
	_, err := codec.ReadPacket(bytes.NewReader(buf))
	var tooLarge *wire.PayloadTooLargeError
	require.ErrorAs(t, err, &tooLarge)
}

func TestReadPacketArgCountTooLargeIsRejectedBeforeAllocating(t *testing.T) {
	// A hostile arg_count with no argument bytes behind it: if ReadPacket
	// ever trusted this value to size an allocation, this single 12-byte
	// header would already have tried to allocate over a hundred GB.
	header := []byte{
		0, 0, 0, byte(wire.CmdResume),
		0, 0, 0, 1,
		0xff, 0xff, 0xff, 0xff,
	}
	_, err := wire.Codec{}.ReadPacket(bytes.NewReader(header))
	var malformed *wire.MalformedPacketError
	require.ErrorAs(t, err, &malformed)
}

func TestGoldenReadMemoryRequest(t *testing.T) {
	// Hand-built golden bytes for READ_MEMORY(base=0x0000000100000000, size=0x10):
	// header: cmd=CmdReadMemory, id=0x2a, arg_count=2
	// arg0: length=8 type=ArgAddress payload=00000001 00000000
	// arg1: length=8 type=ArgAddress payload=00000000 00000010
	golden := []byte{
		0, 0, 0, byte(wire.CmdReadMemory),
		0, 0, 0, 0x2a,
		0, 0, 0, 2,
		0, 0, 0, 8, 0, 0, 0, byte(wire.ArgAddress),
		0, 0, 0, 1, 0, 0, 0, 0,
		0, 0, 0, 8, 0, 0, 0, byte(wire.ArgAddress),
		0, 0, 0, 0, 0, 0, 0, 0x10,
	}

	pkt, err := wire.Codec{}.ReadPacket(bytes.NewReader(golden))
	require.NoError(t, err)
	require.NoError(t, wire.Validate(pkt.Header.Command, pkt.Args))
	assert.Equal(t, uint32(0x2a), pkt.Header.ID)
	assert.Equal(t, wire.Addr(0x100000000), pkt.Args[0].Address())
	assert.Equal(t, wire.Addr(0x10), pkt.Args[1].Address())
}
