package wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoAethereal/dbgclient/internal/wire"
)

func TestValidateCountedAddressesHappyPath(t *testing.T) {
	args := []wire.Argument{
		wire.IntegerArg(2),
		wire.AddressArg(0x401000),
		wire.AddressArg(0x401010),
	}
	require.NoError(t, wire.Validate(wire.CmdSetBP, args))
}

func TestValidateCountedAddressesMismatch(t *testing.T) {
	args := []wire.Argument{
		wire.IntegerArg(3),
		wire.AddressArg(0x401000),
	}
	err := wire.Validate(wire.CmdSetBP, args)
	var malformed *wire.MalformedPacketError
	require.ErrorAs(t, err, &malformed)
}

func TestValidateFixedWrongType(t *testing.T) {
	args := []wire.Argument{wire.DataArg([]byte{1, 2, 3, 4})}
	err := wire.Validate(wire.CmdSelectProcess, args)
	var malformed *wire.MalformedPacketError
	require.ErrorAs(t, err, &malformed)
}

func TestValidateIntegerLengthMismatch(t *testing.T) {
	args := []wire.Argument{{Type: wire.ArgInteger, Payload: []byte{1, 2, 3}}}
	err := wire.Validate(wire.CmdSelectProcess, args)
	var malformed *wire.MalformedPacketError
	require.ErrorAs(t, err, &malformed)
}

func TestValidateExceptionPairs(t *testing.T) {
	args := []wire.Argument{
		wire.LongArg(0xc0000005),
		wire.IntegerArg(0),
		wire.LongArg(0x80000003),
		wire.IntegerArg(1),
	}
	require.NoError(t, wire.Validate(wire.CmdSetExceptionsOptions, args))
}

func TestValidateExceptionPairsOddCount(t *testing.T) {
	args := []wire.Argument{wire.LongArg(1)}
	err := wire.Validate(wire.CmdSetExceptionsOptions, args)
	assert.Error(t, err)
}

func TestValidateUnknownCommand(t *testing.T) {
	err := wire.Validate(wire.Command(9999), nil)
	var unknown *wire.UnknownCommandError
	require.ErrorAs(t, err, &unknown)
}

func TestValidateNoneArgsRejectsExtra(t *testing.T) {
	err := wire.Validate(wire.CmdResume, []wire.Argument{wire.IntegerArg(1)})
	assert.Error(t, err)
}
