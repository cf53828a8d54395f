package vendorcmd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The encoder emits [0x07, 0x00, 0x00, ...] for TIMER; given reply
// 00 00 78 56 34 12 ..., the clock decodes to 0x12345678.
func TestTimerRoundTrip(t *testing.T) {
	raw := EncodeTimer()
	require.Equal(t, byte(Prefix), raw[0])
	require.Equal(t, byte(0x07), raw[0])
	require.Equal(t, CmdTimer, raw[1])
	require.Equal(t, byte(0x00), raw[2])

	reply := []byte{0x00, 0x00, 0x78, 0x56, 0x34, 0x12, 0x00, 0x00}
	clock, err := DecodeTimerReply(reply)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), clock)
}

// The encoded START payload contains the two MACs in the order
// supplied, at offsets [0..6) and [6..12).
func TestStartPayloadOrder(t *testing.T) {
	master, slave, err := ParsePair("11:22:33:44:55:66@AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)

	raw := EncodeStart(master, slave)
	payload := raw[2:]
	assert.Equal(t, []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}, payload[0:6])
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}, payload[6:12])
}

func TestEveryCommandStartsWithPrefixAndFitsHCILimit(t *testing.T) {
	master, slave, _ := ParsePair("11:22:33:44:55:66@aa:bb:cc:dd:ee:ff")
	for _, raw := range [][]byte{
		EncodeTimer(),
		EncodeFilter(true),
		EncodeStop(),
		EncodeStart(master, slave),
	} {
		require.Equal(t, byte(Prefix), raw[0])
		assert.LessOrEqual(t, len(raw), 255)
	}
}

func TestParsePairErrors(t *testing.T) {
	_, _, err := ParsePair("11:22:33:44:55:66")
	assert.True(t, errors.Is(err, ErrBadPairSpec))

	_, _, err = ParsePair("not-a-mac@aa:bb:cc:dd:ee:ff")
	assert.True(t, errors.Is(err, ErrBadAddress))
}

func TestEncodeOverflow(t *testing.T) {
	_, err := NewDebugPacket(CmdStart, make([]byte, payloadCap+1))
	require.Error(t, err)
}
