package frontline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	frames []Frame
	bodies [][]byte
}

func (r *recordingDispatcher) Dispatch(f Frame, body []byte) error {
	r.frames = append(r.frames, f)
	b := make([]byte, len(body))
	copy(b, body)
	r.bodies = append(r.bodies, b)
	return nil
}

// buildFragment assembles one BC4 fragment with the given type, llid
// and payload so tests can build realistic concatenated streams.
func buildFragment(typ, llid uint8, payload []byte) []byte {
	buf := make([]byte, HlenBC4+len(payload))
	buf[0] = HlenBC4
	buf[1] = 0x00 // channel
	// clock word: master (bit 27 clear), clock=0, status=0
	buf[2], buf[3], buf[4], buf[5] = 0, 0, 0, 0
	buf[6] = (typ << FPTypeShift) & 0xFF // addr=0
	lenWord := uint16(len(payload))<<FPLenShift | uint16(llid)
	buf[7] = byte(lenWord)
	buf[8] = byte(lenWord >> 8)
	copy(buf[HlenBC4:], payload)
	return buf
}

func TestDecodeSingleFragment(t *testing.T) {
	dec := NewDecoder(nil)
	frag := buildFragment(TypeDM1, LLIDLMP, []byte{0xAA, 0xBB})
	disp := &recordingDispatcher{}
	require.NoError(t, dec.Decode(frag, disp))
	require.Len(t, disp.frames, 1)
	assert.Equal(t, uint8(LLIDLMP), disp.frames[0].LLID)
	assert.True(t, disp.frames[0].Master)
	assert.Equal(t, []byte{0xAA, 0xBB}, disp.bodies[0])
}

// Two concatenated fragments, plen=4 then plen=0. With ignore-zero
// on, only one payload dispatch occurs, but both are still parsed
// (recursion is not cut short by the zero-length filter).
func TestDecodeZeroLengthFilterStillRecurses(t *testing.T) {
	first := buildFragment(TypeDM1, LLIDStart, []byte{1, 2, 3, 4})
	second := buildFragment(TypeDM1, LLIDStart, nil)
	stream := append(first, second...)

	dec := NewDecoder(nil)
	dec.IgnoreZeroLength = true
	disp := &recordingDispatcher{}
	require.NoError(t, dec.Decode(stream, disp))
	require.Len(t, disp.frames, 1, "zero-length fragment must not be dispatched")
}

func TestIgnoreListDropsAppendix(t *testing.T) {
	first := buildFragment(TypeDM1, LLIDStart, []byte{1, 2, 3, 4})
	second := buildFragment(TypeDH1, LLIDStart, []byte{5, 6})
	stream := append(first, second...)

	dec := NewDecoder(nil)
	require.NoError(t, dec.Ignore.Add(TypeDM1))
	disp := &recordingDispatcher{}
	require.NoError(t, dec.Decode(stream, disp))
	assert.Empty(t, disp.frames, "ignored type must also drop its appendix")
}

// Σ(hlen_i + plen_i) == input.len over the recursive decomposition.
func TestInvariantFragmentsSumToInputLength(t *testing.T) {
	frags := [][]byte{
		buildFragment(TypeDM1, LLIDStart, []byte{1, 2, 3}),
		buildFragment(TypeDH1, LLIDContinuation, []byte{4, 5}),
		buildFragment(TypeNull, LLIDStart, nil),
	}
	var stream []byte
	for _, f := range frags {
		stream = append(stream, f...)
	}

	dec := NewDecoder(nil)
	disp := &recordingDispatcher{}
	require.NoError(t, dec.Decode(stream, disp))
	require.Len(t, disp.frames, len(frags))

	sum := 0
	for _, f := range disp.frames {
		sum += f.HeaderLen + f.PayloadLen
	}
	assert.Equal(t, len(stream), sum)
}

func TestUnknownHeaderLengthIsFatal(t *testing.T) {
	dec := NewDecoder(nil)
	bad := []byte{0x05, 0, 0, 0, 0, 0, 0, 0, 0}
	err := dec.Decode(bad, &recordingDispatcher{})
	require.ErrorIs(t, err, ErrUnsupportedHeader)
}

func TestDeclaredLengthOverrunIsFatal(t *testing.T) {
	dec := NewDecoder(nil)
	frag := buildFragment(TypeDM1, LLIDStart, []byte{1, 2})
	truncated := frag[:len(frag)-1]
	err := dec.Decode(truncated, &recordingDispatcher{})
	require.ErrorIs(t, err, ErrMalformedFrame)
}

func TestIgnoreListCapacity(t *testing.T) {
	l := &IgnoreList{}
	for i := 0; i < MaxTypes; i++ {
		require.NoError(t, l.Add(uint8(i)))
	}
	require.ErrorIs(t, l.Add(uint8(MaxTypes)), ErrIgnoreListFull)
	l.Remove(0)
	require.NoError(t, l.Add(uint8(MaxTypes)))
}
