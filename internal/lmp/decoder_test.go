package lmp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nopper/packet-manipulator/internal/frontline"
)

type recordingObserver struct {
	masterSender bool
	op1          uint8
	body         []byte
}

func (r *recordingObserver) Observe(masterSender bool, op1 uint8, body []byte) {
	r.masterSender = masterSender
	r.op1 = op1
	r.body = append([]byte(nil), body...)
}

type recordingDumpSink struct {
	body   []byte
	master bool
	calls  int
}

func (r *recordingDumpSink) WriteLMPEvent(body []byte, master bool) error {
	r.body = append([]byte(nil), body...)
	r.master = master
	r.calls++
	return nil
}

// An opcode byte in the extended range consumes a second opcode byte
// before the rest of the body is treated as hexdump payload.
func TestExtendedOpcode(t *testing.T) {
	obs := &recordingObserver{}
	d := NewDecoder(nil)
	d.Pairing = obs

	body := []byte{0xF8, 0x03, 0xAA, 0xBB}
	require.NoError(t, d.Dispatch(frontline.Frame{Master: true}, body))

	assert.Equal(t, uint8(124), obs.op1)
	assert.Equal(t, []byte{0xAA, 0xBB}, obs.body)
}

func TestDumpWritesRawBodyBeforeDecoding(t *testing.T) {
	sink := &recordingDumpSink{}
	d := NewDecoder(nil)
	d.DumpSink = sink

	body := []byte{0x12, 0x34, 0x56}
	require.NoError(t, d.Dispatch(frontline.Frame{Master: false}, body))
	assert.Equal(t, 1, sink.calls)
	assert.Equal(t, body, sink.body)
	assert.False(t, sink.master)
}

func TestNonExtendedOpcodeHasNoOp2(t *testing.T) {
	obs := &recordingObserver{}
	d := NewDecoder(nil)
	d.Pairing = obs

	// tid=1, op1=9 (LMP_in_rand): byte = (9<<1)|1 = 0x13.
	body := []byte{0x13, 0xAA, 0xBB, 0xCC}
	require.NoError(t, d.Dispatch(frontline.Frame{Master: true}, body))
	assert.Equal(t, uint8(OpInRand), obs.op1)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, obs.body)
}

func TestEmptyBodyIsShort(t *testing.T) {
	d := NewDecoder(nil)
	err := d.Dispatch(frontline.Frame{}, nil)
	require.ErrorIs(t, err, ErrShortBody)
}
