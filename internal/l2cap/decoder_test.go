package l2cap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nopper/packet-manipulator/internal/frontline"
)

type recordingDumpSink struct {
	body []byte
	llid uint8
}

func (r *recordingDumpSink) WriteL2CAPEvent(body []byte, llid uint8) error {
	r.body = append([]byte(nil), body...)
	r.llid = llid
	return nil
}

func TestDispatchForwardsBodyAndLLID(t *testing.T) {
	sink := &recordingDumpSink{}
	d := NewDecoder(nil)
	d.DumpSink = sink

	body := []byte{0x01, 0x02, 0x03}
	require.NoError(t, d.Dispatch(frontline.Frame{LLID: frontline.LLIDStart}, body))
	assert.Equal(t, body, sink.body)
	assert.Equal(t, uint8(frontline.LLIDStart), sink.llid)
}

func TestDispatchWithoutSink(t *testing.T) {
	d := NewDecoder(nil)
	require.NoError(t, d.Dispatch(frontline.Frame{}, []byte{0x01}))
}
