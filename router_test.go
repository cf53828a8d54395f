package sniffer

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nopper/packet-manipulator/internal/frontline"
	"github.com/nopper/packet-manipulator/internal/l2cap"
	"github.com/nopper/packet-manipulator/internal/lmp"
	"github.com/nopper/packet-manipulator/internal/telemetry"
)

type fakePairingObserver struct {
	calls []struct {
		masterSender bool
		op1          uint8
		body         []byte
	}
}

func (f *fakePairingObserver) Observe(masterSender bool, op1 uint8, body []byte) {
	f.calls = append(f.calls, struct {
		masterSender bool
		op1          uint8
		body         []byte
	}{masterSender, op1, body})
}

type fakeDumpSink struct {
	bodies [][]byte
	llids  []uint8
}

func (f *fakeDumpSink) WriteL2CAPEvent(body []byte, llid uint8) error {
	f.bodies = append(f.bodies, body)
	f.llids = append(f.llids, llid)
	return nil
}

func newTestRouter(t *testing.T) (*router, *fakePairingObserver, *fakeDumpSink) {
	t.Helper()
	log := logrus.NewEntry(logrus.New())

	pairingObs := &fakePairingObserver{}
	lmpDec := lmp.NewDecoder(log)
	lmpDec.Pairing = pairingObs

	dumpSink := &fakeDumpSink{}
	l2capDec := l2cap.NewDecoder(log)
	l2capDec.DumpSink = dumpSink

	return newRouter(lmpDec, l2capDec, log), pairingObs, dumpSink
}

func TestRouterDVFrameIsHexdumpedOnly(t *testing.T) {
	r, pairingObs, dumpSink := newTestRouter(t)

	f := frontline.Frame{Type: frontline.TypeDV, LLID: frontline.LLIDStart, PayloadLen: 3}
	require.NoError(t, r.Dispatch(f, []byte{1, 2, 3}))

	assert.Empty(t, pairingObs.calls, "DV frame must never reach the LMP decoder")
	assert.Empty(t, dumpSink.bodies, "DV frame must never reach the L2CAP decoder")
}

func TestRouterLMPFrameGoesToLMPDecoder(t *testing.T) {
	r, pairingObs, dumpSink := newTestRouter(t)

	body := []byte{0x13, 0xAA, 0xBB} // hdr byte encodes tid/op1, rest is opaque
	f := frontline.Frame{Type: frontline.TypeDM1, LLID: frontline.LLIDLMP, Master: true, PayloadLen: len(body)}
	require.NoError(t, r.Dispatch(f, body))

	require.Len(t, pairingObs.calls, 1)
	assert.True(t, pairingObs.calls[0].masterSender)
	assert.Empty(t, dumpSink.bodies, "LMP frame must never reach the L2CAP decoder")
}

func TestRouterNonLMPFrameGoesToL2CAPDecoder(t *testing.T) {
	r, pairingObs, dumpSink := newTestRouter(t)

	body := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	f := frontline.Frame{Type: frontline.TypeDM1, LLID: frontline.LLIDStart, PayloadLen: len(body)}
	require.NoError(t, r.Dispatch(f, body))

	assert.Empty(t, pairingObs.calls, "non-LMP frame must never reach the LMP decoder")
	require.Len(t, dumpSink.bodies, 1)
	assert.Equal(t, body, dumpSink.bodies[0])
	assert.Equal(t, uint8(frontline.LLIDStart), dumpSink.llids[0])
}

func TestRouterRecordsFragmentMetricsWhenConfigured(t *testing.T) {
	r, _, _ := newTestRouter(t)
	r.metrics = telemetry.NewCaptureMetrics("http://127.0.0.1:0", "token", "org", "bucket", "session", "hci0", nil)

	f := frontline.Frame{Type: frontline.TypeDV, LLID: frontline.LLIDStart, PayloadLen: 2}
	require.NoError(t, r.Dispatch(f, []byte{0x01, 0x02}))
}
