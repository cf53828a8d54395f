package sniffer

import (
	"encoding/hex"

	"github.com/sirupsen/logrus"

	"github.com/nopper/packet-manipulator/internal/frontline"
	"github.com/nopper/packet-manipulator/internal/l2cap"
	"github.com/nopper/packet-manipulator/internal/lmp"
	"github.com/nopper/packet-manipulator/internal/telemetry"
)

// router is the frontline.Dispatcher the session wires into its
// Decoder: it applies the payload-decoder selection rule (DV hexdump
// only, else LMP if the LLID marks it, else L2CAP) and leaves the
// actual decode work to the LMP/L2CAP collaborators so neither of them
// needs to know about the other or about DV traffic.
type router struct {
	lmp     *lmp.Decoder
	l2cap   *l2cap.Decoder
	metrics *telemetry.CaptureMetrics
	log     *logrus.Entry
}

func newRouter(lmpDec *lmp.Decoder, l2capDec *l2cap.Decoder, log *logrus.Entry) *router {
	return &router{
		lmp:   lmpDec,
		l2cap: l2capDec,
		log:   log.WithField("component", "router"),
	}
}

var _ frontline.Dispatcher = (*router)(nil)

// Dispatch implements frontline.Dispatcher.
func (r *router) Dispatch(f frontline.Frame, body []byte) error {
	if r.metrics != nil {
		r.metrics.RecordFragment(f.Type, f.PayloadLen)
	}

	switch {
	case f.Type == frontline.TypeDV:
		r.log.WithField("body", hex.EncodeToString(body)).Debug("dv pdu")
		return nil
	case f.LLID == frontline.LLIDLMP:
		return r.lmp.Dispatch(f, body)
	default:
		return r.l2cap.Dispatch(f, body)
	}
}
