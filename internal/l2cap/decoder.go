// Package l2cap handles the non-LMP branch of frontline dispatch: the
// body is forwarded as-is to the dump sink as an ACL data record.
package l2cap

import (
	"encoding/hex"

	"github.com/sirupsen/logrus"

	"github.com/nopper/packet-manipulator/internal/frontline"
)

// DumpSink receives the raw L2CAP body for ACL-record persistence.
type DumpSink interface {
	WriteL2CAPEvent(body []byte, llid uint8) error
}

// Decoder hexdump-logs an L2CAP body and forwards it to the dump sink.
type Decoder struct {
	Log      *logrus.Entry
	DumpSink DumpSink
}

// NewDecoder returns a Decoder; DumpSink is optional and may be left nil.
func NewDecoder(log *logrus.Entry) *Decoder {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Decoder{Log: log.WithField("component", "l2cap")}
}

// Dispatch implements frontline.Dispatcher for the L2CAP branch.
func (d *Decoder) Dispatch(f frontline.Frame, body []byte) error {
	d.Log.WithField("body", hex.EncodeToString(body)).Debug("l2cap pdu")
	if d.DumpSink != nil {
		return d.DumpSink.WriteL2CAPEvent(body, f.LLID)
	}
	return nil
}
