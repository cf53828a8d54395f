// Package lmp decodes Link Manager Protocol PDUs carried in a
// frontline fragment whose LLID marks it as LMP, splitting the
// TID/opcode header, handling the extended-opcode escape byte, and
// forwarding authentication opcodes to the pairing observer.
package lmp

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nopper/packet-manipulator/internal/frontline"
)

// ErrShortBody means an LMP body was too short to even carry its
// header byte, or to carry the second opcode byte an extended opcode
// promised.
var ErrShortBody = errors.New("lmp: body too short")

// Observer receives LMP opcodes under pairing capture. Implemented by
// internal/pairing.Observer; kept as an interface here so this package
// never imports the pairing state machine, keeping it an independent
// collaborator.
type Observer interface {
	Observe(masterSender bool, op1 uint8, body []byte)
}

// DumpSink receives the raw LMP body for synthetic CSR-event
// persistence, before any of the decoded-field work below happens
// The dump captures the raw LMP body, not the decoded fields.
type DumpSink interface {
	WriteLMPEvent(body []byte, master bool) error
}

// Decoder splits an LMP PDU's TID/opcode header, forwards authentication
// opcodes to the pairing observer, and persists the raw body.
type Decoder struct {
	Log      *logrus.Entry
	Pairing  Observer
	DumpSink DumpSink
}

// NewDecoder returns a Decoder; Pairing and DumpSink are optional and
// may be left nil.
func NewDecoder(log *logrus.Entry) *Decoder {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Decoder{Log: log.WithField("component", "lmp")}
}

// Dispatch implements frontline.Dispatcher for the LMP branch.
func (d *Decoder) Dispatch(f frontline.Frame, body []byte) error {
	if d.DumpSink != nil {
		if err := d.DumpSink.WriteLMPEvent(body, f.Master); err != nil {
			return err
		}
	}

	if len(body) < 1 {
		return fmt.Errorf("%w: empty LMP body", ErrShortBody)
	}
	hdr := body[0]
	tid := hdr & TIDMask
	op1 := hdr >> OP1Shift
	rest := body[1:]

	var op2 *uint8
	if op1 >= ExtendedOpLow && op1 <= ExtendedOpHigh {
		if len(rest) < 1 {
			return fmt.Errorf("%w: extended opcode %d missing op2", ErrShortBody, op1)
		}
		v := rest[0]
		op2 = &v
		rest = rest[1:]
	}

	entry := d.Log.WithFields(logrus.Fields{"tid": tid, "op1": op1})
	if op2 != nil {
		entry = entry.WithField("op2", *op2)
	}
	entry.WithField("body", hex.EncodeToString(rest)).Debug("lmp pdu")

	if d.Pairing != nil {
		d.Pairing.Observe(f.Master, op1, rest)
	}
	return nil
}
