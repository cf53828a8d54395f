// Package frontline decodes the vendor frontline frames CSR debug
// firmware streams back over the HCI event channel: a recursive,
// header-length-variant binary format that concatenates baseband
// fragments and classifies each payload by LLID before handing it to
// an LMP or L2CAP sub-decoder.
package frontline

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrUnsupportedHeader means a fragment declared a header length other
// than HlenBC2 or HlenBC4 — the stream is unusable past this point.
var ErrUnsupportedHeader = errors.New("frontline: unsupported header length")

// ErrMalformedFrame means a fragment's declared payload length does
// not fit in the remaining bytes.
var ErrMalformedFrame = errors.New("frontline: declared payload length exceeds remaining bytes")

// Frame is the decoded view of one baseband fragment.
type Frame struct {
	HeaderLen int
	Channel   byte
	Clock     uint32
	Status    uint8
	Master    bool
	Type      uint8
	Addr      uint8
	LLID      uint8
	PayloadLen int
}

// Dispatcher receives one fragment's classified payload. The frontline
// decoder never interprets the payload itself past the LLID/type
// split; that's left to the LMP/L2CAP/DV sub-decoders the session
// controller wires in, keeping this package free of a dependency on
// them.
type Dispatcher interface {
	Dispatch(f Frame, body []byte) error
}

// Decoder applies the ignore-list/zero-length filters around an
// otherwise stateless recursive parse.
type Decoder struct {
	Ignore           *IgnoreList
	IgnoreZeroLength bool
	Log              *logrus.Entry
}

// NewDecoder returns a Decoder with its own empty ignore list.
func NewDecoder(log *logrus.Entry) *Decoder {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Decoder{
		Ignore: &IgnoreList{},
		Log:    log.WithField("component", "frontline"),
	}
}

// Decode parses data as one or more concatenated frontline fragments
// and dispatches each non-filtered payload to d. It recurses over the
// trailing bytes the way firmware appends successive fragments to the
// same buffer; recursion depth is bounded by
// len(data)/HlenBC2.
func (dec *Decoder) Decode(data []byte, d Dispatcher) error {
	if len(data) == 0 {
		return nil
	}

	hlen := int(data[0])
	if hlen != HlenBC2 && hlen != HlenBC4 {
		return fmt.Errorf("%w: %d", ErrUnsupportedHeader, hlen)
	}
	if len(data) < hlen {
		return fmt.Errorf("%w: header length %d exceeds fragment of %d bytes", ErrMalformedFrame, hlen, len(data))
	}

	channel := data[1]
	clockRaw := binary.LittleEndian.Uint32(data[2:6])
	clock := clockRaw & FPClockMask
	status := uint8(clockRaw >> FPStatusShift)
	master := clockRaw&FPSlaveMask == 0

	hdr0 := data[6]
	typ := (hdr0 >> FPTypeShift) & FPTypeMask
	addr := hdr0 & FPAddrMask

	lenWord := binary.LittleEndian.Uint16(data[7:9])
	llid := uint8((lenWord >> FPLenLLIDShift) & FPLenLLIDMask)
	plen := int(lenWord >> FPLenShift)

	if hlen+plen > len(data) {
		return fmt.Errorf("%w: hlen=%d plen=%d remaining=%d", ErrMalformedFrame, hlen, plen, len(data))
	}

	// Ignore-list match drops this fragment and, per current policy,
	// its appendix: the recursion below is never attempted. A firmware
	// that multiplexes unrelated fragments into one buffer would lose
	// them here; see DESIGN.md's open-question note.
	if dec.Ignore != nil && dec.Ignore.Contains(typ) {
		return nil
	}

	f := Frame{
		HeaderLen:  hlen,
		Channel:    channel,
		Clock:      clock,
		Status:     status,
		Master:     master,
		Type:       typ,
		Addr:       addr,
		LLID:       llid,
		PayloadLen: plen,
	}

	dec.Log.WithFields(logrus.Fields{
		"hlen": hlen, "channel": channel, "clock": clock, "status": status,
		"master": master, "type": typ, "addr": addr, "llid": llid, "plen": plen,
	}).Debug("frontline fragment")

	skipDispatch := plen == 0 && dec.IgnoreZeroLength
	if !skipDispatch {
		body := data[hlen : hlen+plen]
		if err := d.Dispatch(f, body); err != nil {
			return err
		}
	}

	remaining := data[hlen+plen:]
	if len(remaining) == 0 {
		return nil
	}
	return dec.Decode(remaining, d)
}
