// Package vendorcmd encodes the fixed-size debug packets the CSR debug
// firmware expects on the HCI vendor channel, and decodes the one
// reply payload the session controller cares about (the TIMER clock).
package vendorcmd

import (
	"encoding/binary"
	"fmt"
)

// Fragmentation/channel prefix bits. A DebugPacket is always sent
// whole, never fragmented, so every command carries all three bits set.
const (
	FragFirst = 0x01
	FragLast  = 0x02
	ChanDebug = 0x04

	// Prefix is the single byte prepended to every encoded command.
	Prefix = FragFirst | FragLast | ChanDebug
)

// Command type codes carried in byte 0 of the DebugPacket body.
const (
	CmdTimer  byte = 0x00
	CmdFilter byte = 0x01
	CmdStop   byte = 0x02
	CmdStart  byte = 0x03
)

// payloadCap is the size of the DebugPacket's inline payload area: the
// largest command payload is StartPayload (two 6-byte MACs).
const payloadCap = 12

// DebugPacket is the fixed-size record: a type byte followed by a
// zero-padded inline payload.
type DebugPacket struct {
	Type    byte
	Payload [payloadCap]byte
}

// NewDebugPacket builds a DebugPacket for typ, copying payload into the
// fixed-size inline area. It returns a plain error (no sentinel value
// and no sniffer error Kind) if payload does not fit.
func NewDebugPacket(typ byte, payload []byte) (*DebugPacket, error) {
	if len(payload) > payloadCap {
		return nil, fmt.Errorf("vendorcmd: payload of %d bytes exceeds %d-byte capacity", len(payload), payloadCap)
	}
	p := &DebugPacket{Type: typ}
	copy(p.Payload[:], payload)
	return p, nil
}

// Encode returns the HCI command parameter bytes: the fragmentation
// prefix byte, the command type, and the zero-padded payload. The
// result always fits well within the 255-byte HCI command limit
// (every command stays well within the HCI command limit).
func (p *DebugPacket) Encode() []byte {
	buf := make([]byte, 1+1+payloadCap)
	buf[0] = Prefix
	buf[1] = p.Type
	copy(buf[2:], p.Payload[:])
	return buf
}

// EncodeTimer builds the TIMER command. It carries no payload.
func EncodeTimer() []byte {
	p, _ := NewDebugPacket(CmdTimer, nil)
	return p.Encode()
}

// EncodeFilter builds the FILTER command, one byte: nonzero to enable.
func EncodeFilter(enable bool) []byte {
	var b byte
	if enable {
		b = 1
	}
	p, _ := NewDebugPacket(CmdFilter, []byte{b})
	return p.Encode()
}

// EncodeStop builds the STOP command. It carries no payload.
func EncodeStop() []byte {
	p, _ := NewDebugPacket(CmdStop, nil)
	return p.Encode()
}

// StartPayload overlays the DebugPacket payload for the START command:
// two 6-byte MAC addresses, placed into the wire payload in the order
// the caller supplies them; the core does not reverse bytes, that is
// the caller's responsibility via ParsePair's contract.
type StartPayload struct {
	Master [6]byte
	Slave  [6]byte
}

// Marshal writes the two MACs back to back: master at [0:6), slave at
// [6:12).
func (s StartPayload) Marshal() []byte {
	buf := make([]byte, payloadCap)
	copy(buf[0:6], s.Master[:])
	copy(buf[6:12], s.Slave[:])
	return buf
}

// EncodeStart builds the START command carrying a StartPayload.
func EncodeStart(master, slave [6]byte) []byte {
	sp := StartPayload{Master: master, Slave: slave}
	p, _ := NewDebugPacket(CmdStart, sp.Marshal())
	return p.Encode()
}

// DecodeTimerReply extracts the 4-byte little-endian clock value the
// firmware returns at offset 2 of the TIMER reply.
func DecodeTimerReply(reply []byte) (uint32, error) {
	if len(reply) < 6 {
		return 0, fmt.Errorf("vendorcmd: timer reply too short: %d bytes", len(reply))
	}
	return binary.LittleEndian.Uint32(reply[2:6]), nil
}
