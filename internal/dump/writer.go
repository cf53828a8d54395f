// Package dump produces byte-exact HCI dump records for captured
// L2CAP traffic and for a synthesized CSR-style LMP vendor event, in
// the on-disk format standard trace tools consume.
package dump

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// On-disk packet-type bytes, reusing the standard HCI values.
const (
	hciACLDataPkt byte = 0x02
	hciEventPkt   byte = 0x04

	evtVendor byte = 0xFF

	// csrChannelID is the fixed CSR debug-channel id the synthetic LMP
	// event wrapper advertises so trace viewers route it to their LMP
	// decoder.
	csrChannelID byte = 20

	// maxLMPBodyLen is the hard cap of the synthetic CSR event format;
	// sources longer than this are rejected.
	maxLMPBodyLen = 17
)

// ErrLMPBodyTooLong means a caller handed WriteLMPEvent more than 17
// bytes, the hard cap of the synthetic CSR wrapper format.
var ErrLMPBodyTooLong = errors.New("dump: LMP body exceeds 17-byte CSR event cap")

// ErrShortWrite means a record was not written atomically in full.
var ErrShortWrite = errors.New("dump: short write")

// PackACLHandle packs a connection handle and PB/BC flags into the
// 16-bit field the HCI ACL header carries: low 12 bits are the handle,
// high 4 bits are the flags.
func PackACLHandle(handle uint16, flags uint8) uint16 {
	return (handle & 0x0FFF) | (uint16(flags&0x0F) << 12)
}

// Clock supplies the timestamp fields a record's DumpHdr carries.
// Defaults to always-zero; callers that want real timestamps can inject
// a time.Now()-backed clock.
type Clock func() (sec, usec uint32)

func zeroClock() (uint32, uint32) { return 0, 0 }

// Writer persists dump records to an afero.Fs-backed file, so tests
// can exercise the byte-exact format against afero.NewMemMapFs()
// instead of touching disk (SPEC_FULL.md ambient test tooling).
type Writer struct {
	fs    afero.Fs
	file  afero.File
	Clock Clock
	log   *logrus.Entry
}

// Open creates (or truncates) path on fs and returns a Writer bound to
// it.
func Open(fs afero.Fs, path string, log *logrus.Entry) (*Writer, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	f, err := fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("dump: open %s: %w", path, err)
	}
	return &Writer{
		fs:    fs,
		file:  f,
		Clock: zeroClock,
		log:   log.WithField("component", "dump"),
	}, nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}

func (w *Writer) clock() (uint32, uint32) {
	if w.Clock == nil {
		return zeroClock()
	}
	return w.Clock()
}

// dumpHdr is the fixed record header shared by every dump record.
type dumpHdr struct {
	Len    uint16
	In     uint8
	TsSec  uint32
	TsUsec uint32
}

func (h dumpHdr) marshal() []byte {
	buf := make([]byte, 11)
	binary.LittleEndian.PutUint16(buf[0:2], h.Len)
	buf[2] = h.In
	binary.LittleEndian.PutUint32(buf[3:7], h.TsSec)
	binary.LittleEndian.PutUint32(buf[7:11], h.TsUsec)
	return buf
}

// writeAtomic writes buf in a single Write call, so no other decode
// path can interleave a record's header and body.
func (w *Writer) writeAtomic(buf []byte) error {
	n, err := w.file.Write(buf)
	if err != nil {
		return fmt.Errorf("dump: %w: %v", ErrShortWrite, err)
	}
	if n != len(buf) {
		return fmt.Errorf("dump: %w: wrote %d of %d bytes", ErrShortWrite, n, len(buf))
	}
	return nil
}

// WriteL2CAPEvent implements l2cap.DumpSink: an HCI ACL data record
// whose payload is the raw L2CAP body and whose handle packs
// (handle=0, flags=llid).
func (w *Writer) WriteL2CAPEvent(body []byte, llid uint8) error {
	sec, usec := w.clock()
	hdr := dumpHdr{
		Len:    uint16(1 + 4 + len(body)),
		In:     1,
		TsSec:  sec,
		TsUsec: usec,
	}

	buf := make([]byte, 0, 11+1+4+len(body))
	buf = append(buf, hdr.marshal()...)
	buf = append(buf, hciACLDataPkt)

	aclHandle := PackACLHandle(0, llid)
	aclHdr := make([]byte, 4)
	binary.LittleEndian.PutUint16(aclHdr[0:2], aclHandle)
	binary.LittleEndian.PutUint16(aclHdr[2:4], uint16(len(body)))
	buf = append(buf, aclHdr...)
	buf = append(buf, body...)

	return w.writeAtomic(buf)
}

// WriteLMPEvent implements lmp.DumpSink: a synthetic CSR-proprietary
// vendor event wrapping a raw LMP body so existing trace viewers
// display LMP traffic.
func (w *Writer) WriteLMPEvent(body []byte, master bool) error {
	if len(body) > maxLMPBodyLen {
		return fmt.Errorf("%w: got %d bytes", ErrLMPBodyTooLong, len(body))
	}
	sec, usec := w.clock()

	const evtBodyLen = 20 // channel_id(1) + dir(1) + lmp_body(17) + connection_handle(1)
	hdr := dumpHdr{
		Len:    uint16(1 + 2 + evtBodyLen),
		In:     1,
		TsSec:  sec,
		TsUsec: usec,
	}

	dir := byte(0x0F)
	if master {
		dir = 0x10
	}

	var lmpBody [maxLMPBodyLen]byte
	copy(lmpBody[:], body)

	buf := make([]byte, 0, 11+1+2+evtBodyLen)
	buf = append(buf, hdr.marshal()...)
	buf = append(buf, hciEventPkt)
	buf = append(buf, evtVendor, evtBodyLen)
	buf = append(buf, csrChannelID, dir)
	buf = append(buf, lmpBody[:]...)
	buf = append(buf, 0x00) // connection_handle

	return w.writeAtomic(buf)
}
