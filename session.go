//go:build linux

package sniffer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nopper/packet-manipulator/internal/dump"
	"github.com/nopper/packet-manipulator/internal/frontline"
	"github.com/nopper/packet-manipulator/internal/hcisock"
	"github.com/nopper/packet-manipulator/internal/l2cap"
	"github.com/nopper/packet-manipulator/internal/lmp"
	"github.com/nopper/packet-manipulator/internal/pairing"
	"github.com/nopper/packet-manipulator/internal/telemetry"
	"github.com/nopper/packet-manipulator/internal/vendorcmd"
)

const (
	hciACLDataPkt = 0x02
	aclHdrLen     = 4 // handle(2) + dlen(2), little-endian

	vendorReplyTimeout = 2 * time.Second

	// vendorOCF is the OCF the debug firmware expects every DebugPacket
	// to be carried under; it never varies by command type, since the
	// command type itself is encoded inside cparam.
	vendorOCF uint16 = 0x00
)

// Session is the process-wide unit of capture: it owns the device
// handle, the decode pipeline wired around it, and the pairing and
// dump collaborators the pipeline feeds. Nothing outside the Session
// Controller mutates it once sniffing begins.
type Session struct {
	ID  string
	log *logrus.Entry

	deviceName string
	device     *hcisock.Device

	dumpWriter *dump.Writer

	frontline *frontline.Decoder
	lmpDec    *lmp.Decoder
	l2capDec  *l2cap.Decoder
	router    *router
	pairing   *pairing.Observer
	metrics   *telemetry.CaptureMetrics

	buf []byte
}

// NewSession wires a fresh decode pipeline: frontline decoder -> router
// -> {lmp, l2cap} decoders -> pairing observer, all sharing one
// session-tagged log entry.
func NewSession(log *logrus.Entry) *Session {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	id := uuid.NewString()
	entry := log.WithField("session", id)

	pairingObs := pairing.NewObserver("", "", entry)
	lmpDec := lmp.NewDecoder(entry)
	lmpDec.Pairing = pairingObs
	l2capDec := l2cap.NewDecoder(entry)
	rtr := newRouter(lmpDec, l2capDec, entry)

	return &Session{
		ID:        id,
		log:       entry,
		frontline: frontline.NewDecoder(entry),
		lmpDec:    lmpDec,
		l2capDec:  l2capDec,
		router:    rtr,
		pairing:   pairingObs,
		buf:       make([]byte, 4096),
	}
}

// SetDumpWriter wires w into both the LMP and L2CAP decoders so every
// captured PDU is also persisted, and retains it for Close.
func (s *Session) SetDumpWriter(w *dump.Writer) {
	s.dumpWriter = w
	s.lmpDec.DumpSink = w
	s.l2capDec.DumpSink = w
}

// SetPublisher wires a transcript publisher into the pairing observer.
func (s *Session) SetPublisher(p *telemetry.PairingPublisher) {
	s.pairing.Publisher = p
}

// SetMetrics wires a capture-metrics sink into the router, the pairing
// observer, and the session's own fatal-error reporting.
func (s *Session) SetMetrics(m *telemetry.CaptureMetrics) {
	s.router.metrics = m
	s.pairing.Metrics = m
	s.metrics = m
}

// IgnoreList exposes the frontline decoder's ignore-list so a caller
// can Add/Remove baseband types before Sniff starts.
func (s *Session) IgnoreList() *frontline.IgnoreList {
	return s.frontline.Ignore
}

// SetIgnoreZeroLength toggles the zero-payload fragment filter.
func (s *Session) SetIgnoreZeroLength(ignore bool) {
	s.frontline.IgnoreZeroLength = ignore
}

// Close releases the device handle and dump file, if either is open.
func (s *Session) Close() error {
	var err error
	if s.dumpWriter != nil {
		err = s.dumpWriter.Close()
	}
	if s.device != nil {
		if cerr := s.device.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// resolveDevice opens name's HCI socket on first use and reuses it for
// subsequent commands, the way the Session's device handle is
// "populated by the first command" and mutated only here.
func (s *Session) resolveDevice(name string) (*hcisock.Device, error) {
	if s.device != nil && s.deviceName == name {
		return s.device, nil
	}
	if s.device != nil {
		_ = s.device.Close()
	}
	dev, err := hcisock.Open(name)
	if err != nil {
		return nil, newErr("resolveDevice", KindDeviceNotFound, err)
	}
	s.device = dev
	s.deviceName = name
	return dev, nil
}

// sendCommand wraps cparam in an OGF=VENDOR/OCF=0 HCI command envelope
// and issues it with no expected reply (FILTER/STOP/START).
func (s *Session) sendCommand(dev *hcisock.Device, cparam []byte) error {
	if _, err := dev.SendCommand(hcisock.OGFVendor, vendorOCF, cparam); err != nil {
		return newErr("sendCommand", KindIoError, err)
	}
	return nil
}

// sendVendor wraps cparam the same way sendCommand does, then blocks
// for its EVT_VENDOR reply under the firmware's fixed reply window
// (only TIMER needs this).
func (s *Session) sendVendor(dev *hcisock.Device, cparam []byte) ([]byte, error) {
	if _, err := dev.SendCommand(hcisock.OGFVendor, vendorOCF, cparam); err != nil {
		return nil, newErr("sendVendor", KindIoError, err)
	}
	if err := dev.SetReadTimeout(vendorReplyTimeout); err != nil {
		return nil, newErr("sendVendor", KindIoError, err)
	}
	// Clear the timeout again so a later Sniff on this handle blocks.
	defer func() { _ = dev.SetReadTimeout(0) }()

	const hciEventPkt, evtVendor = 0x04, 0xFF
	reply := make([]byte, 3+255)
	for {
		n, err := dev.Read(reply)
		if err != nil {
			if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
				return nil, newErr("sendVendor", KindTimeout, err)
			}
			return nil, newErr("sendVendor", KindIoError, err)
		}
		// A raw read is [packet type, event code, plen, params...]; the
		// reply is the parameters of the first EVT_VENDOR event.
		if n >= 3 && reply[0] == hciEventPkt && reply[1] == evtVendor {
			end := 3 + int(reply[2])
			if end > n {
				end = n
			}
			return reply[3:end], nil
		}
	}
}

// GetTimer implements get_timer.
func (s *Session) GetTimer(device string) (uint32, error) {
	dev, err := s.resolveDevice(device)
	if err != nil {
		return 0, err
	}
	reply, err := s.sendVendor(dev, vendorcmd.EncodeTimer())
	if err != nil {
		return 0, err
	}
	val, err := vendorcmd.DecodeTimerReply(reply)
	if err != nil {
		return 0, newErr("GetTimer", KindIoError, err)
	}
	return val, nil
}

// SetFilter implements set_filter.
func (s *Session) SetFilter(device string, enable bool) error {
	dev, err := s.resolveDevice(device)
	if err != nil {
		return err
	}
	return s.sendCommand(dev, vendorcmd.EncodeFilter(enable))
}

// SniffStop implements sniff_stop.
func (s *Session) SniffStop(device string) error {
	dev, err := s.resolveDevice(device)
	if err != nil {
		return err
	}
	return s.sendCommand(dev, vendorcmd.EncodeStop())
}

// SniffStart implements sniff_start; it also primes the pairing
// observer's display addresses from the MACs it is given.
func (s *Session) SniffStart(device string, master, slave [6]byte) error {
	dev, err := s.resolveDevice(device)
	if err != nil {
		return err
	}
	if err := s.sendCommand(dev, vendorcmd.EncodeStart(master, slave)); err != nil {
		return err
	}
	s.pairing.MasterAddr = net.HardwareAddr(master[:]).String()
	s.pairing.SlaveAddr = net.HardwareAddr(slave[:]).String()
	return nil
}

// Sniff implements sniff: installs the capture filter, then loops
// forever reading ACL frames and feeding their payload to the
// frontline decoder.
func (s *Session) Sniff(device string) error {
	dev, err := s.resolveDevice(device)
	if err != nil {
		return err
	}
	if err := dev.InstallCaptureFilter(); err != nil {
		return newErr("Sniff", KindIoError, err)
	}

	for {
		n, err := dev.Read(s.buf)
		if err != nil {
			return s.recordFatal("Sniff", newErr("Sniff", KindIoError, err))
		}
		if n == 0 {
			continue
		}
		if err := s.handlePacket(s.buf[:n]); err != nil {
			return s.recordFatal("Sniff", err)
		}
	}
}

// recordFatal reports a fatal decode/capture error to the configured
// metrics sink, if any, before returning it unchanged to the caller.
func (s *Session) recordFatal(op string, err error) error {
	if s.metrics != nil {
		s.metrics.RecordError(context.Background(), op, err)
	}
	return err
}

func (s *Session) handlePacket(data []byte) error {
	if data[0] != hciACLDataPkt {
		s.log.WithField("type", data[0]).Warn("Unknown type")
		return nil
	}
	if len(data) < 1+aclHdrLen {
		return newErr("Sniff", KindMalformedFrame, fmt.Errorf("acl frame of %d bytes shorter than header", len(data)))
	}

	aclHdr := data[1 : 1+aclHdrLen]
	dlen := int(binary.LittleEndian.Uint16(aclHdr[2:4]))
	want := len(data) - aclHdrLen - 1
	if dlen != want {
		return newErr("Sniff", KindMalformedFrame, fmt.Errorf("acl dlen=%d, expected %d", dlen, want))
	}

	payload := data[1+aclHdrLen:]
	if err := s.frontline.Decode(payload, s.router); err != nil {
		return s.classifyFrontlineErr(err)
	}
	return nil
}

func (s *Session) classifyFrontlineErr(err error) error {
	switch {
	case errors.Is(err, frontline.ErrUnsupportedHeader):
		return newErr("Sniff", KindUnsupported, err)
	case errors.Is(err, frontline.ErrMalformedFrame):
		return newErr("Sniff", KindMalformedFrame, err)
	default:
		return newErr("Sniff", KindIoError, err)
	}
}
