//go:build linux

// Package hcisock owns the raw AF_BLUETOOTH/BTPROTO_HCI socket: binding
// to a named device, installing the capture filter, and the blocking
// read/write primitives the rest of the module builds on.
package hcisock

import (
	"fmt"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/sirupsen/logrus"
)

// Bluetooth protocol family and socket constants, following the same
// following the same Linux socket-syscall naming convention.
const (
	afBluetooth = 31
	btprotoHCI  = 1

	hciChannelRaw  = 0
	hciChannelUser = 1

	solHCI    = 0
	hciFilter = 2
)

// typCommandPkt is the HCI packet-type byte (first byte on the wire)
// that marks an outgoing command, as opposed to ACL data or an event.
const typCommandPkt = 0x01

// OGF/OCF split of a 16-bit HCI command opcode: bits 10-15 are the
// opcode group, bits 0-9 are the command field within that group.
const (
	ogfShift = 10
	ocfMask  = 0x03FF
)

// OGFVendor is the OGF reserved for vendor-specific commands.
const OGFVendor uint8 = 0x3F

type sockaddrHCI struct {
	Family  uint16
	Dev     uint16
	Channel uint16
}

const sizeofSockaddrHCI = unsafe.Sizeof(sockaddrHCI{})

// Filter mirrors struct hci_filter from <bluetooth/hci.h>.
type Filter struct {
	TypeMask  uint32
	EventMask [2]uint32
	Opcode    uint16
}

// openRaw opens an AF_BLUETOOTH/BTPROTO_HCI socket bound to device id n,
// retrying on EBUSY.
func openRaw(n int) (int, error) {
	var fd int
	var err error
	for i := 0; i < 5; i++ {
		fd, err = syscall.Socket(afBluetooth, syscall.SOCK_RAW, btprotoHCI)
		if err == nil || err != syscall.EBUSY {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		return 0, err
	}

	sa := sockaddrHCI{Family: afBluetooth, Dev: uint16(n), Channel: hciChannelUser}
	for i := 0; i < 5; i++ {
		err = bind(fd, &sa)
		if err == nil || err != syscall.EBUSY {
			break
		}
		time.Sleep(time.Second)
	}
	if err == syscall.EINVAL {
		// Older kernels without the 3.14 HCI_CHANNEL_USER feature fall
		// back to the shared raw channel.
		sa.Channel = hciChannelRaw
		err = bind(fd, &sa)
	}
	if err != nil {
		syscall.Close(fd)
		return 0, err
	}
	return fd, nil
}

func bind(fd int, sa *sockaddrHCI) error {
	_, _, errno := syscall.Syscall(syscall.SYS_BIND, uintptr(fd), uintptr(unsafe.Pointer(sa)), uintptr(sizeofSockaddrHCI))
	if errno != 0 {
		return errno
	}
	return nil
}

func setsockoptFilter(fd int, f *Filter) error {
	_, _, errno := syscall.Syscall6(syscall.SYS_SETSOCKOPT, uintptr(fd), uintptr(solHCI), uintptr(hciFilter),
		uintptr(unsafe.Pointer(f)), unsafe.Sizeof(*f), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// Device is a raw HCI socket, exposed as io.ReadWriteCloser with
// per-direction locks around the shared fd.
type Device struct {
	fd  int
	log *logrus.Entry

	rmu sync.Mutex
	wmu sync.Mutex
}

// Open resolves name (e.g. "hci0") to a device id and binds a raw HCI
// socket to it.
func Open(name string) (*Device, error) {
	id, err := devID(name)
	if err != nil {
		return nil, err
	}
	fd, err := openRaw(id)
	if err != nil {
		return nil, err
	}
	return &Device{
		fd:  fd,
		log: logrus.WithFields(logrus.Fields{"component": "hcisock", "device": name}),
	}, nil
}

// InstallCaptureFilter clears the socket filter and enables every
// packet type and every event.
func (d *Device) InstallCaptureFilter() error {
	f := Filter{}
	f.TypeMask = 0xFFFFFFFF
	f.EventMask[0] = 0xFFFFFFFF
	f.EventMask[1] = 0xFFFFFFFF
	if err := setsockoptFilter(d.fd, &f); err != nil {
		return fmt.Errorf("install capture filter: %w", err)
	}
	d.log.Debug("capture filter installed")
	return nil
}

// SetReadTimeout bounds the next Read calls via SO_RCVTIMEO, the way
// send_vendor enforces the firmware's 2-second reply window.
func (d *Device) SetReadTimeout(timeout time.Duration) error {
	tv := syscall.NsecToTimeval(timeout.Nanoseconds())
	return syscall.SetsockoptTimeval(d.fd, syscall.SOL_SOCKET, syscall.SO_RCVTIMEO, &tv)
}

func (d *Device) Read(b []byte) (int, error) {
	d.rmu.Lock()
	defer d.rmu.Unlock()
	return syscall.Read(d.fd, b)
}

func (d *Device) Write(b []byte) (int, error) {
	d.wmu.Lock()
	defer d.wmu.Unlock()
	return syscall.Write(d.fd, b)
}

// buildCommandPkt assembles the HCI command envelope — packet type,
// 2-byte little-endian opcode built from ogf/ocf, and a 1-byte plen —
// the same four fields cmdPkt.marshal assembles before handing a
// command to the socket. Split out from SendCommand so the framing can
// be unit-tested without a live fd.
func buildCommandPkt(ogf uint8, ocf uint16, cparam []byte) ([]byte, error) {
	if len(cparam) > 0xFF {
		return nil, fmt.Errorf("hcisock: command parameter of %d bytes exceeds 255-byte plen", len(cparam))
	}
	op := uint16(ogf)<<ogfShift | (ocf & ocfMask)
	buf := make([]byte, 1+2+1+len(cparam))
	buf[0] = typCommandPkt
	buf[1] = byte(op)
	buf[2] = byte(op >> 8)
	buf[3] = byte(len(cparam))
	copy(buf[4:], cparam)
	return buf, nil
}

// SendCommand wraps cparam in the HCI command envelope and writes it
// whole.
func (d *Device) SendCommand(ogf uint8, ocf uint16, cparam []byte) (int, error) {
	buf, err := buildCommandPkt(ogf, ocf, cparam)
	if err != nil {
		return 0, err
	}
	return d.Write(buf)
}

func (d *Device) Close() error {
	return syscall.Close(d.fd)
}
