package frontline

// Known frontline header lengths. CSR's debug firmware shipped two
// variants historically named for the silicon generation that emitted
// them: BlueCore2 chips use the shorter header, BlueCore4 chips append
// two reserved bytes (channel-quality/RSSI) before the payload. Any
// other declared length means the stream is unusable.
const (
	HlenBC2 = 9
	HlenBC4 = 11
)

// Header byte-0 (hdr0) bitfield: 3-bit piconet member address (AM_ADDR)
// in the low bits, 4-bit baseband packet type above it.
const (
	FPAddrMask  = 0x07
	FPTypeShift = 3
	FPTypeMask  = 0x0F
)

// Standard Bluetooth baseband packet type codes (Core Spec Part B).
const (
	TypeNull = 0x0
	TypePoll = 0x1
	TypeFHS  = 0x2
	TypeDM1  = 0x3
	TypeDH1  = 0x4
	TypeHV1  = 0x5
	TypeHV2  = 0x6
	TypeHV3  = 0x7
	// TypeDV is the mixed data/voice packet type: firmware streams its
	// body as DV, never as LMP or L2CAP.
	TypeDV   = 0x8
	TypeAUX1 = 0x9
	TypeDM3  = 0xA
	TypeDH3  = 0xB
	TypeEV4  = 0xC
	TypeEV5  = 0xD
	TypeDM5  = 0xE
	TypeDH5  = 0xF
)

// Clock word (32-bit little-endian) layout: 27-bit clock, 1-bit
// direction (clear when the fragment was sent by the master), 4-bit
// status nibble above that.
const (
	FPClockMask   = 0x07FFFFFF
	FPSlaveMask   = 0x08000000
	FPStatusShift = 28
)

// Length word (16-bit little-endian) layout: 2-bit LLID in the low
// bits, payload length above it.
const (
	FPLenLLIDShift = 0
	FPLenLLIDMask  = 0x03
	FPLenShift     = 2
)

// LLID values carried in the length word's low 2 bits.
const (
	LLIDContinuation = 0x01
	LLIDStart        = 0x02
	LLIDLMP          = 0x03
)

// MaxTypes is the fixed capacity of the ignore-type set: a small ordered
// sequence rather than a dynamic container, since the ceiling is part of
// the contract.
const MaxTypes = 16
