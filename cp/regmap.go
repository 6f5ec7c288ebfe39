package cp

// Register offsets, relative to the command processor base.
const (
	StatusRegister        = 0x00
	CtrlRegister          = 0x02
	ClearRegister         = 0x04
	PerfSelect            = 0x06
	FifoTokenRegister     = 0x0E
	FifoBoundingBoxLeft   = 0x10
	FifoBoundingBoxRight  = 0x12
	FifoBoundingBoxTop    = 0x14
	FifoBoundingBoxBottom = 0x16
	FifoBaseLo            = 0x20
	FifoBaseHi            = 0x22
	FifoEndLo             = 0x24
	FifoEndHi             = 0x26
	FifoHiWatermarkLo     = 0x28
	FifoHiWatermarkHi     = 0x2A
	FifoLoWatermarkLo     = 0x2C
	FifoLoWatermarkHi     = 0x2E
	FifoRWDistanceLo      = 0x30
	FifoRWDistanceHi      = 0x32
	FifoWritePointerLo    = 0x34
	FifoWritePointerHi    = 0x36
	FifoReadPointerLo     = 0x38
	FifoReadPointerHi     = 0x3A
	FifoBPLo              = 0x3C
	FifoBPHi              = 0x3E
	XFRasBusyLo           = 0x40
	XFRasBusyHi           = 0x42
	XFClksLo              = 0x44
	XFClksHi              = 0x46
	XFWaitInLo            = 0x48
	XFWaitInHi            = 0x4A
	XFWaitOutLo           = 0x4C
	XFWaitOutHi           = 0x4E
	VCacheMetricCheckLo   = 0x50
	VCacheMetricCheckHi   = 0x52
	VCacheMetricMissLo    = 0x54
	VCacheMetricMissHi    = 0x56
	VCacheMetricStallLo   = 0x58
	VCacheMetricStallHi   = 0x5A
	ClksPerVtxInLo        = 0x60
	ClksPerVtxInHi        = 0x62
	ClksPerVtxOutLo       = 0x64
	ClksPerVtxOutHi       = 0x66
)

// Write masks of the split address registers.
const (
	WMaskLoAlign32  uint16 = 0xFFE0
	WMaskHiRestrict uint16 = 0x3FFF
)

// Status register bits.
const (
	StatusOverflowHiWatermark  uint16 = 1 << 0
	StatusUnderflowLoWatermark uint16 = 1 << 1
	StatusReadIdle             uint16 = 1 << 2
	StatusCommandIdle          uint16 = 1 << 3
	StatusBreakpoint           uint16 = 1 << 4
)

// Control register bits.
const (
	CtrlGPReadEnable           uint16 = 1 << 0
	CtrlBPEnable               uint16 = 1 << 1
	CtrlFifoOverflowIntEnable  uint16 = 1 << 2
	CtrlFifoUnderflowIntEnable uint16 = 1 << 3
	CtrlGPLinkEnable           uint16 = 1 << 4
	CtrlBPIntEnable            uint16 = 1 << 5
)

// Clear register bits.
const (
	ClearFifoOverflow  uint16 = 1 << 0
	ClearFifoUnderflow uint16 = 1 << 1
	ClearMetrics       uint16 = 1 << 2
)

// clksPerVtxOut is the only performance metric with a non-zero value.
const clksPerVtxOut = 4

func readLow(v uint32) uint16 {
	return uint16(v & 0xFFFF)
}

func readHigh(v uint32) uint16 {
	return uint16(v >> 16)
}

func writeLow(reg uint32, v uint16) uint32 {
	return (reg & 0xFFFF0000) | uint32(v)
}

func writeHigh(reg uint32, v uint16) uint32 {
	return (reg & 0x0000FFFF) | uint32(v)<<16
}
