package cp

import "log"

// Read16 reads the 16-bit register at offset.
func (r *Registers) Read16(offset uint32) uint16 {
	f := &r.fifo

	switch offset {
	case StatusRegister:
		r.gpu.SyncForRegisterAccess()
		return r.statusBits()
	case CtrlRegister:
		return r.controlBits()
	case ClearRegister:
		return 0
	case PerfSelect:
		return uint16(f.perfSelect.Load())
	case FifoTokenRegister:
		return uint16(f.token.Load())
	case FifoBoundingBoxLeft, FifoBoundingBoxRight,
		FifoBoundingBoxTop, FifoBoundingBoxBottom:
		return uint16(f.bbox[(offset-FifoBoundingBoxLeft)/2].Load())
	case FifoBaseLo:
		return readLow(f.base.Load())
	case FifoBaseHi:
		return readHigh(f.base.Load())
	case FifoEndLo:
		return readLow(f.end.Load())
	case FifoEndHi:
		return readHigh(f.end.Load())
	case FifoHiWatermarkLo:
		return readLow(f.hiWatermark.Load())
	case FifoHiWatermarkHi:
		return readHigh(f.hiWatermark.Load())
	case FifoLoWatermarkLo:
		return readLow(f.loWatermark.Load())
	case FifoLoWatermarkHi:
		return readHigh(f.loWatermark.Load())
	case FifoRWDistanceLo:
		return readLow(r.ReadWriteDistance())
	case FifoRWDistanceHi:
		return readHigh(r.ReadWriteDistance())
	case FifoWritePointerLo:
		return readLow(f.writePointer.Load())
	case FifoWritePointerHi:
		return readHigh(f.writePointer.Load())
	case FifoReadPointerLo:
		return readLow(r.cpuReadPointer())
	case FifoReadPointerHi:
		return readHigh(r.cpuReadPointer())
	case FifoBPLo:
		return readLow(f.breakpoint.Load())
	case FifoBPHi:
		return readHigh(f.breakpoint.Load())
	case ClksPerVtxOutLo:
		return clksPerVtxOut
	}

	if offset >= XFRasBusyLo && offset <= ClksPerVtxOutHi {
		return 0
	}

	log.Printf("%s: read from unknown register 0x%02x", r.name, offset)

	return 0
}

func (r *Registers) cpuReadPointer() uint32 {
	r.gpu.SyncForRegisterAccess()

	if r.gpu.IsDualCore() {
		return r.fifo.safeReadPointer.Load()
	}

	return r.fifo.readPointer.Load()
}

// Write16 writes the 16-bit register at offset. Writes to read-only
// registers are dropped.
func (r *Registers) Write16(offset uint32, v uint16) {
	f := &r.fifo

	switch offset {
	case StatusRegister:
	case CtrlRegister:
		r.WriteControlRegister(v)
	case ClearRegister:
		r.WriteClearRegister(v)
	case PerfSelect:
		f.perfSelect.Store(uint32(v))
	case FifoTokenRegister:
		f.token.Store(uint32(v))
	case FifoBoundingBoxLeft, FifoBoundingBoxRight,
		FifoBoundingBoxTop, FifoBoundingBoxBottom:
	case FifoBaseLo:
		f.base.Store(writeLow(f.base.Load(), v&WMaskLoAlign32))
	case FifoBaseHi:
		f.base.Store(writeHigh(f.base.Load(), v&WMaskHiRestrict))
	case FifoEndLo:
		f.end.Store(writeLow(f.end.Load(), v&WMaskLoAlign32))
	case FifoEndHi:
		f.end.Store(writeHigh(f.end.Load(), v&WMaskHiRestrict))
	case FifoHiWatermarkLo:
		f.hiWatermark.Store(writeLow(f.hiWatermark.Load(), v&WMaskLoAlign32))
	case FifoHiWatermarkHi:
		f.hiWatermark.Store(writeHigh(f.hiWatermark.Load(), v&WMaskHiRestrict))
	case FifoLoWatermarkLo:
		f.loWatermark.Store(writeLow(f.loWatermark.Load(), v&WMaskLoAlign32))
	case FifoLoWatermarkHi:
		f.loWatermark.Store(writeHigh(f.loWatermark.Load(), v&WMaskHiRestrict))
	case FifoRWDistanceLo:
		f.rwDistance.Store(writeLow(f.rwDistance.Load(), v&WMaskLoAlign32))
	case FifoRWDistanceHi:
		r.writeDistanceHigh(v)
	case FifoWritePointerLo:
		f.writePointer.Store(writeLow(f.writePointer.Load(), v&WMaskLoAlign32))
	case FifoWritePointerHi:
		f.writePointer.Store(writeHigh(f.writePointer.Load(), v&WMaskHiRestrict))
	case FifoReadPointerLo:
		f.readPointer.Store(writeLow(f.readPointer.Load(), v&WMaskLoAlign32))
		r.PublishSafeReadPointer()
	case FifoReadPointerHi:
		f.readPointer.Store(writeHigh(f.readPointer.Load(), v&WMaskHiRestrict))
		r.PublishSafeReadPointer()
	case FifoBPLo:
		f.breakpoint.Store(writeLow(f.breakpoint.Load(), v&WMaskLoAlign32))
		r.updateBreakpointFlag()
		r.updateInterrupt(false)
	case FifoBPHi:
		f.breakpoint.Store(writeHigh(f.breakpoint.Load(), v&WMaskHiRestrict))
		r.updateBreakpointFlag()
		r.updateInterrupt(false)
	default:
		if offset >= XFRasBusyLo && offset <= ClksPerVtxOutHi {
			return
		}

		log.Printf("%s: write 0x%04x to unknown register 0x%02x",
			r.name, v, offset)
	}
}

func (r *Registers) writeDistanceHigh(v uint16) {
	f := &r.fifo

	r.gpu.SyncForRegisterAccess()

	f.rwDistance.Store(writeHigh(f.rwDistance.Load(), v&WMaskHiRestrict))

	if f.rwDistance.Load() == 0 {
		r.pi.ResetGatherPipe()
		r.gpu.ResetVideoBuffer()
	}

	r.gpu.RunGpu()
}
