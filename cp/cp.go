// Package cp models the flow-control registers of the GPU command processor.
//
// The registers describe the FIFO that lives in guest memory: where it
// starts and ends, how far the producer is ahead of the consumer, and when
// an interrupt should be raised. The CPU goroutine writes bursts and pokes
// registers while the GPU goroutine advances the read pointer, so the live
// block is kept in atomics. Everything else is plain state owned by one side.
package cp

import (
	"fmt"
	"log"

	"github.com/sarchlab/cpfifo/gatherpipe"
	"github.com/sarchlab/cpfifo/sim"
)

// GPU is the part of the FIFO manager that the registers drive.
type GPU interface {
	// RunGpu lets the consumer know that there may be new work.
	RunGpu()

	// FlushGpu waits until the consumer is not in the middle of a read. It
	// returns immediately when the consumer does not run concurrently.
	FlushGpu()

	// SyncForRegisterAccess brings the consumer up to date so that the
	// producer can read GPU-owned state.
	SyncForRegisterAccess()

	// ResetVideoBuffer drops all the fetched but undecoded bytes.
	ResetVideoBuffer()

	// IsDualCore tells if the consumer runs on its own goroutine.
	IsDualCore() bool
}

// ProcessorFifo is the processor-interface side of the FIFO, the copy that
// the gather pipe writes through.
type ProcessorFifo interface {
	MirrorFifo(base, end, writePointer uint32)
	ResetGatherPipe()
}

// InterruptLine is the command processor interrupt input of the processor
// interface.
type InterruptLine interface {
	SetInterrupt(active bool)
}

// FatalHandler is called when the FIFO reaches a state that it cannot
// continue from.
type FatalHandler func(msg string)

// DefaultFatalHandler aborts with a panic.
func DefaultFatalHandler(msg string) {
	log.Panic(msg)
}

// Registers is the flow-control register block of one emulated session.
type Registers struct {
	name string
	fifo fifoRegs

	gpu       GPU
	pi        ProcessorFifo
	line      InterruptLine
	scheduler sim.Scheduler
	fatal     FatalHandler
}

// Name returns the name of the register block.
func (r *Registers) Name() string {
	return r.name
}

// SetGPU sets the consumer that the registers drive.
func (r *Registers) SetGPU(gpu GPU) {
	r.gpu = gpu
}

// SetProcessorFifo sets the processor-interface FIFO copy.
func (r *Registers) SetProcessorFifo(pi ProcessorFifo) {
	r.pi = pi
}

// State returns a copy of the register block.
func (r *Registers) State() FifoState {
	return r.fifo.snapshot()
}

// SetState replaces the register block. No derived value is recomputed.
func (r *Registers) SetState(s FifoState) {
	r.fifo.restore(s)
}

// Reset brings the registers to the power-on state.
func (r *Registers) Reset() {
	r.fifo.restore(FifoState{})
}

// SetupFifo points the FIFO at a region of guest memory and empties it. The
// end address is the address of the last burst slot.
func (r *Registers) SetupFifo(base, end uint32) {
	f := &r.fifo

	f.base.Store(base)
	f.end.Store(end)
	f.writePointer.Store(base)
	f.readPointer.Store(base)
	f.safeReadPointer.Store(base)
	f.rwDistance.Store(0)
}

// OnBurstCommitted is called by the gather pipe every time a burst lands in
// guest memory.
func (r *Registers) OnBurstCommitted() {
	f := &r.fifo

	if !f.linkEnable.Load() {
		r.gpu.RunGpu()
		return
	}

	base, end := f.base.Load(), f.end.Load()

	wp := f.writePointer.Load()
	if wp == end {
		wp = base
	} else {
		wp += gatherpipe.BurstSize
	}
	f.writePointer.Store(wp)

	if f.readEnable.Load() {
		r.pi.MirrorFifo(base, end, wp)
	}

	dist := f.rwDistance.Add(gatherpipe.BurstSize)
	if dist > end-base {
		r.reportFatal(fmt.Sprintf(
			"%s: FIFO overrun, distance 0x%x exceeds capacity 0x%x",
			r.name, dist, end-base))
		return
	}

	hi := f.hiWatermark.Load()
	if hi != 0 && dist >= hi {
		r.gpu.SyncForRegisterAccess()
	}

	r.RecomputeFromProducer()
	r.gpu.RunGpu()
}

// RecomputeFromProducer re-derives the flags on the CPU side. The watermark
// flags can only be raised here.
func (r *Registers) RecomputeFromProducer() {
	f := &r.fifo

	r.updateBreakpointFlag()

	if r.overWatermark() {
		f.overflowFlag.Store(true)
	}

	if r.underWatermark() {
		f.underflowFlag.Store(true)
	}

	r.updateInterrupt(false)
}

// RecomputeFromConsumer re-derives the flags on the GPU side. The watermark
// flags follow the current distance.
func (r *Registers) RecomputeFromConsumer() {
	f := &r.fifo

	r.updateBreakpointFlag()
	f.overflowFlag.Store(r.overWatermark())
	f.underflowFlag.Store(r.underWatermark())

	r.updateInterrupt(true)
}

func (r *Registers) overWatermark() bool {
	hi := r.fifo.hiWatermark.Load()
	return hi != 0 && r.fifo.rwDistance.Load() >= hi
}

func (r *Registers) underWatermark() bool {
	return r.fifo.rwDistance.Load() < r.fifo.loWatermark.Load()
}

func (r *Registers) updateBreakpointFlag() {
	r.fifo.bpFlag.Store(r.AtBreakpoint())
}

// InterruptActive tells if the given flag and enable pairs raise the command
// processor interrupt.
func InterruptActive(
	bpFlag, bpIntEnable bool,
	overflowFlag, overflowIntEnable bool,
	underflowFlag, underflowIntEnable bool,
) bool {
	return (bpFlag && bpIntEnable) ||
		(overflowFlag && overflowIntEnable) ||
		(underflowFlag && underflowIntEnable)
}

func (r *Registers) interruptActive() bool {
	f := &r.fifo

	return InterruptActive(
		f.bpFlag.Load(), f.bpIntEnable.Load(),
		f.overflowFlag.Load(), f.overflowIntEnable.Load(),
		f.underflowFlag.Load(), f.underflowIntEnable.Load(),
	)
}

// InterruptSet tells if the interrupt line is currently raised by the
// command processor.
func (r *Registers) InterruptSet() bool {
	return r.fifo.interruptSet.Load()
}

// InterruptWaiting tells if an interrupt delivery has been scheduled but has
// not happened yet. The consumer does not fetch while it is waiting.
func (r *Registers) InterruptWaiting() bool {
	return r.fifo.interruptWaiting.Load()
}

func (r *Registers) updateInterrupt(fromConsumer bool) {
	f := &r.fifo

	active := r.interruptActive()
	if active == f.interruptSet.Load() {
		return
	}

	if fromConsumer && r.gpu.IsDualCore() {
		if !f.interruptWaiting.CompareAndSwap(false, true) {
			return
		}

		r.scheduler.ScheduleAfter(0, func(int64) {
			r.deliverInterrupt()
		})

		return
	}

	if f.interruptWaiting.Load() {
		return
	}

	r.setInterrupt(active)
}

func (r *Registers) deliverInterrupt() {
	r.setInterrupt(r.interruptActive())
	r.fifo.interruptWaiting.Store(false)
	r.gpu.RunGpu()
}

func (r *Registers) setInterrupt(active bool) {
	r.fifo.interruptSet.Store(active)

	if r.line != nil {
		r.line.SetInterrupt(active)
	}
}

// WriteControlRegister updates the enable bits.
func (r *Registers) WriteControlRegister(v uint16) {
	f := &r.fifo

	if v != r.controlBits() {
		r.gpu.FlushGpu()
	}

	f.readEnable.Store(v&CtrlGPReadEnable != 0)
	f.bpEnable.Store(v&CtrlBPEnable != 0)
	f.overflowIntEnable.Store(v&CtrlFifoOverflowIntEnable != 0)
	f.underflowIntEnable.Store(v&CtrlFifoUnderflowIntEnable != 0)
	f.linkEnable.Store(v&CtrlGPLinkEnable != 0)
	f.bpIntEnable.Store(v&CtrlBPIntEnable != 0)

	r.RecomputeFromProducer()
	r.gpu.RunGpu()
}

func (r *Registers) controlBits() uint16 {
	f := &r.fifo

	var v uint16
	if f.readEnable.Load() {
		v |= CtrlGPReadEnable
	}
	if f.bpEnable.Load() {
		v |= CtrlBPEnable
	}
	if f.overflowIntEnable.Load() {
		v |= CtrlFifoOverflowIntEnable
	}
	if f.underflowIntEnable.Load() {
		v |= CtrlFifoUnderflowIntEnable
	}
	if f.linkEnable.Load() {
		v |= CtrlGPLinkEnable
	}
	if f.bpIntEnable.Load() {
		v |= CtrlBPIntEnable
	}

	return v
}

// WriteClearRegister clears the watermark flags. The flags are not
// re-derived, so a status read right after the clear shows them as zero.
func (r *Registers) WriteClearRegister(v uint16) {
	f := &r.fifo

	r.gpu.FlushGpu()

	if v&ClearFifoOverflow != 0 {
		f.overflowFlag.Store(false)
	}

	if v&ClearFifoUnderflow != 0 {
		f.underflowFlag.Store(false)
	}

	r.updateInterrupt(false)
	r.gpu.RunGpu()
}

func (r *Registers) statusBits() uint16 {
	f := &r.fifo

	var v uint16
	if f.overflowFlag.Load() {
		v |= StatusOverflowHiWatermark
	}
	if f.underflowFlag.Load() {
		v |= StatusUnderflowLoWatermark
	}

	empty := f.rwDistance.Load() == 0
	atBP := r.AtBreakpoint()

	if empty || atBP {
		v |= StatusReadIdle
	}
	if empty || atBP || !f.readEnable.Load() {
		v |= StatusCommandIdle
	}
	if f.bpFlag.Load() {
		v |= StatusBreakpoint
	}

	return v
}

// ReadWriteDistance returns the number of bytes between the read and the
// write pointer as the CPU sees it. When the consumer runs on its own
// goroutine, the distance is derived from the safe read pointer after the
// consumer has caught up.
func (r *Registers) ReadWriteDistance() uint32 {
	f := &r.fifo

	r.gpu.SyncForRegisterAccess()

	if !r.gpu.IsDualCore() {
		return f.rwDistance.Load()
	}

	wp := f.writePointer.Load()
	rp := f.safeReadPointer.Load()

	if wp >= rp {
		return wp - rp
	}

	return f.end.Load() - rp + wp - f.base.Load() + gatherpipe.BurstSize
}

// AtBreakpoint tells if the consumer is parked on the breakpoint address.
func (r *Registers) AtBreakpoint() bool {
	f := &r.fifo
	return f.bpEnable.Load() && f.readPointer.Load() == f.breakpoint.Load()
}

// CanFetch tells if the consumer may read the next burst from the FIFO.
func (r *Registers) CanFetch() bool {
	f := &r.fifo

	return !f.interruptWaiting.Load() &&
		f.readEnable.Load() &&
		f.rwDistance.Load() != 0 &&
		!r.AtBreakpoint()
}

// ReadPointer returns the GPU-owned read pointer.
func (r *Registers) ReadPointer() uint32 {
	return r.fifo.readPointer.Load()
}

// AdvanceReadPointer moves the read pointer over one consumed burst and
// re-derives the flags from the consumer side.
func (r *Registers) AdvanceReadPointer() {
	f := &r.fifo

	rp := f.readPointer.Load()
	if rp == f.end.Load() {
		rp = f.base.Load()
	} else {
		rp += gatherpipe.BurstSize
	}
	f.readPointer.Store(rp)

	f.rwDistance.Add(^uint32(gatherpipe.BurstSize - 1))

	r.RecomputeFromConsumer()
}

// PublishSafeReadPointer makes the current read pointer visible to the CPU.
// It must only be called when every fetched byte has been decoded.
func (r *Registers) PublishSafeReadPointer() {
	r.fifo.safeReadPointer.Store(r.fifo.readPointer.Load())
}

// HandleUnknownOpcode reports a command stream that cannot be decoded.
func (r *Registers) HandleUnknownOpcode(cmd byte, inDisplayList bool) {
	r.reportFatal(fmt.Sprintf(
		"%s: unknown opcode 0x%02x (display list: %t), fifo %s",
		r.name, cmd, inDisplayList, r.fifo.snapshot()))
}

func (r *Registers) reportFatal(msg string) {
	log.Printf("%s", msg)
	r.fatal(msg)
}

// SetToken stores the value of the last token command.
func (r *Registers) SetToken(token uint16) {
	r.fifo.token.Store(uint32(token))
}

// SetBoundingBox stores the bounding box computed by the renderer.
func (r *Registers) SetBoundingBox(left, right, top, bottom uint16) {
	r.fifo.bbox[0].Store(uint32(left))
	r.fifo.bbox[1].Store(uint32(right))
	r.fifo.bbox[2].Store(uint32(top))
	r.fifo.bbox[3].Store(uint32(bottom))
}
