// Package gatherpipe implements the write-combining buffer that collects the
// CPU's scalar writes to the GPU FIFO and commits them in bursts.
package gatherpipe

import (
	"encoding/binary"
	"log"

	"github.com/sarchlab/cpfifo/memory"
	"github.com/sarchlab/cpfifo/sim"
)

// BurstSize is the number of bytes moved from the gather pipe into the FIFO at
// a time.
const BurstSize = 32

// HookPosBurst marks when a burst is committed to guest memory. The item is
// the guest address that the burst was written to.
var HookPosBurst = &sim.HookPos{Name: "Gather Pipe Burst"}

// A BurstListener is told every time a burst lands in the FIFO.
type BurstListener interface {
	OnBurstCommitted()
}

// CPUFifo is the processor-interface view of the FIFO that the CPU writes to.
// End is the address of the last burst slot, inclusive.
type CPUFifo struct {
	Base         uint32
	End          uint32
	WritePointer uint32
}

// State is the save-state image of the gather pipe.
type State struct {
	Data  []byte
	Count int
	Fifo  CPUFifo
}

// GatherPipe accumulates bytes written by the CPU. It is owned by the CPU
// goroutine and is never touched by the GPU.
type GatherPipe struct {
	sim.HookableBase

	name     string
	buf      []byte
	count    int
	fifo     CPUFifo
	mem      memory.Memory
	listener BurstListener
}

// Name returns the name of the gather pipe.
func (p *GatherPipe) Name() string {
	return p.name
}

// Capacity returns the number of bytes the gather pipe can hold.
func (p *GatherPipe) Capacity() int {
	return len(p.buf)
}

// Count returns the number of bytes that have not been committed yet.
func (p *GatherPipe) Count() int {
	return p.count
}

// SetListener sets who is notified about committed bursts.
func (p *GatherPipe) SetListener(l BurstListener) {
	p.listener = l
}

// CPUFifo returns the processor-interface FIFO pointers.
func (p *GatherPipe) CPUFifo() CPUFifo {
	return p.fifo
}

// SetCPUFifo points the gather pipe at a FIFO in guest memory.
func (p *GatherPipe) SetCPUFifo(base, end, writePointer uint32) {
	p.fifo = CPUFifo{Base: base, End: end, WritePointer: writePointer}
}

// MirrorFifo copies the command processor FIFO pointers while the FIFO is
// linked.
func (p *GatherPipe) MirrorFifo(base, end, writePointer uint32) {
	p.SetCPUFifo(base, end, writePointer)
}

// Reset drops all the bytes that have not been committed.
func (p *GatherPipe) Reset() {
	p.count = 0
	clear(p.buf)
}

// ResetGatherPipe drops all the bytes that have not been committed.
func (p *GatherPipe) ResetGatherPipe() {
	p.Reset()
}

// reserve keeps the cursor below the capacity.
func (p *GatherPipe) reserve(n int) []byte {
	if p.count+n >= len(p.buf) {
		log.Panicf("%s: gather pipe overflow, %d bytes buffered, %d incoming",
			p.name, p.count, n)
	}

	b := p.buf[p.count : p.count+n]
	p.count += n

	return b
}

// FastWrite8 appends one byte without checking for full bursts.
func (p *GatherPipe) FastWrite8(v uint8) {
	p.reserve(1)[0] = v
}

// FastWrite16 appends a big-endian 16-bit value without checking for full
// bursts.
func (p *GatherPipe) FastWrite16(v uint16) {
	binary.BigEndian.PutUint16(p.reserve(2), v)
}

// FastWrite32 appends a big-endian 32-bit value without checking for full
// bursts.
func (p *GatherPipe) FastWrite32(v uint32) {
	binary.BigEndian.PutUint32(p.reserve(4), v)
}

// FastWrite64 appends a big-endian 64-bit value without checking for full
// bursts.
func (p *GatherPipe) FastWrite64(v uint64) {
	binary.BigEndian.PutUint64(p.reserve(8), v)
}

// Write8 appends one byte and commits full bursts.
func (p *GatherPipe) Write8(v uint8) {
	p.FastWrite8(v)
	p.CheckGatherPipe()
}

// Write16 appends a big-endian 16-bit value and commits full bursts.
func (p *GatherPipe) Write16(v uint16) {
	p.FastWrite16(v)
	p.CheckGatherPipe()
}

// Write32 appends a big-endian 32-bit value and commits full bursts.
func (p *GatherPipe) Write32(v uint32) {
	p.FastWrite32(v)
	p.CheckGatherPipe()
}

// Write64 appends a big-endian 64-bit value and commits full bursts.
func (p *GatherPipe) Write64(v uint64) {
	p.FastWrite64(v)
	p.CheckGatherPipe()
}

// WriteBytes appends raw bytes, committing bursts as they fill up.
func (p *GatherPipe) WriteBytes(data []byte) {
	for len(data) > 0 {
		n := BurstSize - p.count%BurstSize
		if n > len(data) {
			n = len(data)
		}

		copy(p.reserve(n), data[:n])
		data = data[n:]

		p.CheckGatherPipe()
	}
}

// CheckGatherPipe commits every full burst and moves the remaining bytes to
// the front of the buffer.
func (p *GatherPipe) CheckGatherPipe() {
	if p.count < BurstSize {
		return
	}

	p.UpdateGatherPipe()
}

// UpdateGatherPipe commits full bursts to the CPU FIFO.
func (p *GatherPipe) UpdateGatherPipe() {
	processed := 0

	for p.count-processed >= BurstSize {
		p.commitBurst(p.buf[processed : processed+BurstSize])
		processed += BurstSize
	}

	copy(p.buf, p.buf[processed:p.count])
	p.count -= processed
}

func (p *GatherPipe) commitBurst(burst []byte) {
	addr := p.fifo.WritePointer

	err := p.mem.Write(addr, burst)
	if err != nil {
		log.Panicf("%s: cannot write burst to 0x%08x: %v", p.name, addr, err)
	}

	if p.fifo.WritePointer == p.fifo.End {
		p.fifo.WritePointer = p.fifo.Base
	} else {
		p.fifo.WritePointer += BurstSize
	}

	if p.NumHooks() > 0 {
		p.InvokeHook(sim.HookCtx{
			Domain: p,
			Pos:    HookPosBurst,
			Item:   addr,
		})
	}

	if p.listener != nil {
		p.listener.OnBurstCommitted()
	}
}

// State returns a copy of the gather pipe state.
func (p *GatherPipe) State() State {
	data := make([]byte, len(p.buf))
	copy(data, p.buf)

	return State{
		Data:  data,
		Count: p.count,
		Fifo:  p.fifo,
	}
}

// SetState replaces the gather pipe state.
func (p *GatherPipe) SetState(s State) {
	if len(s.Data) != len(p.buf) || s.Count < 0 || s.Count > len(p.buf) {
		log.Panicf("%s: gather pipe state does not match capacity %d",
			p.name, len(p.buf))
	}

	copy(p.buf, s.Data)
	p.count = s.Count
	p.fifo = s.Fifo
}
