package cp

import (
	"fmt"
	"sync/atomic"
)

// FifoState is the flow-control register block as it appears in a save
// state. End is the address of the last burst slot, inclusive.
type FifoState struct {
	Base            uint32
	End             uint32
	HiWatermark     uint32
	LoWatermark     uint32
	RWDistance      uint32
	WritePointer    uint32
	ReadPointer     uint32
	SafeReadPointer uint32
	Breakpoint      uint32

	ReadEnable         bool
	BPEnable           bool
	BPIntEnable        bool
	OverflowIntEnable  bool
	UnderflowIntEnable bool
	LinkEnable         bool

	BPFlag        bool
	OverflowFlag  bool
	UnderflowFlag bool

	InterruptSet     bool
	InterruptWaiting bool

	Token      uint16
	PerfSelect uint16
	BBox       [4]uint16
}

func (s FifoState) String() string {
	return fmt.Sprintf(
		"base=0x%08x end=0x%08x hi=0x%08x lo=0x%08x dist=0x%08x "+
			"wp=0x%08x rp=0x%08x safe_rp=0x%08x bp=0x%08x "+
			"read=%t bp_en=%t bp_int=%t ovf_int=%t undf_int=%t link=%t "+
			"bp_flag=%t ovf=%t undf=%t int_set=%t int_waiting=%t",
		s.Base, s.End, s.HiWatermark, s.LoWatermark, s.RWDistance,
		s.WritePointer, s.ReadPointer, s.SafeReadPointer, s.Breakpoint,
		s.ReadEnable, s.BPEnable, s.BPIntEnable, s.OverflowIntEnable,
		s.UnderflowIntEnable, s.LinkEnable,
		s.BPFlag, s.OverflowFlag, s.UnderflowFlag,
		s.InterruptSet, s.InterruptWaiting,
	)
}

// fifoRegs is the live register block. The CPU goroutine and the GPU
// goroutine both touch it, so every field is an atomic.
type fifoRegs struct {
	base            atomic.Uint32
	end             atomic.Uint32
	hiWatermark     atomic.Uint32
	loWatermark     atomic.Uint32
	rwDistance      atomic.Uint32
	writePointer    atomic.Uint32
	readPointer     atomic.Uint32
	safeReadPointer atomic.Uint32
	breakpoint      atomic.Uint32

	readEnable         atomic.Bool
	bpEnable           atomic.Bool
	bpIntEnable        atomic.Bool
	overflowIntEnable  atomic.Bool
	underflowIntEnable atomic.Bool
	linkEnable         atomic.Bool

	bpFlag        atomic.Bool
	overflowFlag  atomic.Bool
	underflowFlag atomic.Bool

	interruptSet     atomic.Bool
	interruptWaiting atomic.Bool

	token      atomic.Uint32
	perfSelect atomic.Uint32
	bbox       [4]atomic.Uint32
}

func (f *fifoRegs) snapshot() FifoState {
	s := FifoState{
		Base:            f.base.Load(),
		End:             f.end.Load(),
		HiWatermark:     f.hiWatermark.Load(),
		LoWatermark:     f.loWatermark.Load(),
		RWDistance:      f.rwDistance.Load(),
		WritePointer:    f.writePointer.Load(),
		ReadPointer:     f.readPointer.Load(),
		SafeReadPointer: f.safeReadPointer.Load(),
		Breakpoint:      f.breakpoint.Load(),

		ReadEnable:         f.readEnable.Load(),
		BPEnable:           f.bpEnable.Load(),
		BPIntEnable:        f.bpIntEnable.Load(),
		OverflowIntEnable:  f.overflowIntEnable.Load(),
		UnderflowIntEnable: f.underflowIntEnable.Load(),
		LinkEnable:         f.linkEnable.Load(),

		BPFlag:        f.bpFlag.Load(),
		OverflowFlag:  f.overflowFlag.Load(),
		UnderflowFlag: f.underflowFlag.Load(),

		InterruptSet:     f.interruptSet.Load(),
		InterruptWaiting: f.interruptWaiting.Load(),

		Token:      uint16(f.token.Load()),
		PerfSelect: uint16(f.perfSelect.Load()),
	}

	for i := range f.bbox {
		s.BBox[i] = uint16(f.bbox[i].Load())
	}

	return s
}

func (f *fifoRegs) restore(s FifoState) {
	f.base.Store(s.Base)
	f.end.Store(s.End)
	f.hiWatermark.Store(s.HiWatermark)
	f.loWatermark.Store(s.LoWatermark)
	f.rwDistance.Store(s.RWDistance)
	f.writePointer.Store(s.WritePointer)
	f.readPointer.Store(s.ReadPointer)
	f.safeReadPointer.Store(s.SafeReadPointer)
	f.breakpoint.Store(s.Breakpoint)

	f.readEnable.Store(s.ReadEnable)
	f.bpEnable.Store(s.BPEnable)
	f.bpIntEnable.Store(s.BPIntEnable)
	f.overflowIntEnable.Store(s.OverflowIntEnable)
	f.underflowIntEnable.Store(s.UnderflowIntEnable)
	f.linkEnable.Store(s.LinkEnable)

	f.bpFlag.Store(s.BPFlag)
	f.overflowFlag.Store(s.OverflowFlag)
	f.underflowFlag.Store(s.UnderflowFlag)

	f.interruptSet.Store(s.InterruptSet)
	f.interruptWaiting.Store(s.InterruptWaiting)

	f.token.Store(uint32(s.Token))
	f.perfSelect.Store(uint32(s.PerfSelect))

	for i := range f.bbox {
		f.bbox[i].Store(uint32(s.BBox[i]))
	}
}
