package cp

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/cpfifo/sim"
)

var _ = Describe("InterruptActive", func() {
	It("should be the OR of the three flag and enable pairs", func() {
		for bits := 0; bits < 64; bits++ {
			b := func(i int) bool { return bits&(1<<i) != 0 }

			expected := (b(0) && b(1)) || (b(2) && b(3)) || (b(4) && b(5))

			Expect(InterruptActive(b(0), b(1), b(2), b(3), b(4), b(5))).
				To(Equal(expected), "combination %06b", bits)
		}
	})
})

var _ = Describe("Registers", func() {
	var (
		mockCtrl *gomock.Controller
		gpu      *MockGPU
		pi       *MockProcessorFifo
		line     *MockInterruptLine
		engine   *sim.SerialEngine
		fatals   []string
		syncs    int
		regs     *Registers
	)

	allowMirror := func() {
		pi.EXPECT().MirrorFifo(gomock.Any(), gomock.Any(), gomock.Any()).
			AnyTimes()
	}

	commitBursts := func(n int) {
		for i := 0; i < n; i++ {
			regs.OnBurstCommitted()
		}
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		gpu = NewMockGPU(mockCtrl)
		pi = NewMockProcessorFifo(mockCtrl)
		line = NewMockInterruptLine(mockCtrl)
		engine = sim.NewSerialEngine()
		fatals = nil
		syncs = 0

		gpu.EXPECT().RunGpu().AnyTimes()
		gpu.EXPECT().FlushGpu().AnyTimes()
		gpu.EXPECT().SyncForRegisterAccess().
			Do(func() { syncs++ }).
			AnyTimes()

		regs = MakeBuilder().
			WithGPU(gpu).
			WithProcessorFifo(pi).
			WithInterruptLine(line).
			WithScheduler(engine).
			WithFatalHandler(func(msg string) { fatals = append(fatals, msg) }).
			Build("CP")

		regs.SetupFifo(0x1000, 0x1000+0x4000-32)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Context("single core", func() {
		BeforeEach(func() {
			gpu.EXPECT().IsDualCore().Return(false).AnyTimes()
		})

		It("should only wake the GPU when not linked", func() {
			regs.OnBurstCommitted()

			Expect(regs.State().RWDistance).To(Equal(uint32(0)))
			Expect(regs.State().WritePointer).To(Equal(uint32(0x1000)))
		})

		It("should advance the write pointer and the distance", func() {
			regs.WriteControlRegister(CtrlGPLinkEnable)

			regs.OnBurstCommitted()

			Expect(regs.State().RWDistance).To(Equal(uint32(32)))
			Expect(regs.State().WritePointer).To(Equal(uint32(0x1020)))
		})

		It("should mirror the FIFO while reading is enabled", func() {
			regs.WriteControlRegister(CtrlGPLinkEnable | CtrlGPReadEnable)

			pi.EXPECT().MirrorFifo(uint32(0x1000), uint32(0x4fe0), uint32(0x1020))
			regs.OnBurstCommitted()

			pi.EXPECT().MirrorFifo(uint32(0x1000), uint32(0x4fe0), uint32(0x1040))
			regs.OnBurstCommitted()
		})

		It("should wrap the write pointer at the end", func() {
			regs.WriteControlRegister(CtrlGPLinkEnable)
			s := regs.State()
			s.WritePointer = s.End
			regs.SetState(s)

			regs.OnBurstCommitted()

			Expect(regs.State().WritePointer).To(Equal(uint32(0x1000)))
		})

		It("should report a FIFO overrun", func() {
			regs.WriteControlRegister(CtrlGPLinkEnable)
			s := regs.State()
			s.RWDistance = s.End - s.Base
			regs.SetState(s)

			regs.OnBurstCommitted()

			Expect(fatals).To(HaveLen(1))
			Expect(fatals[0]).To(ContainSubstring("FIFO overrun"))
		})

		It("should raise overflow at the high watermark", func() {
			regs.Write16(FifoHiWatermarkLo, 1024)
			regs.WriteControlRegister(
				CtrlGPLinkEnable | CtrlFifoOverflowIntEnable)

			line.EXPECT().SetInterrupt(true)
			commitBursts(31)
			Expect(regs.Read16(StatusRegister) & StatusOverflowHiWatermark).
				To(BeZero())

			commitBursts(1)
			Expect(regs.State().RWDistance).To(Equal(uint32(1024)))
			Expect(regs.Read16(StatusRegister) & StatusOverflowHiWatermark).
				NotTo(BeZero())
			Expect(regs.InterruptSet()).To(BeTrue())

			line.EXPECT().SetInterrupt(false)
			regs.Write16(ClearRegister, ClearFifoOverflow)

			Expect(regs.Read16(StatusRegister) & StatusOverflowHiWatermark).
				To(BeZero())
			Expect(regs.InterruptSet()).To(BeFalse())
		})

		It("should sync with the consumer once the high watermark is hit", func() {
			regs.Write16(FifoHiWatermarkLo, 64)
			regs.WriteControlRegister(CtrlGPLinkEnable)

			regs.OnBurstCommitted()
			Expect(syncs).To(Equal(0))

			commitBursts(2)
			Expect(syncs).To(Equal(2))
		})

		It("should set underflow from the consumer side", func() {
			allowMirror()
			regs.Write16(FifoLoWatermarkLo, 64)
			regs.WriteControlRegister(CtrlGPLinkEnable | CtrlGPReadEnable)

			commitBursts(3)
			regs.Write16(ClearRegister, ClearFifoUnderflow)
			Expect(regs.State().UnderflowFlag).To(BeFalse())

			regs.AdvanceReadPointer()
			regs.AdvanceReadPointer()

			Expect(regs.State().RWDistance).To(Equal(uint32(32)))
			Expect(regs.Read16(StatusRegister) & StatusUnderflowLoWatermark).
				NotTo(BeZero())
		})

		It("should clear overflow from the consumer side", func() {
			allowMirror()
			regs.Write16(FifoHiWatermarkLo, 64)
			regs.WriteControlRegister(CtrlGPLinkEnable | CtrlGPReadEnable)

			commitBursts(2)
			Expect(regs.State().OverflowFlag).To(BeTrue())

			regs.AdvanceReadPointer()

			Expect(regs.State().OverflowFlag).To(BeFalse())
		})

		Context("breakpoint", func() {
			BeforeEach(func() {
				allowMirror()
				regs.WriteControlRegister(
					CtrlGPLinkEnable | CtrlGPReadEnable | CtrlBPEnable)
				regs.Write16(FifoBPLo, 0x1040)
				regs.Write16(FifoBPHi, 0)
				commitBursts(4)
			})

			It("should be set only while the read pointer is on it", func() {
				Expect(regs.AtBreakpoint()).To(BeFalse())
				Expect(regs.CanFetch()).To(BeTrue())

				regs.AdvanceReadPointer()
				Expect(regs.State().BPFlag).To(BeFalse())

				regs.AdvanceReadPointer()
				Expect(regs.ReadPointer()).To(Equal(uint32(0x1040)))
				Expect(regs.State().BPFlag).To(BeTrue())
				Expect(regs.AtBreakpoint()).To(BeTrue())
				Expect(regs.CanFetch()).To(BeFalse())
				Expect(regs.Read16(StatusRegister) & StatusBreakpoint).
					NotTo(BeZero())
			})

			It("should clear the flag when the breakpoint moves away", func() {
				regs.AdvanceReadPointer()
				regs.AdvanceReadPointer()

				regs.Write16(FifoBPLo, 0x1080)

				Expect(regs.State().BPFlag).To(BeFalse())
				Expect(regs.CanFetch()).To(BeTrue())
			})

			It("should raise the interrupt right away", func() {
				regs.WriteControlRegister(CtrlGPLinkEnable |
					CtrlGPReadEnable | CtrlBPEnable | CtrlBPIntEnable)

				regs.AdvanceReadPointer()

				line.EXPECT().SetInterrupt(true)
				regs.AdvanceReadPointer()

				Expect(regs.InterruptSet()).To(BeTrue())
			})
		})

		It("should report unknown opcodes with the register state", func() {
			regs.HandleUnknownOpcode(0x7f, false)

			Expect(fatals).To(HaveLen(1))
			Expect(fatals[0]).To(ContainSubstring("unknown opcode 0x7f"))
			Expect(fatals[0]).To(ContainSubstring("base=0x00001000"))
		})

		It("should restore state verbatim", func() {
			s := regs.State()
			s.OverflowFlag = true
			s.RWDistance = 0

			regs.SetState(s)

			Expect(regs.State()).To(Equal(s))
			Expect(regs.Read16(StatusRegister) & StatusOverflowHiWatermark).
				NotTo(BeZero())
		})
	})

	Context("dual core", func() {
		BeforeEach(func() {
			gpu.EXPECT().IsDualCore().Return(true).AnyTimes()
			allowMirror()
			regs.WriteControlRegister(CtrlGPLinkEnable | CtrlGPReadEnable |
				CtrlBPEnable | CtrlBPIntEnable)
			regs.Write16(FifoBPLo, 0x1020)
			commitBursts(2)
		})

		It("should deliver consumer interrupts through the scheduler", func() {
			regs.AdvanceReadPointer()

			Expect(regs.InterruptWaiting()).To(BeTrue())
			Expect(regs.InterruptSet()).To(BeFalse())
			Expect(regs.CanFetch()).To(BeFalse())

			line.EXPECT().SetInterrupt(true)
			Expect(engine.Advance(0)).To(Succeed())

			Expect(regs.InterruptWaiting()).To(BeFalse())
			Expect(regs.InterruptSet()).To(BeTrue())
		})

		It("should deliver the current state, not the stale one", func() {
			regs.AdvanceReadPointer()
			regs.Write16(FifoBPLo, 0x1040)

			line.EXPECT().SetInterrupt(false)
			Expect(engine.Advance(0)).To(Succeed())

			Expect(regs.InterruptSet()).To(BeFalse())
		})

		It("should keep a single delivery in flight", func() {
			regs.AdvanceReadPointer()
			regs.RecomputeFromConsumer()
			regs.RecomputeFromConsumer()

			Expect(engine.PendingEvents()).To(Equal(1))

			line.EXPECT().SetInterrupt(true)
			Expect(engine.Advance(0)).To(Succeed())
		})

		It("should read the distance from the safe read pointer", func() {
			regs.AdvanceReadPointer()
			Expect(regs.ReadWriteDistance()).To(Equal(uint32(64)))

			regs.PublishSafeReadPointer()
			Expect(regs.ReadWriteDistance()).To(Equal(uint32(32)))
			Expect(regs.Read16(FifoReadPointerLo)).To(Equal(uint16(0x1020)))
		})

		It("should read a wrapped distance", func() {
			s := regs.State()
			s.SafeReadPointer = s.End
			s.WritePointer = s.Base + 32
			regs.SetState(s)

			Expect(regs.ReadWriteDistance()).To(Equal(uint32(64)))
		})
	})

	Context("register map", func() {
		BeforeEach(func() {
			gpu.EXPECT().IsDualCore().Return(false).AnyTimes()
		})

		It("should mask the split address registers", func() {
			regs.Write16(FifoBaseLo, 0x1234)
			regs.Write16(FifoBaseHi, 0xffff)

			Expect(regs.Read16(FifoBaseLo)).To(Equal(uint16(0x1220)))
			Expect(regs.Read16(FifoBaseHi)).To(Equal(uint16(0x3fff)))
			Expect(regs.State().Base).To(Equal(uint32(0x3fff1220)))
		})

		It("should read back the control register", func() {
			regs.Write16(CtrlRegister, CtrlGPReadEnable|CtrlBPIntEnable)

			Expect(regs.Read16(CtrlRegister)).
				To(Equal(CtrlGPReadEnable | CtrlBPIntEnable))
			Expect(regs.Read16(ClearRegister)).To(BeZero())
		})

		It("should stub the performance metrics", func() {
			Expect(regs.Read16(ClksPerVtxOutLo)).To(Equal(uint16(4)))
			Expect(regs.Read16(ClksPerVtxOutHi)).To(BeZero())
			Expect(regs.Read16(XFRasBusyLo)).To(BeZero())
			Expect(regs.Read16(VCacheMetricMissHi)).To(BeZero())
		})

		It("should expose the token and the bounding box", func() {
			regs.SetToken(0xbeef)
			regs.SetBoundingBox(1, 2, 3, 4)
			regs.Write16(FifoBoundingBoxTop, 100)

			Expect(regs.Read16(FifoTokenRegister)).To(Equal(uint16(0xbeef)))
			Expect(regs.Read16(FifoBoundingBoxLeft)).To(Equal(uint16(1)))
			Expect(regs.Read16(FifoBoundingBoxRight)).To(Equal(uint16(2)))
			Expect(regs.Read16(FifoBoundingBoxTop)).To(Equal(uint16(3)))
			Expect(regs.Read16(FifoBoundingBoxBottom)).To(Equal(uint16(4)))
		})

		It("should report idle when there is nothing to read", func() {
			status := regs.Read16(StatusRegister)

			Expect(status & StatusReadIdle).NotTo(BeZero())
			Expect(status & StatusCommandIdle).NotTo(BeZero())
		})

		It("should reset the buffers when the distance is zeroed", func() {
			regs.WriteControlRegister(CtrlGPLinkEnable)
			commitBursts(1)

			pi.EXPECT().ResetGatherPipe()
			gpu.EXPECT().ResetVideoBuffer()

			regs.Write16(FifoRWDistanceLo, 0)
			regs.Write16(FifoRWDistanceHi, 0)

			Expect(regs.Read16(FifoRWDistanceLo)).To(BeZero())
		})

		It("should publish the read pointer when it is written", func() {
			regs.Write16(FifoReadPointerLo, 0x2040)

			Expect(regs.State().SafeReadPointer).To(Equal(uint32(0x2040)))
		})
	})
})
