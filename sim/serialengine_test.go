package sim

import (
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recordingHook struct {
	positions []*HookPos
}

func (h *recordingHook) Func(ctx HookCtx) {
	h.positions = append(h.positions, ctx.Pos)
}

var _ = Describe("SerialEngine", func() {
	var (
		engine *SerialEngine
	)

	BeforeEach(func() {
		engine = NewSerialEngine()
	})

	It("should run callbacks when time advances past them", func() {
		var fired []VTimeInCycle

		engine.ScheduleAfter(10, func(late int64) {
			Expect(late).To(Equal(int64(0)))
			fired = append(fired, engine.CurrentTime())
		})
		engine.ScheduleAfter(30, func(int64) {
			fired = append(fired, engine.CurrentTime())
		})

		Expect(engine.Advance(20)).To(Succeed())
		Expect(fired).To(Equal([]VTimeInCycle{10}))
		Expect(engine.CurrentTime()).To(Equal(VTimeInCycle(20)))

		Expect(engine.Advance(20)).To(Succeed())
		Expect(fired).To(Equal([]VTimeInCycle{10, 30}))
		Expect(engine.CurrentTime()).To(Equal(VTimeInCycle(40)))
	})

	It("should run events scheduled by callbacks within the same advance", func() {
		count := 0

		var reschedule func(int64)
		reschedule = func(int64) {
			count++
			engine.ScheduleAfter(5, reschedule)
		}
		engine.ScheduleAfter(5, reschedule)

		Expect(engine.Advance(50)).To(Succeed())
		Expect(count).To(Equal(10))
		Expect(engine.PendingEvents()).To(Equal(1))
	})

	It("should treat negative delays as now", func() {
		fired := false
		engine.ScheduleAfter(-5, func(int64) { fired = true })

		Expect(engine.Advance(0)).To(Succeed())
		Expect(fired).To(BeTrue())
	})

	It("should panic when scheduling in the past", func() {
		Expect(engine.Advance(100)).To(Succeed())

		evt := labeledEvent{EventBase: NewEventBase(10, nil)}
		Expect(func() { engine.Schedule(evt) }).To(Panic())
	})

	It("should invoke hooks around every event", func() {
		hook := &recordingHook{}
		engine.AcceptHook(hook)
		engine.ScheduleAfter(1, func(int64) {})

		Expect(engine.Run()).To(Succeed())
		Expect(hook.positions).To(Equal(
			[]*HookPos{HookPosBeforeEvent, HookPosAfterEvent}))
	})

	It("should run handlers of plain events", func() {
		handled := 0
		handler := HandlerFunc(func(e Event) error {
			handled++
			return nil
		})
		engine.Schedule(labeledEvent{EventBase: NewEventBase(3, handler)})

		Expect(engine.Run()).To(Succeed())
		Expect(handled).To(Equal(1))
		Expect(engine.CurrentTime()).To(Equal(VTimeInCycle(3)))
	})

	It("should accept callbacks scheduled from another goroutine while advancing", func() {
		var scheduled, fired atomic.Int64
		var wg sync.WaitGroup

		stop := make(chan struct{})
		wg.Add(1)
		go func() {
			defer wg.Done()
			for scheduled.Load() < 100000 {
				select {
				case <-stop:
					return
				default:
				}

				scheduled.Add(1)
				engine.ScheduleAfter(0, func(late int64) {
					Expect(late).To(BeNumerically(">=", 0))
					fired.Add(1)
				})
			}
		}()

		for i := 0; i < 2000; i++ {
			Expect(engine.Advance(1)).To(Succeed())
		}

		close(stop)
		wg.Wait()

		Expect(engine.Advance(0)).To(Succeed())
		Expect(fired.Load()).To(Equal(scheduled.Load()))
		Expect(engine.CurrentTime()).To(Equal(VTimeInCycle(2000)))
	})
})
