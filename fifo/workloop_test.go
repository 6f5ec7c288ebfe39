package fifo

import (
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("WorkLoop", func() {
	var (
		loop  *WorkLoop
		runs  atomic.Int32
		pause chan struct{}
	)

	payload := func() {
		runs.Add(1)
		<-pause
	}

	BeforeEach(func() {
		runs.Store(0)
		pause = make(chan struct{})
		close(pause)
		loop = NewWorkLoop(BackoffPolicy{SpinCount: 2})
	})

	AfterEach(func() {
		loop.Stop(true)
	})

	It("should be idle and done before it runs", func() {
		Expect(loop.IsIdle()).To(BeTrue())
		Expect(loop.IsDone()).To(BeTrue())
		Expect(loop.IsRunning()).To(BeFalse())

		loop.Wait()
	})

	It("should run the payload once after it starts", func() {
		loop.Prepare()
		go loop.Run(payload)

		loop.Wait()

		Expect(runs.Load()).To(Equal(int32(1)))
		Expect(loop.IsIdle()).To(BeTrue())
		Expect(loop.IsRunning()).To(BeTrue())
	})

	It("should run the payload again after a wakeup", func() {
		loop.Prepare()
		go loop.Run(payload)
		loop.Wait()

		loop.Wakeup()
		loop.Wait()

		Expect(runs.Load()).To(Equal(int32(2)))
	})

	It("should not be idle while the payload runs", func() {
		pause = make(chan struct{})

		loop.Prepare()
		go loop.Run(payload)

		Eventually(runs.Load).Should(Equal(int32(1)))
		Expect(loop.IsIdle()).To(BeFalse())

		close(pause)
		loop.Wait()

		Expect(loop.IsIdle()).To(BeTrue())
	})

	It("should rerun the payload when woken while running", func() {
		pause = make(chan struct{})

		loop.Prepare()
		go loop.Run(payload)

		Eventually(runs.Load).Should(Equal(int32(1)))
		loop.Wakeup()
		close(pause)

		Eventually(runs.Load).Should(Equal(int32(2)))
		loop.Wait()
	})

	It("should run the payload after the sleep timeout", func() {
		loop = NewWorkLoop(BackoffPolicy{SleepTimeout: time.Millisecond})

		loop.Prepare()
		go loop.Run(payload)

		Eventually(runs.Load).Should(BeNumerically(">=", 3))
	})

	It("should stop", func() {
		loop.Prepare()
		go loop.Run(payload)
		loop.Wait()

		loop.Stop(true)

		Expect(loop.IsDone()).To(BeTrue())
		Expect(loop.IsRunning()).To(BeFalse())
	})

	It("should not run if stopped before it starts", func() {
		loop.Prepare()
		loop.Stop(false)

		loop.Run(payload)

		Expect(runs.Load()).To(Equal(int32(0)))
		Expect(loop.IsDone()).To(BeTrue())
	})
})
