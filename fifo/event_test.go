package fifo

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Event", func() {
	var e *Event

	BeforeEach(func() {
		e = NewEvent()
	})

	It("should time out if not set", func() {
		Expect(e.WaitFor(time.Millisecond)).To(BeFalse())
	})

	It("should remember one set", func() {
		e.Set()
		e.Set()

		Expect(e.WaitFor(time.Millisecond)).To(BeTrue())
		Expect(e.WaitFor(time.Millisecond)).To(BeFalse())
	})

	It("should wake up a waiter", func() {
		done := make(chan struct{})

		go func() {
			e.Wait()
			close(done)
		}()

		e.Set()

		Eventually(done).Should(BeClosed())
	})

	It("should reset", func() {
		e.Set()
		e.Reset()

		Expect(e.WaitFor(time.Millisecond)).To(BeFalse())
	})
})
