package memory_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cpfifo/memory"
)

var _ = Describe("Storage", func() {
	It("should read and write in single unit", func() {
		storage := memory.NewStorage(4096)
		Expect(storage.Write(0, []byte{1, 2, 3, 4})).To(Succeed())

		res, _ := storage.Read(0, 2)
		Expect(res).To(Equal([]byte{1, 2}))

		res, _ = storage.Read(1, 2)
		Expect(res).To(Equal([]byte{2, 3}))
	})

	It("should read and write across units", func() {
		storage := memory.NewStorage(8192)
		Expect(storage.Write(4094, []byte{1, 2, 3, 4})).To(Succeed())

		res, _ := storage.Read(4094, 4)
		Expect(res).To(Equal([]byte{1, 2, 3, 4}))
	})

	It("should read untouched memory as zeros", func() {
		storage := memory.NewStorage(16384)
		Expect(storage.Write(4096, []byte{9})).To(Succeed())

		dst := []byte{7, 7, 7, 7}
		Expect(storage.CopyFrom(dst, 4094)).To(Succeed())
		Expect(dst).To(Equal([]byte{0, 0, 9, 0}))
	})

	It("should return error if accessing over the capacity", func() {
		storage := memory.NewStorage(4096)
		err := storage.Write(4095, []byte{1, 2})
		Expect(err).To(MatchError(memory.ErrOutOfRange))

		_, err = storage.Read(4097, 1)
		Expect(err).To(MatchError(memory.ErrOutOfRange))
	})

	It("should reject a huge read without allocating the buffer", func() {
		storage := memory.NewStorage(1 << 20)

		var err error
		allocs := testing.AllocsPerRun(1, func() {
			_, err = storage.Read(0x100, 0x7FFFFFFF)
		})

		Expect(err).To(MatchError(memory.ErrOutOfRange))
		Expect(allocs).To(BeZero())
	})
})
