package fifo

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/sarchlab/cpfifo/sim"
)

// DefaultVideoBufferSize is the capacity of the command ring buffer.
const DefaultVideoBufferSize = 2 * 1024 * 1024

// Hook positions of the video buffer.
var (
	// HookPosAppend is invoked after bytes are appended. The item is the
	// number of bytes.
	HookPosAppend = &sim.HookPos{Name: "VideoBuffer Append"}

	// HookPosCompact is invoked after the unread bytes are moved to the
	// front. The item is the number of bytes moved.
	HookPosCompact = &sim.HookPos{Name: "VideoBuffer Compact"}

	// HookPosDrain is invoked after a drain. The item is a DrainRecord.
	HookPosDrain = &sim.HookPos{Name: "VideoBuffer Drain"}
)

// A Decoder decodes one command from the front of src.
type Decoder interface {
	Step(src []byte, nested bool) (consumed int, cycles int, err error)
}

// DrainRecord describes one drain.
type DrainRecord struct {
	Bytes  int
	Cycles int64
}

// VideoBufferState is the save-state image of a video buffer.
type VideoBufferState struct {
	Data        []byte
	ReadOffset  int
	WriteOffset int
	Size        int64
}

// VideoBuffer holds the command bytes that have been fetched from the FIFO
// but not decoded yet.
//
// The appending side owns the write offset and the draining side owns the
// read offset. Moving the unread bytes to the front touches both, so it only
// happens under the lock, which Drain also holds while it decodes.
type VideoBuffer struct {
	sim.HookableBase

	name string
	buf  []byte

	lock        sync.Mutex
	readOffset  int
	writeOffset atomic.Int64
	size        atomic.Int64
}

// NewVideoBuffer creates an empty video buffer.
func NewVideoBuffer(name string, capacity int) *VideoBuffer {
	if capacity <= 0 {
		log.Panicf("video buffer %s must have a positive capacity", name)
	}

	return &VideoBuffer{
		name: name,
		buf:  make([]byte, capacity),
	}
}

// Name returns the name of the video buffer.
func (b *VideoBuffer) Name() string {
	return b.name
}

// Capacity returns the number of bytes the buffer can hold.
func (b *VideoBuffer) Capacity() int {
	return len(b.buf)
}

// Size returns the number of bytes that have not been decoded.
func (b *VideoBuffer) Size() int64 {
	return b.size.Load()
}

// ReadOffset returns the offset of the next byte to decode.
func (b *VideoBuffer) ReadOffset() int {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.readOffset
}

// WriteOffset returns the offset where the next appended byte goes.
func (b *VideoBuffer) WriteOffset() int {
	return int(b.writeOffset.Load())
}

// Append copies data to the end of the buffer.
func (b *VideoBuffer) Append(data []byte) {
	w := int(b.writeOffset.Load())

	if w+len(data) > len(b.buf) {
		b.compact()
		w = int(b.writeOffset.Load())
	}

	if w+len(data) > len(b.buf) {
		log.Panicf("%s: video buffer overrun, %d bytes pending, %d incoming, "+
			"capacity %d", b.name, b.size.Load(), len(data), len(b.buf))
	}

	copy(b.buf[w:], data)
	b.writeOffset.Store(int64(w + len(data)))
	b.size.Add(int64(len(data)))

	if b.NumHooks() > 0 {
		b.InvokeHook(sim.HookCtx{
			Domain: b,
			Pos:    HookPosAppend,
			Item:   len(data),
		})
	}
}

func (b *VideoBuffer) compact() {
	b.lock.Lock()

	w := int(b.writeOffset.Load())
	moved := copy(b.buf, b.buf[b.readOffset:w])
	b.readOffset = 0
	b.writeOffset.Store(int64(moved))

	b.lock.Unlock()

	if b.NumHooks() > 0 {
		b.InvokeHook(sim.HookCtx{
			Domain: b,
			Pos:    HookPosCompact,
			Item:   moved,
		})
	}
}

// Drain decodes commands while there are bytes and budget left. It returns
// the cycles spent. Draining stops early when the command at the front is
// not complete yet or cannot be decoded.
func (b *VideoBuffer) Drain(dec Decoder, budget int64) (int64, error) {
	b.lock.Lock()

	var spent int64
	var err error

	start := b.readOffset

	for spent < budget {
		w := int(b.writeOffset.Load())
		if b.readOffset >= w {
			break
		}

		n, cycles, stepErr := dec.Step(b.buf[b.readOffset:w], false)
		if stepErr != nil {
			err = stepErr
			break
		}

		if n == 0 {
			break
		}

		b.readOffset += n
		b.size.Add(-int64(n))
		spent += int64(cycles)
	}

	consumed := b.readOffset - start

	b.lock.Unlock()

	if b.NumHooks() > 0 {
		b.InvokeHook(sim.HookCtx{
			Domain: b,
			Pos:    HookPosDrain,
			Item:   DrainRecord{Bytes: consumed, Cycles: spent},
		})
	}

	return spent, err
}

// Reset drops all the bytes in the buffer.
func (b *VideoBuffer) Reset() {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.readOffset = 0
	b.writeOffset.Store(0)
	b.size.Store(0)
}

// State returns a copy of the buffer content and offsets.
func (b *VideoBuffer) State() VideoBufferState {
	b.lock.Lock()
	defer b.lock.Unlock()

	w := int(b.writeOffset.Load())
	data := make([]byte, w)
	copy(data, b.buf[:w])

	return VideoBufferState{
		Data:        data,
		ReadOffset:  b.readOffset,
		WriteOffset: w,
		Size:        b.size.Load(),
	}
}

// SetState replaces the buffer content and offsets.
func (b *VideoBuffer) SetState(s VideoBufferState) {
	if s.WriteOffset > len(b.buf) || s.WriteOffset != len(s.Data) ||
		s.ReadOffset < 0 || s.ReadOffset > s.WriteOffset {
		log.Panicf("%s: invalid video buffer state, read %d write %d "+
			"data %d capacity %d", b.name, s.ReadOffset, s.WriteOffset,
			len(s.Data), len(b.buf))
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	copy(b.buf, s.Data)
	b.readOffset = s.ReadOffset
	b.writeOffset.Store(int64(s.WriteOffset))
	b.size.Store(s.Size)
}
