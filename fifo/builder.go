package fifo

import (
	"log"

	"github.com/sarchlab/cpfifo/memory"
	"github.com/sarchlab/cpfifo/sim"
)

// Builder can build managers.
type Builder struct {
	dualCore        bool
	syncGPU         bool
	syncMaxDistance int64
	syncMinDistance int64
	overclock       float64
	timeSlot        int64
	videoBufferSize int
	backoff         BackoffPolicy

	scheduler sim.Scheduler
	mem       memory.Memory
	regs      FlowControl
	dec       Decoder
	requests  RequestQueue
	fatal     func(msg string)
}

// MakeBuilder returns a Builder for a single-core manager with the default
// sync distances.
func MakeBuilder() Builder {
	return Builder{
		syncMaxDistance: DefaultSyncMaxDistance,
		syncMinDistance: DefaultSyncMinDistance,
		overclock:       1.0,
		timeSlot:        TimeSlot,
		videoBufferSize: DefaultVideoBufferSize,
		backoff:         DefaultBackoffPolicy,
	}
}

// WithDualCore sets if the consumer runs on its own goroutine.
func (b Builder) WithDualCore(dualCore bool) Builder {
	b.dualCore = dualCore
	return b
}

// WithSyncGPU sets if a dual-core consumer is kept within the sync distances
// of the CPU.
func (b Builder) WithSyncGPU(syncGPU bool) Builder {
	b.syncGPU = syncGPU
	return b
}

// WithSyncDistances sets how far the GPU may fall behind (min, negative) and
// run ahead (max) of the CPU.
func (b Builder) WithSyncDistances(minDistance, maxDistance int64) Builder {
	b.syncMinDistance = minDistance
	b.syncMaxDistance = maxDistance
	return b
}

// WithOverclock scales the ticks given to the GPU.
func (b Builder) WithOverclock(factor float64) Builder {
	b.overclock = factor
	return b
}

// WithTimeSlot sets the minimum spacing of two sync callbacks.
func (b Builder) WithTimeSlot(ticks int64) Builder {
	b.timeSlot = ticks
	return b
}

// WithVideoBufferSize sets the capacity of the video buffer.
func (b Builder) WithVideoBufferSize(n int) Builder {
	b.videoBufferSize = n
	return b
}

// WithBackoff sets how the consumer goroutine waits for work.
func (b Builder) WithBackoff(policy BackoffPolicy) Builder {
	b.backoff = policy
	return b
}

// WithScheduler sets where the sync callbacks are scheduled.
func (b Builder) WithScheduler(s sim.Scheduler) Builder {
	b.scheduler = s
	return b
}

// WithMemory sets the guest memory that holds the FIFO.
func (b Builder) WithMemory(mem memory.Memory) Builder {
	b.mem = mem
	return b
}

// WithFlowControl sets the registers the consumer reads.
func (b Builder) WithFlowControl(regs FlowControl) Builder {
	b.regs = regs
	return b
}

// WithDecoder sets the decoder the consumer feeds.
func (b Builder) WithDecoder(dec Decoder) Builder {
	b.dec = dec
	return b
}

// WithRequestQueue sets the requests the consumer pulls.
func (b Builder) WithRequestQueue(q RequestQueue) Builder {
	b.requests = q
	return b
}

// WithFatalHandler sets what happens when the FIFO cannot be read.
func (b Builder) WithFatalHandler(h func(msg string)) Builder {
	b.fatal = h
	return b
}

// Build creates a new Manager. The flow-control registers, the decoder and
// the request queue may be set later, but before the manager runs.
func (b Builder) Build(name string) *Manager {
	b.mustBeValid(name)

	m := &Manager{
		name:            name,
		dualCore:        b.dualCore,
		syncGPU:         b.syncGPU,
		syncMaxDistance: b.syncMaxDistance,
		syncMinDistance: b.syncMinDistance,
		overclock:       b.overclock,
		timeSlot:        b.timeSlot,
		mem:             b.mem,
		buf:             NewVideoBuffer(name+".VideoBuffer", b.videoBufferSize),
		dec:             b.dec,
		regs:            b.regs,
		requests:        b.requests,
		scheduler:       b.scheduler,
		fatal:           b.fatal,
		loop:            NewWorkLoop(b.backoff),
		syncWakeup:      NewEvent(),
	}

	if m.fatal == nil {
		m.fatal = func(msg string) { log.Panic(msg) }
	}

	m.syncSuspended.Store(true)
	m.emulatorRunning.Store(true)

	return m
}

func (b Builder) mustBeValid(name string) {
	if b.scheduler == nil {
		log.Panicf("fifo manager %s needs a scheduler", name)
	}

	if b.mem == nil {
		log.Panicf("fifo manager %s needs a memory", name)
	}

	if b.syncMinDistance > 0 || b.syncMaxDistance < 0 {
		log.Panicf("fifo manager %s has invalid sync distances [%d, %d]",
			name, b.syncMinDistance, b.syncMaxDistance)
	}

	if b.overclock <= 0 {
		log.Panicf("fifo manager %s has invalid overclock %f",
			name, b.overclock)
	}

	if b.timeSlot <= 0 {
		log.Panicf("fifo manager %s has invalid time slot %d",
			name, b.timeSlot)
	}
}
