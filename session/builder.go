package session

import (
	"github.com/sarchlab/cpfifo/asyncreq"
	"github.com/sarchlab/cpfifo/cp"
	"github.com/sarchlab/cpfifo/fifo"
	"github.com/sarchlab/cpfifo/gatherpipe"
	"github.com/sarchlab/cpfifo/memory"
	"github.com/sarchlab/cpfifo/opcode"
	"github.com/sarchlab/cpfifo/sim"
	"github.com/sarchlab/cpfifo/tracing"
)

// DefaultMemorySize is the size of the guest memory created when none is
// given.
const DefaultMemorySize = 32 * 1024 * 1024

// Builder can build sessions.
type Builder struct {
	dualCore        bool
	syncGPU         bool
	syncMinDistance int64
	syncMaxDistance int64
	overclock       float64
	backoff         fifo.BackoffPolicy
	videoBufferSize int

	engine   *sim.SerialEngine
	mem      memory.Memory
	backend  opcode.Backend
	loader   opcode.VertexLoader
	renderer asyncreq.Renderer
	line     cp.InterruptLine
	fatal    func(msg string)
	tracers  []tracing.Tracer
}

// MakeBuilder returns a Builder for a single-core session with the default
// parameters.
func MakeBuilder() Builder {
	return Builder{
		syncMinDistance: fifo.DefaultSyncMinDistance,
		syncMaxDistance: fifo.DefaultSyncMaxDistance,
		overclock:       1.0,
		backoff:         fifo.DefaultBackoffPolicy,
		videoBufferSize: fifo.DefaultVideoBufferSize,
	}
}

// WithDualCore sets if the GPU runs on its own goroutine.
func (b Builder) WithDualCore(dualCore bool) Builder {
	b.dualCore = dualCore
	return b
}

// WithSyncGPU sets if a dual-core GPU is kept within the sync distances of
// the CPU.
func (b Builder) WithSyncGPU(syncGPU bool) Builder {
	b.syncGPU = syncGPU
	return b
}

// WithSyncDistances sets how far the GPU may fall behind and run ahead of
// the CPU.
func (b Builder) WithSyncDistances(minDistance, maxDistance int64) Builder {
	b.syncMinDistance = minDistance
	b.syncMaxDistance = maxDistance
	return b
}

// WithOverclock scales the GPU ticks.
func (b Builder) WithOverclock(factor float64) Builder {
	b.overclock = factor
	return b
}

// WithBackoff sets how the GPU goroutine waits for work.
func (b Builder) WithBackoff(policy fifo.BackoffPolicy) Builder {
	b.backoff = policy
	return b
}

// WithVideoBufferSize sets the capacity of the video buffer.
func (b Builder) WithVideoBufferSize(n int) Builder {
	b.videoBufferSize = n
	return b
}

// WithEngine sets the engine that keeps the guest CPU time.
func (b Builder) WithEngine(engine *sim.SerialEngine) Builder {
	b.engine = engine
	return b
}

// WithMemory sets the guest memory.
func (b Builder) WithMemory(mem memory.Memory) Builder {
	b.mem = mem
	return b
}

// WithBackend sets where the register loads go.
func (b Builder) WithBackend(backend opcode.Backend) Builder {
	b.backend = backend
	return b
}

// WithVertexLoader sets who parses the vertex data of primitives.
func (b Builder) WithVertexLoader(loader opcode.VertexLoader) Builder {
	b.loader = loader
	return b
}

// WithRenderer sets the renderer that requests run against.
func (b Builder) WithRenderer(renderer asyncreq.Renderer) Builder {
	b.renderer = renderer
	return b
}

// WithInterruptLine sets the interrupt input of the processor interface.
func (b Builder) WithInterruptLine(line cp.InterruptLine) Builder {
	b.line = line
	return b
}

// WithFatalHandler sets what happens when the FIFO cannot continue.
func (b Builder) WithFatalHandler(h func(msg string)) Builder {
	b.fatal = h
	return b
}

// WithTracer adds a tracer that collects the bursts, commands, drains and
// requests of the session.
func (b Builder) WithTracer(t tracing.Tracer) Builder {
	b.tracers = append(b.tracers[:len(b.tracers):len(b.tracers)], t)
	return b
}

// Build creates a new session. The session has to be started before the
// GPU runs.
func (b Builder) Build(name string) *Session {
	b = b.withDefaults()

	s := &Session{
		name:     name,
		dualCore: b.dualCore,
		engine:   b.engine,
		mem:      b.mem,
	}

	s.pipe = gatherpipe.MakeBuilder().
		WithMemory(b.mem).
		Build(name + ".GatherPipe")

	s.fifo = fifo.MakeBuilder().
		WithDualCore(b.dualCore).
		WithSyncGPU(b.syncGPU).
		WithSyncDistances(b.syncMinDistance, b.syncMaxDistance).
		WithOverclock(b.overclock).
		WithBackoff(b.backoff).
		WithVideoBufferSize(b.videoBufferSize).
		WithScheduler(b.engine).
		WithMemory(b.mem).
		WithFatalHandler(b.fatal).
		Build(name + ".FIFO")

	s.regs = cp.MakeBuilder().
		WithGPU(s.fifo).
		WithProcessorFifo(s.pipe).
		WithInterruptLine(b.line).
		WithScheduler(b.engine).
		WithFatalHandler(b.fatal).
		Build(name + ".CP")

	s.decoder = opcode.MakeBuilder().
		WithBackend(b.backend).
		WithVertexLoader(b.loader).
		WithMemory(b.mem).
		WithUnknownOpcodeHandler(s.regs).
		Build(name + ".Decoder")

	s.requests = asyncreq.NewChannel(name+".Requests", b.renderer, s.fifo)
	s.requests.SetPassthrough(!b.dualCore)

	s.pipe.SetListener(s.regs)
	s.fifo.SetFlowControl(s.regs)
	s.fifo.SetDecoder(s.decoder)
	s.fifo.SetRequestQueue(s.requests)

	for _, t := range b.tracers {
		tracing.CollectTrace(s.pipe, t, b.engine)
		tracing.CollectTrace(s.decoder, t, b.engine)
		tracing.CollectTrace(s.fifo.VideoBuffer(), t, b.engine)
		tracing.CollectTrace(s.requests, t, b.engine)
	}

	return s
}

func (b Builder) withDefaults() Builder {
	if b.engine == nil {
		b.engine = sim.NewSerialEngine()
	}

	if b.mem == nil {
		b.mem = memory.NewStorage(DefaultMemorySize)
	}

	if b.backend == nil {
		b.backend = opcode.DiscardBackend{}
	}

	if b.loader == nil {
		b.loader = &opcode.FixedStrideLoader{}
	}

	if b.renderer == nil {
		b.renderer = DiscardRenderer{}
	}

	if b.line == nil {
		b.line = &InterruptPin{}
	}

	if b.fatal == nil {
		b.fatal = cp.DefaultFatalHandler
	}

	return b
}
