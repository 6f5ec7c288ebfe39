package cp

import (
	"log"

	"github.com/sarchlab/cpfifo/sim"
)

// Builder can build flow-control register blocks.
type Builder struct {
	gpu       GPU
	pi        ProcessorFifo
	line      InterruptLine
	scheduler sim.Scheduler
	fatal     FatalHandler
}

// MakeBuilder returns a Builder that aborts on fatal FIFO conditions.
func MakeBuilder() Builder {
	return Builder{
		fatal: DefaultFatalHandler,
	}
}

// WithGPU sets the consumer that the registers drive.
func (b Builder) WithGPU(gpu GPU) Builder {
	b.gpu = gpu
	return b
}

// WithProcessorFifo sets the processor-interface copy of the FIFO.
func (b Builder) WithProcessorFifo(pi ProcessorFifo) Builder {
	b.pi = pi
	return b
}

// WithInterruptLine sets where the command processor interrupt goes.
func (b Builder) WithInterruptLine(line InterruptLine) Builder {
	b.line = line
	return b
}

// WithScheduler sets the guest CPU scheduler used to deliver interrupts
// raised on the GPU goroutine.
func (b Builder) WithScheduler(s sim.Scheduler) Builder {
	b.scheduler = s
	return b
}

// WithFatalHandler sets what happens when the FIFO cannot continue.
func (b Builder) WithFatalHandler(h FatalHandler) Builder {
	b.fatal = h
	return b
}

// Build creates a new register block in the power-on state.
func (b Builder) Build(name string) *Registers {
	if b.scheduler == nil {
		log.Panicf("command processor %s needs a scheduler", name)
	}

	fatal := b.fatal
	if fatal == nil {
		fatal = DefaultFatalHandler
	}

	return &Registers{
		name:      name,
		gpu:       b.gpu,
		pi:        b.pi,
		line:      b.line,
		scheduler: b.scheduler,
		fatal:     fatal,
	}
}
