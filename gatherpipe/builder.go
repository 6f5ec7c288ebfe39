package gatherpipe

import (
	"log"

	"github.com/sarchlab/cpfifo/memory"
)

// Builder can build gather pipes.
type Builder struct {
	numBursts int
	mem       memory.Memory
	listener  BurstListener
}

// MakeBuilder returns a Builder with the default capacity of 16 bursts.
func MakeBuilder() Builder {
	return Builder{
		numBursts: 16,
	}
}

// WithNumBursts sets how many bursts the gather pipe can buffer.
func (b Builder) WithNumBursts(n int) Builder {
	b.numBursts = n
	return b
}

// WithMemory sets the guest memory that the bursts are written to.
func (b Builder) WithMemory(mem memory.Memory) Builder {
	b.mem = mem
	return b
}

// WithListener sets who is notified about committed bursts.
func (b Builder) WithListener(l BurstListener) Builder {
	b.listener = l
	return b
}

// Build creates a new GatherPipe.
func (b Builder) Build(name string) *GatherPipe {
	if b.numBursts <= 0 {
		log.Panicf("gather pipe %s needs at least one burst", name)
	}

	if b.mem == nil {
		log.Panicf("gather pipe %s needs a memory", name)
	}

	return &GatherPipe{
		name:     name,
		buf:      make([]byte, b.numBursts*BurstSize),
		mem:      b.mem,
		listener: b.listener,
	}
}
