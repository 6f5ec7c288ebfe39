package opcode

import (
	"log"

	"github.com/sarchlab/cpfifo/memory"
)

// Builder can build decoders.
type Builder struct {
	backend Backend
	loader  VertexLoader
	mem     memory.Memory
	unknown UnknownOpcodeHandler
}

// MakeBuilder returns a Builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithBackend sets the receiver of register loads.
func (b Builder) WithBackend(backend Backend) Builder {
	b.backend = backend
	return b
}

// WithVertexLoader sets the consumer of vertex data.
func (b Builder) WithVertexLoader(loader VertexLoader) Builder {
	b.loader = loader
	return b
}

// WithMemory sets the memory that display lists are read from.
func (b Builder) WithMemory(mem memory.Memory) Builder {
	b.mem = mem
	return b
}

// WithUnknownOpcodeHandler sets who is told about undecodable commands.
func (b Builder) WithUnknownOpcodeHandler(h UnknownOpcodeHandler) Builder {
	b.unknown = h
	return b
}

// Build creates a new Decoder.
func (b Builder) Build(name string) *Decoder {
	if b.backend == nil {
		log.Panicf("decoder %s needs a backend", name)
	}

	if b.loader == nil {
		log.Panicf("decoder %s needs a vertex loader", name)
	}

	if b.mem == nil {
		log.Panicf("decoder %s needs a memory", name)
	}

	return &Decoder{
		name:    name,
		backend: b.backend,
		loader:  b.loader,
		mem:     b.mem,
		unknown: b.unknown,
	}
}
