// Package opcode interprets the command stream that the CPU sends to the GPU.
//
// A Decoder turns the bytes of the stream into register loads, draw calls and
// display-list invocations. Every command has a cost in GPU cycles, which is
// what the consumer loop spends its tick budget on.
package opcode

import (
	"encoding/binary"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/sarchlab/cpfifo/memory"
	"github.com/sarchlab/cpfifo/sim"
)

// A Backend receives the register loads.
type Backend interface {
	LoadCPReg(sub uint8, value uint32)
	LoadXFReg(address uint16, values []uint32)
	LoadIndexedXF(array uint8, value uint32)
	LoadBPReg(value uint32)
	InvalidateVertexCache()
}

// A VertexLoader consumes the vertex data of a draw command. It returns the
// number of bytes consumed, or -1 when data does not hold all the vertices.
type VertexLoader interface {
	RunVertices(vat uint8, prim Primitive, count uint16, data []byte) int
}

// An UnknownOpcodeHandler is told about commands that cannot be decoded.
type UnknownOpcodeHandler interface {
	HandleUnknownOpcode(cmd byte, inDisplayList bool)
}

// UnknownOpcodeError is returned when the stream holds a leading byte that
// does not select any command.
type UnknownOpcodeError struct {
	Opcode        byte
	InDisplayList bool
}

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("unknown opcode 0x%02x", e.Opcode)
}

// HookPosCommand marks a decoded command. The item is a CommandRecord.
var HookPosCommand = &sim.HookPos{Name: "Command"}

// CommandRecord describes one decoded command.
type CommandRecord struct {
	Command       Command
	Opcode        byte
	Length        int
	Cycles        int
	InDisplayList bool
}

// Stats counts the decoded commands.
type Stats struct {
	Commands      uint64
	CPLoads       uint64
	XFLoads       uint64
	IndexedLoads  uint64
	BPLoads       uint64
	DisplayLists  uint64
	Primitives    uint64
	Vertices      uint64
	UnknownOpcode uint64
}

type stats struct {
	commands      atomic.Uint64
	cpLoads       atomic.Uint64
	xfLoads       atomic.Uint64
	indexedLoads  atomic.Uint64
	bpLoads       atomic.Uint64
	displayLists  atomic.Uint64
	primitives    atomic.Uint64
	vertices      atomic.Uint64
	unknownOpcode atomic.Uint64
}

// Decoder decodes the command stream. A decoder is owned by the consumer
// goroutine. Only Stats may be called from other goroutines.
type Decoder struct {
	sim.HookableBase

	name    string
	backend Backend
	loader  VertexLoader
	mem     memory.Memory
	unknown UnknownOpcodeHandler

	unknownSeen bool
	stats       stats
	xfScratch   [xfMaxTransferLen]uint32
}

// Name returns the name of the decoder.
func (d *Decoder) Name() string {
	return d.name
}

// SetUnknownOpcodeHandler sets who is told about undecodable commands.
func (d *Decoder) SetUnknownOpcodeHandler(h UnknownOpcodeHandler) {
	d.unknown = h
}

// Stats returns the command counters.
func (d *Decoder) Stats() Stats {
	s := &d.stats

	return Stats{
		Commands:      s.commands.Load(),
		CPLoads:       s.cpLoads.Load(),
		XFLoads:       s.xfLoads.Load(),
		IndexedLoads:  s.indexedLoads.Load(),
		BPLoads:       s.bpLoads.Load(),
		DisplayLists:  s.displayLists.Load(),
		Primitives:    s.primitives.Load(),
		Vertices:      s.vertices.Load(),
		UnknownOpcode: s.unknownOpcode.Load(),
	}
}

// Run decodes as many whole commands from src as possible. It returns the
// number of bytes consumed and the total cost. Decoding stops at the first
// incomplete command, which is left unconsumed.
func (d *Decoder) Run(src []byte, nested bool) (int, int, error) {
	pos := 0
	cycles := 0

	for pos < len(src) {
		n, c, err := d.Step(src[pos:], nested)
		if err != nil {
			return pos, cycles, err
		}

		if n == 0 {
			break
		}

		pos += n
		cycles += c
	}

	return pos, cycles, nil
}

// Step decodes the command at the start of src. It returns zero bytes
// consumed when src does not hold the whole command.
func (d *Decoder) Step(src []byte, nested bool) (int, int, error) {
	if len(src) == 0 {
		return 0, 0, nil
	}

	tag := src[0]
	cmd := dispatch[tag]

	var n, cycles int

	switch cmd {
	case CmdNop, CmdUnknownReset, CmdUnknownMetrics:
		n, cycles = 1, costNop
	case CmdInvalidateVertexCache:
		d.backend.InvalidateVertexCache()
		n, cycles = 1, costNop
	case CmdLoadCP:
		n, cycles = d.loadCP(src)
	case CmdLoadXF:
		n, cycles = d.loadXF(src)
	case CmdLoadIndexedA, CmdLoadIndexedB, CmdLoadIndexedC, CmdLoadIndexedD:
		n, cycles = d.loadIndexed(src, cmd)
	case CmdLoadBP:
		n, cycles = d.loadBP(src)
	case CmdCallDisplayList:
		n, cycles = d.callDisplayList(src, nested)
	case CmdDrawPrimitive:
		n, cycles = d.drawPrimitive(src)
	case CmdUnknown:
		return 0, 0, d.unknownOpcode(tag, nested)
	default:
		log.Panicf("command %s has no decoder", cmd)
	}

	if n == 0 {
		return 0, 0, nil
	}

	d.stats.commands.Add(1)

	if d.NumHooks() > 0 {
		d.InvokeHook(sim.HookCtx{
			Domain: d,
			Pos:    HookPosCommand,
			Item: CommandRecord{
				Command:       cmd,
				Opcode:        tag,
				Length:        n,
				Cycles:        cycles,
				InDisplayList: nested,
			},
		})
	}

	return n, cycles, nil
}

func (d *Decoder) loadCP(src []byte) (int, int) {
	const length = 1 + 1 + 4
	if len(src) < length {
		return 0, 0
	}

	d.backend.LoadCPReg(src[1], binary.BigEndian.Uint32(src[2:]))
	d.stats.cpLoads.Add(1)

	return length, costLoadCP
}

func (d *Decoder) loadXF(src []byte) (int, int) {
	if len(src) < 5 {
		return 0, 0
	}

	cmd2 := binary.BigEndian.Uint32(src[1:])
	count := int((cmd2>>16)&0xF) + 1
	address := uint16(cmd2 & 0xFFFF)

	length := 5 + 4*count
	if len(src) < length {
		return 0, 0
	}

	values := d.xfScratch[:count]
	for i := range values {
		values[i] = binary.BigEndian.Uint32(src[5+4*i:])
	}

	d.backend.LoadXFReg(address, values)
	d.stats.xfLoads.Add(1)

	return length, costLoadXFBase + costLoadXFWord*count
}

func (d *Decoder) loadIndexed(src []byte, cmd Command) (int, int) {
	const length = 1 + 4
	if len(src) < length {
		return 0, 0
	}

	array := uint8(firstIndexedArray + cmd - CmdLoadIndexedA)
	d.backend.LoadIndexedXF(array, binary.BigEndian.Uint32(src[1:]))
	d.stats.indexedLoads.Add(1)

	return length, costLoadIndexed
}

func (d *Decoder) loadBP(src []byte) (int, int) {
	const length = 1 + 4
	if len(src) < length {
		return 0, 0
	}

	d.backend.LoadBPReg(binary.BigEndian.Uint32(src[1:]))
	d.stats.bpLoads.Add(1)

	return length, costLoadBP
}

func (d *Decoder) callDisplayList(src []byte, nested bool) (int, int) {
	const length = 1 + 4 + 4
	if len(src) < length {
		return 0, 0
	}

	address := binary.BigEndian.Uint32(src[1:])
	size := binary.BigEndian.Uint32(src[5:])

	if nested {
		log.Printf("%s: display list at 0x%08x called from a display list, "+
			"not followed", d.name, address)
		return length, costCallDL
	}

	d.stats.displayLists.Add(1)

	list, err := d.mem.Read(address, size)
	if err != nil {
		log.Printf("%s: cannot read display list at 0x%08x+%d: %v",
			d.name, address, size, err)
		return length, costCallDL
	}

	_, cycles, err := d.Run(list, true)
	if err != nil {
		log.Printf("%s: display list at 0x%08x abandoned: %v",
			d.name, address, err)
	}

	return length, costCallDL + cycles
}

func (d *Decoder) drawPrimitive(src []byte) (int, int) {
	const header = 1 + 2
	if len(src) < header {
		return 0, 0
	}

	tag := src[0]
	vat := tag & vatMask
	prim := Primitive((tag & primitiveMask) >> primitiveShift)
	count := binary.BigEndian.Uint16(src[1:])

	consumed := d.loader.RunVertices(vat, prim, count, src[header:])
	if consumed < 0 {
		return 0, 0
	}

	d.stats.primitives.Add(1)
	d.stats.vertices.Add(uint64(count))

	return header + consumed, costPrimitive + costPerVertex*int(count)
}

func (d *Decoder) unknownOpcode(tag byte, nested bool) error {
	d.stats.unknownOpcode.Add(1)

	if !d.unknownSeen {
		d.unknownSeen = true

		if d.unknown != nil {
			d.unknown.HandleUnknownOpcode(tag, nested)
		}
	}

	return &UnknownOpcodeError{Opcode: tag, InDisplayList: nested}
}

// ResetUnknownOpcode allows the next unknown opcode to be reported again.
func (d *Decoder) ResetUnknownOpcode() {
	d.unknownSeen = false
}
