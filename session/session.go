// Package session puts the command FIFO of one emulated console together.
//
// A Session owns the guest memory, the gather pipe, the command processor
// registers, the decoder, the request channel and the FIFO manager, and
// connects them. The CPU side drives the session through the gather pipe, the
// register block and the request helpers, and advances guest time with
// Advance.
package session

import (
	"sync"

	"github.com/sarchlab/cpfifo/asyncreq"
	"github.com/sarchlab/cpfifo/cp"
	"github.com/sarchlab/cpfifo/fifo"
	"github.com/sarchlab/cpfifo/gatherpipe"
	"github.com/sarchlab/cpfifo/memory"
	"github.com/sarchlab/cpfifo/opcode"
	"github.com/sarchlab/cpfifo/sim"
)

// Session is one emulated command FIFO.
type Session struct {
	name     string
	dualCore bool

	engine   *sim.SerialEngine
	mem      memory.Memory
	pipe     *gatherpipe.GatherPipe
	regs     *cp.Registers
	decoder  *opcode.Decoder
	requests *asyncreq.Channel
	fifo     *fifo.Manager

	lock    sync.Mutex
	running bool
}

// Name returns the name of the session.
func (s *Session) Name() string {
	return s.name
}

// IsDualCore tells if the GPU runs on its own goroutine.
func (s *Session) IsDualCore() bool {
	return s.dualCore
}

// Engine returns the engine that keeps the guest CPU time.
func (s *Session) Engine() *sim.SerialEngine {
	return s.engine
}

// Memory returns the guest memory.
func (s *Session) Memory() memory.Memory {
	return s.mem
}

// GatherPipe returns the gather pipe that the CPU writes commands to.
func (s *Session) GatherPipe() *gatherpipe.GatherPipe {
	return s.pipe
}

// Registers returns the command processor registers.
func (s *Session) Registers() *cp.Registers {
	return s.regs
}

// Decoder returns the opcode decoder.
func (s *Session) Decoder() *opcode.Decoder {
	return s.decoder
}

// Requests returns the request channel.
func (s *Session) Requests() *asyncreq.Channel {
	return s.requests
}

// FIFO returns the FIFO manager.
func (s *Session) FIFO() *fifo.Manager {
	return s.fifo
}

// SetupFifo points both the command processor and the processor interface
// at the FIFO in [base, end], where end is the last burst slot.
func (s *Session) SetupFifo(base, end uint32) {
	s.regs.SetupFifo(base, end)
	s.pipe.SetCPUFifo(base, end, base)
}

// Start gets the GPU side running. In dual-core mode it starts the GPU
// goroutine.
func (s *Session) Start() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.running {
		return
	}

	s.fifo.Prepare()
	s.requests.SetEnable(true)

	if s.dualCore {
		go s.fifo.RunGpuLoop()
	}

	s.running = true
	s.fifo.RunGpu()
}

// Shutdown stops the GPU side. Requests that have not run are dropped.
func (s *Session) Shutdown() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.running {
		return
	}

	s.requests.SetEnable(false)
	s.fifo.ExitGpuLoop()
	s.running = false
}

// Advance moves the guest CPU time forward and runs the sync callbacks and
// interrupt deliveries that fall due.
func (s *Session) Advance(ticks uint64) error {
	return s.engine.Advance(sim.VTimeInCycle(ticks))
}

// WriteCommands sends raw command bytes through the gather pipe.
func (s *Session) WriteCommands(data []byte) {
	s.pipe.WriteBytes(data)
}

// Flush commits the bytes left in the gather pipe, padding the last burst
// with NOPs.
func (s *Session) Flush() {
	n := s.pipe.Count() % gatherpipe.BurstSize
	if n == 0 {
		return
	}

	s.pipe.WriteBytes(make([]byte, gatherpipe.BurstSize-n))
}

// SyncGPU makes the GPU catch up with every command sent so far.
func (s *Session) SyncGPU() {
	s.fifo.SyncGPU(fifo.SyncReasonOther)
}

// Stats returns the decoder statistics.
func (s *Session) Stats() opcode.Stats {
	return s.decoder.Stats()
}

// PauseAndLock pauses the GPU side. See fifo.Manager.PauseAndLock.
func (s *Session) PauseAndLock(doLock, unpauseOnUnlock bool) bool {
	return s.fifo.PauseAndLock(doLock, unpauseOnUnlock)
}

func (s *Session) isRunning() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.running
}
