// Package fifo moves command bytes from the FIFO in guest memory to the
// decoder and keeps the GPU in step with the guest CPU.
//
// In dual-core mode the consumer runs on its own goroutine inside a WorkLoop
// and the tick synchronizer only throttles it. In single-core mode the
// consumer runs on the CPU goroutine, inside the sync callback and wherever
// the CPU needs the GPU to have caught up.
package fifo

import (
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"

	"github.com/sarchlab/cpfifo/gatherpipe"
	"github.com/sarchlab/cpfifo/memory"
	"github.com/sarchlab/cpfifo/sim"
)

// Timing constants, in guest CPU ticks.
const (
	// TimeSlot is the minimum spacing of two sync callbacks.
	TimeSlot = 1000

	// DefaultSyncMaxDistance is how far the GPU may run ahead of the CPU
	// before the CPU waits.
	DefaultSyncMaxDistance = 200000

	// DefaultSyncMinDistance is how far the GPU may fall behind the CPU
	// before the GPU stops.
	DefaultSyncMinDistance = -200000
)

// FlowControl is the part of the command processor registers that the
// consumer reads and advances.
type FlowControl interface {
	CanFetch() bool
	ReadPointer() uint32
	AdvanceReadPointer()
	PublishSafeReadPointer()
}

// RequestQueue holds the requests that must run on the consumer side.
type RequestQueue interface {
	IsEmpty() bool
	Pending() int
	PullEvents(limit int)
}

// SyncReason tells why the CPU forced the GPU to catch up.
type SyncReason int

// The reasons to sync.
const (
	SyncReasonOther SyncReason = iota
	SyncReasonRegisterAccess
	SyncReasonEFBAccess
	SyncReasonSwap
	SyncReasonBBox
	SyncReasonPerfQuery
	SyncReasonSaveState

	numSyncReasons
)

func (r SyncReason) String() string {
	switch r {
	case SyncReasonOther:
		return "Other"
	case SyncReasonRegisterAccess:
		return "RegisterAccess"
	case SyncReasonEFBAccess:
		return "EFBAccess"
	case SyncReasonSwap:
		return "Swap"
	case SyncReasonBBox:
		return "BBox"
	case SyncReasonPerfQuery:
		return "PerfQuery"
	case SyncReasonSaveState:
		return "SaveState"
	}

	return fmt.Sprintf("SyncReason(%d)", int(r))
}

// State is the save-state image of the manager.
type State struct {
	VideoBuffer VideoBufferState
	SyncTicks   int64
}

// Manager owns the consumer side of the FIFO for one emulated session.
type Manager struct {
	name string

	dualCore        bool
	syncGPU         bool
	syncMaxDistance int64
	syncMinDistance int64
	overclock       float64
	timeSlot        int64

	mem       memory.Memory
	buf       *VideoBuffer
	dec       Decoder
	regs      FlowControl
	requests  RequestQueue
	scheduler sim.Scheduler
	fatal     func(msg string)

	loop       *WorkLoop
	syncWakeup *Event

	syncTicks       atomic.Int64
	syncSuspended   atomic.Bool
	emulatorRunning atomic.Bool
	stalled         atomic.Bool
	burstsFetched   atomic.Uint64
	syncCount       [numSyncReasons]atomic.Uint64
	burst           [gatherpipe.BurstSize]byte

	// inlineDrainDepth is only touched by the CPU goroutine.
	inlineDrainDepth int

	pauseLock sync.Mutex
}

// Name returns the name of the manager.
func (m *Manager) Name() string {
	return m.name
}

// SetFlowControl sets the registers the consumer reads.
func (m *Manager) SetFlowControl(regs FlowControl) {
	m.regs = regs
}

// SetDecoder sets the decoder the consumer feeds.
func (m *Manager) SetDecoder(dec Decoder) {
	m.dec = dec
}

// SetRequestQueue sets the requests the consumer pulls.
func (m *Manager) SetRequestQueue(q RequestQueue) {
	m.requests = q
}

// IsDualCore tells if the consumer runs on its own goroutine.
func (m *Manager) IsDualCore() bool {
	return m.dualCore
}

// VideoBuffer returns the buffer of fetched but undecoded bytes.
func (m *Manager) VideoBuffer() *VideoBuffer {
	return m.buf
}

// SyncTicks returns the number of ticks the GPU is currently entitled to.
func (m *Manager) SyncTicks() int64 {
	return m.syncTicks.Load()
}

// BurstsFetched returns the number of bursts read from the FIFO so far.
func (m *Manager) BurstsFetched() uint64 {
	return m.burstsFetched.Load()
}

// SyncCount returns how many times the CPU synced for the reason.
func (m *Manager) SyncCount(reason SyncReason) uint64 {
	return m.syncCount[reason].Load()
}

// Prepare gets the manager ready to run. In dual-core mode the consumer
// goroutine must be started with RunGpuLoop after Prepare returns.
func (m *Manager) Prepare() {
	if m.dualCore {
		m.loop.Prepare()
	}
}

// RunGpu lets the consumer know that there may be new work.
func (m *Manager) RunGpu() {
	if m.dualCore {
		m.loop.Wakeup()
	}

	if !m.dualCore || m.syncGPU {
		if m.syncSuspended.CompareAndSwap(true, false) {
			m.scheduleSync(m.timeSlot)
		}
	}
}

func (m *Manager) scheduleSync(ticks int64) {
	m.scheduler.ScheduleAfter(ticks, func(cyclesLate int64) {
		m.SyncGPUCallback(ticks, cyclesLate)
	})
}

// SyncGPUCallback is the tick synchronizer. It runs on the CPU goroutine
// every time the guest CPU has advanced by ticks.
func (m *Manager) SyncGPUCallback(ticks, _ int64) {
	next := int64(-1)

	switch {
	case !m.dualCore:
		next = m.RunGpuOnCpu(ticks)
	case m.syncGPU:
		next = m.WaitForGpuThread(ticks)
	}

	if next < 0 {
		m.syncSuspended.Store(true)
		return
	}

	m.scheduleSync(next)
}

// RunGpuOnCpu runs the consumer on the CPU goroutine with the ticks that the
// CPU has just spent. It returns when the next sync callback is due, or -1
// when the GPU has nothing to do.
func (m *Manager) RunGpuOnCpu(ticks int64) int64 {
	available := m.scaleTicks(ticks) + m.syncTicks.Load()

	m.inlineDrainDepth++
	remaining, idle := m.consume(available)
	m.inlineDrainDepth--

	m.syncTicks.Store(min(remaining, 0))

	if idle && remaining >= 0 {
		return -1
	}

	if remaining > 0 {
		remaining = 0
	}

	return -remaining + m.timeSlot
}

// WaitForGpuThread grants the GPU goroutine the ticks that the CPU has just
// spent, and blocks the CPU when the GPU is too far behind. It returns when
// the next sync callback is due, or -1 when the GPU is idle.
func (m *Manager) WaitForGpuThread(ticks int64) int64 {
	ticks = m.scaleTicks(ticks)

	now := m.syncTicks.Add(ticks)
	old := now - ticks

	if old >= 0 && m.loop.IsIdle() {
		return -1
	}

	if old < m.syncMinDistance && now >= m.syncMinDistance {
		m.loop.Wakeup()
	}

	if now < m.syncMinDistance {
		return m.timeSlot + m.syncMinDistance - now
	}

	if now >= m.syncMaxDistance {
		m.waitForSyncWakeup()
	}

	return m.timeSlot
}

func (m *Manager) waitForSyncWakeup() {
	timeout := m.loop.policy.SleepTimeout
	if timeout <= 0 {
		timeout = DefaultBackoffPolicy.SleepTimeout
	}

	for !m.syncWakeup.WaitFor(timeout) {
		if m.loop.IsIdle() || !m.loop.IsRunning() {
			return
		}
	}
}

func (m *Manager) scaleTicks(ticks int64) int64 {
	return int64(float64(ticks) * m.overclock)
}

// RunGpuLoop is the body of the consumer goroutine in dual-core mode. It
// returns after ExitGpuLoop.
func (m *Manager) RunGpuLoop() {
	m.loop.Run(m.gpuLoopIteration)
}

func (m *Manager) gpuLoopIteration() {
	if !m.requests.IsEmpty() {
		n := m.requests.Pending()
		m.consumeSynced(math.MaxInt64)
		m.requests.PullEvents(n)
	}

	if !m.emulatorRunning.Load() {
		m.syncWakeup.Set()
		return
	}

	idle := m.consumeSynced(0)

	if idle {
		m.discardCredit()
		m.syncWakeup.Set()
	}
}

// consumeSynced runs the consumer on the GPU goroutine. With a zero limit
// the work is bounded by the sync budget when the GPU is synced, and
// unbounded otherwise. It returns true if the consumer ran out of work.
func (m *Manager) consumeSynced(limit int64) bool {
	if !m.syncGPU || limit != 0 {
		if limit == 0 {
			limit = math.MaxInt64
		}

		remaining, idle := m.consume(limit)
		if m.syncGPU {
			m.spend(limit - remaining)
		}

		return idle
	}

	for {
		entitled := m.syncTicks.Load() - m.syncMinDistance
		if entitled <= 0 {
			return false
		}

		chunk := min(entitled, m.timeSlot)
		remaining, idle := m.consume(chunk)
		m.spend(chunk - remaining)

		if idle {
			return true
		}
	}
}

// spend takes cycles from the sync budget and wakes the CPU when the GPU
// has caught up.
func (m *Manager) spend(cycles int64) {
	if cycles <= 0 {
		return
	}

	now := m.syncTicks.Add(-cycles)
	old := now + cycles

	if old >= m.syncMaxDistance && now < m.syncMaxDistance {
		m.syncWakeup.Set()
	}
}

func (m *Manager) discardCredit() {
	for {
		old := m.syncTicks.Load()
		if old <= 0 || m.syncTicks.CompareAndSwap(old, 0) {
			return
		}
	}
}

// consume fetches bursts and decodes them until the budget is spent. It
// returns the budget left and whether the consumer ran out of work.
func (m *Manager) consume(budget int64) (int64, bool) {
	for budget > 0 {
		if m.buf.Size() > 0 && !m.stalled.Load() {
			cycles, err := m.buf.Drain(m.dec, budget)
			budget -= cycles

			if err != nil {
				m.stalled.Store(true)
				log.Printf("%s: consumer stalled: %v", m.name, err)
			}

			if m.buf.Size() == 0 {
				m.regs.PublishSafeReadPointer()
			}

			if budget <= 0 {
				break
			}
		}

		if m.stalled.Load() || !m.regs.CanFetch() {
			return budget, true
		}

		if !m.fetchBurst() {
			m.stalled.Store(true)
			return budget, true
		}
	}

	return budget, false
}

func (m *Manager) fetchBurst() bool {
	rp := m.regs.ReadPointer()

	err := m.mem.CopyFrom(m.burst[:], rp)
	if err != nil {
		m.fatal(fmt.Sprintf("%s: cannot fetch burst at 0x%08x: %v",
			m.name, rp, err))
		return false
	}

	m.buf.Append(m.burst[:])
	m.burstsFetched.Add(1)
	m.regs.AdvanceReadPointer()

	return true
}

// FlushGpu waits until the consumer goroutine is idle. It returns right away
// in single-core mode.
func (m *Manager) FlushGpu() {
	if !m.dualCore {
		return
	}

	m.loop.Wait()
}

// SyncForRegisterAccess makes the GPU-owned state current before the CPU
// reads it.
func (m *Manager) SyncForRegisterAccess() {
	m.SyncGPU(SyncReasonRegisterAccess)
}

// SyncGPU makes the consumer catch up with everything the CPU has sent. In
// single-core mode the consumer runs inline with no budget limit.
func (m *Manager) SyncGPU(reason SyncReason) {
	m.syncCount[reason].Add(1)

	if m.dualCore {
		m.FlushGpu()
		return
	}

	m.drainInline()
}

func (m *Manager) drainInline() {
	// Decoding may write registers that sync again.
	if m.inlineDrainDepth > 0 {
		return
	}

	m.inlineDrainDepth++
	m.consume(math.MaxInt64)
	m.inlineDrainDepth--
}

// ResetVideoBuffer drops the fetched bytes and clears a stalled consumer.
func (m *Manager) ResetVideoBuffer() {
	m.FlushGpu()

	m.buf.Reset()
	m.stalled.Store(false)
	m.regs.PublishSafeReadPointer()
}

// Stalled tells if the consumer stopped at a command it cannot decode.
func (m *Manager) Stalled() bool {
	return m.stalled.Load()
}

// EmulatorRunning tells the consumer if the emulated system is running.
func (m *Manager) EmulatorRunning(running bool) {
	m.emulatorRunning.Store(running)

	if running {
		m.RunGpu()
		return
	}

	if m.dualCore {
		m.loop.Wakeup()
	}
}

// IsEmulatorRunning tells if the consumer treats the emulated system as
// running.
func (m *Manager) IsEmulatorRunning() bool {
	return m.emulatorRunning.Load()
}

// PauseAndLock stops the consumer so that its state can be saved or
// replaced. The lock is released with doLock set to false. When locking, it
// returns whether the emulated system was running before the pause.
func (m *Manager) PauseAndLock(doLock, unpauseOnUnlock bool) bool {
	if doLock {
		m.pauseLock.Lock()
		wasRunning := m.emulatorRunning.Load()
		m.SyncGPU(SyncReasonOther)
		m.EmulatorRunning(false)
		m.FlushGpu()

		return wasRunning
	}

	if unpauseOnUnlock {
		m.EmulatorRunning(true)
	}

	m.pauseLock.Unlock()

	return unpauseOnUnlock
}

// ExitGpuLoop stops the consumer goroutine and waits for it to return.
func (m *Manager) ExitGpuLoop() {
	m.syncWakeup.Set()

	if !m.dualCore {
		return
	}

	m.loop.Stop(true)
}

// State returns the save-state image of the manager. The consumer must be
// paused.
func (m *Manager) State() State {
	return State{
		VideoBuffer: m.buf.State(),
		SyncTicks:   m.syncTicks.Load(),
	}
}

// SetState replaces the state of the manager. The consumer must be paused.
func (m *Manager) SetState(s State) {
	m.buf.SetState(s.VideoBuffer)
	m.syncTicks.Store(s.SyncTicks)
	m.stalled.Store(false)
}
