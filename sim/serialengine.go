package sim

import (
	"log"
	"reflect"
	"sync"
)

// A SerialEngine is an Engine that always run events one after another.
//
// The engine advances only when the owner of guest CPU time calls Advance.
// Other goroutines may schedule events at any time; those events are placed
// no earlier than the current time.
type SerialEngine struct {
	HookableBase

	timeLock sync.RWMutex
	time     VTimeInCycle
	queue    EventQueue

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex
}

// NewSerialEngine creates a SerialEngine
func NewSerialEngine() *SerialEngine {
	e := new(SerialEngine)

	e.queue = NewEventQueue()

	return e
}

// Schedule register an event to be happen in the future
func (e *SerialEngine) Schedule(evt Event) {
	e.timeLock.RLock()
	defer e.timeLock.RUnlock()

	if evt.Time() < e.time {
		log.Panicf(
			"cannot schedule event in the past, evt %s @ %d, now %d",
			reflect.TypeOf(evt), evt.Time(), e.time,
		)
	}

	e.queue.Push(evt)
}

// ScheduleAfter runs cb when the guest CPU time has advanced by ticks. A
// negative tick count is treated as zero.
func (e *SerialEngine) ScheduleAfter(ticks int64, cb func(cyclesLate int64)) {
	if ticks < 0 {
		ticks = 0
	}

	e.timeLock.RLock()
	t := e.time + VTimeInCycle(ticks)
	e.queue.Push(&callbackEvent{
		EventBase: NewEventBase(t, callbackRunner{e}),
		cb:        cb,
	})
	e.timeLock.RUnlock()
}

type callbackEvent struct {
	*EventBase

	cb func(cyclesLate int64)
}

type callbackRunner struct {
	engine *SerialEngine
}

func (r callbackRunner) Handle(evt Event) error {
	cbEvt := evt.(*callbackEvent)
	cbEvt.cb(int64(r.engine.readNow() - cbEvt.Time()))

	return nil
}

func (e *SerialEngine) readNow() VTimeInCycle {
	e.timeLock.RLock()
	t := e.time
	e.timeLock.RUnlock()

	return t
}

// Advance processes the events that are due in the next n ticks and leaves
// the engine at now+n.
func (e *SerialEngine) Advance(n VTimeInCycle) error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	target := e.readNow() + n

	for {
		e.pauseLock.Lock()

		evt := e.popDue(target, true)
		if evt == nil {
			e.pauseLock.Unlock()
			break
		}

		err := e.runOne(evt)

		e.pauseLock.Unlock()

		if err != nil {
			return err
		}
	}

	return nil
}

// Run processes all the events scheduled in the SerialEngine
func (e *SerialEngine) Run() error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	for {
		e.pauseLock.Lock()

		evt := e.popDue(0, false)
		if evt == nil {
			e.pauseLock.Unlock()
			return nil
		}

		err := e.runOne(evt)

		e.pauseLock.Unlock()

		if err != nil {
			return err
		}
	}
}

// popDue removes the next event and moves the time to it. When no event is
// due by target, it moves the time to target and returns nil. Schedulers
// hold the time lock for reading, so they never observe a skipped time.
func (e *SerialEngine) popDue(target VTimeInCycle, bounded bool) Event {
	e.timeLock.Lock()
	defer e.timeLock.Unlock()

	if e.queue.Len() == 0 || (bounded && e.queue.Peek().Time() > target) {
		if bounded {
			e.time = target
		}

		return nil
	}

	evt := e.queue.Pop()
	if evt.Time() < e.time {
		log.Panicf(
			"cannot run event in the past, evt %s @ %d, now %d",
			reflect.TypeOf(evt), evt.Time(), e.time,
		)
	}

	e.time = evt.Time()

	return evt
}

func (e *SerialEngine) runOne(evt Event) error {
	hookCtx := HookCtx{
		Domain: e,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	e.InvokeHook(hookCtx)

	err := evt.Handler().Handle(evt)

	hookCtx.Pos = HookPosAfterEvent
	e.InvokeHook(hookCtx)

	return err
}

// Pause prevents the SerialEngine to trigger more events.
func (e *SerialEngine) Pause() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if e.isPaused {
		return
	}

	e.pauseLock.Lock()
	e.isPaused = true
}

// Continue allows the SerialEngine to trigger more events.
func (e *SerialEngine) Continue() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if !e.isPaused {
		return
	}

	e.pauseLock.Unlock()
	e.isPaused = false
}

// CurrentTime returns the current time at which the engine is at.
// Specifically, the run time of the current event.
func (e *SerialEngine) CurrentTime() VTimeInCycle {
	return e.readNow()
}

// PendingEvents returns the number of events that have not fired yet.
func (e *SerialEngine) PendingEvents() int {
	return e.queue.Len()
}
