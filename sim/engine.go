package sim

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	CurrentTime() VTimeInCycle
}

// EventScheduler can be used to schedule future events.
type EventScheduler interface {
	Schedule(e Event)
}

// A Scheduler is the part of the guest CPU timing that the command FIFO
// relies on: it can run a callback a number of ticks from now. It is safe to
// call ScheduleAfter from any goroutine.
type Scheduler interface {
	TimeTeller

	// ScheduleAfter runs cb once the guest CPU has advanced by ticks. The
	// callback receives how many ticks late it runs.
	ScheduleAfter(ticks int64, cb func(cyclesLate int64))
}

// An Engine is a unit that keeps the discrete event simulation run.
type Engine interface {
	Hookable
	TimeTeller
	EventScheduler
	Scheduler

	// Advance runs all the events that are due within the next n ticks and
	// then moves the current time forward by n.
	Advance(n VTimeInCycle) error

	// Run will process all the events until the simulation finishes
	Run() error

	// Pause will pause the simulation until continue is called.
	Pause()

	// Continue will continue the paused simulation
	Continue()
}
