package fifo

import "time"

// Event is an auto-reset event. A Set is remembered until one Wait consumes
// it.
type Event struct {
	ch chan struct{}
}

// NewEvent creates an Event that is not set.
func NewEvent() *Event {
	return &Event{ch: make(chan struct{}, 1)}
}

// Set sets the event. Setting an event that is already set does nothing.
func (e *Event) Set() {
	select {
	case e.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until the event is set and resets it.
func (e *Event) Wait() {
	<-e.ch
}

// WaitFor waits for at most d. It returns false on timeout.
func (e *Event) WaitFor(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-e.ch:
		return true
	case <-t.C:
		return false
	}
}

// Reset clears the event.
func (e *Event) Reset() {
	select {
	case <-e.ch:
	default:
	}
}
