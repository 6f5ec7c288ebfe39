package tracing

import "github.com/sarchlab/cpfifo/sim"

// A Task is a piece of work done by a component of the command FIFO, such as
// a burst, a decoded command or a request.
type Task struct {
	ID        string           `json:"id"`
	ParentID  string           `json:"parent_id"`
	Kind      string           `json:"kind"`
	What      string           `json:"what"`
	Where     string           `json:"where"`
	StartTime sim.VTimeInCycle `json:"start_time"`
	EndTime   sim.VTimeInCycle `json:"end_time"`
	Detail    interface{}      `json:"-"`
}

// Task kinds.
const (
	KindBurst   = "burst"
	KindCommand = "command"
	KindDrain   = "drain"
	KindRequest = "request"
)

// TaskFilter is a function that can filter interesting tasks. If this function
// returns true, the task is considered useful.
type TaskFilter func(t Task) bool
