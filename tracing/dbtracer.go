package tracing

import (
	"sync"

	"github.com/sarchlab/cpfifo/sim"
)

// DBTracer is a tracer that can store tasks into a database. DBTracers can
// connect with different writers so that the tasks can be stored in
// different types of databases.
type DBTracer struct {
	lock   sync.Mutex
	writer TraceWriter

	startTime, endTime sim.VTimeInCycle

	tracingTasks map[string]Task
}

// NewDBTracer creates a new DBTracer.
func NewDBTracer(writer TraceWriter) *DBTracer {
	return &DBTracer{
		writer:       writer,
		tracingTasks: make(map[string]Task),
	}
}

// SetTimeRange sets the time range of the tasks that are written. A zero end
// time means no upper bound.
func (t *DBTracer) SetTimeRange(startTime, endTime sim.VTimeInCycle) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.startTime = startTime
	t.endTime = endTime
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.endTime > 0 && task.StartTime > t.endTime {
		return
	}

	t.tracingTasks[task.ID] = task
}

// EndTask marks the end of a task.
func (t *DBTracer) EndTask(task Task) {
	t.lock.Lock()

	original, ok := t.tracingTasks[task.ID]
	if !ok {
		t.lock.Unlock()
		return
	}

	delete(t.tracingTasks, task.ID)
	startTime := t.startTime
	t.lock.Unlock()

	if task.EndTime < startTime {
		return
	}

	original.EndTime = task.EndTime
	t.writer.Write(original)
}

// Terminate writes all the buffered tasks.
func (t *DBTracer) Terminate() {
	t.writer.Flush()
}
