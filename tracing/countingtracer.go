package tracing

import (
	"sort"
	"sync"

	"github.com/sarchlab/cpfifo/sim"
)

// TaskCount is how many tasks of one kind and what were seen and how long
// they took in total.
type TaskCount struct {
	Kind      string
	What      string
	Count     uint64
	TotalTime sim.VTimeInCycle
}

type taskKey struct {
	kind, what string
}

// CountingTracer counts the finished tasks.
type CountingTracer struct {
	lock   sync.Mutex
	filter TaskFilter
	counts map[taskKey]*TaskCount
}

// NewCountingTracer creates a new CountingTracer. A nil filter keeps every
// task.
func NewCountingTracer(filter TaskFilter) *CountingTracer {
	return &CountingTracer{
		filter: filter,
		counts: make(map[taskKey]*TaskCount),
	}
}

// StartTask does nothing.
func (t *CountingTracer) StartTask(Task) {}

// EndTask records the task.
func (t *CountingTracer) EndTask(task Task) {
	if t.filter != nil && !t.filter(task) {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	key := taskKey{kind: task.Kind, what: task.What}

	c, ok := t.counts[key]
	if !ok {
		c = &TaskCount{Kind: task.Kind, What: task.What}
		t.counts[key] = c
	}

	c.Count++
	c.TotalTime += task.EndTime - task.StartTime
}

// Count returns the number of finished tasks of the kind and what.
func (t *CountingTracer) Count(kind, what string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	c, ok := t.counts[taskKey{kind: kind, what: what}]
	if !ok {
		return 0
	}

	return c.Count
}

// Counts returns every count, sorted by kind and what.
func (t *CountingTracer) Counts() []TaskCount {
	t.lock.Lock()
	defer t.lock.Unlock()

	list := make([]TaskCount, 0, len(t.counts))
	for _, c := range t.counts {
		list = append(list, *c)
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].Kind != list[j].Kind {
			return list[i].Kind < list[j].Kind
		}

		return list[i].What < list[j].What
	})

	return list
}
