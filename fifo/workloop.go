package fifo

import (
	"runtime"
	"sync"
	"time"
)

// BackoffPolicy tells an idle WorkLoop how long to stay awake.
type BackoffPolicy struct {
	// SpinCount is how many times the loop yields and checks for new work
	// before it goes to sleep.
	SpinCount int

	// SleepTimeout bounds a sleep. The payload runs again after the timeout
	// even if nobody woke the loop. Zero means sleeping until woken.
	SleepTimeout time.Duration
}

// DefaultBackoffPolicy spins 100 times and sleeps for at most 100 ms.
var DefaultBackoffPolicy = BackoffPolicy{
	SpinCount:    100,
	SleepTimeout: 100 * time.Millisecond,
}

// WorkLoop runs a payload over and over on one goroutine while there is
// work, and sleeps when there is not.
type WorkLoop struct {
	policy BackoffPolicy

	lock     sync.Mutex
	cond     *sync.Cond
	hasWork  bool
	idle     bool
	running  bool
	done     bool
	sleepGen uint64
	timedOut bool
}

// NewWorkLoop creates a WorkLoop that is not running.
func NewWorkLoop(policy BackoffPolicy) *WorkLoop {
	l := &WorkLoop{
		policy: policy,
		idle:   true,
		done:   true,
	}
	l.cond = sync.NewCond(&l.lock)

	return l
}

// Prepare marks the loop as running. It must be called before the goroutine
// that calls Run is started, so that a Stop issued in between is not lost.
func (l *WorkLoop) Prepare() {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.running = true
	l.done = false
	l.hasWork = true
	l.idle = false
}

// Run executes payload until Stop is called. The loop must have been
// prepared.
func (l *WorkLoop) Run(payload func()) {
	l.lock.Lock()

	for l.running {
		l.hasWork = false
		l.idle = false
		l.lock.Unlock()

		payload()

		l.lock.Lock()

		if l.hasWork || !l.running {
			continue
		}

		l.idle = true
		l.cond.Broadcast()

		l.backoff()
	}

	l.idle = true
	l.done = true
	l.cond.Broadcast()
	l.lock.Unlock()
}

// backoff is called with the lock held.
func (l *WorkLoop) backoff() {
	for i := 0; i < l.policy.SpinCount; i++ {
		if l.hasWork || !l.running {
			return
		}

		l.lock.Unlock()
		runtime.Gosched()
		l.lock.Lock()
	}

	if l.hasWork || !l.running {
		return
	}

	l.sleepGen++
	l.timedOut = false

	var timer *time.Timer
	if l.policy.SleepTimeout > 0 {
		gen := l.sleepGen
		timer = time.AfterFunc(l.policy.SleepTimeout, func() {
			l.lock.Lock()
			if l.sleepGen == gen {
				l.timedOut = true
				l.cond.Broadcast()
			}
			l.lock.Unlock()
		})
	}

	for !l.hasWork && l.running && !l.timedOut {
		l.cond.Wait()
	}

	if timer != nil {
		timer.Stop()
	}
}

// Wakeup makes the loop run the payload again.
func (l *WorkLoop) Wakeup() {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.hasWork = true

	if l.running {
		l.idle = false
	}

	l.cond.Broadcast()
}

// Wait blocks until the loop has nothing left to do. It returns right away
// if the loop is not running.
func (l *WorkLoop) Wait() {
	l.lock.Lock()
	defer l.lock.Unlock()

	for l.running && !l.idle {
		l.cond.Wait()
	}
}

// Stop asks the loop to exit. A blocking stop waits until Run returns.
func (l *WorkLoop) Stop(blocking bool) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.running = false
	l.cond.Broadcast()

	if !blocking {
		return
	}

	for !l.done {
		l.cond.Wait()
	}
}

// IsRunning tells if the loop has been prepared and not stopped.
func (l *WorkLoop) IsRunning() bool {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.running
}

// IsIdle tells if the loop has finished all the work it has been given.
func (l *WorkLoop) IsIdle() bool {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.idle && !l.hasWork
}

// IsDone tells if Run has returned.
func (l *WorkLoop) IsDone() bool {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.done
}
