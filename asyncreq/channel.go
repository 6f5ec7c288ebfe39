// Package asyncreq lets the CPU side ask the GPU side to run an operation
// and, if needed, wait for the result.
package asyncreq

import (
	"sync"
	"sync/atomic"

	"github.com/sarchlab/cpfifo/sim"
)

// HookPosRequest marks a request that is about to run. The item is the
// Event.
var HookPosRequest = &sim.HookPos{Name: "Request"}

// A Waker can wake the GPU side.
type Waker interface {
	RunGpu()
}

// Channel queues requests for the GPU side.
//
// In passthrough mode there is no separate GPU goroutine and requests run
// right away on the caller.
type Channel struct {
	sim.HookableBase

	name     string
	renderer Renderer
	waker    Waker

	lock        sync.Mutex
	cond        *sync.Cond
	queue       []Event
	enabled     bool
	passthrough bool
	submitted   uint64
	completed   uint64
	empty       atomic.Bool

	pokes []Poke
}

// NewChannel creates a new Channel in passthrough mode. Queued requests are
// dropped until the channel is enabled.
func NewChannel(name string, renderer Renderer, waker Waker) *Channel {
	c := &Channel{
		name:        name,
		renderer:    renderer,
		waker:       waker,
		passthrough: true,
	}
	c.cond = sync.NewCond(&c.lock)
	c.empty.Store(true)

	return c
}

// Name returns the name of the channel.
func (c *Channel) Name() string {
	return c.name
}

// SetWaker sets who wakes the GPU side.
func (c *Channel) SetWaker(w Waker) {
	c.waker = w
}

// IsEmpty tells if there are no requests for the GPU side. It can be
// called from any goroutine without locking.
func (c *Channel) IsEmpty() bool {
	return c.empty.Load()
}

// SetPassthrough sets if requests run on the caller.
func (c *Channel) SetPassthrough(enable bool) {
	c.lock.Lock()
	c.passthrough = enable
	c.lock.Unlock()
}

// SetEnable sets if requests are accepted. Disabling the channel discards
// the queued requests and releases the callers waiting on them.
func (c *Channel) SetEnable(enable bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.enabled = enable

	if !enable {
		c.queue = nil
		c.completed = c.submitted
		c.empty.Store(true)
		c.cond.Broadcast()
	}
}

// Pending returns the number of queued requests.
func (c *Channel) Pending() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return len(c.queue)
}

// Submit sends a request to the GPU side. A blocking submit returns after
// the request has run.
func (c *Channel) Submit(evt Event, blocking bool) {
	c.lock.Lock()

	if c.passthrough {
		c.lock.Unlock()
		c.handle(evt)

		return
	}

	if !c.enabled {
		c.lock.Unlock()
		return
	}

	seq := c.submitted
	c.submitted++
	c.empty.Store(false)
	c.queue = append(c.queue, evt)
	c.lock.Unlock()

	c.waker.RunGpu()

	if !blocking {
		return
	}

	c.lock.Lock()
	for c.completed <= seq {
		c.cond.Wait()
	}
	c.lock.Unlock()
}

// PullEvents runs up to limit queued requests in submission order. It must
// be called on the GPU side, after every command written before the first
// limit requests were submitted has been decoded.
func (c *Channel) PullEvents(limit int) {
	if c.empty.Load() || limit <= 0 {
		return
	}

	c.renderer.Flush()

	c.lock.Lock()
	defer c.lock.Unlock()

	for limit > 0 && len(c.queue) > 0 {
		evt := c.queue[0]

		if evt.Kind.isPoke() {
			limit -= c.runPokes(limit)
			continue
		}

		c.lock.Unlock()
		c.handle(evt)
		c.lock.Lock()

		c.pop(1)
		limit--
	}

	c.empty.Store(len(c.queue) == 0)
	c.cond.Broadcast()
}

// runPokes merges up to limit pokes of the same kind at the front of the
// queue into one renderer call and returns how many it ran. It is called
// with the lock held.
func (c *Channel) runPokes(limit int) int {
	kind := c.queue[0].Kind

	c.pokes = c.pokes[:0]
	n := 0

	for n < limit && n < len(c.queue) && c.queue[n].Kind == kind {
		c.invokeRequestHook(c.queue[n])
		c.pokes = append(c.pokes, c.queue[n].Poke)
		n++
	}

	c.lock.Unlock()
	if kind == KindPokeColor {
		c.renderer.PokeColor(c.pokes)
	} else {
		c.renderer.PokeDepth(c.pokes)
	}
	c.lock.Lock()

	return c.pop(n)
}

func (c *Channel) pop(n int) int {
	if n > len(c.queue) {
		n = len(c.queue)
	}

	c.completed += uint64(n)
	clear(c.queue[:n])
	c.queue = c.queue[n:]

	if len(c.queue) == 0 {
		c.queue = nil
	}

	return n
}

func (c *Channel) handle(evt Event) {
	c.invokeRequestHook(evt)

	switch evt.Kind {
	case KindPokeColor:
		c.renderer.PokeColor([]Poke{evt.Poke})
	case KindPokeDepth:
		c.renderer.PokeDepth([]Poke{evt.Poke})
	case KindPeekColor:
		c.setResult(evt, c.renderer.PeekColor(evt.Poke.X, evt.Poke.Y))
	case KindPeekDepth:
		c.setResult(evt, c.renderer.PeekDepth(evt.Poke.X, evt.Poke.Y))
	case KindSwap:
		c.renderer.Swap(evt.Swap, evt.Time)
	case KindBBoxRead:
		c.setResult(evt, uint32(c.renderer.BBoxRead(evt.Index)))
	case KindPerfQueryFlush:
		c.renderer.FlushPerfQuery()
	case KindSaveState:
		if evt.Do != nil {
			evt.Do()
		}
	}
}

func (c *Channel) setResult(evt Event, v uint32) {
	if evt.Result != nil {
		*evt.Result = v
	}
}

func (c *Channel) invokeRequestHook(evt Event) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosRequest,
		Item:   evt,
	})
}
