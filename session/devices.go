package session

import (
	"sync/atomic"

	"github.com/sarchlab/cpfifo/asyncreq"
)

// InterruptPin latches the state of the command processor interrupt.
type InterruptPin struct {
	active atomic.Bool
	raised atomic.Uint64
}

// SetInterrupt sets the state of the pin.
func (p *InterruptPin) SetInterrupt(active bool) {
	if active && !p.active.Load() {
		p.raised.Add(1)
	}

	p.active.Store(active)
}

// Active tells if the interrupt is raised.
func (p *InterruptPin) Active() bool {
	return p.active.Load()
}

// Raised returns how many times the interrupt went from low to high.
func (p *InterruptPin) Raised() uint64 {
	return p.raised.Load()
}

// DiscardRenderer is a renderer with no frame buffer. Peeks and bounding box
// reads return zero.
type DiscardRenderer struct{}

// Flush does nothing.
func (DiscardRenderer) Flush() {}

// PokeColor does nothing.
func (DiscardRenderer) PokeColor([]asyncreq.Poke) {}

// PokeDepth does nothing.
func (DiscardRenderer) PokeDepth([]asyncreq.Poke) {}

// PeekColor returns zero.
func (DiscardRenderer) PeekColor(uint16, uint16) uint32 { return 0 }

// PeekDepth returns zero.
func (DiscardRenderer) PeekDepth(uint16, uint16) uint32 { return 0 }

// Swap does nothing.
func (DiscardRenderer) Swap(asyncreq.SwapInfo, uint64) {}

// BBoxRead returns zero.
func (DiscardRenderer) BBoxRead(int) uint16 { return 0 }

// FlushPerfQuery does nothing.
func (DiscardRenderer) FlushPerfQuery() {}
