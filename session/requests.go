package session

import (
	"github.com/sarchlab/cpfifo/asyncreq"
	"github.com/sarchlab/cpfifo/fifo"
)

// submit sends a request to the GPU side. In single-core mode the GPU first
// catches up so that the request sees every command sent before it.
func (s *Session) submit(
	evt asyncreq.Event,
	reason fifo.SyncReason,
	blocking bool,
) {
	if !s.dualCore {
		s.fifo.SyncGPU(reason)
	}

	evt.Time = uint64(s.engine.CurrentTime())
	s.requests.Submit(evt, blocking)
}

// PeekColor reads a pixel of the embedded frame buffer.
func (s *Session) PeekColor(x, y uint16) uint32 {
	var v uint32

	s.submit(asyncreq.Event{
		Kind:   asyncreq.KindPeekColor,
		Poke:   asyncreq.Poke{X: x, Y: y},
		Result: &v,
	}, fifo.SyncReasonEFBAccess, true)

	return v
}

// PeekDepth reads a depth value of the embedded frame buffer.
func (s *Session) PeekDepth(x, y uint16) uint32 {
	var v uint32

	s.submit(asyncreq.Event{
		Kind:   asyncreq.KindPeekDepth,
		Poke:   asyncreq.Poke{X: x, Y: y},
		Result: &v,
	}, fifo.SyncReasonEFBAccess, true)

	return v
}

// PokeColor writes a pixel of the embedded frame buffer.
func (s *Session) PokeColor(x, y uint16, data uint32) {
	s.submit(asyncreq.Event{
		Kind: asyncreq.KindPokeColor,
		Poke: asyncreq.Poke{X: x, Y: y, Data: data},
	}, fifo.SyncReasonEFBAccess, false)
}

// PokeDepth writes a depth value of the embedded frame buffer.
func (s *Session) PokeDepth(x, y uint16, data uint32) {
	s.submit(asyncreq.Event{
		Kind: asyncreq.KindPokeDepth,
		Poke: asyncreq.Poke{X: x, Y: y, Data: data},
	}, fifo.SyncReasonEFBAccess, false)
}

// Swap presents a frame.
func (s *Session) Swap(info asyncreq.SwapInfo) {
	s.submit(asyncreq.Event{
		Kind: asyncreq.KindSwap,
		Swap: info,
	}, fifo.SyncReasonSwap, false)
}

// BBoxRead reads one side of the bounding box computed by the renderer.
func (s *Session) BBoxRead(index int) uint16 {
	var v uint32

	s.submit(asyncreq.Event{
		Kind:   asyncreq.KindBBoxRead,
		Index:  index,
		Result: &v,
	}, fifo.SyncReasonBBox, true)

	return uint16(v)
}

// FlushPerfQuery makes the renderer finish its performance queries.
func (s *Session) FlushPerfQuery() {
	s.submit(asyncreq.Event{
		Kind: asyncreq.KindPerfQueryFlush,
	}, fifo.SyncReasonPerfQuery, true)
}

// runOnGPU runs fn on the GPU side and waits for it.
func (s *Session) runOnGPU(fn func()) {
	if !s.dualCore || !s.isRunning() {
		fn()
		return
	}

	s.requests.Submit(asyncreq.Event{
		Kind: asyncreq.KindSaveState,
		Time: uint64(s.engine.CurrentTime()),
		Do:   fn,
	}, true)
}
