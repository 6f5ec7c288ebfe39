package asyncreq

// Kind tells what a request asks the GPU side to do.
type Kind int

// The request kinds.
const (
	KindPokeColor Kind = iota
	KindPokeDepth
	KindPeekColor
	KindPeekDepth
	KindSwap
	KindBBoxRead
	KindPerfQueryFlush
	KindSaveState
)

func (k Kind) String() string {
	switch k {
	case KindPokeColor:
		return "PokeColor"
	case KindPokeDepth:
		return "PokeDepth"
	case KindPeekColor:
		return "PeekColor"
	case KindPeekDepth:
		return "PeekDepth"
	case KindSwap:
		return "Swap"
	case KindBBoxRead:
		return "BBoxRead"
	case KindPerfQueryFlush:
		return "PerfQueryFlush"
	case KindSaveState:
		return "SaveState"
	}

	return "Unknown"
}

func (k Kind) isPoke() bool {
	return k == KindPokeColor || k == KindPokeDepth
}

// Poke is one pixel written to the embedded frame buffer.
type Poke struct {
	X    uint16
	Y    uint16
	Data uint32
}

// SwapInfo describes the frame to present.
type SwapInfo struct {
	XFBAddr  uint32
	FBWidth  uint32
	FBStride uint32
	FBHeight uint32
}

// Event is a request from the CPU side. Only the fields that belong to the
// kind are used.
type Event struct {
	Kind Kind

	// Time is the guest CPU time when the request was made.
	Time uint64

	Poke  Poke
	Swap  SwapInfo
	Index int

	// Result receives the value of peeks and bounding box reads. It is
	// written by the GPU side before a blocking Submit returns.
	Result *uint32

	// Do runs on the GPU side for save-state requests.
	Do func()
}

// Renderer is the part of the renderer that requests are executed against.
type Renderer interface {
	// Flush draws the primitives that have been batched so far.
	Flush()

	PokeColor(points []Poke)
	PokeDepth(points []Poke)
	PeekColor(x, y uint16) uint32
	PeekDepth(x, y uint16) uint32
	Swap(info SwapInfo, ticks uint64)
	BBoxRead(index int) uint16
	FlushPerfQuery()
}
