package tracing

import (
	"fmt"

	"github.com/sarchlab/cpfifo/asyncreq"
	"github.com/sarchlab/cpfifo/fifo"
	"github.com/sarchlab/cpfifo/gatherpipe"
	"github.com/sarchlab/cpfifo/opcode"
	"github.com/sarchlab/cpfifo/sim"
)

// NamedHookable represent something both have a name and can be hooked
type NamedHookable interface {
	Name() string
	sim.Hookable
}

// CollectTrace let the tracer to collect trace from a domain. The time of the
// tasks is read from the time teller.
func CollectTrace(
	domain NamedHookable,
	tracer Tracer,
	timeTeller sim.TimeTeller,
) {
	h := &traceHook{
		t:          tracer,
		timeTeller: timeTeller,
		where:      domain.Name(),
	}
	domain.AcceptHook(h)
}

// A traceHook turns the hook invocations of the command FIFO components into
// tasks.
type traceHook struct {
	t          Tracer
	timeTeller sim.TimeTeller
	where      string
}

// Func calls the tracer interfaces when the hook is triggered
func (h *traceHook) Func(ctx sim.HookCtx) {
	task, duration, ok := h.taskFromHook(ctx)
	if !ok {
		return
	}

	task.ID = sim.GetIDGenerator().Generate()
	task.Where = h.where
	task.StartTime = h.timeTeller.CurrentTime()
	task.EndTime = task.StartTime + sim.VTimeInCycle(duration)
	task.Detail = ctx.Item

	h.t.StartTask(task)
	h.t.EndTask(task)
}

func (h *traceHook) taskFromHook(ctx sim.HookCtx) (Task, int64, bool) {
	switch ctx.Pos {
	case gatherpipe.HookPosBurst:
		return Task{
			Kind: KindBurst,
			What: fmt.Sprintf("0x%08x", ctx.Item.(uint32)),
		}, 0, true
	case opcode.HookPosCommand:
		rec := ctx.Item.(opcode.CommandRecord)
		return Task{
			Kind: KindCommand,
			What: rec.Command.String(),
		}, int64(rec.Cycles), true
	case fifo.HookPosDrain:
		rec := ctx.Item.(fifo.DrainRecord)
		return Task{
			Kind: KindDrain,
			What: KindDrain,
		}, rec.Cycles, true
	case asyncreq.HookPosRequest:
		evt := ctx.Item.(asyncreq.Event)
		return Task{
			Kind: KindRequest,
			What: evt.Kind.String(),
		}, 0, true
	}

	return Task{}, 0, false
}
