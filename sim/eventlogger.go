package sim

import (
	"log"
	"reflect"
)

// EventLogger is a hook that prints every invocation it receives, prefixed
// with the guest time and the name of the domain. If positions are given,
// the other positions are skipped.
type EventLogger struct {
	LogHookBase

	positions map[*HookPos]bool
}

// NewEventLogger returns a new EventLogger which will write in to the logger.
func NewEventLogger(
	logger *log.Logger,
	timeTeller TimeTeller,
	positions ...*HookPos,
) *EventLogger {
	h := &EventLogger{
		positions: make(map[*HookPos]bool),
	}
	h.Logger = logger
	h.TimeTeller = timeTeller

	for _, p := range positions {
		h.positions[p] = true
	}

	return h
}

// Func writes the hook information into the logger.
func (h *EventLogger) Func(ctx HookCtx) {
	if len(h.positions) > 0 && !h.positions[ctx.Pos] {
		return
	}

	domain := ""
	if named, ok := ctx.Domain.(interface{ Name() string }); ok {
		domain = named.Name()
	}

	if evt, ok := ctx.Item.(Event); ok {
		h.Printf("%d, %s, %s, %s @ %d",
			h.now(), domain, ctx.Pos.Name, reflect.TypeOf(evt), evt.Time())
		return
	}

	h.Printf("%d, %s, %s, %v", h.now(), domain, ctx.Pos.Name, ctx.Item)
}
