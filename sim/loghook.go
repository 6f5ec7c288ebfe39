package sim

import (
	"log"
)

// A LogHook is a hook that writes what it sees to a logger.
type LogHook interface {
	Hook
}

// LogHookBase holds the logger and the clock shared by log hooks.
type LogHookBase struct {
	*log.Logger
	TimeTeller
}

func (h LogHookBase) now() VTimeInCycle {
	if h.TimeTeller == nil {
		return 0
	}

	return h.CurrentTime()
}
