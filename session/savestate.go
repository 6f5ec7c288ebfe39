package session

import (
	"encoding/gob"
	"fmt"
	"io"

	"github.com/sarchlab/cpfifo/cp"
	"github.com/sarchlab/cpfifo/fifo"
	"github.com/sarchlab/cpfifo/gatherpipe"
)

const stateVersion = 1

// State is the save-state image of a session.
type State struct {
	Version    int
	GatherPipe gatherpipe.State
	FIFO       fifo.State
	Registers  cp.FifoState
}

// State captures the state of the session. The GPU side is paused while the
// state is taken and resumes only if it was running before.
func (s *Session) State() State {
	wasRunning := s.fifo.PauseAndLock(true, false)
	defer s.fifo.PauseAndLock(false, wasRunning)

	st := State{
		Version:    stateVersion,
		GatherPipe: s.pipe.State(),
		Registers:  s.regs.State(),
	}

	s.runOnGPU(func() {
		st.FIFO = s.fifo.State()
	})

	return st
}

// SetState replaces the state of the session. The GPU side is paused while
// the state is replaced.
func (s *Session) SetState(st State) error {
	if st.Version != stateVersion {
		return fmt.Errorf("unsupported save state version %d", st.Version)
	}

	wasRunning := s.fifo.PauseAndLock(true, false)
	defer s.fifo.PauseAndLock(false, wasRunning)

	s.pipe.SetState(st.GatherPipe)
	s.regs.SetState(st.Registers)

	s.runOnGPU(func() {
		s.fifo.SetState(st.FIFO)
	})

	return nil
}

// SaveState writes the state of the session to w.
func (s *Session) SaveState(w io.Writer) error {
	st := s.State()

	if err := gob.NewEncoder(w).Encode(st); err != nil {
		return fmt.Errorf("encoding the state of %s: %w", s.name, err)
	}

	return nil
}

// LoadState reads the state of the session from r.
func (s *Session) LoadState(r io.Reader) error {
	var st State

	if err := gob.NewDecoder(r).Decode(&st); err != nil {
		return fmt.Errorf("decoding the state of %s: %w", s.name, err)
	}

	return s.SetState(st)
}
