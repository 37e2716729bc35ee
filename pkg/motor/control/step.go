package control

import "sync/atomic"

// StepInput is the debounced TAKT input. A rising edge arms the debounce,
// the level is then confirmed at the next sample.
type StepInput struct {
	armed atomic.Bool
	steps atomic.Uint32
}

// Edge records a rising edge.
func (s *StepInput) Edge() {
	s.armed.Store(true)
}

// Armed reports whether an edge waits for confirmation.
func (s *StepInput) Armed() bool {
	return s.armed.Load()
}

// Sample confirms a pending edge with the current input level and returns
// the change of the required position.
func (s *StepInput) Sample(level, running, ccw bool, step int16) int32 {
	if !s.armed.Swap(false) || !level || !running {
		return 0
	}
	s.steps.Add(1)
	if ccw {
		return -int32(step)
	}
	return int32(step)
}

// Steps returns the number of accepted steps.
func (s *StepInput) Steps() uint32 {
	return s.steps.Load()
}
