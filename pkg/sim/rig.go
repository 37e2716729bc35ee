package sim

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robotalks/bldc.go/pkg/board"
	"github.com/robotalks/bldc.go/pkg/framework"
	"github.com/robotalks/bldc.go/pkg/l0/comm"
)

// Rig couples a simulated motor with a board.
type Rig struct {
	Motor *Motor
	Board *board.Board

	step atomic.Bool
}

// NewRig creates a board driving a simulated motor over tr.
func NewRig(conf board.Config, mc MotorConfig, tr comm.Transport) (*Rig, error) {
	m := NewMotor(mc)
	b, err := board.New(conf, tr, m, m)
	if err != nil {
		return nil, err
	}
	r := &Rig{Motor: m, Board: b}
	b.StepLevel = r.step.Load
	return r, nil
}

// AddToLoop implements framework.LoopAdder. The plant is integrated
// before the board vectors of the same tick.
func (r *Rig) AddToLoop(l *framework.Loop) error {
	if err := l.AddVector("plant", 1, framework.ControlFunc(func(ctx framework.ControlContext) error {
		r.Advance(board.ControlTickMicros * time.Microsecond)
		return nil
	})); err != nil {
		return err
	}
	return r.Board.AddToLoop(l)
}

// Advance integrates the motor and raises the Hall and ADC events.
func (r *Rig) Advance(dt time.Duration) {
	if r.Motor.Step(dt) {
		r.Board.HallChanged()
	}
	r.Board.ADCSample(r.Motor.ADC())
}

// StepPulse raises the step input and signals the edge.
func (r *Rig) StepPulse() {
	r.step.Store(true)
	r.Board.StepEdge()
}

// StepRelease lowers the step input.
func (r *Rig) StepRelease() {
	r.step.Store(false)
}

// Run advances loop by n base ticks running the main loop after each,
// without a clock.
func Run(ctx context.Context, l *framework.Loop, n int) {
	for i := 0; i < n; i++ {
		l.Dispatch(ctx)
		l.RunIdle(ctx)
	}
}
