// Package board wires the drive together: the parameter table, protocol
// node, commutation and the regulators, driven from interrupt style
// handlers and a cooperative main loop.
package board

import (
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/bldc.go/pkg/framework"
	"github.com/robotalks/bldc.go/pkg/l0/comm"
	"github.com/robotalks/bldc.go/pkg/l0/params"
	"github.com/robotalks/bldc.go/pkg/l0/systimer"
	"github.com/robotalks/bldc.go/pkg/motor/control"
	"github.com/robotalks/bldc.go/pkg/motor/hall"
	"github.com/robotalks/bldc.go/pkg/msgs"
)

// Tick rates relative to the 100us control tick.
const (
	ControlTickMicros = 100
	SysTickEvery      = 10
)

// Output is the power stage.
type Output interface {
	// SetOutput applies the voltage command in the given sector.
	SetOutput(volts int16, sector hall.Sector)
	// Enable turns the bridge on or off.
	Enable(on bool)
}

// Encoder is an optional position source selected by the encoder flag.
type Encoder interface {
	Position() int32
	ClearPosition()
}

// Board owns the state of one drive.
type Board struct {
	Config     Config
	Address    byte
	Table      *params.Table
	Timers     *systimer.Service
	Node       *comm.Node
	Commutator *hall.Commutator
	Cascade    *control.Cascade
	Current    control.CurrentSensor
	Step       control.StepInput
	Output     Output
	Encoder    Encoder
	// StepLevel samples the step input, nil reads low.
	StepLevel func() bool

	lock       sync.Mutex
	command    atomic.Int32
	pending    atomic.Bool
	fault      atomic.Bool
	diag       atomic.Bool
	diagTimer  *systimer.Timer
	lastFaults params.Faults
	runErr     error
}

// New creates a board communicating over tr.
func New(conf Config, tr comm.Transport, sensor hall.Sensor, out Output) (*Board, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	b := &Board{
		Config:     conf,
		Address:    conf.Address(),
		Table:      params.New(conf.Params),
		Timers:     systimer.NewService(),
		Commutator: hall.NewCommutator(sensor),
		Output:     out,
	}
	b.Cascade = control.NewCascade(b.Table)
	node, err := comm.NewNode(b.Address, b.Table, tr, b.Timers)
	if err != nil {
		return nil, err
	}
	node.Position = comm.ClearPositionFunc(b.ClearPosition)
	node.TimeoutTicks = comm.TimeoutTicks(conf.BaudRate, 8, 1000)
	b.Node = node
	if conf.DiagMillis > 0 {
		if b.diagTimer = b.Timers.Acquire(); b.diagTimer == nil {
			return nil, comm.ErrNoTimer
		}
		b.diagTimer.ArmInterval(conf.DiagMillis, func() { b.diag.Store(true) })
	}
	glog.Infof("board: address 0x%02X", b.Address)
	return b, nil
}

// AddToLoop implements framework.LoopAdder.
func (b *Board) AddToLoop(l *framework.Loop) error {
	vectors := []struct {
		name  string
		every uint64
		fn    func()
	}{
		{"systick", SysTickEvery, b.SysTick},
		{"step", 1, b.StepSample},
		{"control", 1, b.ControlTick},
		{"pwm", 1, b.PWMTick},
	}
	for _, v := range vectors {
		if err := l.AddVector(v.name, v.every, framework.HandlerFunc(v.fn)); err != nil {
			return err
		}
	}
	l.AddIdle(framework.HandlerFunc(b.MainLoop))
	return nil
}

// Running reports whether the output stage is driven.
func (b *Board) Running() bool {
	return b.Table.Status().Running()
}

// Pending is the "not in position" output.
func (b *Board) Pending() bool {
	return b.pending.Load()
}

// Fault is the fault output, set while a fault stops the motor.
func (b *Board) Fault() bool {
	return b.fault.Load()
}

// Command returns the last voltage command.
func (b *Board) Command() int16 {
	return int16(b.command.Load())
}

// SysTick is the 1ms system tick.
func (b *Board) SysTick() {
	b.Timers.Tick()
}

// ControlTick runs the regulators at the control rate while the motor runs.
func (b *Board) ControlTick() {
	if !b.Running() {
		return
	}
	tbl := b.Table
	pos := b.position()
	tbl.SetPosition(pos)
	required := tbl.PositionRequired()
	precision := int32(tbl.Precision())
	if pos >= required-precision && pos <= required+precision {
		b.pending.Store(false)
		b.Commutator.ResetStall()
	} else {
		b.pending.Store(true)
	}

	cmd, stop := b.Cascade.Update(control.Inputs{
		Control:    tbl.Control(),
		Faults:     tbl.Faults(),
		MaxCurrent: tbl.MaxMotorCurrent(),
		Current:    tbl.MotorCurrent(),
		Required:   required,
		Position:   pos,
	})
	if stop {
		b.StopMotor()
		return
	}
	b.command.Store(int32(cmd))

	if b.Commutator.Tick() == hall.EventStalled {
		tbl.RaiseFaults(params.FaultMotorStalled)
	}
}

// PWMTick hands the command to the output stage.
func (b *Board) PWMTick() {
	if !b.Running() {
		return
	}
	if s := b.Commutator.Sector(); s.Valid() {
		b.Output.SetOutput(b.Command(), s)
	}
}

// HallChanged handles a change of the Hall inputs.
func (b *Board) HallChanged() {
	if !b.Running() {
		return
	}
	b.Commutator.HallChanged(b.Commutator.Sensor.HallPattern())
	b.Table.UpdateStatus(params.StatusDirectionCCW, b.Commutator.Direction() == hall.CCW)
}

// ADCSample handles a phase current conversion.
func (b *Board) ADCSample(raw int16) {
	tbl := b.Table
	cur, faults := b.Current.Sample(control.CurrentSample{
		Raw:        raw,
		Now:        b.Timers.Now(),
		Running:    b.Running(),
		Scale:      tbl.CurrentScale(),
		MaxCurrent: tbl.MaxMotorCurrent(),
	})
	tbl.SetMotorCurrent(cur)
	if faults != 0 {
		tbl.RaiseFaults(faults)
	}
}

// StepEdge handles a rising edge of the step input.
func (b *Board) StepEdge() {
	b.Step.Edge()
}

// StepSample confirms a pending step edge after the debounce time.
func (b *Board) StepSample() {
	if !b.Step.Armed() {
		return
	}
	level := b.StepLevel != nil && b.StepLevel()
	tbl := b.Table
	if delta := b.Step.Sample(level, b.Running(), tbl.Control().CCW(), tbl.PositionStep()); delta != 0 {
		tbl.AddPositionRequired(delta)
	}
}

func (b *Board) position() int32 {
	if b.Encoder != nil && b.Table.Control().Encoder() {
		return b.Encoder.Position()
	}
	return b.Commutator.Position()
}

// ClearPosition zeroes the measured and required positions.
func (b *Board) ClearPosition() {
	b.Table.SetPositionRequired(0)
	if b.Encoder != nil && b.Table.Control().Encoder() {
		b.Encoder.ClearPosition()
	} else {
		b.Commutator.ClearPosition()
	}
	b.Table.SetPosition(0)
}

// RunMotor enables the output stage unless a fault or the rotor position
// prevents it.
func (b *Board) RunMotor() error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.Running() {
		return nil
	}
	if faults := b.Table.Faults() & params.FaultsDisableRun; faults != 0 {
		return faults.Err()
	}
	if _, err := b.Commutator.Start(); err != nil {
		return err
	}
	b.Cascade.Reset()
	b.command.Store(0)
	b.Output.Enable(true)
	b.Table.UpdateStatus(params.StatusRunning, true)
	glog.V(1).Info("board: motor started")
	return nil
}

// StopMotor turns the output stage off.
func (b *Board) StopMotor() {
	b.lock.Lock()
	defer b.lock.Unlock()
	if !b.Running() {
		return
	}
	b.Output.Enable(false)
	b.command.Store(0)
	b.Table.UpdateStatus(params.StatusRunning, false)
	glog.V(1).Info("board: motor stopped")
}

// RunError is why the last start requested by the run flag failed. It is
// cleared once the motor starts or the run flag is cleared. Main loop
// context only.
func (b *Board) RunError() error {
	return b.runErr
}

// noteStart keeps the result of a start retried by the main loop and warns
// only when the error changes.
func (b *Board) noteStart(err error) {
	if err != nil && (b.runErr == nil || err.Error() != b.runErr.Error()) {
		glog.Warningf("board: %v, can't start motor", err)
	}
	b.runErr = err
}

// MainLoop runs one iteration of the background task.
func (b *Board) MainLoop() {
	tbl := b.Table
	b.Node.Poll()

	switch run := tbl.Control().Run(); {
	case !run:
		if b.Running() {
			b.StopMotor()
		}
		b.runErr = nil
	case !b.Running():
		b.noteStart(b.RunMotor())
	}

	faults := tbl.Faults()
	if faults&params.FaultsStopMotor != 0 {
		b.StopMotor()
		b.fault.Store(true)
		tbl.UpdateControl(params.ControlRun, false)
	} else if faults == 0 {
		b.fault.Store(false)
	}
	if raised := faults &^ b.lastFaults; raised != 0 {
		glog.Warningf("board: fault %v", raised)
	}
	b.lastFaults = faults

	if b.Node.TakeChanged() {
		if err := b.Cascade.CheckLimits(tbl); err != nil {
			glog.Warningf("board: %v", err)
		}
	}

	if b.diag.Swap(false) {
		glog.V(1).Infof("board: status %v link %v", msgs.StatusOf(tbl), msgs.NewLinkStats(b.Node.Stats()))
	}
}
