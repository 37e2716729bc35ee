// Package control implements the current/position regulator cascade and the
// measurement front ends feeding it.
package control

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/robotalks/bldc.go/pkg/l0/params"
	"github.com/robotalks/bldc.go/pkg/motor/pid"
)

// Output duty range of the voltage command.
const (
	MaxDuty = 1499
	MinDuty = -MaxDuty

	// OpenPositionCommand is used as position command when the position
	// loop is disabled.
	OpenPositionCommand = 1500

	CurrentScaling  = 2048
	PositionScaling = 1024

	// MotorCurrentLimit is the highest accepted max motor current.
	MotorCurrentLimit = 25000
)

// Loop names a regulator of the cascade.
type Loop string

// Loops
const (
	LoopCurrent  Loop = "current"
	LoopPosition Loop = "position"
)

// ConfigError reports a rejected coefficient set.
type ConfigError struct {
	Loop         Loop
	Coefficients pid.Coefficients
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s loop coefficients: %v", e.Loop, e.Coefficients)
}

// Inputs is the sampled state for one control tick.
type Inputs struct {
	Control    params.ControlFlags
	Faults     params.Faults
	MaxCurrent uint16
	Current    int16
	Required   int32
	Position   int32
}

// Cascade combines the current limiting loop and the position loop.
type Cascade struct {
	Current  *pid.PID
	Position *pid.PID
}

// NewCascade creates the cascade with the gains currently in tbl.
func NewCascade(tbl *params.Table) *Cascade {
	return &Cascade{
		Current:  pid.New(MaxDuty, CurrentScaling, tbl.CurrentCoefficients()),
		Position: pid.New(MaxDuty, PositionScaling, tbl.PositionCoefficients()),
	}
}

// Reset clears both regulators.
func (c *Cascade) Reset() {
	c.Current.Reset()
	c.Position.Reset()
}

// Update computes the voltage command. stop is set when both loops are
// disabled and the output stage must be turned off.
func (c *Cascade) Update(in Inputs) (cmd int16, stop bool) {
	currentLoop, positionLoop := in.Control.CurrentLoop(), in.Control.PositionLoop()
	if !currentLoop && !positionLoop {
		return 0, true
	}
	if in.Faults&params.FaultsStopMotor != 0 {
		return 0, false
	}

	var cur, pos int32
	if currentLoop {
		c.Current.Error = pid.Error(int32(in.MaxCurrent), int32(in.Current))
		cur = int32(c.Current.Calc())
	} else {
		c.Current.Output = 0
	}
	if positionLoop {
		c.Position.Error = pid.Error(in.Required, in.Position)
		pos = int32(c.Position.Calc())
	} else {
		c.Position.Output = OpenPositionCommand
		pos = OpenPositionCommand
	}

	out := pos
	if cur < 0 {
		if (positionLoop && in.Required < in.Position) || (!positionLoop && in.Control.CCW()) {
			out = pos - cur
		} else {
			out = pos + cur
		}
	}
	if out > MaxDuty {
		out = MaxDuty
	} else if out < MinDuty {
		out = MinDuty
	}
	return int16(out), false
}

// CheckLimits validates parameters written by the host. The max motor
// current is clamped and coefficient sets are swapped into the regulators as
// a whole. A rejected set is replaced in the table by the one in use.
func (c *Cascade) CheckLimits(tbl *params.Table) (err error) {
	if tbl.MaxMotorCurrent() > MotorCurrentLimit {
		tbl.SetMaxMotorCurrent(MotorCurrentLimit)
	}
	if cc := tbl.CurrentCoefficients(); cc.Valid() {
		c.Current.SetCoefficients(cc)
	} else {
		tbl.SetCurrentCoefficients(c.Current.Coefficients())
		err = multierr.Append(err, &ConfigError{Loop: LoopCurrent, Coefficients: cc})
	}
	if pc := tbl.PositionCoefficients(); pc.Valid() {
		c.Position.SetCoefficients(pc)
	} else {
		tbl.SetPositionCoefficients(c.Position.Coefficients())
		err = multierr.Append(err, &ConfigError{Loop: LoopPosition, Coefficients: pc})
	}
	return
}
