// Package pid implements the fixed point PID regulator used by the
// current and position loops.
package pid

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Coefficients is the gain set of a regulator. Sets are replaced as a whole.
type Coefficients struct {
	Kp int16 `yaml:"kp"`
	Ki int16 `yaml:"ki"`
	Kd int16 `yaml:"kd"`
}

// Valid reports whether the gains can be used by the regulator.
func (c Coefficients) Valid() bool {
	return c.Kp >= 0 && c.Ki >= 0 && c.Kd >= 0
}

// String implements fmt.Stringer.
func (c Coefficients) String() string {
	return fmt.Sprintf("kp=%d ki=%d kd=%d", c.Kp, c.Ki, c.Kd)
}

// PID holds the state of one regulator.
//
// Calc computes output = (Kp*e + Ki*sum(e) + Kd*(e - e[-1])) / ScalingFactor
// clamped to [NegLimit, PosLimit]. When the output saturates, the integral is
// set so that the sum equals the limit exactly, and when the P and D terms
// alone exceed the limit, the accumulated integral is dropped before the
// current error is added.
type PID struct {
	Integral      int32
	Error         int16
	PreviousError int16
	Output        int16
	PosLimit      int32
	NegLimit      int32
	ScalingFactor int16

	coefficients atomic.Pointer[Coefficients]
}

// New creates a regulator with symmetric output limit and scaling.
func New(limit int32, scaling int16, c Coefficients) *PID {
	p := &PID{PosLimit: limit, NegLimit: -limit, ScalingFactor: scaling}
	p.SetCoefficients(c)
	return p
}

// SetCoefficients swaps in a new gain set.
func (p *PID) SetCoefficients(c Coefficients) {
	p.coefficients.Store(&c)
}

// Coefficients returns the gain set in use.
func (p *PID) Coefficients() Coefficients {
	if c := p.coefficients.Load(); c != nil {
		return *c
	}
	return Coefficients{}
}

// Reset clears the dynamic state.
func (p *PID) Reset() {
	p.Integral, p.Error, p.PreviousError, p.Output = 0, 0, 0, 0
}

// Error computes reference-measured saturated to int16.
func Error(reference, measured int32) int16 {
	d := int64(reference) - int64(measured)
	if d > math.MaxInt16 {
		return math.MaxInt16
	}
	if d < math.MinInt16 {
		return math.MinInt16
	}
	return int16(d)
}

// Calc runs one step on p.Error and returns the new output.
func (p *PID) Calc() int16 {
	c := p.Coefficients()
	scale := int32(p.ScalingFactor)
	if scale == 0 {
		scale = 1
	}
	posLimit, negLimit := p.PosLimit*scale, p.NegLimit*scale

	e := int32(p.Error)
	pd := e*int32(c.Kp) + (e-int32(p.PreviousError))*int32(c.Kd)
	if pd > posLimit || pd < negLimit {
		p.Integral = 0
	}
	p.Integral += e * int32(c.Ki)

	sum := pd + p.Integral
	if sum > posLimit {
		if c.Ki != 0 {
			p.Integral = posLimit - pd
		}
		sum = posLimit
	} else if sum < negLimit {
		if c.Ki != 0 {
			p.Integral = negLimit - pd
		}
		sum = negLimit
	}

	p.PreviousError = p.Error
	p.Output = int16(sum / scale)
	return p.Output
}
