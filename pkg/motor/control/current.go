package control

import (
	"github.com/robotalks/bldc.go/pkg/l0/params"
)

// Current measurement constants.
const (
	// CalibrationMillis is the period after boot in which the zero current
	// offset is tracked while the motor is stopped.
	CalibrationMillis = 3000
	// CriticalCurrent trips the critical overcurrent fault while running.
	CriticalCurrent = 30000
	// OvercurrentSamples is how long the current may stay above the max
	// limit, in samples (1s at the control rate).
	OvercurrentSamples = 10000

	historySize = 10
	filterK     = 100
)

// CurrentSample is one ADC conversion with the state it is evaluated in.
type CurrentSample struct {
	Raw        int16
	Now        uint64
	Running    bool
	Scale      uint16
	MaxCurrent uint16
}

// CurrentSensor filters the phase current ADC readings into mA.
type CurrentSensor struct {
	offset  int16
	history [historySize]int32
	idx     int
	sum     int32
	state   int64
	filter  int32
	over    uint32
}

// Offset returns the calibrated zero offset.
func (s *CurrentSensor) Offset() int16 {
	return s.offset
}

// Sample processes one conversion and returns the scaled current together
// with the faults it raises.
func (s *CurrentSensor) Sample(in CurrentSample) (current int16, faults params.Faults) {
	if !in.Running && in.Now < CalibrationMillis {
		s.offset = int16((int32(s.offset) + int32(in.Raw)) >> 1)
	}

	s.history[s.idx] = int32(in.Raw) - int32(s.offset)
	s.sum += s.history[s.idx]
	s.idx = (s.idx + 1) % historySize
	s.sum -= s.history[s.idx]

	s.state += int64(s.sum-s.filter) * filterK
	s.filter = int32(s.state >> 15)

	scaled := (s.filter * int32(in.Scale)) >> 14
	current = saturate16(scaled)

	if in.Running {
		if int32(current) > CriticalCurrent {
			faults |= params.FaultCriticalOvercurrent
		}
		if in.MaxCurrent > 0 && int32(current) > int32(in.MaxCurrent) {
			s.over++
			if s.over >= OvercurrentSamples {
				faults |= params.FaultOvercurrent
			}
		} else {
			s.over = 0
		}
	} else {
		s.over = 0
	}
	return
}

func saturate16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
