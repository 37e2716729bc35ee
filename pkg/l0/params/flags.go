package params

import "strings"

// StatusFlags reports the state of the drive.
type StatusFlags uint16

// Status bits.
const (
	StatusRunning      StatusFlags = 1 << 0
	StatusDirectionCCW StatusFlags = 1 << 1
)

// Running indicates the motor is commutated.
func (f StatusFlags) Running() bool { return f&StatusRunning != 0 }

// CCW indicates the last measured direction is counter-clockwise.
func (f StatusFlags) CCW() bool { return f&StatusDirectionCCW != 0 }

// With sets or clears bits.
func (f StatusFlags) With(bits StatusFlags, on bool) StatusFlags {
	if on {
		return f | bits
	}
	return f &^ bits
}

// ControlFlags are the commands from the host.
type ControlFlags uint16

// Control bits.
const (
	ControlRun          ControlFlags = 1 << 0
	ControlDirectionCCW ControlFlags = 1 << 1
	ControlEncoder      ControlFlags = 1 << 2
	ControlCurrent      ControlFlags = 1 << 3
	ControlPosition     ControlFlags = 1 << 4
)

// Run requests the motor to run.
func (f ControlFlags) Run() bool { return f&ControlRun != 0 }

// CCW requests counter-clockwise rotation when the position loop is off.
func (f ControlFlags) CCW() bool { return f&ControlDirectionCCW != 0 }

// Encoder selects the encoder as position source.
func (f ControlFlags) Encoder() bool { return f&ControlEncoder != 0 }

// CurrentLoop enables the current regulator.
func (f ControlFlags) CurrentLoop() bool { return f&ControlCurrent != 0 }

// PositionLoop enables the position regulator.
func (f ControlFlags) PositionLoop() bool { return f&ControlPosition != 0 }

// With sets or clears bits.
func (f ControlFlags) With(bits ControlFlags, on bool) ControlFlags {
	if on {
		return f | bits
	}
	return f &^ bits
}

// Faults is the error register.
type Faults uint16

// Fault bits.
const (
	FaultUnknownCommand      Faults = 1 << 0
	FaultOvercurrent         Faults = 1 << 1
	FaultCriticalOvercurrent Faults = 1 << 2
	FaultMotorStalled        Faults = 1 << 3
)

// Fault masks.
const (
	// FaultsDisableRun prevents the motor from being started.
	FaultsDisableRun Faults = 0xFFFE
	// FaultsStopMotor stops a running motor.
	FaultsStopMotor Faults = 0xFFFE
)

var faultNames = []struct {
	bit  Faults
	name string
}{
	{FaultUnknownCommand, "unknown command"},
	{FaultOvercurrent, "overcurrent"},
	{FaultCriticalOvercurrent, "critical overcurrent"},
	{FaultMotorStalled, "motor stalled"},
}

// Has checks any of bits.
func (f Faults) Has(bits Faults) bool { return f&bits != 0 }

// String lists the names of the set bits.
func (f Faults) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for _, n := range faultNames {
		if f&n.bit != 0 {
			names = append(names, n.name)
			f &^= n.bit
		}
	}
	if f != 0 {
		names = append(names, "reserved")
	}
	return strings.Join(names, ",")
}

// Err converts the set bits into an error, nil if none.
func (f Faults) Err() error {
	if f == 0 {
		return nil
	}
	return &FaultError{Faults: f}
}

// FaultError reports faults as an error.
type FaultError struct {
	Faults Faults
}

// Error implements error.
func (e *FaultError) Error() string {
	return "motor fault: " + e.Faults.String()
}
