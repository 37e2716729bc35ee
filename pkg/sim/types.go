// Package sim models a sensored BLDC motor driven by a board, for host runs
// and tests.
package sim

// MotorConfig defines the motor and the measurement front end.
type MotorConfig struct {
	// SupplyVolts is the bus voltage at full duty.
	SupplyVolts float64 `yaml:"supply_volts"`
	// Resistance of a phase pair in ohms.
	Resistance float64 `yaml:"resistance"`
	// BackEMF constant in V per electrical rad/s, also the torque constant.
	BackEMF float64 `yaml:"back_emf"`
	// Inertia of the rotor and load.
	Inertia float64 `yaml:"inertia"`
	// Friction is the viscous friction coefficient.
	Friction float64 `yaml:"friction"`
	// LoadTorque opposes the rotation.
	LoadTorque float64 `yaml:"load_torque"`
	// ADCOffset is the conversion result at zero current.
	ADCOffset int16 `yaml:"adc_offset"`
	// ADCCountsPerAmp is the shunt amplifier gain.
	ADCCountsPerAmp float64 `yaml:"adc_counts_per_amp"`
	// InitialAngle of the rotor in electrical degrees.
	InitialAngle float64 `yaml:"initial_angle"`
}

// DefaultMotorConfig is a small 24V motor.
var DefaultMotorConfig = MotorConfig{
	SupplyVolts:     24,
	Resistance:      1,
	BackEMF:         0.02,
	Inertia:         2e-5,
	Friction:        1e-5,
	ADCOffset:       2048,
	ADCCountsPerAmp: 111,
	InitialAngle:    5,
}
