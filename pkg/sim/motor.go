package sim

import (
	"math"
	"sync"
	"time"

	"github.com/robotalks/bldc.go/pkg/motor/hall"
)

// MaxCommand is the voltage command giving full supply voltage.
const MaxCommand = 1500

// hallPatterns is the inverse of hall.SectorTable.
var hallPatterns = [6]uint8{4, 6, 2, 3, 1, 5}

// Motor is a six step commutated motor with Hall sensors. Torque and back
// EMF scale with the alignment of the rotor to the energized sector, so a
// stale sector drives poorly and a sector behind the rotor brakes.
type Motor struct {
	Config MotorConfig

	lock    sync.Mutex
	angle   Angle
	speed   float64
	current float64
	volts   int16
	sector  hall.Sector
	enabled bool
}

// NewMotor creates a motor at rest.
func NewMotor(conf MotorConfig) *Motor {
	return &Motor{
		Config: conf,
		angle:  AngleFromDegrees(conf.InitialAngle),
		sector: hall.InvalidSector,
	}
}

// SetOutput implements board.Output.
func (m *Motor) SetOutput(volts int16, sector hall.Sector) {
	m.lock.Lock()
	m.volts, m.sector = volts, sector
	m.lock.Unlock()
}

// Enable implements board.Output.
func (m *Motor) Enable(on bool) {
	m.lock.Lock()
	m.enabled = on
	if !on {
		m.volts = 0
	}
	m.lock.Unlock()
}

// HallPattern implements hall.Sensor.
func (m *Motor) HallPattern() uint8 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return hallPatterns[m.angle.Sector()]
}

// Step integrates the model over dt and reports whether the Hall pattern
// changed.
func (m *Motor) Step(dt time.Duration) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	c := &m.Config
	before := m.angle.Sector()

	var torque float64
	m.current = 0
	if m.enabled && m.sector.Valid() && c.Resistance > 0 {
		v := float64(m.volts) / MaxCommand * c.SupplyVolts
		align := m.angle.Alignment(int(m.sector))
		m.current = (v - c.BackEMF*m.speed) * align / c.Resistance
		torque = c.BackEMF * m.current * align
	}
	// the load acts like dry friction: it holds a resting rotor and brakes
	// a moving one down to standstill
	net := torque - c.Friction*m.speed
	switch {
	case m.speed > 0:
		net -= c.LoadTorque
	case m.speed < 0:
		net += c.LoadTorque
	case math.Abs(net) <= c.LoadTorque:
		net = 0
	case net > 0:
		net -= c.LoadTorque
	default:
		net += c.LoadTorque
	}
	if c.Inertia > 0 {
		speed := m.speed + net/c.Inertia*dt.Seconds()
		if c.LoadTorque > 0 && m.speed != 0 && (speed > 0) != (m.speed > 0) {
			speed = 0
		}
		m.speed = speed
	}
	m.angle = m.angle.Advance(m.speed, dt)
	return m.angle.Sector() != before
}

// ADC returns the shunt conversion result.
func (m *Motor) ADC() int16 {
	m.lock.Lock()
	defer m.lock.Unlock()
	v := float64(m.Config.ADCOffset) + math.Abs(m.current)*m.Config.ADCCountsPerAmp
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	return int16(v)
}

// Angle returns the electrical angle of the rotor.
func (m *Motor) Angle() Angle {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.angle
}

// Speed returns the electrical speed in rad/s.
func (m *Motor) Speed() float64 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.speed
}

// Current returns the phase current in A.
func (m *Motor) Current() float64 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.current
}

// SetAngle places the rotor, used to inject positions in tests.
func (m *Motor) SetAngle(a Angle) {
	m.lock.Lock()
	m.angle = a
	m.lock.Unlock()
}
