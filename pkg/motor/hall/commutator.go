// Package hall implements the six step commutation state machine driven by
// the three Hall effect sensors of the motor.
package hall

import (
	"errors"
	"sync"
)

// Sector is one of the six 60 degree rotor position ranges.
type Sector int8

// InvalidSector is returned for the illegal Hall patterns 0b000 and 0b111.
const InvalidSector Sector = -1

// SectorTable maps the raw Hall pattern to a sector.
var SectorTable = [8]Sector{-1, 4, 2, 3, 0, 5, 1, -1}

// SectorFromHall translates a 3-bit Hall pattern.
func SectorFromHall(pattern uint8) Sector {
	return SectorTable[pattern&7]
}

// Valid reports whether s is a real sector.
func (s Sector) Valid() bool {
	return s >= 0 && s < 6
}

// Direction is the measured direction of rotation.
type Direction uint8

// Directions
const (
	CW Direction = iota
	CCW
)

func (d Direction) String() string {
	if d == CCW {
		return "CCW"
	}
	return "CW"
}

// Sensor samples the Hall inputs.
type Sensor interface {
	HallPattern() uint8
}

// SensorFunc adapts a function to Sensor.
type SensorFunc func() uint8

// HallPattern implements Sensor.
func (f SensorFunc) HallPattern() uint8 {
	return f()
}

// Event is the outcome of a control tick.
type Event int

// Events
const (
	EventNone Event = iota
	EventForceCommutation
	EventStalled
)

func (e Event) String() string {
	switch e {
	case EventForceCommutation:
		return "force-commutation"
	case EventStalled:
		return "stalled"
	}
	return "none"
}

// Tick counts at the 100us control rate.
const (
	ForceEvery = 500
	StallAfter = 10000
)

// ErrInvalidHall is returned by Start when the rotor position can't be read.
var ErrInvalidHall = errors.New("hall position error")

// Commutator tracks sector, direction and the position counted in Hall
// transitions. HallChanged and Tick may be called from different contexts.
type Commutator struct {
	Sensor Sensor

	lock       sync.Mutex
	sector     Sector
	lastSector Sector
	direction  Direction
	position   int32
	stall      uint32
}

// NewCommutator creates a commutator reading from s.
func NewCommutator(s Sensor) *Commutator {
	return &Commutator{Sensor: s, sector: InvalidSector, lastSector: InvalidSector}
}

// Start samples the initial sector before the output stage is enabled.
func (c *Commutator) Start() (Sector, error) {
	s := SectorFromHall(c.Sensor.HallPattern())
	c.lock.Lock()
	defer c.lock.Unlock()
	c.sector, c.lastSector = s, s
	c.stall = 0
	if !s.Valid() {
		return s, ErrInvalidHall
	}
	return s, nil
}

// HallChanged handles a change notification with the sampled pattern.
func (c *Commutator) HallChanged(pattern uint8) {
	s := SectorFromHall(pattern)
	if !s.Valid() {
		return
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.sector = s
	if s == c.lastSector {
		return
	}
	c.stall = 0
	if (s == 5 && c.lastSector == 0) || c.lastSector-s == 1 {
		c.direction = CCW
		c.position--
	} else {
		c.direction = CW
		c.position++
	}
	c.lastSector = s
}

// Tick advances the stall counter by one control period.
func (c *Commutator) Tick() Event {
	c.lock.Lock()
	c.stall++
	n := c.stall
	c.lock.Unlock()
	if n%ForceEvery == 0 {
		c.forceCommutation()
		return EventForceCommutation
	}
	if n >= StallAfter {
		return EventStalled
	}
	return EventNone
}

func (c *Commutator) forceCommutation() {
	if c.Sensor == nil {
		return
	}
	s := SectorFromHall(c.Sensor.HallPattern())
	if !s.Valid() {
		return
	}
	c.lock.Lock()
	c.sector = s
	c.lock.Unlock()
}

// ResetStall restarts stall detection, used while the rotor sits in the
// requested position window.
func (c *Commutator) ResetStall() {
	c.lock.Lock()
	c.stall = 0
	c.lock.Unlock()
}

// StallTicks returns the ticks since the last Hall transition.
func (c *Commutator) StallTicks() uint32 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.stall
}

// Position returns the Hall transition count.
func (c *Commutator) Position() int32 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.position
}

// ClearPosition zeroes the position count.
func (c *Commutator) ClearPosition() {
	c.lock.Lock()
	c.position = 0
	c.lock.Unlock()
}

// Sector returns the sector used for commutation.
func (c *Commutator) Sector() Sector {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.sector
}

// Direction returns the last measured direction.
func (c *Commutator) Direction() Direction {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.direction
}
