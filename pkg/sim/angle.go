package sim

import (
	"math"
	"time"
)

// Angle is the electrical rotor angle in radians, wrapped to [-π, π]. One
// electrical turn passes the six hall sectors.
type Angle float64

// AngleFromDegrees converts electrical degrees.
func AngleFromDegrees(d float64) Angle {
	return Angle(wrapRadians(d * math.Pi / 180.0))
}

// Advance turns the rotor by speed (rad/s) for dt.
func (a Angle) Advance(speed float64, dt time.Duration) Angle {
	return Angle(wrapRadians(float64(a) + speed*dt.Seconds()))
}

// Degrees gets angle in degrees.
func (a Angle) Degrees() float64 {
	return float64(a) * 180 / math.Pi
}

// Alignment is the cosine between the rotor and the stator field of an
// energized sector, which sits in the middle of the sector.
func (a Angle) Alignment(sector int) float64 {
	field := (float64(sector)*60 + 30) * math.Pi / 180.0
	return math.Cos(float64(a) - field)
}

// Sector returns the 60 degree sector the angle falls in, counted from 0
// degrees in the positive direction.
func (a Angle) Sector() int {
	d := math.Mod(a.Degrees(), 360)
	if d < 0 {
		d += 360
	}
	return int(d/60) % 6
}

func wrapRadians(r float64) float64 {
	if r >= 2*math.Pi || r <= -2*math.Pi {
		r = math.Remainder(r, 2*math.Pi)
	}
	if r > math.Pi {
		r -= 2 * math.Pi
	} else if r < -math.Pi {
		r += 2 * math.Pi
	}
	return r
}
