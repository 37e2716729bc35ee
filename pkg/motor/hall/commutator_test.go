package hall

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// patterns in ascending sector order.
var cwPatterns = []uint8{4, 6, 2, 3, 1, 5}

type fakeSensor struct {
	pattern uint8
}

func (s *fakeSensor) HallPattern() uint8 {
	return s.pattern
}

func TestSectorFromHall(t *testing.T) {
	for sector, p := range cwPatterns {
		require.Equal(t, Sector(sector), SectorFromHall(p))
		require.True(t, SectorFromHall(p).Valid())
	}
	require.Equal(t, InvalidSector, SectorFromHall(0))
	require.Equal(t, InvalidSector, SectorFromHall(7))
	require.False(t, InvalidSector.Valid())
}

func TestCommutation(t *testing.T) {
	testCases := []struct {
		name      string
		start     uint8
		patterns  []uint8
		position  int32
		direction Direction
		sector    Sector
	}{
		{
			name:      "clockwise revolution",
			start:     4,
			patterns:  []uint8{6, 2, 3, 1, 5, 4},
			position:  6,
			direction: CW,
			sector:    0,
		},
		{
			name:      "counter clockwise revolution",
			start:     4,
			patterns:  []uint8{5, 1, 3, 2, 6, 4},
			position:  -6,
			direction: CCW,
			sector:    0,
		},
		{
			name:      "illegal patterns ignored",
			start:     2,
			patterns:  []uint8{0, 7, 0},
			position:  0,
			direction: CW,
			sector:    2,
		},
		{
			name:      "repeated pattern",
			start:     2,
			patterns:  []uint8{2, 2, 3, 3},
			position:  1,
			direction: CW,
			sector:    3,
		},
		{
			name:      "back and forth",
			start:     6,
			patterns:  []uint8{2, 6, 4, 6},
			position:  0,
			direction: CW,
			sector:    1,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCommutator(&fakeSensor{pattern: tc.start})
			_, err := c.Start()
			require.NoError(t, err)
			for _, p := range tc.patterns {
				c.HallChanged(p)
			}
			require.Equal(t, tc.position, c.Position())
			require.Equal(t, tc.direction, c.Direction())
			require.Equal(t, tc.sector, c.Sector())
		})
	}
}

func TestStartInvalid(t *testing.T) {
	c := NewCommutator(&fakeSensor{pattern: 7})
	s, err := c.Start()
	require.ErrorIs(t, err, ErrInvalidHall)
	require.Equal(t, InvalidSector, s)
}

func TestStallMonitor(t *testing.T) {
	sensor := &fakeSensor{pattern: 4}
	c := NewCommutator(sensor)
	_, err := c.Start()
	require.NoError(t, err)

	forced := 0
	for i := 1; i < StallAfter; i++ {
		switch c.Tick() {
		case EventForceCommutation:
			forced++
		case EventStalled:
			t.Fatalf("stalled after %d ticks", i)
		}
	}
	require.Equal(t, StallAfter/ForceEvery-1, forced)
	// the forced commutation takes precedence on the boundary
	require.Equal(t, EventForceCommutation, c.Tick())
	require.Equal(t, EventStalled, c.Tick())

	c.HallChanged(6)
	require.EqualValues(t, 0, c.StallTicks())
	require.Equal(t, EventNone, c.Tick())

	for i := 0; i < 10; i++ {
		c.Tick()
	}
	c.ResetStall()
	require.EqualValues(t, 0, c.StallTicks())
}

func TestForceCommutationResamples(t *testing.T) {
	sensor := &fakeSensor{pattern: 4}
	c := NewCommutator(sensor)
	_, err := c.Start()
	require.NoError(t, err)

	sensor.pattern = 2
	for i := 0; i < ForceEvery-1; i++ {
		require.Equal(t, EventNone, c.Tick())
	}
	require.Equal(t, Sector(0), c.Sector())
	require.Equal(t, EventForceCommutation, c.Tick())
	require.Equal(t, Sector(2), c.Sector())
	require.EqualValues(t, 0, c.Position())

	sensor.pattern = 0
	for i := 0; i < ForceEvery; i++ {
		c.Tick()
	}
	require.Equal(t, Sector(2), c.Sector())
}

func TestClearPosition(t *testing.T) {
	c := NewCommutator(SensorFunc(func() uint8 { return 4 }))
	_, err := c.Start()
	require.NoError(t, err)
	c.HallChanged(6)
	c.HallChanged(2)
	require.EqualValues(t, 2, c.Position())
	c.ClearPosition()
	require.EqualValues(t, 0, c.Position())
	require.Equal(t, Sector(2), c.Sector())
}
