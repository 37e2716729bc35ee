package control

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/robotalks/bldc.go/pkg/l0/params"
	"github.com/robotalks/bldc.go/pkg/motor/pid"
)

func TestCascadeUpdate(t *testing.T) {
	testCases := []struct {
		name string
		in   Inputs
		cmd  int16
		stop bool
	}{
		{
			name: "both loops disabled",
			in:   Inputs{Control: params.ControlRun},
			stop: true,
		},
		{
			name: "position only",
			in:   Inputs{Control: params.ControlPosition, Required: 10},
			cmd:  244,
		},
		{
			name: "current only below limit",
			in:   Inputs{Control: params.ControlCurrent, MaxCurrent: 15000},
			cmd:  MaxDuty,
		},
		{
			name: "over current moving backward",
			in: Inputs{
				Control:    params.ControlCurrent | params.ControlPosition,
				MaxCurrent: 15000,
				Current:    16000,
				Position:   100,
			},
			cmd: -27,
		},
		{
			name: "over current moving forward",
			in: Inputs{
				Control:    params.ControlCurrent | params.ControlPosition,
				MaxCurrent: 15000,
				Current:    16000,
				Required:   200,
				Position:   100,
			},
			cmd: 27,
		},
		{
			name: "open loop over current clockwise",
			in:   Inputs{Control: params.ControlCurrent, MaxCurrent: 15000, Current: 16000},
			cmd:  28,
		},
		{
			name: "open loop over current counter clockwise",
			in: Inputs{
				Control:    params.ControlCurrent | params.ControlDirectionCCW,
				MaxCurrent: 15000,
				Current:    16000,
			},
			cmd: MaxDuty,
		},
		{
			name: "fault gates output",
			in: Inputs{
				Control:  params.ControlCurrent | params.ControlPosition,
				Faults:   params.FaultCriticalOvercurrent,
				Required: 1000,
			},
		},
		{
			name: "unknown command does not gate",
			in: Inputs{
				Control:  params.ControlPosition,
				Faults:   params.FaultUnknownCommand,
				Required: 10,
			},
			cmd: 244,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCascade(params.New(params.Defaults))
			cmd, stop := c.Update(tc.in)
			require.Equal(t, tc.stop, stop)
			require.Equal(t, tc.cmd, cmd)
		})
	}
}

func TestCascadeSaturates(t *testing.T) {
	c := NewCascade(params.New(params.Defaults))
	for i := 0; i < 100; i++ {
		cmd, _ := c.Update(Inputs{Control: params.ControlPosition, Required: -100000})
		require.Equal(t, int16(MinDuty), cmd)
	}
	require.NotZero(t, c.Position.Integral)
	c.Reset()
	require.Zero(t, c.Position.Integral)
	cmd, _ := c.Update(Inputs{Control: params.ControlPosition})
	require.Equal(t, int16(0), cmd)
}

func TestCheckLimits(t *testing.T) {
	tbl := params.New(params.Defaults)
	c := NewCascade(tbl)

	tbl.SetMaxMotorCurrent(30000)
	tbl.SetPositionCoefficients(pid.Coefficients{Kp: 100, Ki: 1, Kd: 2})
	require.NoError(t, c.CheckLimits(tbl))
	require.EqualValues(t, MotorCurrentLimit, tbl.MaxMotorCurrent())
	require.Equal(t, pid.Coefficients{Kp: 100, Ki: 1, Kd: 2}, c.Position.Coefficients())

	bad := pid.Coefficients{Kp: -1}
	tbl.SetCurrentCoefficients(bad)
	tbl.SetPositionCoefficients(pid.Coefficients{Ki: -5})
	err := c.CheckLimits(tbl)
	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	var ce *ConfigError
	require.ErrorAs(t, errs[0], &ce)
	require.Equal(t, LoopCurrent, ce.Loop)
	require.Equal(t, bad, ce.Coefficients)
	require.Equal(t, params.Defaults.CurrentCoefficients, tbl.CurrentCoefficients())
	require.Equal(t, params.Defaults.CurrentCoefficients, c.Current.Coefficients())
	require.Equal(t, pid.Coefficients{Kp: 100, Ki: 1, Kd: 2}, tbl.PositionCoefficients())
}

func TestCurrentCalibration(t *testing.T) {
	var s CurrentSensor
	for n := uint64(0); n < 20; n++ {
		s.Sample(CurrentSample{Raw: 100, Now: n, Scale: 16384})
	}
	require.EqualValues(t, 99, s.Offset())

	// calibration only while stopped within the boot period
	s.Sample(CurrentSample{Raw: 2000, Now: CalibrationMillis, Scale: 16384})
	require.EqualValues(t, 99, s.Offset())
	s.Sample(CurrentSample{Raw: 2000, Now: 10, Running: true, Scale: 16384})
	require.EqualValues(t, 99, s.Offset())
}

func TestCurrentFilter(t *testing.T) {
	testCases := []struct {
		name   string
		raw    int16
		scale  uint16
		expect int16
	}{
		{"unity scale", 1000, 16384, 9000},
		{"half scale", 1000, 8192, 4500},
		{"negative", -1000, 16384, -9000},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var s CurrentSensor
			var cur, prev int16
			for i := 0; i < 20000; i++ {
				cur, _ = s.Sample(CurrentSample{Raw: tc.raw, Now: 5000, Scale: tc.scale})
				if i < 10 {
					// the filter approaches monotonically
					if tc.raw > 0 {
						require.GreaterOrEqual(t, cur, prev)
					} else {
						require.LessOrEqual(t, cur, prev)
					}
					prev = cur
				}
			}
			require.Equal(t, tc.expect, cur)
		})
	}
}

func TestCriticalOvercurrent(t *testing.T) {
	var s CurrentSensor
	tripped := false
	for i := 0; i < 2000; i++ {
		cur, faults := s.Sample(CurrentSample{Raw: 4000, Now: 5000, Running: true, Scale: 16384})
		require.Equal(t, cur > CriticalCurrent, faults.Has(params.FaultCriticalOvercurrent))
		tripped = tripped || faults.Has(params.FaultCriticalOvercurrent)
	}
	require.True(t, tripped)

	var stopped CurrentSensor
	for i := 0; i < 2000; i++ {
		_, faults := stopped.Sample(CurrentSample{Raw: 4000, Now: 5000, Scale: 16384})
		require.Zero(t, faults)
	}
}

func TestSustainedOvercurrent(t *testing.T) {
	var s CurrentSensor
	first, over := -1, -1
	for i := 0; i < 3*OvercurrentSamples; i++ {
		cur, faults := s.Sample(CurrentSample{Raw: 1000, Now: 5000, Running: true, Scale: 16384, MaxCurrent: 8000})
		if over < 0 && cur > 8000 {
			over = i
		}
		if first < 0 && faults.Has(params.FaultOvercurrent) {
			first = i
		}
		require.False(t, faults.Has(params.FaultCriticalOvercurrent))
	}
	require.True(t, over >= 0)
	require.Equal(t, over+OvercurrentSamples-1, first)
}

func TestStepInput(t *testing.T) {
	var s StepInput
	require.Zero(t, s.Sample(true, true, false, 3))

	s.Edge()
	require.True(t, s.Armed())
	require.EqualValues(t, 3, s.Sample(true, true, false, 3))
	require.False(t, s.Armed())

	s.Edge()
	require.EqualValues(t, -3, s.Sample(true, true, true, 3))

	// glitch: level dropped before the debounce sample
	s.Edge()
	require.Zero(t, s.Sample(false, true, false, 3))
	require.False(t, s.Armed())

	s.Edge()
	require.Zero(t, s.Sample(true, false, false, 3))
	require.EqualValues(t, 2, s.Steps())
}
