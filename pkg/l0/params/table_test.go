package params

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/bldc.go/pkg/motor/pid"
)

func TestTableLayout(t *testing.T) {
	tbl := New(Defaults)
	tbl.SetStatus(StatusRunning | StatusDirectionCCW)
	tbl.SetMotorCurrent(-2)
	tbl.SetPosition(0x01020304)
	tbl.RaiseFaults(FaultMotorStalled)
	tbl.SetPositionRequired(-1)

	b := tbl.Snapshot()
	require.Len(t, b, Span)
	require.Equal(t, []byte{3, 0}, b[AddrStatus:AddrStatus+2])
	require.Equal(t, []byte{0xfe, 0xff}, b[AddrMotorCurrent:AddrMotorCurrent+2])
	require.Equal(t, []byte{4, 3, 2, 1}, b[AddrPosition:AddrPosition+4])
	require.Equal(t, []byte{8, 0}, b[AddrErrors:AddrErrors+2])
	require.Equal(t, []byte{0x18, 0}, b[AddrControl:AddrControl+2])
	require.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, b[AddrPositionRequired:AddrPositionRequired+4])
	require.Equal(t, []byte{1, 0}, b[AddrPositionStep:AddrPositionStep+2])
	require.Equal(t, []byte{5, 0}, b[AddrPrecision:AddrPrecision+2])
	require.Equal(t, []byte{0x98, 0x3a}, b[AddrMaxMotorCurrent:AddrMaxMotorCurrent+2])
	require.Equal(t, []byte{0, 0x40}, b[AddrCurrentScale:AddrCurrentScale+2])
	require.Equal(t, []byte{0xb8, 0x0b, 15, 0, 0, 0, 0, 0}, b[AddrCurrentCoefficients:AddrCurrentCoefficients+8])
	require.Equal(t, []byte{0xa8, 0x61, 10, 0, 0, 0, 0, 0}, b[AddrPositionCoefficients:AddrPositionCoefficients+8])
	require.Equal(t, byte(AddrLast), b[AddrLast])
}

func TestValuesRoundTrip(t *testing.T) {
	v := Values{
		Control:              ControlRun | ControlEncoder,
		PositionStep:         -3,
		Precision:            12,
		MaxMotorCurrent:      2000,
		CurrentScale:         8192,
		CurrentCoefficients:  pid.Coefficients{Kp: 1, Ki: 2, Kd: 3},
		PositionCoefficients: pid.Coefficients{Kp: 4, Ki: 5, Kd: -6},
	}
	require.Equal(t, v, New(v).Values())
}

func TestByteAccess(t *testing.T) {
	tbl := New(Defaults)
	testCases := []struct {
		name     string
		addr     int
		readable bool
		writable bool
	}{
		{name: "status", addr: AddrStatus, readable: true},
		{name: "position", addr: AddrPosition + 3, readable: true},
		{name: "errors", addr: AddrErrors, readable: true, writable: true},
		{name: "position pid pad", addr: AddrLast - 1, readable: true, writable: true},
		{name: "last address", addr: AddrLast, readable: true},
		{name: "beyond", addr: Span},
		{name: "end", addr: Size - 1},
		{name: "negative", addr: -1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := tbl.Byte(tc.addr)
			require.Equal(t, tc.readable, ok)
			require.Equal(t, tc.writable, tbl.SetByte(tc.addr, 0x5a))
			if tc.writable {
				v, _ := tbl.Byte(tc.addr)
				require.Equal(t, byte(0x5a), v)
			}
		})
	}
}

func TestRanges(t *testing.T) {
	tbl := New(Defaults)
	tbl.SetPosition(7)

	require.Equal(t, 4, tbl.WriteRange(AddrPositionRequired, []byte{1, 2, 3, 4}))
	require.Equal(t, int32(0x04030201), tbl.PositionRequired())

	// read-only bytes are skipped
	require.Equal(t, 0, tbl.WriteRange(AddrPosition, []byte{9, 9, 9, 9}))
	require.Equal(t, int32(7), tbl.Position())
	require.Equal(t, 1, tbl.WriteRange(AddrLast-1, []byte{1, 2, 3}))
	last, _ := tbl.Byte(AddrLast)
	require.Equal(t, byte(AddrLast), last)

	require.Equal(t, 0, tbl.WriteRange(Size-2, []byte{1, 2, 3}))

	out := tbl.ReadRange(AddrPosition, 4)
	require.Equal(t, []byte{7, 0, 0, 0}, out)
	out = tbl.ReadRange(AddrLast, 4)
	require.Equal(t, []byte{AddrLast, 0, 0, 0}, out)
	require.Len(t, tbl.ReadRange(Size-3, 10), 3)
	require.Nil(t, tbl.ReadRange(Size, 1))
}

func TestFlags(t *testing.T) {
	tbl := New(Defaults)
	tbl.UpdateControl(ControlRun, true)
	require.True(t, tbl.Control().Run())
	require.True(t, tbl.Control().PositionLoop())
	tbl.UpdateControl(ControlRun, false)
	require.False(t, tbl.Control().Run())

	tbl.UpdateStatus(StatusRunning, true)
	require.True(t, tbl.Status().Running())
	require.False(t, tbl.Status().CCW())

	tbl.RaiseFaults(FaultUnknownCommand | FaultCriticalOvercurrent)
	f := tbl.Faults()
	require.True(t, f.Has(FaultsStopMotor))
	require.Equal(t, "unknown command,critical overcurrent", f.String())
	tbl.ClearFaults(FaultCriticalOvercurrent)
	require.False(t, tbl.Faults().Has(FaultsStopMotor))
	require.NoError(t, Faults(0).Err())
	require.EqualError(t, FaultMotorStalled.Err(), "motor fault: motor stalled")

	require.Equal(t, int32(5), tbl.AddPositionRequired(5))
	require.Equal(t, int32(2), tbl.AddPositionRequired(-3))
}
