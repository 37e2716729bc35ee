// Package params defines the parameter table shared between the protocol
// and the control loops. The host addresses it byte-wise, the firmware
// through typed accessors.
package params

import (
	"encoding/binary"
	"sync"

	"github.com/robotalks/bldc.go/pkg/motor/pid"
)

// Size of the addressable space.
const Size = 256

// Field offsets. All fields are little-endian.
const (
	AddrStatus               = 0
	AddrMotorCurrent         = 2
	AddrPosition             = 4
	AddrErrors               = 8
	AddrControl              = 10
	AddrPositionRequired     = 12
	AddrPositionStep         = 16
	AddrPrecision            = 18
	AddrMaxMotorCurrent      = 20
	AddrCurrentScale         = 22
	AddrCurrentCoefficients  = 24
	AddrPositionCoefficients = 32
	AddrLast                 = 40

	// Span is the number of defined bytes.
	Span = AddrLast + 1
)

// Readable tells whether addr holds a defined byte.
func Readable(addr int) bool {
	return addr >= 0 && addr < Span
}

// Writable tells whether the host may write addr. Measurements and the
// last address marker are read-only.
func Writable(addr int) bool {
	return addr >= AddrErrors && addr < AddrLast
}

// Values are the host settable parameters.
type Values struct {
	Control              ControlFlags     `yaml:"control"`
	PositionStep         int16            `yaml:"position_step"`
	Precision            uint16           `yaml:"precision"`
	MaxMotorCurrent      uint16           `yaml:"max_motor_current"`
	CurrentScale         uint16           `yaml:"current_scale"`
	CurrentCoefficients  pid.Coefficients `yaml:"current_pid"`
	PositionCoefficients pid.Coefficients `yaml:"position_pid"`
}

// Defaults are loaded at power-up.
var Defaults = Values{
	Control:              ControlCurrent | ControlPosition,
	PositionStep:         1,
	Precision:            5,
	MaxMotorCurrent:      15000,
	CurrentScale:         16384,
	CurrentCoefficients:  pid.Coefficients{Kp: 3000, Ki: 15},
	PositionCoefficients: pid.Coefficients{Kp: 25000, Ki: 10},
}

// Table is the parameter memory.
type Table struct {
	data [Size]byte
	lock sync.RWMutex
}

// New creates a Table loaded with v.
func New(v Values) *Table {
	t := &Table{}
	t.Load(v)
	return t
}

// Load clears the table and writes v.
func (t *Table) Load(v Values) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.data = [Size]byte{}
	t.data[AddrLast] = AddrLast
	t.put16(AddrControl, uint16(v.Control))
	t.put16(AddrPositionStep, uint16(v.PositionStep))
	t.put16(AddrPrecision, v.Precision)
	t.put16(AddrMaxMotorCurrent, v.MaxMotorCurrent)
	t.put16(AddrCurrentScale, v.CurrentScale)
	t.putCoefficients(AddrCurrentCoefficients, v.CurrentCoefficients)
	t.putCoefficients(AddrPositionCoefficients, v.PositionCoefficients)
}

// Values reads back the settable parameters.
func (t *Table) Values() Values {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return Values{
		Control:              ControlFlags(t.get16(AddrControl)),
		PositionStep:         int16(t.get16(AddrPositionStep)),
		Precision:            t.get16(AddrPrecision),
		MaxMotorCurrent:      t.get16(AddrMaxMotorCurrent),
		CurrentScale:         t.get16(AddrCurrentScale),
		CurrentCoefficients:  t.getCoefficients(AddrCurrentCoefficients),
		PositionCoefficients: t.getCoefficients(AddrPositionCoefficients),
	}
}

func (t *Table) get16(addr int) uint16 {
	return binary.LittleEndian.Uint16(t.data[addr:])
}

func (t *Table) put16(addr int, v uint16) {
	binary.LittleEndian.PutUint16(t.data[addr:], v)
}

func (t *Table) get32(addr int) uint32 {
	return binary.LittleEndian.Uint32(t.data[addr:])
}

func (t *Table) put32(addr int, v uint32) {
	binary.LittleEndian.PutUint32(t.data[addr:], v)
}

func (t *Table) getCoefficients(addr int) pid.Coefficients {
	return pid.Coefficients{
		Kp: int16(t.get16(addr)),
		Ki: int16(t.get16(addr + 2)),
		Kd: int16(t.get16(addr + 4)),
	}
}

func (t *Table) putCoefficients(addr int, c pid.Coefficients) {
	t.put16(addr, uint16(c.Kp))
	t.put16(addr+2, uint16(c.Ki))
	t.put16(addr+4, uint16(c.Kd))
}

func (t *Table) read16(addr int) uint16 {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.get16(addr)
}

func (t *Table) write16(addr int, v uint16) {
	t.lock.Lock()
	t.put16(addr, v)
	t.lock.Unlock()
}

func (t *Table) read32(addr int) uint32 {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.get32(addr)
}

func (t *Table) write32(addr int, v uint32) {
	t.lock.Lock()
	t.put32(addr, v)
	t.lock.Unlock()
}

// Status returns the status flags.
func (t *Table) Status() StatusFlags { return StatusFlags(t.read16(AddrStatus)) }

// SetStatus overwrites the status flags.
func (t *Table) SetStatus(f StatusFlags) { t.write16(AddrStatus, uint16(f)) }

// UpdateStatus sets or clears status bits.
func (t *Table) UpdateStatus(bits StatusFlags, on bool) {
	t.lock.Lock()
	t.put16(AddrStatus, uint16(StatusFlags(t.get16(AddrStatus)).With(bits, on)))
	t.lock.Unlock()
}

// MotorCurrent returns the measured current.
func (t *Table) MotorCurrent() int16 { return int16(t.read16(AddrMotorCurrent)) }

// SetMotorCurrent stores the measured current.
func (t *Table) SetMotorCurrent(v int16) { t.write16(AddrMotorCurrent, uint16(v)) }

// Position returns the measured position.
func (t *Table) Position() int32 { return int32(t.read32(AddrPosition)) }

// SetPosition stores the measured position.
func (t *Table) SetPosition(v int32) { t.write32(AddrPosition, uint32(v)) }

// Faults returns the error register.
func (t *Table) Faults() Faults { return Faults(t.read16(AddrErrors)) }

// RaiseFaults sets error bits.
func (t *Table) RaiseFaults(f Faults) {
	t.lock.Lock()
	t.put16(AddrErrors, t.get16(AddrErrors)|uint16(f))
	t.lock.Unlock()
}

// ClearFaults clears error bits.
func (t *Table) ClearFaults(f Faults) {
	t.lock.Lock()
	t.put16(AddrErrors, t.get16(AddrErrors)&^uint16(f))
	t.lock.Unlock()
}

// Control returns the control flags.
func (t *Table) Control() ControlFlags { return ControlFlags(t.read16(AddrControl)) }

// SetControl overwrites the control flags.
func (t *Table) SetControl(f ControlFlags) { t.write16(AddrControl, uint16(f)) }

// UpdateControl sets or clears control bits.
func (t *Table) UpdateControl(bits ControlFlags, on bool) {
	t.lock.Lock()
	t.put16(AddrControl, uint16(ControlFlags(t.get16(AddrControl)).With(bits, on)))
	t.lock.Unlock()
}

// PositionRequired returns the target position.
func (t *Table) PositionRequired() int32 { return int32(t.read32(AddrPositionRequired)) }

// SetPositionRequired stores the target position.
func (t *Table) SetPositionRequired(v int32) { t.write32(AddrPositionRequired, uint32(v)) }

// AddPositionRequired moves the target by delta atomically.
func (t *Table) AddPositionRequired(delta int32) int32 {
	t.lock.Lock()
	defer t.lock.Unlock()
	v := int32(t.get32(AddrPositionRequired)) + delta
	t.put32(AddrPositionRequired, uint32(v))
	return v
}

// PositionStep returns the step input increment.
func (t *Table) PositionStep() int16 { return int16(t.read16(AddrPositionStep)) }

// Precision returns the in-position window half width.
func (t *Table) Precision() uint16 { return t.read16(AddrPrecision) }

// MaxMotorCurrent returns the current limit.
func (t *Table) MaxMotorCurrent() uint16 { return t.read16(AddrMaxMotorCurrent) }

// SetMaxMotorCurrent stores the current limit.
func (t *Table) SetMaxMotorCurrent(v uint16) { t.write16(AddrMaxMotorCurrent, v) }

// CurrentScale returns the current measurement gain, 16384 is unity.
func (t *Table) CurrentScale() uint16 { return t.read16(AddrCurrentScale) }

// CurrentCoefficients returns the current loop gains.
func (t *Table) CurrentCoefficients() pid.Coefficients {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.getCoefficients(AddrCurrentCoefficients)
}

// SetCurrentCoefficients stores the current loop gains.
func (t *Table) SetCurrentCoefficients(c pid.Coefficients) {
	t.lock.Lock()
	t.putCoefficients(AddrCurrentCoefficients, c)
	t.lock.Unlock()
}

// PositionCoefficients returns the position loop gains.
func (t *Table) PositionCoefficients() pid.Coefficients {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.getCoefficients(AddrPositionCoefficients)
}

// SetPositionCoefficients stores the position loop gains.
func (t *Table) SetPositionCoefficients(c pid.Coefficients) {
	t.lock.Lock()
	t.putCoefficients(AddrPositionCoefficients, c)
	t.lock.Unlock()
}

// Byte reads one byte, false if addr is not readable.
func (t *Table) Byte(addr int) (byte, bool) {
	if !Readable(addr) {
		return 0, false
	}
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.data[addr], true
}

// SetByte writes one byte, false if addr is not writable.
func (t *Table) SetByte(addr int, v byte) bool {
	if !Writable(addr) {
		return false
	}
	t.lock.Lock()
	t.data[addr] = v
	t.lock.Unlock()
	return true
}

// ReadRange copies count bytes from base. The range is cut at Size and
// undefined bytes read as 0.
func (t *Table) ReadRange(base, count int) []byte {
	if base < 0 || base >= Size || count <= 0 {
		return nil
	}
	if base+count > Size {
		count = Size - base
	}
	out := make([]byte, count)
	t.lock.RLock()
	defer t.lock.RUnlock()
	for n := range out {
		if Readable(base + n) {
			out[n] = t.data[base+n]
		}
	}
	return out
}

// WriteRange writes data from base and returns the bytes stored, skipping
// read-only addresses. The range is cut at Size.
func (t *Table) WriteRange(base int, data []byte) int {
	stored := 0
	t.lock.Lock()
	defer t.lock.Unlock()
	for n, v := range data {
		if addr := base + n; Writable(addr) {
			t.data[addr] = v
			stored++
		}
	}
	return stored
}

// Snapshot copies the defined bytes.
func (t *Table) Snapshot() []byte {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return append([]byte(nil), t.data[:Span]...)
}
