// Package crc implements a shift register CRC generator with configurable
// polynomial order, input word width and bit order.
//
// The generator is augmented: message bits are shifted into the register
// from the LSb while the outgoing MSb selects the polynomial XOR. GetCRC
// flushes the register with Order zero bits, so a seed must be given in its
// indirect form (see IndirectSeed) to match the direct CRC definitions.
package crc

import (
	"errors"
	"math/bits"
)

var (
	// ErrInvalidOrder indicates an unsupported polynomial order.
	ErrInvalidOrder = errors.New("invalid polynomial order")
	// ErrInvalidDataWidth indicates an unsupported input word width.
	ErrInvalidDataWidth = errors.New("invalid data width")
)

// Config describes the generator.
type Config struct {
	// Polynomial without the implicit top bit, e.g. 0x04C11DB7.
	Polynomial uint32
	// Order is the register width in bits: 8, 16 or 32.
	Order uint
	// DataWidth is the input word width in bits: 8, 16 or 32.
	DataWidth uint
	// LittleEndian shifts each word LSb first, otherwise MSb first.
	LittleEndian bool
}

// Default is the configuration used by the frame protocol.
var Default = Config{
	Polynomial: 0x04C11DB7,
	Order:      32,
	DataWidth:  32,
}

// Engine is a stateful CRC generator. It's not safe for concurrent use.
type Engine struct {
	cfg   Config
	width uint
	mask  uint32
	reg   uint32
}

func validWidth(w uint) bool {
	return w == 8 || w == 16 || w == 32
}

// New creates an Engine.
func New(cfg Config) (*Engine, error) {
	if !validWidth(cfg.Order) {
		return nil, ErrInvalidOrder
	}
	if !validWidth(cfg.DataWidth) {
		return nil, ErrInvalidDataWidth
	}
	e := &Engine{cfg: cfg, width: cfg.DataWidth, mask: uint32(1<<cfg.Order - 1)}
	e.cfg.Polynomial &= e.mask
	return e, nil
}

// MustNew creates an Engine and panics on invalid configuration.
func MustNew(cfg Config) *Engine {
	e, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return e
}

// Config returns the configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// DataWidth returns the current input word width.
func (e *Engine) DataWidth() uint {
	return e.width
}

// ChangeDataWidth changes how the following Calculate calls group bytes.
func (e *Engine) ChangeDataWidth(w uint) error {
	if !validWidth(w) {
		return ErrInvalidDataWidth
	}
	e.width = w
	return nil
}

// SetSeed loads the register.
func (e *Engine) SetSeed(seed uint32) {
	e.reg = seed & e.mask
}

// Calculate shifts buf into the register. Bytes are grouped into words of
// the current data width, loaded little-endian. A trailing partial word is
// ignored.
func (e *Engine) Calculate(buf []byte) {
	step := int(e.width / 8)
	for n := 0; n+step <= len(buf); n += step {
		var word uint32
		for i := step - 1; i >= 0; i-- {
			word = word<<8 | uint32(buf[n+i])
		}
		e.shiftWord(word, e.width)
	}
}

// GetCRC flushes the register with Order zero bits and returns the result.
// The register is consumed: seed again before the next computation.
func (e *Engine) GetCRC() uint32 {
	width := e.width
	for i := uint(0); i < e.cfg.Order; i++ {
		e.shiftBit(0)
	}
	e.width = width
	return e.reg
}

// IndirectSeed converts a direct initial value into the register value
// which produces it after Order zero bits. It's the inverse of the flush
// performed by GetCRC. 0 maps to 0.
func (e *Engine) IndirectSeed(seed uint32) uint32 {
	seed &= e.mask
	if seed == 0 {
		return 0
	}
	top := uint32(1) << (e.cfg.Order - 1)
	for i := uint(0); i < e.cfg.Order; i++ {
		lsb := seed & 1
		if lsb != 0 {
			seed ^= e.cfg.Polynomial
		}
		seed >>= 1
		if lsb != 0 {
			seed |= top
		}
	}
	return seed
}

// Reverse mirrors the low Order bits of crc.
func (e *Engine) Reverse(crc uint32) uint32 {
	return bits.Reverse32(crc) >> (32 - e.cfg.Order)
}

// Checksum is a shortcut: seed, calculate buf and get the result.
func (e *Engine) Checksum(seed uint32, buf []byte) uint32 {
	e.SetSeed(seed)
	e.Calculate(buf)
	return e.GetCRC()
}

func (e *Engine) shiftWord(word uint32, n uint) {
	if e.cfg.LittleEndian {
		for i := uint(0); i < n; i++ {
			e.shiftBit(word >> i & 1)
		}
		return
	}
	for i := n; i > 0; i-- {
		e.shiftBit(word >> (i - 1) & 1)
	}
}

func (e *Engine) shiftBit(bit uint32) {
	msb := e.reg >> (e.cfg.Order - 1) & 1
	e.reg = (e.reg<<1 | bit) & e.mask
	if msb != 0 {
		e.reg ^= e.cfg.Polynomial
	}
}
