package comm

import (
	"fmt"
	"io"

	"github.com/robotalks/bldc.go/pkg/l0/crc"
)

// Command is the frame command code.
type Command byte

// Commands.
const (
	CmdACK            Command = 1
	CmdWriteByAddress Command = 2
	CmdReadByAddress  Command = 3
	CmdWriteRange     Command = 4
	CmdReadRange      Command = 5
	CmdClearPosition  Command = 6
	CmdError          Command = 7
)

var commandNames = map[Command]string{
	CmdACK:            "ACK",
	CmdWriteByAddress: "WRITE_BY_ADDRESS",
	CmdReadByAddress:  "READ_BY_ADDRESS",
	CmdWriteRange:     "WRITE_RANGE",
	CmdReadRange:      "READ_RANGE",
	CmdClearPosition:  "CLEAR_POSITION",
	CmdError:          "ERROR",
}

// String implements fmt.Stringer.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CMD(%d)", byte(c))
}

// Framing constants.
const (
	StartByte        byte = 0x55
	BroadcastAddress byte = 0xFF

	HeaderSize   = 8
	TrailerSize  = 2
	MaxPayload   = 255
	MaxFrameSize = HeaderSize + MaxPayload + TrailerSize
)

// Header offsets.
const (
	offStart = iota
	offCommand
	offReceiver
	offSender
	offDataBytes
	offFrameNumber
	offReserved
	offHeaderCRC
)

// Header contains the addressing of a frame.
type Header struct {
	Command     Command
	Receiver    byte
	Sender      byte
	FrameNumber byte
}

// Frame is a decoded frame. The payload length is len(Data).
type Frame struct {
	Header
	Data []byte
}

// String implements fmt.Stringer.
func (f *Frame) String() string {
	return fmt.Sprintf("%v %02x->%02x #%d [% x]", f.Command, f.Sender, f.Receiver, f.FrameNumber, f.Data)
}

// ReplyTo builds the header of a response to req from addr.
func ReplyTo(req *Frame, cmd Command, addr byte) Header {
	return Header{Command: cmd, Receiver: req.Sender, Sender: addr, FrameNumber: req.FrameNumber}
}

// Codec computes the frame checks. It's not safe for concurrent use.
type Codec struct {
	engine  *crc.Engine
	seed    uint32
	scratch [MaxFrameSize + 3]byte
}

// DefaultCRCInit is the direct initial value of the frame CRC.
const DefaultCRCInit uint32 = 0xFFFFFFFF

// NewCodec creates a Codec with the protocol CRC.
func NewCodec() *Codec {
	c, err := NewCodecWith(crc.Default, DefaultCRCInit)
	if err != nil {
		panic(err)
	}
	return c
}

// NewCodecWith creates a Codec with a custom CRC generator and direct
// initial value.
func NewCodecWith(cfg crc.Config, init uint32) (*Codec, error) {
	e, err := crc.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Codec{engine: e, seed: e.IndirectSeed(init)}, nil
}

// Seed returns the register seed used for each check.
func (c *Codec) Seed() uint32 {
	return c.seed
}

// HeaderCRC computes the header check byte over hdr[:HeaderSize] with
// the check byte taken as zero. hdr is not modified.
func (c *Codec) HeaderCRC(hdr []byte) byte {
	buf := c.scratch[:HeaderSize]
	copy(buf, hdr[:HeaderSize])
	buf[offHeaderCRC] = 0
	return byte(c.engine.Checksum(c.seed, buf))
}

// FrameCRC computes the trailer over header and payload, zero padded to a
// whole number of 32 bit words.
func (c *Codec) FrameCRC(frame []byte) uint16 {
	n := len(frame)
	padded := (n + 3) &^ 3
	buf := c.scratch[:padded]
	copy(buf, frame)
	for i := n; i < padded; i++ {
		buf[i] = 0
	}
	return uint16(c.engine.Checksum(c.seed, buf))
}

// Append encodes f to dst.
func (c *Codec) Append(dst []byte, f *Frame) ([]byte, error) {
	if len(f.Data) > MaxPayload {
		return dst, ErrPayloadTooLarge
	}
	start := len(dst)
	dst = append(dst,
		StartByte,
		byte(f.Command),
		f.Receiver,
		f.Sender,
		byte(len(f.Data)),
		f.FrameNumber,
		0, 0)
	dst[start+offHeaderCRC] = c.HeaderCRC(dst[start:])
	if len(f.Data) == 0 {
		return dst, nil
	}
	dst = append(dst, f.Data...)
	crc := c.FrameCRC(dst[start:])
	return append(dst, byte(crc), byte(crc>>8)), nil
}

// Encode returns the bytes of f.
func (c *Codec) Encode(f *Frame) ([]byte, error) {
	return c.Append(make([]byte, 0, HeaderSize+len(f.Data)+TrailerSize), f)
}

// WriteFrame encodes and writes f.
func (c *Codec) WriteFrame(w io.Writer, f *Frame) (int, error) {
	b, err := c.Encode(f)
	if err != nil {
		return 0, err
	}
	return w.Write(b)
}
