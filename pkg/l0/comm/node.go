package comm

import (
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/bldc.go/pkg/l0/params"
	"github.com/robotalks/bldc.go/pkg/l0/systimer"
)

// PositionClearer resets the measured position.
type PositionClearer interface {
	ClearPosition()
}

// ClearPositionFunc is func type of PositionClearer.
type ClearPositionFunc func()

// ClearPosition implements PositionClearer.
func (f ClearPositionFunc) ClearPosition() {
	f()
}

// Stats are the receive counters of a Node.
type Stats struct {
	OK        uint32
	BadHeader uint32
	BadFrame  uint32
	Timeouts  uint32
	Overflows uint32
	Dropped   uint32 // responses not queued for lack of TX space
	Skipped   uint32 // by-address entries outside the table
}

// maxRangeCount keeps base + bytes within one payload.
const maxRangeCount = MaxPayload - 1

// TimeoutTicks converts an inactivity of byteTimes bytes at baud (8N1)
// into ticks of tickMicros, rounded up and never below 2 ticks so the
// timer can't expire right after it's armed.
func TimeoutTicks(baud, byteTimes, tickMicros uint32) uint32 {
	if baud == 0 || tickMicros == 0 {
		return 2
	}
	micros := (uint64(byteTimes)*10*1000000 + uint64(baud) - 1) / uint64(baud)
	ticks := uint32((micros + uint64(tickMicros) - 1) / uint64(tickMicros))
	if ticks < 2 {
		ticks = 2
	}
	return ticks
}

// Node is the device side protocol engine. Poll must be called from a
// single task context.
type Node struct {
	Address   byte
	Table     *params.Table
	Transport Transport
	Position  PositionClearer
	// TimeoutTicks is the inactivity timeout in timer ticks.
	TimeoutTicks uint32

	codec   *Codec
	parser  *Parser
	timer   *systimer.Timer
	out     []byte
	changed atomic.Bool

	ok, badHeader, badFrame, timeouts, overflows, dropped, skipped atomic.Uint32
}

// NewNode creates a Node and takes a timer from timers.
func NewNode(addr byte, tbl *params.Table, tr Transport, timers *systimer.Service) (*Node, error) {
	timer := timers.Acquire()
	if timer == nil {
		return nil, ErrNoTimer
	}
	codec := NewCodec()
	return &Node{
		Address:      addr,
		Table:        tbl,
		Transport:    tr,
		TimeoutTicks: 2,
		codec:        codec,
		parser:       NewParser(codec),
		timer:        timer,
		out:          make([]byte, 0, MaxFrameSize),
	}, nil
}

// Stats returns a copy of the counters.
func (n *Node) Stats() Stats {
	return Stats{
		OK:        n.ok.Load(),
		BadHeader: n.badHeader.Load(),
		BadFrame:  n.badFrame.Load(),
		Timeouts:  n.timeouts.Load(),
		Overflows: n.overflows.Load(),
		Dropped:   n.dropped.Load(),
		Skipped:   n.skipped.Load(),
	}
}

// TakeChanged returns whether a write command was handled since the last
// call and clears the flag.
func (n *Node) TakeChanged() bool {
	return n.changed.Swap(false)
}

// State returns the receive state.
func (n *Node) State() State {
	return n.parser.State()
}

// Poll processes the received bytes and the inactivity timeout.
func (n *Node) Poll() {
	for {
		b, ok := n.Transport.Recv()
		if !ok {
			break
		}
		n.timer.Clear()
		n.apply(n.parser.Parse(b))
	}
	if n.parser.State().InFrame() && n.timer.ArmTimeout(n.TimeoutTicks, nil) == 0 {
		n.apply(n.parser.Timeout())
	}
}

func (n *Node) apply(pr ParseResult) {
	switch pr.Err {
	case nil:
	case ErrBadHeaderCRC:
		n.badHeader.Add(1)
	case ErrBadFrameCRC:
		n.badFrame.Add(1)
	case ErrTimeout:
		n.timeouts.Add(1)
	case ErrOverflow:
		n.overflows.Add(1)
	}
	if pr.Err != nil {
		glog.V(2).Infof("node %02x: %v", n.Address, pr.Err)
	}
	if pr.Frame != nil {
		n.ok.Add(1)
		n.Handle(pr.Frame)
	}
}

// Handle executes a frame. Frames for other nodes are ignored, broadcast
// frames are executed without response.
func (n *Node) Handle(f *Frame) {
	broadcast := f.Receiver == BroadcastAddress
	if f.Receiver != n.Address && !broadcast {
		return
	}
	glog.V(2).Infof("node %02x: recv %v", n.Address, f)
	var resp *Frame
	switch f.Command {
	case CmdACK, CmdError:
	case CmdWriteByAddress:
		resp = n.writeByAddress(f)
	case CmdReadByAddress:
		resp = n.readByAddress(f)
	case CmdWriteRange:
		resp = n.writeRange(f)
	case CmdReadRange:
		resp = n.readRange(f)
	case CmdClearPosition:
		if n.Position != nil {
			n.Position.ClearPosition()
		}
		resp = &Frame{Header: ReplyTo(f, CmdACK, n.Address)}
	default:
		n.Table.RaiseFaults(params.FaultUnknownCommand)
		glog.Warningf("node %02x: %v from %02x", n.Address, ErrUnknownCommand, f.Sender)
	}
	if resp != nil && !broadcast {
		n.send(resp)
	}
}

func (n *Node) writeByAddress(f *Frame) *Frame {
	resp := &Frame{Header: ReplyTo(f, CmdWriteByAddress, n.Address)}
	for i := 0; i+1 < len(f.Data); i += 2 {
		addr, val := f.Data[i], f.Data[i+1]
		if !n.inTable(addr) {
			continue
		}
		if n.Table.SetByte(int(addr), val) {
			resp.Data = append(resp.Data, addr, val)
		}
	}
	n.changed.Store(true)
	return resp
}

func (n *Node) readByAddress(f *Frame) *Frame {
	resp := &Frame{Header: ReplyTo(f, CmdWriteByAddress, n.Address)}
	for _, addr := range f.Data {
		if len(resp.Data)+2 > MaxPayload {
			break
		}
		if !n.inTable(addr) {
			continue
		}
		if val, ok := n.Table.Byte(int(addr)); ok {
			resp.Data = append(resp.Data, addr, val)
		}
	}
	return resp
}

// inTable counts and logs addresses beyond the table, which by-address
// commands skip.
func (n *Node) inTable(addr byte) bool {
	if params.Readable(int(addr)) {
		return true
	}
	n.skipped.Add(1)
	glog.V(2).Infof("node %02x: %v: 0x%02x", n.Address, ErrAddressOutOfRange, addr)
	return false
}

func (n *Node) writeRange(f *Frame) *Frame {
	if len(f.Data) == 0 {
		return nil
	}
	base := int(f.Data[0])
	n.Table.WriteRange(base, f.Data[1:])
	n.changed.Store(true)
	return n.rangeReply(f, base, len(f.Data)-1)
}

func (n *Node) readRange(f *Frame) *Frame {
	if len(f.Data) < 2 {
		return nil
	}
	return n.rangeReply(f, int(f.Data[0]), int(f.Data[1]))
}

func (n *Node) rangeReply(f *Frame, base, count int) *Frame {
	if count > maxRangeCount {
		count = maxRangeCount
	}
	resp := &Frame{Header: ReplyTo(f, CmdWriteRange, n.Address)}
	resp.Data = append(resp.Data, byte(base))
	resp.Data = append(resp.Data, n.Table.ReadRange(base, count)...)
	return resp
}

func (n *Node) send(f *Frame) {
	out, err := n.codec.Append(n.out[:0], f)
	if err != nil {
		glog.Errorf("node %02x: encode %v: %v", n.Address, f.Command, err)
		return
	}
	if n.Transport.TxFree() < len(out) {
		n.dropped.Add(1)
		return
	}
	n.Transport.Send(out)
}
