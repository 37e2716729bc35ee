package comm

import (
	"context"
	"fmt"
	"sync"
)

// Result is the result of a command using Do.
type Result struct {
	Err   error
	Frame *Frame
}

// Client provides host side operations over a Link.
type Client struct {
	// Address is the sender address of the host.
	Address byte
	// Target is the node receiving the commands.
	Target byte

	link        *Link
	frameNumber byte
	cmdsHead    *PendingCommand
	cmdsTail    *PendingCommand
	cmdsLock    sync.Mutex
}

// PendingCommand represents a pending command waiting for reply.
type PendingCommand struct {
	request  *Frame
	resultCh chan Result
	next     *PendingCommand
}

// Request returns the request frame.
func (c *PendingCommand) Request() *Frame {
	return c.request
}

// ResultChan returns the chan to retrieve result.
func (c *PendingCommand) ResultChan() <-chan Result {
	return c.resultCh
}

// NewClient creates client and wraps the link.
func NewClient(link *Link, addr, target byte) *Client {
	c := &Client{Address: addr, Target: target, link: link}
	c.link.Handler = c
	return c
}

// Link gets wrapped Link.
func (c *Client) Link() *Link {
	return c.link
}

// DoWith sends a command and expects a result in the provided chan.
// Sender and frame number are assigned, a zero receiver is replaced by
// Target.
func (c *Client) DoWith(f *Frame, ch chan Result) *PendingCommand {
	cmd := &PendingCommand{request: f, resultCh: ch}

	c.cmdsLock.Lock()
	defer c.cmdsLock.Unlock()
	c.frameNumber++
	f.Sender, f.FrameNumber = c.Address, c.frameNumber
	if f.Receiver == 0 {
		f.Receiver = c.Target
	}
	if err := c.link.Send(f); err != nil {
		cmd.resultCh <- Result{Err: err}
		return cmd
	}
	if f.Receiver == BroadcastAddress {
		cmd.resultCh <- Result{}
		return cmd
	}
	if c.cmdsHead == nil {
		c.cmdsHead = cmd
	} else {
		c.cmdsTail.next = cmd
	}
	c.cmdsTail = cmd
	return cmd
}

// Do sends a command and returns a PendingCommand for result.
func (c *Client) Do(f *Frame) *PendingCommand {
	return c.DoWith(f, make(chan Result, 1))
}

// HandleFrame implements FrameHandler.
func (c *Client) HandleFrame(ctx context.Context, f *Frame) {
	if f.Receiver != c.Address {
		return
	}
	c.cmdsLock.Lock()
	head := c.cmdsHead
	curr := c.cmdsHead
	for ; curr != nil; curr = curr.next {
		if curr.request.FrameNumber == f.FrameNumber && curr.request.Receiver == f.Sender {
			if c.cmdsHead = curr.next; c.cmdsHead == nil {
				c.cmdsTail = nil
			}
			curr.next = nil
			break
		}
	}
	c.cmdsLock.Unlock()
	if curr == nil {
		return
	}
	for ; head != curr; head = head.next {
		head.resultCh <- Result{Err: ErrNoReply}
	}
	curr.resultCh <- Result{Frame: f}
}

// Run wraps Link.Run to implement Runnable.
func (c *Client) Run(ctx context.Context) error {
	return c.link.Run(ctx)
}

// Call sends f and waits for the reply.
func (c *Client) Call(ctx context.Context, f *Frame) (*Frame, error) {
	cmd := c.Do(f)
	select {
	case res := <-cmd.ResultChan():
		return res.Frame, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pair is an address and value of the parameter table.
type Pair struct {
	Addr  byte
	Value byte
}

// String implements fmt.Stringer.
func (p Pair) String() string {
	return fmt.Sprintf("%d=0x%02x", p.Addr, p.Value)
}

func pairsFrom(data []byte) []Pair {
	pairs := make([]Pair, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		pairs = append(pairs, Pair{Addr: data[i], Value: data[i+1]})
	}
	return pairs
}

func expect(reply *Frame, cmd Command) error {
	if reply == nil {
		return nil
	}
	if reply.Command != cmd {
		return &ResponseError{Command: reply.Command, Reason: fmt.Sprintf("expect %v", cmd)}
	}
	return nil
}

// ReadByAddress reads individual bytes. Unreadable addresses are missing
// from the result.
func (c *Client) ReadByAddress(ctx context.Context, addrs ...byte) ([]Pair, error) {
	reply, err := c.Call(ctx, &Frame{Header: Header{Command: CmdReadByAddress}, Data: addrs})
	if err == nil {
		err = expect(reply, CmdWriteByAddress)
	}
	if err != nil || reply == nil {
		return nil, err
	}
	return pairsFrom(reply.Data), nil
}

// WriteByAddress writes individual bytes and returns the pairs accepted.
func (c *Client) WriteByAddress(ctx context.Context, pairs ...Pair) ([]Pair, error) {
	data := make([]byte, 0, len(pairs)*2)
	for _, p := range pairs {
		data = append(data, p.Addr, p.Value)
	}
	reply, err := c.Call(ctx, &Frame{Header: Header{Command: CmdWriteByAddress}, Data: data})
	if err == nil {
		err = expect(reply, CmdWriteByAddress)
	}
	if err != nil || reply == nil {
		return nil, err
	}
	return pairsFrom(reply.Data), nil
}

func rangeData(reply *Frame, base byte) ([]byte, error) {
	if err := expect(reply, CmdWriteRange); err != nil {
		return nil, err
	}
	if len(reply.Data) == 0 || reply.Data[0] != base {
		return nil, &ResponseError{Command: reply.Command, Reason: "base address mismatch"}
	}
	return reply.Data[1:], nil
}

// ReadRange reads count bytes from base.
func (c *Client) ReadRange(ctx context.Context, base, count byte) ([]byte, error) {
	reply, err := c.Call(ctx, &Frame{Header: Header{Command: CmdReadRange}, Data: []byte{base, count}})
	if err != nil || reply == nil {
		return nil, err
	}
	return rangeData(reply, base)
}

// WriteRange writes data from base and returns the table content after
// the write.
func (c *Client) WriteRange(ctx context.Context, base byte, data []byte) ([]byte, error) {
	if len(data) > MaxPayload-1 {
		return nil, ErrPayloadTooLarge
	}
	reply, err := c.Call(ctx, &Frame{
		Header: Header{Command: CmdWriteRange},
		Data:   append([]byte{base}, data...),
	})
	if err != nil || reply == nil {
		return nil, err
	}
	return rangeData(reply, base)
}

// ClearPosition resets the position counter of the node.
func (c *Client) ClearPosition(ctx context.Context) error {
	reply, err := c.Call(ctx, &Frame{Header: Header{Command: CmdClearPosition}})
	if err != nil {
		return err
	}
	return expect(reply, CmdACK)
}
