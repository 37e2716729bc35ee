package comm

// State is the receive state of a Parser.
type State int

const (
	// StateWaitStart means no frame is in progress.
	StateWaitStart State = iota
	// StateHeader means the header is being received.
	StateHeader
	// StatePayload means a valid header was received and the payload
	// and trailer are being received.
	StatePayload
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateWaitStart:
		return "WAIT_START"
	case StateHeader:
		return "HEADER"
	case StatePayload:
		return "PAYLOAD"
	}
	return "UNKNOWN"
}

// InFrame indicates a frame is partially received.
func (s State) InFrame() bool {
	return s != StateWaitStart
}

// ParseResult indicates the result after one parsing step.
type ParseResult struct {
	State State
	Frame *Frame
	Err   error
}

// Parser assembles frames from bytes received.
type Parser struct {
	// MaxPayload limits the payload below the protocol maximum when set. A
	// header announcing more is dropped with ErrOverflow.
	MaxPayload int

	codec    *Codec
	buf      [MaxFrameSize]byte
	count    int
	expected int
}

// NewParser creates a Parser checking frames with codec.
func NewParser(codec *Codec) *Parser {
	if codec == nil {
		codec = NewCodec()
	}
	return &Parser{codec: codec}
}

// State gets the current state.
func (p *Parser) State() State {
	switch {
	case p.count == 0:
		return StateWaitStart
	case p.count < HeaderSize || p.expected == 0:
		return StateHeader
	}
	return StatePayload
}

// Reset drops any partial frame.
func (p *Parser) Reset() {
	p.count, p.expected = 0, 0
}

// Timeout notifies the inactivity timer expired.
func (p *Parser) Timeout() (pr ParseResult) {
	if p.State().InFrame() {
		p.Reset()
		pr.Err = ErrTimeout
	}
	return
}

// Parse consumes one byte.
func (p *Parser) Parse(b byte) (pr ParseResult) {
	pr.Frame, pr.Err = p.parseByte(b)
	pr.State = p.State()
	return
}

func (p *Parser) parseByte(b byte) (*Frame, error) {
	if p.count == 0 {
		if b == StartByte {
			p.buf[0], p.count = b, 1
		}
		return nil, nil
	}
	p.buf[p.count] = b
	p.count++
	switch {
	case p.count < HeaderSize:
		return nil, nil
	case p.count == HeaderSize:
		return p.headerReady()
	case p.count < p.expected:
		return nil, nil
	}
	return p.frameReady()
}

func (p *Parser) headerReady() (*Frame, error) {
	if p.codec.HeaderCRC(p.buf[:HeaderSize]) != p.buf[offHeaderCRC] {
		p.resync()
		return nil, ErrBadHeaderCRC
	}
	n := int(p.buf[offDataBytes])
	if limit := p.MaxPayload; limit > 0 && n > limit {
		p.Reset()
		return nil, ErrOverflow
	}
	if n > 0 {
		p.expected = HeaderSize + n + TrailerSize
		return nil, nil
	}
	return p.frame(HeaderSize), nil
}

func (p *Parser) frameReady() (*Frame, error) {
	n := p.expected - TrailerSize
	received := uint16(p.buf[n]) | uint16(p.buf[n+1])<<8
	if p.codec.FrameCRC(p.buf[:n]) != received {
		p.Reset()
		return nil, ErrBadFrameCRC
	}
	return p.frame(n), nil
}

// resync keeps the buffered bytes from the next start byte on.
func (p *Parser) resync() {
	for i := 1; i < p.count; i++ {
		if p.buf[i] == StartByte {
			p.count = copy(p.buf[:], p.buf[i:p.count])
			p.expected = 0
			return
		}
	}
	p.Reset()
}

func (p *Parser) frame(end int) *Frame {
	f := &Frame{
		Header: Header{
			Command:     Command(p.buf[offCommand]),
			Receiver:    p.buf[offReceiver],
			Sender:      p.buf[offSender],
			FrameNumber: p.buf[offFrameNumber],
		},
	}
	if end > HeaderSize {
		f.Data = append([]byte(nil), p.buf[HeaderSize:end]...)
	}
	p.Reset()
	return f
}
