package comm

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"
)

// FrameHandler is called when a frame is received.
type FrameHandler interface {
	HandleFrame(context.Context, *Frame)
}

// HandleFrameFunc is func type of FrameHandler.
type HandleFrameFunc func(context.Context, *Frame)

// HandleFrame implements FrameHandler.
func (f HandleFrameFunc) HandleFrame(ctx context.Context, frame *Frame) {
	f(ctx, frame)
}

// DefaultLinkTimeout is the inter-byte timeout of a Link.
const DefaultLinkTimeout = 20 * time.Millisecond

// Link send/recv frames over a blocking stream on the host.
type Link struct {
	ReadWriter  io.ReadWriter
	Handler     FrameHandler
	Timeout     time.Duration
	ReadTimeout bool // set to true if ReadWriter already supports timeout with Read

	lock   sync.Mutex
	codec  *Codec
	parser *Parser
	errors int

	frameTimer <-chan time.Time
}

// NewLink creates a Link.
func NewLink(rw io.ReadWriter) *Link {
	return &Link{
		ReadWriter: rw,
		Timeout:    DefaultLinkTimeout,
		codec:      NewCodec(),
		parser:     NewParser(NewCodec()),
	}
}

// Send sends a frame.
func (l *Link) Send(f *Frame) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	_, err := l.codec.WriteFrame(l.ReadWriter, f)
	return err
}

// Errors returns the number of frames dropped by the receiver.
func (l *Link) Errors() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.errors
}

// Run receives frames in the background.
func (l *Link) Run(ctx context.Context) error {
	if l.ReadTimeout {
		buf := make([]byte, 1)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-l.frameTimer:
				l.apply(ctx, l.parser.Timeout())
			default:
				n, err := l.ReadWriter.Read(buf)
				if err != nil {
					if !os.IsTimeout(err) {
						return err
					}
					l.apply(ctx, l.parser.Timeout())
				} else if n == 0 {
					l.apply(ctx, l.parser.Timeout())
				} else {
					l.apply(ctx, l.parser.Parse(buf[0]))
				}
			}
		}
	}

	byteCh, errCh := make(chan byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.readLoop(subCtx, byteCh, errCh)
	for {
		select {
		case b := <-byteCh:
			l.apply(ctx, l.parser.Parse(b))
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-l.frameTimer:
			l.apply(ctx, l.parser.Timeout())
		}
	}
}

func (l *Link) readLoop(ctx context.Context, byteCh chan byte, errCh chan error) {
	buf := make([]byte, 1)
	for {
		_, err := l.ReadWriter.Read(buf)
		if err != nil {
			errCh <- err
			return
		}
		select {
		case <-ctx.Done():
			return
		case byteCh <- buf[0]:
		}
	}
}

func (l *Link) apply(ctx context.Context, pr ParseResult) {
	if pr.State.InFrame() {
		l.frameTimer = time.After(l.Timeout)
	} else {
		l.frameTimer = nil
	}
	if pr.Err != nil {
		l.lock.Lock()
		l.errors++
		l.lock.Unlock()
		glog.V(2).Infof("link: %v", pr.Err)
	}
	if pr.Frame != nil {
		if h := l.Handler; h != nil {
			h.HandleFrame(ctx, pr.Frame)
		}
	}
}
