package comm

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/robotalks/bldc.go/pkg/l0/ringbuf"
)

// Transport is the byte-level view of a serial channel used by Node.
// None of the methods block.
type Transport interface {
	// Recv takes one received byte.
	Recv() (byte, bool)
	// Send queues p and returns the number of bytes accepted.
	Send(p []byte) int
	// RxAvailable returns the number of bytes ready to Recv.
	RxAvailable() int
	// TxFree returns the number of bytes Send can accept.
	TxFree() int
	// Sending indicates queued bytes are not transmitted yet.
	Sending() bool
}

// DefaultBufferSize is the ring size of each direction of a Port.
const DefaultBufferSize = 512

// Port implements Transport over an io.ReadWriter. The receive pump is the
// only producer of the RX ring and the transmit pump the only consumer of
// the TX ring, while the owner of the Port is the other side of both.
type Port struct {
	ReadWriter io.ReadWriter

	rx       *ringbuf.Buffer[byte]
	tx       *ringbuf.Buffer[byte]
	txWake   chan struct{}
	writing  atomic.Bool
	overruns atomic.Uint32
}

// NewPort creates a Port with rings of size bytes.
func NewPort(rw io.ReadWriter, size int) *Port {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Port{
		ReadWriter: rw,
		rx:         ringbuf.New[byte](size),
		tx:         ringbuf.New[byte](size),
		txWake:     make(chan struct{}, 1),
	}
}

// Recv implements Transport.
func (p *Port) Recv() (byte, bool) {
	return p.rx.Get()
}

// Send implements Transport.
func (p *Port) Send(data []byte) (n int) {
	for _, b := range data {
		if !p.tx.Put(b) {
			break
		}
		n++
	}
	if n > 0 {
		select {
		case p.txWake <- struct{}{}:
		default:
		}
	}
	return
}

// RxAvailable implements Transport.
func (p *Port) RxAvailable() int {
	return p.rx.Available()
}

// TxFree implements Transport.
func (p *Port) TxFree() int {
	return p.tx.Space()
}

// Sending implements Transport.
func (p *Port) Sending() bool {
	return p.writing.Load() || !p.tx.Empty()
}

// Overruns returns the number of received bytes dropped on a full ring.
func (p *Port) Overruns() uint32 {
	return p.overruns.Load()
}

// Run pumps bytes between the ReadWriter and the rings until ctx is done
// or the ReadWriter fails.
func (p *Port) Run(ctx context.Context) error {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 2)
	go func() {
		errCh <- p.receive(subCtx)
	}()
	go func() {
		errCh <- p.transmit(subCtx)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (p *Port) receive(ctx context.Context) error {
	buf := make([]byte, 64)
	for {
		n, err := p.ReadWriter.Read(buf)
		for _, b := range buf[:n] {
			if !p.rx.Put(b) {
				p.overruns.Add(1)
			}
		}
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func (p *Port) transmit(ctx context.Context) error {
	buf := make([]byte, 0, 64)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.txWake:
		}
		for {
			p.writing.Store(true)
			buf = buf[:0]
			for len(buf) < cap(buf) {
				b, ok := p.tx.Get()
				if !ok {
					break
				}
				buf = append(buf, b)
			}
			if len(buf) == 0 {
				p.writing.Store(false)
				if !p.tx.Empty() {
					continue
				}
				break
			}
			if _, err := p.ReadWriter.Write(buf); err != nil {
				p.writing.Store(false)
				return err
			}
		}
	}
}
