package comm

import (
	"io"

	"go.uber.org/multierr"
)

// Pipe is one end of an in-memory full duplex byte stream.
type Pipe struct {
	r *io.PipeReader
	w *io.PipeWriter
}

// NewPipe creates both ends of a stream.
func NewPipe() (*Pipe, *Pipe) {
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()
	return &Pipe{r: r1, w: w2}, &Pipe{r: r2, w: w1}
}

// Read implements io.Reader.
func (p *Pipe) Read(b []byte) (int, error) {
	return p.r.Read(b)
}

// Write implements io.Writer.
func (p *Pipe) Write(b []byte) (int, error) {
	return p.w.Write(b)
}

// Close implements io.Closer. The peer reads io.EOF and fails writing.
func (p *Pipe) Close() error {
	return multierr.Combine(p.w.Close(), p.r.Close())
}
