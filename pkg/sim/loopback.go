package sim

import (
	"context"
	"errors"
	"io"

	"github.com/golang/glog"

	"github.com/robotalks/bldc.go/pkg/board"
	"github.com/robotalks/bldc.go/pkg/framework"
	"github.com/robotalks/bldc.go/pkg/l0/comm"
)

// Loopback is a rig running in the background behind an in-memory stream.
type Loopback struct {
	*Rig
	Loop *framework.Loop

	host   *comm.Pipe
	cancel context.CancelFunc
	done   chan error
}

// StartLoopback runs a rig on a real time loop. The host talks to it via
// the returned Loopback.
func StartLoopback(conf board.Config, mc MotorConfig) (*Loopback, error) {
	host, dev := comm.NewPipe()
	port := comm.NewPort(dev, conf.BufferSize)
	rig, err := NewRig(conf, mc, port)
	if err != nil {
		return nil, err
	}
	lb := &Loopback{Rig: rig, Loop: framework.NewLoop(), host: host, done: make(chan error, 1)}
	if err := lb.Loop.Add(rig); err != nil {
		return nil, err
	}
	lb.Loop.AddRunnable(framework.NamedRun("port", port))
	var ctx context.Context
	ctx, lb.cancel = context.WithCancel(context.Background())
	go func() {
		lb.done <- lb.Loop.Run(ctx)
		dev.Close()
	}()
	glog.V(1).Infof("sim: loopback drive 0x%02X", rig.Board.Address)
	return lb, nil
}

// Read implements io.Reader.
func (lb *Loopback) Read(b []byte) (int, error) {
	return lb.host.Read(b)
}

// Write implements io.Writer.
func (lb *Loopback) Write(b []byte) (int, error) {
	return lb.host.Write(b)
}

// Close stops the rig and closes the stream.
func (lb *Loopback) Close() error {
	lb.cancel()
	err := <-lb.done
	lb.host.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

var _ io.ReadWriteCloser = (*Loopback)(nil)
