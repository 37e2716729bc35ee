package framework

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/golang/glog"
	"go.uber.org/multierr"
)

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// RunnableFunc is the func form of Runnable.
type RunnableFunc func(context.Context) error

// Run implements Runnable.
func (f RunnableFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// NamedRun wraps a Runnable with a name.
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}

// Runner starts Runnables on their own goroutines and reports which of
// them failed.
type Runner struct {
	Context context.Context

	names  []string
	doneCh chan runResult
	exitCh chan struct{}
}

type runResult struct {
	name string
	err  error
}

// NewRunner creates a runner with a default background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a runner with a specified context.
func NewRunnerWith(ctx context.Context) *Runner {
	return &Runner{
		Context: ctx,
		doneCh:  make(chan runResult, 1),
		exitCh:  make(chan struct{}),
	}
}

// HandleSignals cancels the context on CtrlC or SIGTERM. A second signal
// makes Wait return ErrForcedExit at once.
func (r *Runner) HandleSignals() *Runner {
	ctx, cancel := context.WithCancel(r.Context)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	r.Context = ctx
	go func() {
		<-sigCh
		glog.Info("stop requested")
		cancel()
		<-sigCh
		glog.Error("stop requested again, force exit")
		close(r.exitCh)
	}()
	return r
}

// Names lists the started runnables. Unnamed ones are numbered.
func (r *Runner) Names() []string {
	return append([]string(nil), r.names...)
}

// Go spawns Runnables with the runner's context.
func (r *Runner) Go(runners ...Runnable) *Runner {
	return r.GoWith(r.Context, runners...)
}

// GoWith spawns Runnables with ctx.
func (r *Runner) GoWith(ctx context.Context, runners ...Runnable) *Runner {
	for _, runner := range runners {
		name := "#" + strconv.Itoa(len(r.names))
		if named, ok := runner.(Named); ok && named.Name() != "" {
			name = named.Name()
		}
		r.names = append(r.names, name)
		go func(runner Runnable, name string) {
			glog.V(4).Infof("%s started", name)
			err := runner.Run(ctx)
			glog.V(4).Infof("%s stopped: %v", name, err)
			r.doneCh <- runResult{name: name, err: err}
		}(runner, name)
	}
	return r
}

// Wait waits until all Runnables returned. Each failure is reported as a
// *RunnableError carrying the name, combined with multierr. Cancellation
// is not a failure.
func (r *Runner) Wait() (err error) {
	for range r.names {
		select {
		case <-r.exitCh:
			return multierr.Append(err, ErrForcedExit)
		case res := <-r.doneCh:
			if res.err == nil || errors.Is(res.err, context.Canceled) {
				continue
			}
			glog.Warningf("%s failed: %v", res.name, res.err)
			err = multierr.Append(err, &RunnableError{Name: res.name, Err: res.err})
		}
	}
	return
}
