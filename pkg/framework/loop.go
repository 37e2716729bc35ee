package framework

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// MaxVectors is the size of the vector table.
const MaxVectors = 16

// DefaultInterval is the base tick.
const DefaultInterval = 100 * time.Microsecond

// ErrVectorTableFull is returned when no vector slot is left.
var ErrVectorTableFull = errors.New("vector table full")

// Loop dispatches periodic vectors from a base tick, in the order of
// registration, and runs idle tasks in between like a main loop.
// Vectors never run concurrently with each other, idle tasks run on
// their own goroutine.
type Loop struct {
	Interval time.Duration
	Ticks    TickSource

	vectors [MaxVectors]vector
	count   int

	idle    []Controller
	runners []Runnable

	tick     atomic.Uint64
	lock     sync.Mutex
	idleLock sync.Mutex
	wakeUpCh chan struct{}
}

type vector struct {
	name   string
	every  uint64
	ctl    Controller
	errors uint32
}

// VectorInfo describes a registered vector.
type VectorInfo struct {
	Name   string
	Every  uint64
	Errors uint32
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop) error
}

type loopCtl struct {
	*Loop
	ctx  context.Context
	tick uint64
	name string
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{Interval: DefaultInterval, wakeUpCh: make(chan struct{}, 1)}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) error {
	for _, adder := range adders {
		if err := adder.AddToLoop(l); err != nil {
			return err
		}
	}
	return nil
}

// AddVector registers ctl to run every n base ticks.
func (l *Loop) AddVector(name string, every uint64, ctl Controller) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.count >= MaxVectors {
		return ErrVectorTableFull
	}
	if every == 0 {
		every = 1
	}
	l.vectors[l.count] = vector{name: name, every: every, ctl: ctl}
	l.count++
	if runner, ok := ctl.(Runnable); ok {
		l.runners = append(l.runners, NamedRun(name, runner))
	}
	return nil
}

// AddIdle registers main loop tasks.
func (l *Loop) AddIdle(ctls ...Controller) *Loop {
	l.idleLock.Lock()
	l.idle = append(l.idle, ctls...)
	l.idleLock.Unlock()
	return l
}

// AddRunnable adds Runnable implementions.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Vectors lists the registered vectors.
func (l *Loop) Vectors() []VectorInfo {
	l.lock.Lock()
	defer l.lock.Unlock()
	infos := make([]VectorInfo, l.count)
	for n, v := range l.vectors[:l.count] {
		infos[n] = VectorInfo{Name: v.name, Every: v.every, Errors: v.errors}
	}
	return infos
}

// Tick returns the base tick count.
func (l *Loop) Tick() uint64 {
	return l.tick.Load()
}

// Elapsed implements TimeSource.
func (l *Loop) Elapsed() time.Duration {
	return time.Duration(l.tick.Load()) * l.interval()
}

func (l *Loop) interval() time.Duration {
	if l.Interval == 0 {
		return DefaultInterval
	}
	return l.Interval
}

// Dispatch advances one base tick and runs the vectors due.
func (l *Loop) Dispatch(ctx context.Context) {
	l.lock.Lock()
	defer l.lock.Unlock()
	tick := l.tick.Add(1)
	lc := &loopCtl{Loop: l, ctx: ctx, tick: tick}
	for n := 0; n < l.count; n++ {
		v := &l.vectors[n]
		if tick%v.every != 0 {
			continue
		}
		lc.name = v.name
		if err := v.ctl.Control(lc); err != nil {
			v.errors++
			glog.V(2).Infof("vector %s error: %v", v.name, err)
		}
	}
}

// RunIdle runs the idle tasks once.
func (l *Loop) RunIdle(ctx context.Context) {
	l.idleLock.Lock()
	ctls := l.idle
	l.idleLock.Unlock()
	lc := &loopCtl{Loop: l, ctx: ctx, tick: l.tick.Load()}
	for _, ctl := range ctls {
		if err := ctl.Control(lc); err != nil {
			glog.Errorf("idle task error: %v", err)
		}
	}
}

// TriggerNext implements LoopControl.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	if l.wakeUpCh == nil {
		l.wakeUpCh = make(chan struct{}, 1)
	}
	ticks := l.Ticks
	if ticks == nil {
		ticks = NewTickerSource(l.interval())
	}
	defer ticks.Stop()

	ctx, cancel := context.WithCancel(ctx)
	runner := NewRunnerWith(ctx)
	runner.Go(l.runners...)
	runner.Go(NamedRun("idle", RunnableFunc(l.runIdleLoop)))

	err := l.dispatchTicks(ctx, ticks)
	cancel()
	if werr := runner.Wait(); werr != nil {
		return werr
	}
	return err
}

func (l *Loop) dispatchTicks(ctx context.Context, ticks TickSource) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ticks.Ticks():
			if !ok {
				return nil
			}
			l.Dispatch(ctx)
			l.TriggerNext()
		}
	}
}

func (l *Loop) runIdleLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wakeUpCh:
			l.RunIdle(ctx)
		}
	}
}

func (c *loopCtl) Context() context.Context {
	return c.ctx
}

func (c *loopCtl) Tick() uint64 {
	return c.tick
}

func (c *loopCtl) Name() string {
	return c.name
}

func (c *loopCtl) Elapsed() time.Duration {
	return time.Duration(c.tick) * c.interval()
}
