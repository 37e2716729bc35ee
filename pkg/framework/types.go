package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// Controller defines the abstract controlling logic.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc defines the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(ctx ControlContext) error {
	return f(ctx)
}

// HandlerFunc adapts a func that can't fail to Controller.
type HandlerFunc func()

// Control implements Controller.
func (f HandlerFunc) Control(ControlContext) error {
	f()
	return nil
}

// TimeSource provides the time for controlling logic.
type TimeSource interface {
	// Elapsed is the time since the loop started, in base ticks.
	Elapsed() time.Duration
}

// ControlContext provides the context of the vector being dispatched.
type ControlContext interface {
	TimeSource
	// Context retrieves context.Context.
	Context() context.Context
	// Tick is the base tick count.
	Tick() uint64
	// Name of the vector, empty for idle tasks.
	Name() string

	LoopControl
}

// LoopControl exposes access to the controlling loop.
type LoopControl interface {
	// TriggerNext schedules the idle tasks to run again immediately.
	TriggerNext()
}

// TickSource drives the loop.
type TickSource interface {
	Ticks() <-chan time.Time
	Stop()
}

type tickerSource struct {
	*time.Ticker
}

func (s tickerSource) Ticks() <-chan time.Time {
	return s.C
}

// NewTickerSource creates a TickSource from time.Ticker.
func NewTickerSource(d time.Duration) TickSource {
	return tickerSource{Ticker: time.NewTicker(d)}
}

// ChanTicks is a TickSource fed by the caller.
type ChanTicks chan time.Time

// Ticks implements TickSource.
func (c ChanTicks) Ticks() <-chan time.Time {
	return c
}

// Stop implements TickSource.
func (c ChanTicks) Stop() {}
