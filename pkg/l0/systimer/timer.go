// Package systimer implements a small pool of software timers driven by a
// periodic system tick.
package systimer

import (
	"sync"
	"sync/atomic"
)

// MaxTimers is the number of timers a Service can hand out.
const MaxTimers = 3

// Callback is invoked in tick context when a timer expires.
// It must return quickly and must not block.
type Callback func()

// Timer is a slot of the Service.
// A one-shot timer is polled with ArmTimeout, a periodic timer
// is programmed with ArmInterval.
type Timer struct {
	svc       *Service
	inUse     bool
	remaining uint32
	interval  uint32
	armed     bool // one-shot started and its expiry not yet acknowledged
	cb        Callback
}

// Service owns the timers and the system time.
type Service struct {
	timers [MaxTimers]Timer
	lock   sync.Mutex
	now    atomic.Uint64
}

// NewService creates a Service.
func NewService() *Service {
	s := &Service{}
	for n := range s.timers {
		s.timers[n].svc = s
	}
	return s
}

// Acquire takes a free timer, nil if all are in use.
func (s *Service) Acquire() *Timer {
	s.lock.Lock()
	defer s.lock.Unlock()
	for n := range s.timers {
		if t := &s.timers[n]; !t.inUse {
			t.reset()
			t.inUse = true
			return t
		}
	}
	return nil
}

// Release returns the timer to the pool.
func (s *Service) Release(t *Timer) {
	if t == nil || t.svc != s {
		return
	}
	s.lock.Lock()
	t.reset()
	t.inUse = false
	s.lock.Unlock()
}

// Now returns the number of ticks elapsed since the Service was created.
func (s *Service) Now() uint64 {
	return s.now.Load()
}

// Tick advances all armed timers by one tick. Callbacks of timers reaching
// zero are invoked after the internal lock is released.
func (s *Service) Tick() {
	var fired [MaxTimers]Callback
	s.now.Add(1)
	s.lock.Lock()
	for n := range s.timers {
		t := &s.timers[n]
		if !t.inUse {
			continue
		}
		if t.remaining > 0 {
			t.remaining--
			if t.remaining == 0 {
				fired[n] = t.cb
			}
		}
		if t.interval > 0 && t.remaining == 0 {
			t.remaining = t.interval
		}
	}
	s.lock.Unlock()
	for _, cb := range fired {
		if cb != nil {
			cb()
		}
	}
}

func (t *Timer) reset() {
	t.remaining, t.interval, t.armed, t.cb = 0, 0, false, nil
}

// ArmTimeout polls or starts a one-shot timeout of ticks.
//
// It returns 0 when ticks is 0. An idle timer is started and ticks is
// returned. A timer that has run out returns 0 once, which acknowledges the
// expiry and makes it idle again. Otherwise the remaining ticks are returned.
func (t *Timer) ArmTimeout(ticks uint32, cb Callback) uint32 {
	if ticks == 0 || t == nil {
		return 0
	}
	t.svc.lock.Lock()
	defer t.svc.lock.Unlock()
	if t.remaining == 0 {
		if !t.armed {
			t.remaining, t.armed, t.cb = ticks, true, cb
			return ticks
		}
		t.armed = false
	}
	return t.remaining
}

// ArmInterval programs a periodic timer invoking cb every ticks.
func (t *Timer) ArmInterval(ticks uint32, cb Callback) {
	if ticks == 0 || cb == nil || t == nil {
		return
	}
	t.svc.lock.Lock()
	t.interval, t.remaining, t.cb = ticks, ticks, cb
	t.svc.lock.Unlock()
}

// Clear stops the timer and forgets any pending expiry.
func (t *Timer) Clear() {
	if t == nil {
		return
	}
	t.svc.lock.Lock()
	t.reset()
	t.svc.lock.Unlock()
}

// Remaining returns the ticks left before expiry.
func (t *Timer) Remaining() uint32 {
	t.svc.lock.Lock()
	defer t.svc.lock.Unlock()
	return t.remaining
}
