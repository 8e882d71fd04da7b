package timeware

import (
	"sort"
	"sync"
	"time"
)

// Clock abstracts time lookup and timer scheduling so components that
// debounce writes or tick elapsed time can be driven by virtual time in
// tests instead of waiting on real delays.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop cancels the timer. It returns false if the callback already
	// fired or the timer was stopped before.
	Stop() bool
	// Reset re-arms the timer with a new delay.
	Reset(d time.Duration)
}

// RealClock implements Clock using the actual system time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{time.AfterFunc(d, f)}
}

type realTimer struct {
	t *time.Timer
}

func (r realTimer) Stop() bool             { return r.t.Stop() }
func (r realTimer) Reset(d time.Duration)  { r.t.Reset(d) }

// FakeClock implements Clock for tests. Time only moves when Advance is
// called; due callbacks fire synchronously, in deadline order.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

// NewFakeClock returns a FakeClock anchored at an arbitrary fixed instant.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, deadline: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every timer whose deadline
// has been reached. Callbacks run without the clock lock held so they may
// schedule new timers (periodic tickers re-arm themselves this way).
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		t := c.nextDue(target)
		if t == nil {
			break
		}
		c.mu.Lock()
		if t.deadline.After(c.now) {
			c.now = t.deadline
		}
		c.mu.Unlock()
		t.fire()
	}

	c.mu.Lock()
	c.now = target
	c.mu.Unlock()
}

// nextDue pops the earliest un-fired timer with deadline <= target.
func (c *FakeClock) nextDue(target time.Time) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	sort.SliceStable(c.timers, func(i, j int) bool {
		return c.timers[i].deadline.Before(c.timers[j].deadline)
	})
	for i, t := range c.timers {
		if t.stopped {
			continue
		}
		if !t.deadline.After(target) {
			c.timers = append(c.timers[:i:i], c.timers[i+1:]...)
			return t
		}
	}
	return nil
}

type fakeTimer struct {
	clock    *FakeClock
	deadline time.Time
	f        func()
	stopped  bool
	fired    bool
}

func (t *fakeTimer) fire() {
	t.clock.mu.Lock()
	if t.stopped || t.fired {
		t.clock.mu.Unlock()
		return
	}
	t.fired = true
	t.clock.mu.Unlock()
	t.f()
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func (t *fakeTimer) Reset(d time.Duration) {
	t.clock.mu.Lock()
	t.deadline = t.clock.now.Add(d)
	wasLive := !t.fired
	t.stopped = false
	t.fired = false
	if !wasLive {
		// Timer already fired and was removed from the queue; re-enqueue.
		t.clock.timers = append(t.clock.timers, t)
	}
	t.clock.mu.Unlock()
}
