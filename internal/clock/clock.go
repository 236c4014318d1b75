// Package clock provides a time abstraction for testable time-dependent code.
// Use RealClock for production and MockClock for tests or the simulated-clock
// development mode.
package clock

import (
	"sync"
	"time"
)

// Clock is an interface for time operations, allowing time to be mocked.
type Clock interface {
	// Now returns the current time
	Now() time.Time

	// After waits for the duration to elapse and then sends the current time on the returned channel
	After(d time.Duration) <-chan time.Time

	// AfterFunc waits for the duration to elapse and then calls f in its own goroutine.
	// It returns a Timer that can be used to cancel the call using its Stop method.
	AfterFunc(d time.Duration, f func()) Timer

	// NewTicker returns a ticker that delivers ticks at the given interval
	NewTicker(d time.Duration) Ticker

	// Since returns the time elapsed since t
	Since(t time.Time) time.Duration
}

// Timer represents a single event that can be stopped
type Timer interface {
	// Stop prevents the Timer from firing. Returns true if the call stops the timer,
	// false if the timer has already expired or been stopped.
	Stop() bool
}

// Ticker delivers periodic ticks on its channel until stopped
type Ticker interface {
	// Chan returns the channel on which ticks are delivered
	Chan() <-chan time.Time

	// Stop shuts down the ticker; no more ticks will be delivered
	Stop()
}

// RealClock implements Clock using the standard time package
type RealClock struct{}

// NewRealClock creates a new RealClock instance
func NewRealClock() *RealClock {
	return &RealClock{}
}

// Now returns the current time
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// After waits for the duration to elapse and then sends the current time
func (c *RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// AfterFunc waits for the duration to elapse and then calls f
func (c *RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return &realTimer{timer: time.AfterFunc(d, f)}
}

// NewTicker returns a ticker backed by time.Ticker
func (c *RealClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{ticker: time.NewTicker(d)}
}

// Since returns the time elapsed since t
func (c *RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// realTimer wraps time.Timer to implement our Timer interface
type realTimer struct {
	timer *time.Timer
}

// Stop prevents the Timer from firing
func (t *realTimer) Stop() bool {
	return t.timer.Stop()
}

// realTicker wraps time.Ticker to implement our Ticker interface
type realTicker struct {
	ticker *time.Ticker
}

func (t *realTicker) Chan() <-chan time.Time {
	return t.ticker.C
}

func (t *realTicker) Stop() {
	t.ticker.Stop()
}

// MockClock is a Clock implementation for testing that allows manual time control
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	timers  []*mockTimer
	tickers []*mockTicker
}

// NewMockClock creates a new MockClock starting at the given time
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{current: start}
}

// Now returns the mock current time
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that will receive the time after duration d
func (c *MockClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	c.AfterFunc(d, func() {
		c.mu.Lock()
		t := c.current
		c.mu.Unlock()
		ch <- t
	})
	return ch
}

// AfterFunc schedules f to be called after duration d
func (c *MockClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := &mockTimer{
		deadline: c.current.Add(d),
		f:        f,
	}
	c.timers = append(c.timers, timer)
	return timer
}

// NewTicker returns a ticker that fires as the mock clock advances
func (c *MockClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	ticker := &mockTicker{
		ch:       make(chan time.Time, 1),
		interval: d,
		next:     c.current.Add(d),
	}
	c.tickers = append(c.tickers, ticker)
	return ticker
}

// Since returns the time elapsed since t using the mock current time
func (c *MockClock) Since(t time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Sub(t)
}

// Advance moves the mock clock forward by duration d, firing any timers and
// tickers whose deadlines fall within the window
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	newTime := c.current.Add(d)
	c.current = newTime

	var toFire []*mockTimer
	var remaining []*mockTimer
	for _, timer := range c.timers {
		timer.mu.Lock()
		if !timer.stopped && !timer.deadline.After(newTime) {
			toFire = append(toFire, timer)
		} else if !timer.stopped {
			remaining = append(remaining, timer)
		}
		timer.mu.Unlock()
	}
	c.timers = remaining

	for _, ticker := range c.tickers {
		ticker.mu.Lock()
		for !ticker.stopped && !ticker.next.After(newTime) {
			select {
			case ticker.ch <- ticker.next:
			default:
			}
			ticker.next = ticker.next.Add(ticker.interval)
		}
		ticker.mu.Unlock()
	}
	c.mu.Unlock()

	// Fire timers outside the lock to prevent deadlocks
	for _, timer := range toFire {
		timer.mu.Lock()
		if !timer.stopped {
			timer.stopped = true
			f := timer.f
			timer.mu.Unlock()
			f()
		} else {
			timer.mu.Unlock()
		}
	}
}

// Set sets the mock clock to a specific time, firing timers when moving forward
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	oldTime := c.current
	c.mu.Unlock()

	if t.After(oldTime) {
		c.Advance(t.Sub(oldTime))
		return
	}

	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

type mockTimer struct {
	mu       sync.Mutex
	deadline time.Time
	f        func()
	stopped  bool
}

// Stop prevents the timer from firing
func (t *mockTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

type mockTicker struct {
	mu       sync.Mutex
	ch       chan time.Time
	interval time.Duration
	next     time.Time
	stopped  bool
}

func (t *mockTicker) Chan() <-chan time.Time {
	return t.ch
}

func (t *mockTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}
