// Package clock abstracts "now" so schedule computations can be tested
// against a fixed day.
package clock

import (
	"sync"
	"time"

	"github.com/kazz187/wbsguild/pkg/date"
)

// Clock is the source of the current time.
type Clock interface {
	Now() time.Time
}

// Today returns the calendar date of c.Now().
func Today(c Clock) date.Date {
	return date.Of(c.Now())
}

// Real returns a Clock backed by time.Now.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// FakeClock is a Clock that only moves when told to. It is safe for
// concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// Fake returns a FakeClock frozen at initial.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// FakeOn returns a FakeClock frozen at noon UTC on d.
func FakeOn(d date.Date) *FakeClock {
	return Fake(d.Time().Add(12 * time.Hour))
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Set moves the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// AdvanceDays moves the clock forward by n calendar days.
func (c *FakeClock) AdvanceDays(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.AddDate(0, 0, n)
}
