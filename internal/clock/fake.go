package clock

import "time"

// FakeClock is a manually advanced Clock for tests. Not safe for
// concurrent use.
type FakeClock struct {
	now time.Time
}

// NewFakeClock returns a FakeClock pinned to t in UTC.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

func (c *FakeClock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward by d. Grace-window expiry in tests is
// driven through here rather than by sleeping.
func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
