// Package clock abstracts wall-clock access so trial, quota and expiry
// logic is deterministic under test. Production code must never call
// time.Now() directly — it goes through a Clock.
package clock

import "time"

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// System is the real wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fixed is a test clock pinned to an instant, advanceable by hand.
type Fixed struct {
	Instant time.Time
}

// NewFixed pins a test clock to the given instant.
func NewFixed(at time.Time) *Fixed { return &Fixed{Instant: at} }

func (f *Fixed) Now() time.Time { return f.Instant }

// Advance moves the fixed clock forward.
func (f *Fixed) Advance(d time.Duration) { f.Instant = f.Instant.Add(d) }
