// Package internal provides internal utilities for the capture package.
package internal

import "time"

// Clock abstracts monotonic time and sleeping so the sampling loop can be
// driven deterministically in tests.
type Clock interface {
	// Now returns the current time. Implementations must return
	// monotonically increasing time values.
	Now() time.Time

	// Sleep blocks for the given duration (or simulates doing so).
	Sleep(d time.Duration)
}

// MonotonicClock is a Clock implementation backed by the system clock.
// time.Now() includes monotonic readings, making elapsed-time measurement
// safe against wall-clock adjustments.
type MonotonicClock struct{}

// Now returns the current system time with monotonic clock reading.
func (MonotonicClock) Now() time.Time {
	return time.Now()
}

// Sleep blocks for d.
func (MonotonicClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

// MockClock is a Clock for testing that advances only when told to.
// Sleep advances the clock instead of blocking. Not safe for concurrent use.
type MockClock struct {
	current time.Time
}

// NewMockClock creates a MockClock initialized to the given time.
// If t is zero, it initializes to a fixed non-zero start time to avoid
// zero-time edge cases.
func NewMockClock(t time.Time) *MockClock {
	if t.IsZero() {
		t = time.Unix(1000000000, 0)
	}
	return &MockClock{current: t}
}

// Now returns the mock clock's current time.
func (m *MockClock) Now() time.Time {
	return m.current
}

// Sleep advances the clock by d without blocking.
func (m *MockClock) Sleep(d time.Duration) {
	m.Advance(d)
}

// Advance moves the clock forward by the given duration.
// Panics if d is negative to maintain monotonicity.
func (m *MockClock) Advance(d time.Duration) {
	if d < 0 {
		panic("MockClock.Advance: duration must be non-negative")
	}
	m.current = m.current.Add(d)
}
