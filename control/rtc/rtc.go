// Package rtc provides the clock's notion of wall time.
//
// A real-time clock keeps time across restarts and remembers whether it has ever been set.  The
// controller only reads and writes time through the Source interface, so the hardware RTC and the
// software fallback are interchangeable.
package rtc

import (
	"fmt"
	"sync"
	"time"
)

// Source is a real-time clock.
type Source interface {
	// Now returns the current time, accurate to the second.
	Now() (time.Time, error)
	// Set sets the current time and marks the clock as initialized.
	Set(t time.Time) error
	// Initialized reports whether the time has been set since the clock last lost power.
	Initialized() (bool, error)
}

// TimeOfDay is the part of a time shown on the clock face.
type TimeOfDay struct {
	Hour, Minute, Second int
}

// TimeOfDayOf extracts the time of day from t.
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay{Hour: h, Minute: m, Second: s}
}

// WithTimeOfDay returns t with its hour, minute, and second replaced.
func WithTimeOfDay(t time.Time, tod TimeOfDay) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, tod.Hour, tod.Minute, tod.Second, 0, t.Location())
}

// Timestamp converts t to the integer second count that stopwatch arithmetic is done in.
func Timestamp(t time.Time) int64 { return t.Unix() }

// DefaultTime is what an uninitialized clock is set to at startup: midnight on the first day the
// firmware knows about.
var DefaultTime = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// EnsureInitialized sets src to def if it has never been set.  It reports whether it had to.
func EnsureInitialized(src Source, def time.Time) (bool, error) {
	ok, err := src.Initialized()
	if err != nil {
		return false, fmt.Errorf("check rtc initialized: %w", err)
	}
	if ok {
		return false, nil
	}
	if err := src.Set(def); err != nil {
		return false, fmt.Errorf("set default time: %w", err)
	}
	return true, nil
}

// Software is an RTC kept as an offset from the host's clock.  It is used when there is no
// battery-backed clock chip; it forgets everything when the process exits.
type Software struct {
	mu          sync.Mutex
	now         func() time.Time
	offset      time.Duration
	initialized bool
}

// NewSoftware returns a software RTC reading from now, which is usually time.Now.
func NewSoftware(now func() time.Time) *Software {
	if now == nil {
		now = time.Now
	}
	return &Software{now: now}
}

// Now implements Source.
func (s *Software) Now() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Add(s.offset).Truncate(time.Second), nil
}

// Set implements Source.
func (s *Software) Set(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = t.Sub(s.now())
	s.initialized = true
	return nil
}

// Initialized implements Source.
func (s *Software) Initialized() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized, nil
}

// AssumeInitialized marks the clock as set without changing the time, for hosts whose own clock
// is already disciplined.
func (s *Software) AssumeInitialized() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
}
