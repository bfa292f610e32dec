package application

import "time"

// Clock interface supaya gampang ditest
type Clock interface {
	Now() time.Time
}

// SystemClock implementasi default, pakai time.Now()
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Now reads c, falling back to the system clock when c is nil.
func Now(c Clock) time.Time {
	if c == nil {
		return time.Now()
	}
	return c.Now()
}

// ElapsedMS is the whole milliseconds between start and Now(c).
func ElapsedMS(c Clock, start time.Time) int64 {
	return Now(c).Sub(start).Milliseconds()
}
