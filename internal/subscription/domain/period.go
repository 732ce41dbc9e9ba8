package domain

import "time"

// EndDate returns the end of a subscription period that starts at start and
// lasts durationDays calendar days. The result keeps start's wall-clock time
// of day in start's location, so daylight-saving shifts do not move it.
func EndDate(start time.Time, durationDays int) time.Time {
	return start.AddDate(0, 0, durationDays)
}

// Clock is the time source for lifecycle decisions.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now returns the current time.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })
