package clock

import "time"

// Clock supplies the current time. Components that reason about "now" take one instead of
// calling time.Now so they can be tested against fixed instants.
type Clock interface {
	Now() time.Time
}

// Real reads the system clock in the configured location.
type Real struct {
	Location *time.Location
}

func (c Real) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// Fixed always returns the same instant.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }
