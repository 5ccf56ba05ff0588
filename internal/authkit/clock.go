package authkit

import "time"

// Clock provides the current time so token expiry is testable.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC timestamp.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// NewSystemClock constructs the default wall clock.
func NewSystemClock() SystemClock {
	return SystemClock{}
}
