package clock

import "time"

// Clock supplies current time to validity checks. Services take it injected
// so past-start and expiry rules are testable deterministically.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// Real returns the wall clock in UTC.
func Real() Clock {
	return realClock{}
}

// Fixed returns a clock frozen at t. Intended for tests.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time {
	return f.T
}
