package linking

import "time"

// Clock supplies the current time. All expiry comparisons in this module go
// through a Clock so tests can pin time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock used in production wiring.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time {
	return time.Now()
}
