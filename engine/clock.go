package engine

import "time"

// Clock abstracts wall time and timers so the engine can be driven
// deterministically.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f on its own goroutine after d. The returned function
	// stops the timer and reports whether it did so before f ran.
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

// SystemClock is the real clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}
