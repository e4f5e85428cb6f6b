package editor

import "time"

// Clock abstracts timer creation so the debounce protocol can be driven by a
// test clock instead of wall time.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the handle returned by Clock.AfterFunc. Stop reports whether the
// call prevented the timer from firing.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock returns the wall-clock Clock used outside tests.
func SystemClock() Clock {
	return realClock{}
}
