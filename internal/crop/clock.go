package crop

import "time"

// Clock schedules the deferred open. AfterFunc returns a stop function
// with time.Timer.Stop semantics.
type Clock interface {
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// SystemClock uses real timers
var SystemClock Clock = systemClock{}
