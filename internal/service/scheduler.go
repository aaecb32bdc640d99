package service

import "time"

// Scheduler abstracts timers and the clock so reminder deadline math can be
// driven by a fake in tests. All deadlines are computed from persisted
// absolute timestamps, never relative counters.
type Scheduler interface {
	Now() time.Time
	// After runs fn once d has elapsed and returns a cancel function.
	After(d time.Duration, fn func()) (cancel func())
}

type clockScheduler struct{}

// NewScheduler returns the wall-clock Scheduler used in production.
func NewScheduler() Scheduler {
	return clockScheduler{}
}

func (clockScheduler) Now() time.Time {
	return time.Now()
}

func (clockScheduler) After(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
