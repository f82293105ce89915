// Package util contains small helpers shared by the solvers.
package util

import "time"

// SkipThrottler reports Ok at most once per period, skipping the calls in between.
// It is used to rate limit progress logs of long running optimizations.
type SkipThrottler struct {
	d    time.Duration
	last time.Time
	now  func() time.Time
}

func NewSkipThrottler(d time.Duration) *SkipThrottler {
	tt := &SkipThrottler{d: d, now: time.Now}
	return tt
}

// Ok reports whether the period has passed since the last time Ok returned true.
// The first call always returns true.
func (tt *SkipThrottler) Ok() bool {
	now := tt.now()
	if !tt.last.IsZero() && now.Before(tt.last.Add(tt.d)) {
		return false
	}

	tt.last = now
	return true
}
