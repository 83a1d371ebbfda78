// Package clock centralises wall-clock lookups so tests can pin the current
// instant without threading a time source through every call.
package clock

import "time"

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now returns NowFunc in UTC; persisted timestamps are always UTC.
func Now() time.Time { return NowFunc().UTC() }

// Since is time.Since against NowFunc.
func Since(t time.Time) time.Duration { return Now().Sub(t) }

// Freeze pins Now to at until the returned restore func is called.
func Freeze(at time.Time) (restore func()) {
	previous := NowFunc
	NowFunc = func() time.Time { return at }
	return func() { NowFunc = previous }
}
