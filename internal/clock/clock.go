// Package clock provides thin Now/Since wrappers over time.Now/time.Since.
// No other package in this module imports it: the machine's time budget
// (lang/machine/thread.go) and the regex matcher call time.Now directly.
// It is kept on the standard library since time.Now is already the
// monotonic clock and no third-party clock/fake-clock library is present
// anywhere in the retrieved pack to ground an alternative on (see
// DESIGN.md).
package clock

import "time"

// Now returns the current instant, including its monotonic reading.
func Now() time.Time { return time.Now() }

// Since returns the elapsed duration since t, using the monotonic reading
// time.Now attaches to t.
func Since(t time.Time) time.Duration { return time.Since(t) }
