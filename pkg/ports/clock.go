package ports

import "time"

// Clock supplies the engine's monotonic time and optional
// marker/measurement recording. The engine degrades to a no-op clock
// when none is configured.
type Clock interface {
	Now() time.Time

	// Mark records a named point in time for external tooling.
	Mark(name string)

	// Measure records a named duration between two points.
	Measure(name string, start, end time.Time)
}

// SystemClock is a Clock backed by the runtime clock; marks and
// measurements are discarded.
type SystemClock struct{}

func (SystemClock) Now() time.Time                       { return time.Now() }
func (SystemClock) Mark(string)                          {}
func (SystemClock) Measure(string, time.Time, time.Time) {}

// NopClock discards everything and always reports the zero time.
type NopClock struct{}

func (NopClock) Now() time.Time                       { return time.Time{} }
func (NopClock) Mark(string)                          {}
func (NopClock) Measure(string, time.Time, time.Time) {}
