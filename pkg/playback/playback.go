// Package playback schedules model speech for gapless output.
//
// Speech arrives from the transport as small PCM chunks, faster than real
// time. The [Scheduler] assigns each chunk an absolute start time on a shared
// output clock so that consecutive chunks play back to back with no gaps and
// no overlap, regardless of network jitter. The [Player] does the actual
// audio output; it is an interface so tests can observe scheduling decisions
// without touching a sound device.
package playback

import "time"

// Clock provides the shared output timeline. The scheduler never calls
// time.Now directly so that tests can drive scheduling deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock is the Clock used outside of tests.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// Unit is one scheduled chunk of speech.
type Unit struct {
	// ID uniquely identifies the unit within the scheduler.
	ID string

	// Start is the absolute time playback of this unit begins.
	Start time.Time

	// Duration is the playback length, derived from the PCM byte count.
	Duration time.Duration

	// PCM is the raw audio, 16-bit LE mono at the output sample rate.
	PCM []byte
}

// End returns the instant playback of the unit finishes.
func (u Unit) End() time.Time { return u.Start.Add(u.Duration) }

// Player renders scheduled units.
//
// Play begins output of u at u.Start and calls done exactly once when the
// unit finishes naturally. The returned stop function cancels output early;
// after stop, done must not be called. Both Play and stop must be safe for
// concurrent use.
type Player interface {
	Play(u Unit, done func()) (stop func())
}
