// Package capture defines the interfaces for microphone and camera access.
//
// The two abstractions are:
//
//   - [Source] — requests combined audio+video device access and returns a [Handle].
//   - [Handle] — an active acquisition: a continuous stream of fixed-size audio
//     frames plus an on-demand still-frame grab, released on teardown.
//
// Implementations are provided by device-specific adapter packages
// (capture/portaudio for the microphone, capture/ipcam for the camera).
// The interfaces are intentionally narrow so the session controller stays
// decoupled from device details.
//
// This package lives under pkg/ because external code (alternative device
// adapters) is expected to implement [Source] and [Handle].
package capture

import (
	"context"
	"errors"
	"image"

	"github.com/aurora-labs/maya/pkg/audio"
)

// ErrPermissionDenied is returned by [Source.Acquire] when device access is
// refused. It is fatal to the session start attempt: callers must surface it
// immediately and must not retry.
var ErrPermissionDenied = errors.New("capture: device access denied")

// Handle is one active device acquisition. While a Handle is live the
// process's camera/microphone-in-use indicator is active; Release turns it
// off again.
//
// Implementations must be safe for concurrent use.
type Handle interface {
	// Audio returns the continuous stream of fixed-size raw audio frames at
	// the declared input sample rate. The channel is closed by Release.
	Audio() <-chan audio.Frame

	// Grab captures the current camera frame. It may block briefly while the
	// device produces a frame; the context bounds that wait. A transient
	// failure returns an error and captures nothing.
	Grab(ctx context.Context) (image.Image, error)

	// Release stops capture, closes the Audio channel, and frees the device
	// handles. Safe to call more than once; subsequent calls are no-ops.
	Release() error
}

// Source grants access to the local capture devices.
//
// Implementations must be safe for concurrent use, though at most one Handle
// is expected to be live at a time per session.
type Source interface {
	// Acquire requests combined audio+video device access. On refusal it
	// returns an error wrapping [ErrPermissionDenied]; there is no partial
	// success — either both streams are available or the acquisition failed.
	Acquire(ctx context.Context) (Handle, error)
}
