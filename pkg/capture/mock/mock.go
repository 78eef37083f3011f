// Package mock provides test doubles for the capture package interfaces.
//
// Use Source to control Acquire results and feed scripted audio frames and
// camera images into the session controller under test.
//
// Example:
//
//	h := mock.NewHandle(8)
//	src := &mock.Source{Handle: h}
//	h.AudioCh <- audio.Frame{Data: pcm, SampleRate: 16000, Channels: 1}
package mock

import (
	"context"
	"image"
	"sync"

	"github.com/aurora-labs/maya/pkg/audio"
	"github.com/aurora-labs/maya/pkg/capture"
)

// Source is a mock implementation of capture.Source.
type Source struct {
	mu sync.Mutex

	// Handle is returned by Acquire. If nil, Acquire returns a new default
	// Handle with a buffered audio channel.
	Handle capture.Handle

	// AcquireErr, if non-nil, is returned as the error from Acquire.
	AcquireErr error

	// AcquireCalls counts invocations of Acquire.
	AcquireCalls int
}

// Acquire records the call and returns Handle, AcquireErr.
func (s *Source) Acquire(_ context.Context) (capture.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AcquireCalls++
	if s.AcquireErr != nil {
		return nil, s.AcquireErr
	}
	if s.Handle == nil {
		s.Handle = NewHandle(16)
	}
	return s.Handle, nil
}

// Handle is a mock implementation of capture.Handle.
type Handle struct {
	// AudioCh is the channel returned by Audio. Tests write frames here and
	// close it (or call Release) to end the stream.
	AudioCh chan audio.Frame

	// Frame is returned by Grab when GrabErr is nil. Defaults to a 1×1 image
	// if left nil.
	Frame image.Image

	// GrabErr, if non-nil, is returned from Grab.
	GrabErr error

	mu           sync.Mutex
	grabCalls    int
	releaseCalls int
	released     bool
}

// NewHandle creates a Handle with an audio channel buffered to depth n.
func NewHandle(n int) *Handle {
	return &Handle{AudioCh: make(chan audio.Frame, n)}
}

// Audio returns the scripted frame channel.
func (h *Handle) Audio() <-chan audio.Frame { return h.AudioCh }

// Grab returns the configured Frame or GrabErr.
func (h *Handle) Grab(_ context.Context) (image.Image, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.grabCalls++
	if h.GrabErr != nil {
		return nil, h.GrabErr
	}
	if h.Frame == nil {
		return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
	}
	return h.Frame, nil
}

// Release closes the audio channel on first call and records the invocation.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.releaseCalls++
	if !h.released {
		h.released = true
		close(h.AudioCh)
	}
	return nil
}

// GrabCalls reports how many times Grab was invoked.
func (h *Handle) GrabCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.grabCalls
}

// ReleaseCalls reports how many times Release was invoked.
func (h *Handle) ReleaseCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.releaseCalls
}

// Released reports whether the handle has been released.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}
