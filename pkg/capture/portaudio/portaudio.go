// Package portaudio implements [capture.Source] for the local microphone
// using PortAudio, composed with a separate camera for still frames.
//
// The microphone is opened as a default mono input stream at the pipeline
// input rate. Raw float32 blocks from the device callback are quantised to
// PCM16 and pushed onto the handle's frame channel. The camera half of the
// handle is delegated to the injected [Camera] implementation (typically
// capture/ipcam).
package portaudio

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/aurora-labs/maya/pkg/audio"
	"github.com/aurora-labs/maya/pkg/capture"
)

// Compile-time assertions that Source and handle satisfy the capture interfaces.
var _ capture.Source = (*Source)(nil)
var _ capture.Handle = (*handle)(nil)

const (
	// framesPerBlock is the number of samples read from the device per
	// callback. At 16 kHz this is 64 ms of audio per frame.
	framesPerBlock = 1024

	// frameBuf is the depth of the handle's frame channel. The uplink loop
	// drains it continuously; the buffer only absorbs short scheduling stalls.
	frameBuf = 32
)

// Camera produces the current still frame on demand. capture/ipcam provides
// the standard implementation.
type Camera interface {
	Grab(ctx context.Context) (image.Image, error)
}

// Option is a functional option for configuring a Source.
type Option func(*Source)

// WithSampleRate overrides the capture sample rate. The default is
// [audio.InputSampleRate].
func WithSampleRate(rate int) Option {
	return func(s *Source) { s.sampleRate = rate }
}

// Source implements capture.Source backed by the default PortAudio input
// device and an injected camera.
type Source struct {
	camera     Camera
	sampleRate int
}

// New creates a Source that will open the default microphone and use camera
// for still frames.
func New(camera Camera, opts ...Option) *Source {
	s := &Source{
		camera:     camera,
		sampleRate: audio.InputSampleRate,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Acquire initialises PortAudio, opens the default input stream, and starts
// the capture loop. Device-access refusals are reported as
// [capture.ErrPermissionDenied]; other failures are returned verbatim.
// The in-use indicator stays active until the handle is released.
func (s *Source) Acquire(ctx context.Context) (capture.Handle, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}

	buf := make([]float32, framesPerBlock)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(s.sampleRate), framesPerBlock, buf)
	if err != nil {
		_ = portaudio.Terminate()
		if isAccessDenied(err) {
			return nil, fmt.Errorf("portaudio: open input: %w: %w", capture.ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("portaudio: open input: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("portaudio: start input: %w", err)
	}

	h := &handle{
		stream:     stream,
		buf:        buf,
		camera:     s.camera,
		sampleRate: s.sampleRate,
		frames:     make(chan audio.Frame, frameBuf),
		done:       make(chan struct{}),
	}
	go h.captureLoop()

	_ = ctx // acquisition itself is synchronous; ctx bounds nothing further here
	return h, nil
}

// handle is one live microphone+camera acquisition.
type handle struct {
	stream     *portaudio.Stream
	buf        []float32
	camera     Camera
	sampleRate int
	frames     chan audio.Frame

	mu       sync.Mutex
	released bool
	done     chan struct{}
}

// captureLoop reads device blocks and publishes quantised frames until the
// handle is released. It owns the frames channel and closes it on exit.
func (h *handle) captureLoop() {
	defer close(h.frames)

	start := time.Now()
	for {
		select {
		case <-h.done:
			return
		default:
		}

		if err := h.stream.Read(); err != nil {
			// Overflows are routine under load; anything else ends the stream.
			if err == portaudio.InputOverflowed {
				slog.Debug("microphone input overflowed, continuing")
				continue
			}
			select {
			case <-h.done:
			default:
				slog.Warn("microphone read failed, capture stopped", "err", err)
			}
			return
		}

		frame := audio.Frame{
			Data:       audio.QuantizeFloat32(h.buf),
			SampleRate: h.sampleRate,
			Channels:   1,
			Timestamp:  time.Since(start),
		}

		select {
		case h.frames <- frame:
		case <-h.done:
			return
		default:
			// Consumer stalled: drop the frame rather than block the device.
		}
	}
}

// Audio returns the continuous capture frame stream.
func (h *handle) Audio() <-chan audio.Frame { return h.frames }

// Grab delegates to the camera.
func (h *handle) Grab(ctx context.Context) (image.Image, error) {
	if h.camera == nil {
		return nil, fmt.Errorf("portaudio: no camera configured")
	}
	return h.camera.Grab(ctx)
}

// Release stops the capture loop, closes the stream, and terminates
// PortAudio. Idempotent.
func (h *handle) Release() error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return nil
	}
	h.released = true
	close(h.done)
	h.mu.Unlock()

	_ = h.stream.Stop()
	_ = h.stream.Close()
	return portaudio.Terminate()
}

// isAccessDenied reports whether err looks like a host-level device
// permission refusal. PortAudio surfaces these as host errors with
// platform-specific text, so matching is best-effort.
func isAccessDenied(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "denied") ||
		strings.Contains(msg, "not permitted") ||
		strings.Contains(msg, "unauthorized")
}
