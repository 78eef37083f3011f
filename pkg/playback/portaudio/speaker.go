// Package portaudio implements [playback.Player] on the default PortAudio
// output device.
//
// The speaker owns one mono output stream at the pipeline output rate. Each
// scheduled unit is rendered by its own goroutine: it sleeps until the unit's
// start time, then streams the PCM to the device in fixed blocks. A write
// mutex serialises device access; because the scheduler hands out
// non-overlapping start times, contention only occurs in the instant one unit
// ends and the next begins.
package portaudio

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/aurora-labs/maya/pkg/audio"
	"github.com/aurora-labs/maya/pkg/playback"
)

// Compile-time assertion that Speaker satisfies the playback interface.
var _ playback.Player = (*Speaker)(nil)

// framesPerBlock is the number of samples written to the device per call.
// At 24 kHz this is about 21 ms of audio, small enough that a stop lands
// quickly between blocks.
const framesPerBlock = 512

// Option is a functional option for configuring a Speaker.
type Option func(*Speaker)

// WithSampleRate overrides the output sample rate. The default is
// [audio.OutputSampleRate].
func WithSampleRate(rate int) Option {
	return func(s *Speaker) { s.sampleRate = rate }
}

// outputStream is the device surface used by rendering and teardown.
// *portaudio.Stream satisfies it; tests substitute a stub.
type outputStream interface {
	Write() error
	Stop() error
	Close() error
}

// Speaker renders units on the default output device.
type Speaker struct {
	sampleRate int

	stream outputStream
	buf    []int16

	writeMu sync.Mutex // serialises stream writes across units

	mu     sync.Mutex
	closed bool
}

// Open initialises PortAudio and starts the output stream. The caller must
// Close the returned Speaker to release the device.
func Open(opts ...Option) (*Speaker, error) {
	s := &Speaker{sampleRate: audio.OutputSampleRate}
	for _, o := range opts {
		o(s)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}

	s.buf = make([]int16, framesPerBlock)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(s.sampleRate), framesPerBlock, s.buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("portaudio: open output: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("portaudio: start output: %w", err)
	}

	s.stream = stream
	return s, nil
}

// Play renders u at its scheduled start time. done fires exactly once when
// the unit leaves the device — after the final block, or when rendering is
// abandoned because the device failed or the speaker closed. The returned
// stop cancels rendering between blocks and suppresses done.
func (s *Speaker) Play(u playback.Unit, done func()) (stop func()) {
	cancel := make(chan struct{})
	var once sync.Once
	stop = func() { once.Do(func() { close(cancel) }) }

	go s.render(u, done, cancel)
	return stop
}

func (s *Speaker) render(u playback.Unit, done func(), cancel <-chan struct{}) {
	if wait := time.Until(u.Start); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-cancel:
			return
		}
	}

	samples := pcmToInt16(u.PCM)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for off := 0; off < len(samples); off += framesPerBlock {
		select {
		case <-cancel:
			return
		default:
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			// Not a stop: the scheduler still expects the unit to drain.
			done()
			return
		}
		s.mu.Unlock()

		end := off + framesPerBlock
		if end > len(samples) {
			end = len(samples)
		}
		n := copy(s.buf, samples[off:end])
		// Zero-pad the final partial block so stale samples never replay.
		for i := n; i < framesPerBlock; i++ {
			s.buf[i] = 0
		}

		if err := s.stream.Write(); err != nil {
			if err == portaudio.OutputUnderflowed {
				slog.Debug("speaker output underflowed, continuing")
				continue
			}
			slog.Warn("speaker write failed, unit abandoned", "unit", u.ID, "err", err)
			done()
			return
		}
	}

	done()
}

// Close stops the output stream and terminates PortAudio. Idempotent. Units
// still rendering abandon the device on their next block.
func (s *Speaker) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	// Wait for an in-flight block write to finish before tearing down.
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.stream.Stop()
	_ = s.stream.Close()
	return portaudio.Terminate()
}

// pcmToInt16 unpacks little-endian PCM16 bytes into device samples.
func pcmToInt16(pcm []byte) []int16 {
	n := len(pcm) / 2
	out := make([]int16, n)
	for i := range n {
		out[i] = int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
	}
	return out
}
