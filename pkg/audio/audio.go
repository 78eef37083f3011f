// Package audio defines the PCM frame type and sample-level helpers shared by
// the capture, transport and playback packages.
//
// All audio in Maya is 16-bit signed little-endian linear PCM. The uplink
// (microphone → model) runs at 16 kHz mono; the downlink (model → speaker)
// runs at 24 kHz mono. Conversion between float sample buffers and the wire
// representation lives here so that the capture adapters and the transport
// stay byte-format agnostic.
package audio

import "time"

const (
	// InputSampleRate is the capture-side sample rate in Hz.
	InputSampleRate = 16000

	// OutputSampleRate is the playback-side sample rate in Hz.
	OutputSampleRate = 24000

	// bytesPerSample is the width of one PCM16 sample.
	bytesPerSample = 2
)

// Frame is a single block of raw audio flowing through the pipeline. Frames
// are the atomic unit of transport: captured from the microphone, quantised,
// sent upstream, and discarded.
type Frame struct {
	// Data is little-endian int16 PCM.
	Data []byte

	// SampleRate in Hz.
	SampleRate int

	// Channels is 1 for mono. The live pipeline is mono end to end.
	Channels int

	// Timestamp marks when the frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the playback time of a PCM16 buffer at the given sample
// rate and channel count. Zero or negative rates yield zero.
func Duration(pcm []byte, sampleRate, channels int) time.Duration {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	samples := len(pcm) / (bytesPerSample * channels)
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
