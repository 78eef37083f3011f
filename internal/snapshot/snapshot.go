// Package snapshot feeds periodic camera stills into the uplink.
//
// The loop grabs one frame per tick, compresses it to JPEG, and hands the
// bytes to the sender. Video is treated as ambient context rather than a
// stream: a failed grab or encode skips that tick and the conversation
// continues on audio alone.
package snapshot

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"log/slog"
	"time"

	"github.com/aurora-labs/maya/internal/observe"
)

const (
	// defaultInterval is the snapshot cadence.
	defaultInterval = time.Second

	// defaultQuality is the JPEG quality. Stills are context for the model,
	// not imagery for humans, so bandwidth wins over fidelity.
	defaultQuality = 60
)

// Grabber produces the current camera frame. capture.Handle satisfies it.
type Grabber interface {
	Grab(ctx context.Context) (image.Image, error)
}

// Option is a functional option for configuring a Loop.
type Option func(*Loop)

// WithInterval overrides the snapshot cadence.
func WithInterval(d time.Duration) Option {
	return func(l *Loop) { l.interval = d }
}

// WithQuality overrides the JPEG quality (1 to 100).
func WithQuality(q int) Option {
	return func(l *Loop) { l.quality = q }
}

// WithMetrics sets the metrics instance used for the skip counter. Defaults
// to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(l *Loop) { l.metrics = m }
}

// Loop periodically grabs, encodes and sends camera stills.
type Loop struct {
	grab     Grabber
	send     func(jpegData []byte) error
	interval time.Duration
	quality  int
	metrics  *observe.Metrics
}

// New creates a Loop that reads frames from grab and delivers encoded JPEGs
// to send.
func New(grab Grabber, send func(jpegData []byte) error, opts ...Option) *Loop {
	l := &Loop{
		grab:     grab,
		send:     send,
		interval: defaultInterval,
		quality:  defaultQuality,
	}
	for _, o := range opts {
		o(l)
	}
	if l.metrics == nil {
		l.metrics = observe.DefaultMetrics()
	}
	return l
}

// Run drives the snapshot ticker until ctx is cancelled. It always returns
// nil: snapshot failures are skips, never session failures.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

// tick performs one grab-encode-send cycle. Any failure skips the frame.
func (l *Loop) tick(ctx context.Context) {
	grabCtx, cancel := context.WithTimeout(ctx, l.interval)
	defer cancel()

	img, err := l.grab.Grab(grabCtx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("snapshot grab failed, skipping frame", "err", err)
		l.metrics.SnapshotsSkipped.Add(ctx, 1)
		return
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: l.quality}); err != nil {
		slog.Warn("snapshot encode failed, skipping frame", "err", err)
		l.metrics.SnapshotsSkipped.Add(ctx, 1)
		return
	}

	if err := l.send(buf.Bytes()); err != nil {
		slog.Warn("snapshot send failed, frame lost", "err", err)
		l.metrics.SnapshotsSkipped.Add(ctx, 1)
	}
}
