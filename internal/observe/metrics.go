// Package observe provides application-wide observability primitives for
// Maya: OpenTelemetry metrics, distributed tracing, structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Maya metrics.
const meterName = "github.com/aurora-labs/maya"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Histograms ---

	// SessionDuration tracks the wall-clock length of completed live sessions.
	SessionDuration metric.Float64Histogram

	// ConnectDuration tracks how long session establishment takes, from Start
	// until the transport reports open.
	ConnectDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ---

	// UplinkFrames counts outbound media frames by kind ("audio", "image").
	UplinkFrames metric.Int64Counter

	// DownlinkChunks counts received model speech chunks.
	DownlinkChunks metric.Int64Counter

	// Interruptions counts barge-in events (user pre-empting the model).
	Interruptions metric.Int64Counter

	// SnapshotsSkipped counts camera snapshots dropped because grab or encode
	// failed.
	SnapshotsSkipped metric.Int64Counter

	// SendErrors counts frames lost to transport write failures.
	SendErrors metric.Int64Counter

	// SessionFailures counts sessions that ended with an error. Use with
	// attribute: attribute.String("stage", ...)
	SessionFailures metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live sessions (0 or 1 per process).
	ActiveSessions metric.Int64UpDownCounter

	// PendingUnits tracks the number of speech units scheduled for playback.
	PendingUnits metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for connection and request latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// sessionBuckets defines histogram bucket boundaries (in seconds) for whole
// conversation lengths.
var sessionBuckets = []float64{
	1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SessionDuration, err = m.Float64Histogram("maya.session.duration",
		metric.WithDescription("Wall-clock length of completed live sessions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(sessionBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ConnectDuration, err = m.Float64Histogram("maya.session.connect.duration",
		metric.WithDescription("Time from session start until the transport reports open."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("maya.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.UplinkFrames, err = m.Int64Counter("maya.uplink.frames",
		metric.WithDescription("Outbound media frames by kind."),
	); err != nil {
		return nil, err
	}
	if met.DownlinkChunks, err = m.Int64Counter("maya.downlink.chunks",
		metric.WithDescription("Received model speech chunks."),
	); err != nil {
		return nil, err
	}
	if met.Interruptions, err = m.Int64Counter("maya.interruptions",
		metric.WithDescription("Barge-in events where the user pre-empted the model."),
	); err != nil {
		return nil, err
	}
	if met.SnapshotsSkipped, err = m.Int64Counter("maya.snapshots.skipped",
		metric.WithDescription("Camera snapshots dropped because grab or encode failed."),
	); err != nil {
		return nil, err
	}
	if met.SendErrors, err = m.Int64Counter("maya.uplink.send_errors",
		metric.WithDescription("Frames lost to transport write failures."),
	); err != nil {
		return nil, err
	}
	if met.SessionFailures, err = m.Int64Counter("maya.session.failures",
		metric.WithDescription("Sessions that ended with an error, by stage."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("maya.active_sessions",
		metric.WithDescription("Number of live sessions."),
	); err != nil {
		return nil, err
	}
	if met.PendingUnits, err = m.Int64UpDownCounter("maya.playback.pending_units",
		metric.WithDescription("Speech units scheduled for playback."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordUplinkFrame records one outbound frame of the given kind.
func (m *Metrics) RecordUplinkFrame(ctx context.Context, kind string) {
	m.UplinkFrames.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordSendError records one lost frame of the given kind.
func (m *Metrics) RecordSendError(ctx context.Context, kind string) {
	m.SendErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordSessionFailure records a failed session with the stage it failed in
// ("acquire", "dial", "transport").
func (m *Metrics) RecordSessionFailure(ctx context.Context, stage string) {
	m.SessionFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}
