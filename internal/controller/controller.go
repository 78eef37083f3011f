// Package controller owns the lifecycle of one live companion session.
//
// The controller is the only component that holds session state. It wires
// capture into the transport uplink, the transport downlink into the playback
// scheduler, and exposes Start/Stop plus an observable Status snapshot to the
// rest of the application. Sessions are never reconnected: a drop lands back
// in Idle (or Failed with a message) and a new session must be started
// explicitly.
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aurora-labs/maya/internal/observe"
	"github.com/aurora-labs/maya/internal/snapshot"
	"github.com/aurora-labs/maya/pkg/capture"
	"github.com/aurora-labs/maya/pkg/live"
	"github.com/aurora-labs/maya/pkg/playback"
)

// ErrSessionInProgress is returned by Start when a session is already
// running or being torn down.
var ErrSessionInProgress = errors.New("controller: session already in progress")

// State is the controller lifecycle state.
type State int

const (
	// StateIdle means no device access and no session.
	StateIdle State = iota

	// StateConnecting covers device acquisition and the transport handshake.
	StateConnecting

	// StateActive means the duplex session is open and both directions run.
	StateActive

	// StateClosing covers the teardown sequence after a stop request.
	StateClosing

	// StateFailed is a per-attempt terminal state. It is surfaced to
	// observers and then auto-resets to StateIdle.
	StateFailed
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the state as its string form.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Status is an observable snapshot of the controller.
type Status struct {
	// State is the lifecycle state.
	State State `json:"state"`

	// SessionID identifies the current session, empty when idle.
	SessionID string `json:"session_id,omitempty"`

	// Speaking reports whether model speech is currently scheduled or
	// playing.
	Speaking bool `json:"speaking"`

	// Err is the last session-fatal error message, empty when none.
	Err string `json:"error,omitempty"`

	// Transcript is the bounded rolling transcript of model speech.
	Transcript string `json:"transcript"`
}

// Scheduler is the playback surface the controller drives.
// *playback.Scheduler satisfies it.
type Scheduler interface {
	Enqueue(pcm []byte) (playback.Unit, error)
	Interrupt()
	OnIdle(fn func())
}

var _ Scheduler = (*playback.Scheduler)(nil)

// Option is a functional option for configuring a Controller.
type Option func(*Controller)

// WithMetrics sets the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithSnapshotInterval overrides the camera snapshot cadence.
func WithSnapshotInterval(d time.Duration) Option {
	return func(c *Controller) { c.snapInterval = d }
}

// WithSnapshotQuality overrides the JPEG quality of uplinked stills.
func WithSnapshotQuality(q int) Option {
	return func(c *Controller) { c.snapQuality = q }
}

// Controller supervises one live session at a time.
type Controller struct {
	source       capture.Source
	dialer       live.Dialer
	sched        Scheduler
	cfg          live.Config
	metrics      *observe.Metrics
	snapInterval time.Duration
	snapQuality  int

	mu         sync.Mutex
	state      State
	sessionID  string
	errMsg     string
	speaking   bool
	onChange   func(Status)
	startedAt  time.Time
	transcript Transcript

	// per-session resources, nil outside a session
	handle capture.Handle
	sess   live.Session
	cancel context.CancelFunc
}

// New creates a Controller in StateIdle. cfg is the session open request used
// for every session this controller starts.
func New(source capture.Source, dialer live.Dialer, sched Scheduler, cfg live.Config, opts ...Option) *Controller {
	c := &Controller{
		source:       source,
		dialer:       dialer,
		sched:        sched,
		cfg:          cfg,
		snapInterval: time.Second,
		state:        StateIdle,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}

	// Playback idle means the response finished (or was interrupted).
	sched.OnIdle(func() {
		c.mu.Lock()
		changed := c.speaking
		c.speaking = false
		c.mu.Unlock()
		if changed {
			c.notify()
		}
	})
	return c
}

// Start begins a new session. It is synchronous through device acquisition
// and the transport dial, so permission and connection failures are returned
// to the caller directly (and also surface via Status as a Failed attempt).
// On success the uplink, snapshot and downlink loops run until the session
// ends.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrSessionInProgress, c.state)
	}
	id := uuid.NewString()
	c.state = StateConnecting
	c.sessionID = id
	c.errMsg = ""
	c.speaking = false
	c.startedAt = time.Now()
	c.transcript.Reset()
	c.mu.Unlock()
	c.notify()

	slog.Info("session starting", "session_id", id)

	handle, err := c.source.Acquire(ctx)
	if err != nil {
		err = fmt.Errorf("controller: acquire devices: %w", err)
		c.metrics.RecordSessionFailure(ctx, "acquire")
		c.fail(id, err)
		return err
	}

	sess, err := c.dialer.Dial(ctx, c.cfg)
	if err != nil {
		_ = handle.Release()
		err = fmt.Errorf("controller: open session: %w", err)
		c.metrics.RecordSessionFailure(ctx, "dial")
		c.fail(id, err)
		return err
	}

	sessCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.sessionID != id {
		// Stopped while connecting: release everything we just built.
		c.mu.Unlock()
		cancel()
		_ = sess.Close()
		_ = handle.Release()
		return fmt.Errorf("controller: start: session stopped during connect")
	}
	c.handle = handle
	c.sess = sess
	c.cancel = cancel
	c.mu.Unlock()

	g, gctx := errgroup.WithContext(sessCtx)
	g.Go(func() error {
		c.uplinkLoop(gctx, handle, sess)
		return nil
	})
	g.Go(func() error {
		return c.snapshotLoop(gctx, handle, sess)
	})
	g.Go(func() error {
		c.downlinkLoop(id, sess)
		return nil
	})
	go func() { _ = g.Wait() }()

	return nil
}

// Stop tears the current session down. Idempotent: a second call while a
// teardown is in flight, or with no session running, is a no-op. Stopping a
// session that never reached Active is safe.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == StateIdle || c.state == StateClosing || c.state == StateFailed {
		c.mu.Unlock()
		return
	}
	wasActive := c.state == StateActive
	started := c.startedAt
	id := c.sessionID
	c.state = StateClosing
	c.sessionID = ""
	handle, sess, cancel := c.handle, c.sess, c.cancel
	c.handle, c.sess, c.cancel = nil, nil, nil
	c.mu.Unlock()
	c.notify()

	slog.Info("session stopping", "session_id", id)
	c.teardown(handle, sess, cancel)

	ctx := context.Background()
	if wasActive {
		c.metrics.ActiveSessions.Add(ctx, -1)
		c.metrics.SessionDuration.Record(ctx, time.Since(started).Seconds())
	}

	c.mu.Lock()
	c.state = StateIdle
	c.speaking = false
	c.mu.Unlock()
	c.notify()
}

// Status returns a snapshot of the controller state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:      c.state,
		SessionID:  c.sessionID,
		Speaking:   c.speaking,
		Err:        c.errMsg,
		Transcript: c.transcript.String(),
	}
}

// OnChange registers the observer notified after every status change. The
// callback runs outside the controller lock and may call Status.
func (c *Controller) OnChange(fn func(Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// ── Session loops ─────────────────────────────────────────────────────────────

// uplinkLoop forwards captured audio frames to the transport as they arrive.
// A send failure loses that frame only; capture is never paused.
func (c *Controller) uplinkLoop(ctx context.Context, h capture.Handle, sess live.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-h.Audio():
			if !ok {
				return
			}
			if err := sess.Send(live.AudioFrame(f.Data)); err != nil {
				slog.Warn("uplink send failed, frame lost", "err", err)
				c.metrics.RecordSendError(ctx, "audio")
				continue
			}
			c.metrics.RecordUplinkFrame(ctx, "audio")
		}
	}
}

// snapshotLoop feeds periodic camera stills into the transport.
func (c *Controller) snapshotLoop(ctx context.Context, h capture.Handle, sess live.Session) error {
	opts := []snapshot.Option{
		snapshot.WithInterval(c.snapInterval),
		snapshot.WithMetrics(c.metrics),
	}
	if c.snapQuality > 0 {
		opts = append(opts, snapshot.WithQuality(c.snapQuality))
	}
	loop := snapshot.New(h, func(jpegData []byte) error {
		if err := sess.Send(live.ImageFrame(jpegData)); err != nil {
			c.metrics.RecordSendError(ctx, "image")
			return err
		}
		c.metrics.RecordUplinkFrame(ctx, "image")
		return nil
	}, opts...)
	return loop.Run(ctx)
}

// downlinkLoop consumes the session event stream until it closes. id is the
// session this loop belongs to; events arriving after the session has been
// superseded are dropped.
func (c *Controller) downlinkLoop(id string, sess live.Session) {
	for ev := range sess.Events() {
		switch ev.Kind {
		case live.EventOpened:
			c.onOpened(id)
		case live.EventChunk:
			c.onChunk(id, ev)
		case live.EventInterrupted:
			c.onInterrupted(id)
		case live.EventTurnComplete:
			c.transcript.Boundary()
			c.notify()
		case live.EventClosed:
			c.onClosed(id, ev.Err)
			return
		}
	}
}

func (c *Controller) onOpened(id string) {
	c.mu.Lock()
	if c.sessionID != id || c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	c.state = StateActive
	connectTime := time.Since(c.startedAt)
	c.mu.Unlock()
	c.notify()

	ctx := context.Background()
	c.metrics.ActiveSessions.Add(ctx, 1)
	c.metrics.ConnectDuration.Record(ctx, connectTime.Seconds())
	slog.Info("session active", "session_id", id, "connect_time", connectTime)
}

func (c *Controller) onChunk(id string, ev live.Event) {
	// Staleness check: a chunk from a superseded session is never scheduled.
	c.mu.Lock()
	stale := c.sessionID != id || c.state != StateActive
	c.mu.Unlock()
	if stale {
		return
	}

	ctx := context.Background()
	if len(ev.Audio) > 0 {
		if _, err := c.sched.Enqueue(ev.Audio); err != nil {
			slog.Warn("chunk could not be scheduled", "err", err)
		} else {
			// Re-check after the enqueue: a concurrent Stop may have finished
			// its teardown in between, leaving this unit on a timeline that
			// was already cleared.
			c.mu.Lock()
			current := c.sessionID == id
			changed := current && !c.speaking
			if current {
				c.speaking = true
			}
			c.mu.Unlock()
			if !current {
				c.sched.Interrupt()
				return
			}
			c.metrics.DownlinkChunks.Add(ctx, 1)
			if changed {
				c.notify()
			}
		}
	}
	if ev.Text != "" {
		c.transcript.Append(ev.Text)
		c.notify()
	}
}

func (c *Controller) onInterrupted(id string) {
	c.mu.Lock()
	stale := c.sessionID != id || c.state != StateActive
	c.mu.Unlock()
	if stale {
		return
	}

	// Barge-in: drop everything scheduled. The scheduler's idle callback
	// clears the speaking flag.
	c.sched.Interrupt()
	c.metrics.Interruptions.Add(context.Background(), 1)
	slog.Debug("playback interrupted by user", "session_id", id)
}

// onClosed handles a transport-initiated end of session. A close observed
// after Stop has already torn the session down is ignored.
func (c *Controller) onClosed(id string, err error) {
	c.mu.Lock()
	if c.sessionID != id {
		c.mu.Unlock()
		return
	}
	wasActive := c.state == StateActive
	started := c.startedAt
	c.sessionID = ""
	handle, sess, cancel := c.handle, c.sess, c.cancel
	c.handle, c.sess, c.cancel = nil, nil, nil
	if err != nil {
		c.state = StateFailed
		c.errMsg = err.Error()
	} else {
		c.state = StateIdle
	}
	c.speaking = false
	c.mu.Unlock()
	c.notify()

	c.teardown(handle, sess, cancel)

	ctx := context.Background()
	if wasActive {
		c.metrics.ActiveSessions.Add(ctx, -1)
		c.metrics.SessionDuration.Record(ctx, time.Since(started).Seconds())
	}

	if err != nil {
		c.metrics.RecordSessionFailure(ctx, "transport")
		slog.Error("session ended with error", "session_id", id, "err", err)
		// Failed is per-attempt: surface it, then settle back to idle with
		// the message retained for the next Status readers.
		c.mu.Lock()
		if c.state == StateFailed {
			c.state = StateIdle
		}
		c.mu.Unlock()
		c.notify()
	} else {
		slog.Info("session closed", "session_id", id)
	}
}

// fail records a start-path failure: Failed is surfaced to observers, then
// the controller auto-resets to Idle keeping the message.
func (c *Controller) fail(id string, err error) {
	slog.Error("session start failed", "session_id", id, "err", err)

	c.mu.Lock()
	if c.sessionID != id {
		c.mu.Unlock()
		return
	}
	c.sessionID = ""
	c.state = StateFailed
	c.errMsg = err.Error()
	c.mu.Unlock()
	c.notify()

	c.mu.Lock()
	if c.state == StateFailed {
		c.state = StateIdle
	}
	c.mu.Unlock()
	c.notify()
}

// teardown releases per-session resources and clears playback. Safe with nil
// arguments.
func (c *Controller) teardown(handle capture.Handle, sess live.Session, cancel context.CancelFunc) {
	if cancel != nil {
		cancel()
	}
	if sess != nil {
		_ = sess.Close()
	}
	if handle != nil {
		_ = handle.Release()
	}
	c.sched.Interrupt()
}

// notify delivers a fresh status snapshot to the observer, outside the lock.
func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(c.Status())
	}
}
