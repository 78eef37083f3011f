// Package app wires all Maya subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the local HTTP surface until the context ends, and
// Shutdown tears everything down in reverse order.
//
// For testing, inject mock implementations via functional options
// (WithSource, WithDialer, WithPlayer). When an option is not provided, New
// creates the real device-backed implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aurora-labs/maya/internal/assist"
	"github.com/aurora-labs/maya/internal/config"
	"github.com/aurora-labs/maya/internal/controller"
	"github.com/aurora-labs/maya/internal/journal"
	"github.com/aurora-labs/maya/internal/observe"
	"github.com/aurora-labs/maya/internal/resilience"
	"github.com/aurora-labs/maya/pkg/capture"
	"github.com/aurora-labs/maya/pkg/capture/ipcam"
	capportaudio "github.com/aurora-labs/maya/pkg/capture/portaudio"
	"github.com/aurora-labs/maya/pkg/live"
	"github.com/aurora-labs/maya/pkg/live/gemini"
	"github.com/aurora-labs/maya/pkg/playback"
	playportaudio "github.com/aurora-labs/maya/pkg/playback/portaudio"
)

// App owns all subsystem lifetimes: capture, transport, playback, controller,
// and the local HTTP surface.
type App struct {
	cfg     *config.Config
	metrics *observe.Metrics

	source capture.Source
	dialer live.Dialer
	player playback.Player
	camera *ipcam.Camera

	sched         *playback.Scheduler
	ctrl          *controller.Controller
	assist        *assist.Client
	assistBreaker *resilience.Breaker
	srv           *http.Server

	autoStart bool

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSource injects a capture source instead of the PortAudio/ipcam one.
func WithSource(s capture.Source) Option {
	return func(a *App) { a.source = s }
}

// WithDialer injects a live transport dialer instead of the Gemini one.
func WithDialer(d live.Dialer) Option {
	return func(a *App) { a.dialer = d }
}

// WithPlayer injects a playback player instead of opening the speaker.
func WithPlayer(p playback.Player) Option {
	return func(a *App) { a.player = p }
}

// WithAssist injects a pre-built one-shot helper client.
func WithAssist(c *assist.Client) Option {
	return func(a *App) { a.assist = c }
}

// WithAutoStart makes Run start a session immediately instead of waiting for
// a POST to /session/start.
func WithAutoStart(auto bool) Option {
	return func(a *App) { a.autoStart = auto }
}

// New creates an App by wiring all subsystems together. Device-backed pieces
// (microphone, speaker, camera) are only constructed when not injected, so
// tests never touch real hardware.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:     cfg,
		metrics: observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(a)
	}

	if cfg.Camera.SnapshotURL != "" {
		a.camera = ipcam.New(cfg.Camera.SnapshotURL)
	}

	if a.source == nil {
		var cam capportaudio.Camera
		if a.camera != nil {
			cam = a.camera
		}
		a.source = capportaudio.New(cam)
	}

	if a.dialer == nil {
		key := cfg.Gemini.ResolveAPIKey()
		if key == "" {
			return nil, fmt.Errorf("app: no Gemini API key configured")
		}
		var dialOpts []gemini.Option
		if cfg.Gemini.Model != "" {
			dialOpts = append(dialOpts, gemini.WithModel(cfg.Gemini.Model))
		}
		if cfg.Gemini.BaseURL != "" {
			dialOpts = append(dialOpts, gemini.WithBaseURL(cfg.Gemini.BaseURL))
		}
		a.dialer = gemini.New(key, dialOpts...)
	}

	if a.player == nil {
		speaker, err := playportaudio.Open()
		if err != nil {
			return nil, fmt.Errorf("app: open speaker: %w", err)
		}
		a.player = speaker
		a.closers = append(a.closers, speaker.Close)
	}

	a.sched = playback.NewScheduler(a.player)
	a.closers = append(a.closers, a.sched.Close)

	liveCfg := live.Config{
		Voice:            cfg.Gemini.Voice,
		Instructions:     cfg.Persona.Instructions,
		TranscribeOutput: cfg.Gemini.TranscribeOutput,
	}
	ctrlOpts := []controller.Option{controller.WithMetrics(a.metrics)}
	if d := cfg.Camera.SnapshotInterval.Std(); d > 0 {
		ctrlOpts = append(ctrlOpts, controller.WithSnapshotInterval(d))
	}
	if q := cfg.Camera.Quality; q > 0 {
		ctrlOpts = append(ctrlOpts, controller.WithSnapshotQuality(q))
	}
	a.ctrl = controller.New(a.source, a.dialer, a.sched, liveCfg, ctrlOpts...)

	if a.assist == nil {
		if key := cfg.Gemini.ResolveAPIKey(); key != "" {
			ac, err := assist.New(ctx, key, assist.WithInstructions(cfg.Persona.Instructions))
			if err != nil {
				return nil, fmt.Errorf("app: create assist client: %w", err)
			}
			a.assist = ac
		}
	}
	a.assistBreaker = resilience.NewBreaker(resilience.BreakerConfig{Name: "assist"})

	if path := cfg.Server.JournalPath; path != "" {
		a.attachJournal(journal.NewFileStore(path))
	}

	a.srv = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(a.routes()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

// attachJournal records one journal entry per finished session, driven by the
// controller's status change stream. A session counts as finished when it
// leaves the active state for any reason.
func (a *App) attachJournal(store *journal.FileStore) {
	var (
		mu          sync.Mutex
		prev        controller.Status
		activeSince time.Time
	)
	a.ctrl.OnChange(func(st controller.Status) {
		mu.Lock()
		defer mu.Unlock()

		if st.State == controller.StateActive && prev.State != controller.StateActive {
			activeSince = time.Now()
		}
		if prev.State == controller.StateActive && st.State != controller.StateActive {
			rec := journal.Record{
				Timestamp:  time.Now(),
				SessionID:  prev.SessionID,
				Duration:   time.Since(activeSince),
				Transcript: prev.Transcript,
				Error:      st.Err,
			}
			if err := store.Append(rec); err != nil {
				slog.Warn("journal append failed", "err", err)
			}
		}
		prev = st
	})
}

// Controller exposes the session controller, mainly for tests and the config
// reload path.
func (a *App) Controller() *controller.Controller { return a.ctrl }

// HTTPHandler exposes the full HTTP surface including middleware, for serving
// through a test listener.
func (a *App) HTTPHandler() http.Handler { return a.srv.Handler }

// Run serves the HTTP surface and blocks until ctx is cancelled or the
// listener fails. When auto-start is enabled, a session is started as soon as
// the server is up.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http surface listening", "addr", a.srv.Addr)
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if a.autoStart {
		if err := a.ctrl.Start(ctx); err != nil {
			slog.Error("auto-start failed", "err", err)
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("app: http server: %w", err)
	}
}

// Shutdown tears down all subsystems in reverse-init order: the session stops
// first so playback drains, then the HTTP server, then the device closers.
// Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		a.ctrl.Stop()

		if err := a.srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("app: http shutdown: %w", err))
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
