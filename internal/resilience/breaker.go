// Package resilience guards the one-shot Gemini helpers with a circuit
// breaker.
//
// The live session needs no breaker: a transport failure ends the session and
// the controller settles back in Idle. The assist endpoints are different —
// each request is a fresh upstream call, so a flapping backend would turn
// every one into a slow proxied failure. The [Breaker] sheds those calls
// locally while the backend misbehaves and admits a single probe per cooldown
// to find out when it recovers.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Do] instead of running the call
// while the breaker is shedding.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State is the breaker's operating mode.
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen sheds every call until the cooldown elapses.
	StateOpen

	// StateHalfOpen admits one probe call; its outcome decides between
	// closed and open.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds the tuning knobs for a [Breaker]. The defaults fit the
// assist profile: interactive one-shot calls from a single user, where a few
// consecutive upstream failures already mean the backend is down.
type BreakerConfig struct {
	// Name labels the breaker in log messages.
	Name string

	// Trip is the number of consecutive failures that opens the breaker.
	// Default: 3.
	Trip int

	// Cooldown is how long the breaker sheds calls before admitting a probe.
	// Default: 20s.
	Cooldown time.Duration
}

// Breaker is a three-state circuit breaker with a single-probe half-open
// phase. Safe for concurrent use.
type Breaker struct {
	name     string
	trip     int
	cooldown time.Duration

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a closed Breaker. Zero config fields take the defaults
// documented on [BreakerConfig].
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Trip <= 0 {
		cfg.Trip = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 20 * time.Second
	}
	return &Breaker{name: cfg.Name, trip: cfg.Trip, cooldown: cfg.Cooldown}
}

// Do runs fn unless the breaker is shedding, in which case it returns
// [ErrCircuitOpen] without calling fn. fn's error is returned as-is.
func (b *Breaker) Do(fn func() error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}
	err = fn()
	b.settle(probe, err)
	return err
}

// State returns the current operating mode. An open breaker whose cooldown
// has elapsed reports half-open; the transition itself happens on the next
// [Breaker.Do].
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && time.Since(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// admit decides whether the next call may run, reporting whether it is the
// half-open probe.
func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.openedAt) < b.cooldown {
			return false, ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.probing = true
		slog.Info("circuit admitting probe", "name", b.name)
		return true, nil

	case StateHalfOpen:
		if b.probing {
			return false, ErrCircuitOpen
		}
		b.probing = true
		return true, nil
	}
	return false, nil
}

// settle records the call's outcome.
func (b *Breaker) settle(probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.probing = false
	}

	if err != nil {
		if b.state == StateHalfOpen {
			b.state = StateOpen
			b.openedAt = time.Now()
			b.failures = b.trip
			slog.Warn("circuit re-opened after failed probe", "name", b.name)
			return
		}
		b.failures++
		if b.state == StateClosed && b.failures >= b.trip {
			b.state = StateOpen
			b.openedAt = time.Now()
			slog.Warn("circuit opened", "name", b.name, "failures", b.failures)
		}
		return
	}

	// A success only closes the breaker when it is the probe; a straggler
	// admitted before the trip must not reset an open breaker.
	switch {
	case b.state == StateHalfOpen && probe:
		b.state = StateClosed
		b.failures = 0
		slog.Info("circuit closed after successful probe", "name", b.name)
	case b.state == StateClosed:
		b.failures = 0
	}
}
