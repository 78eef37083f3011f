package playback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aurora-labs/maya/pkg/audio"
)

// ErrClosed is returned by Enqueue after the scheduler has been closed.
var ErrClosed = errors.New("playback: scheduler closed")

// Option is a functional option for configuring a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the output clock. Tests use this to drive scheduling
// with a fake clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// Scheduler assigns absolute start times to incoming speech chunks and hands
// them to the Player.
//
// It keeps a single cursor on the output timeline: the instant the most
// recently scheduled unit will finish. Each new chunk starts at the cursor,
// or at the current time if the cursor has fallen into the past (a pause in
// model speech), so consecutive chunks of one response are gapless and a new
// response after silence starts immediately.
type Scheduler struct {
	player Player
	clock  Clock

	mu     sync.Mutex
	cursor time.Time
	live   map[string]func() // unit ID -> stop function
	onIdle func()
	closed bool
}

// NewScheduler creates a Scheduler that renders through player.
func NewScheduler(player Player, opts ...Option) *Scheduler {
	s := &Scheduler{
		player: player,
		clock:  SystemClock{},
		live:   make(map[string]func()),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Enqueue schedules one PCM chunk for playback and returns the resulting
// unit. The chunk starts when the previous one ends, or immediately if the
// timeline has gone quiet. An empty chunk is rejected.
func (s *Scheduler) Enqueue(pcm []byte) (Unit, error) {
	if len(pcm) == 0 {
		return Unit{}, fmt.Errorf("playback: enqueue: empty chunk")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Unit{}, ErrClosed
	}

	start := s.cursor
	if now := s.clock.Now(); start.Before(now) {
		start = now
	}

	u := Unit{
		ID:       uuid.NewString(),
		Start:    start,
		Duration: audio.Duration(pcm, audio.OutputSampleRate, 1),
		PCM:      pcm,
	}
	s.cursor = u.End()

	// Reserve the slot before starting the player so a synchronous done
	// callback finds the unit registered.
	s.live[u.ID] = nil
	s.mu.Unlock()

	stop := s.player.Play(u, func() { s.unitDone(u.ID) })

	s.mu.Lock()
	if _, ok := s.live[u.ID]; ok {
		s.live[u.ID] = stop
		s.mu.Unlock()
		return u, nil
	}
	s.mu.Unlock()

	// The unit finished, or the set was cleared, while the player was
	// starting. Make sure nothing keeps rendering.
	if stop != nil {
		stop()
	}
	return u, nil
}

// unitDone removes a naturally finished unit from the live set and fires the
// idle callback when it was the last one.
func (s *Scheduler) unitDone(id string) {
	s.mu.Lock()
	if _, ok := s.live[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.live, id)
	idle := len(s.live) == 0 && !s.closed
	cb := s.onIdle
	s.mu.Unlock()

	if idle && cb != nil {
		cb()
	}
}

// Interrupt discards everything scheduled: every live unit is stopped, the
// live set is cleared, and the cursor snaps back to now so the next chunk
// plays immediately. The idle callback fires because nothing is playing
// afterwards.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	stops := make([]func(), 0, len(s.live))
	for _, stop := range s.live {
		if stop != nil {
			stops = append(stops, stop)
		}
	}
	s.live = make(map[string]func())
	s.cursor = s.clock.Now()
	cb := s.onIdle
	s.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	if cb != nil {
		cb()
	}
}

// Pending returns the number of units currently live (scheduled or playing).
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// OnIdle registers the callback fired when the timeline drains: after the
// last live unit finishes, and after every Interrupt. The callback runs
// outside the scheduler lock; Enqueue may be called from within it.
func (s *Scheduler) OnIdle(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onIdle = fn
}

// Close stops all live units and rejects further Enqueue calls. Idempotent.
// The idle callback does not fire on close.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stops := make([]func(), 0, len(s.live))
	for _, stop := range s.live {
		if stop != nil {
			stops = append(stops, stop)
		}
	}
	s.live = make(map[string]func())
	s.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	return nil
}
