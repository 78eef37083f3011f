// Package mock provides a call-recording Player for testing schedulers and
// application wiring without touching an audio device.
package mock

import (
	"sync"

	"github.com/aurora-labs/maya/pkg/playback"
)

// Player is a mock implementation of playback.Player. Units are recorded but
// never rendered; tests drive completion explicitly via Finish.
type Player struct {
	mu      sync.Mutex
	units   []playback.Unit
	dones   map[string]func()
	stopped []string
}

var _ playback.Player = (*Player)(nil)

// Play records the unit and its done callback and returns a stop function
// that records the unit ID.
func (p *Player) Play(u playback.Unit, done func()) (stop func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dones == nil {
		p.dones = make(map[string]func())
	}
	p.units = append(p.units, u)
	p.dones[u.ID] = done
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.stopped = append(p.stopped, u.ID)
	}
}

// Finish invokes the done callback recorded for the given unit, simulating
// natural playback completion.
func (p *Player) Finish(unitID string) {
	p.mu.Lock()
	done := p.dones[unitID]
	p.mu.Unlock()
	if done != nil {
		done()
	}
}

// Units returns a copy of all units played so far.
func (p *Player) Units() []playback.Unit {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]playback.Unit, len(p.units))
	copy(out, p.units)
	return out
}

// Stopped returns a copy of the IDs whose stop function was invoked.
func (p *Player) Stopped() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.stopped))
	copy(out, p.stopped)
	return out
}
