// Package mock provides test doubles for the live package interfaces.
//
// Use Dialer to verify Dial calls and feed controlled sessions. Use Session
// to script the inbound event stream and inspect which frames the uplink
// submitted.
//
// Example:
//
//	sess := mock.NewSession()
//	d := &mock.Dialer{Session: sess}
//	sess.Emit(live.Event{Kind: live.EventOpened})
package mock

import (
	"context"
	"sync"

	"github.com/aurora-labs/maya/pkg/live"
)

// DialCall records a single invocation of Dialer.Dial.
type DialCall struct {
	// Ctx is the context passed to Dial.
	Ctx context.Context
	// Cfg is the session config passed to Dial.
	Cfg live.Config
}

// Dialer is a mock implementation of live.Dialer.
type Dialer struct {
	mu sync.Mutex

	// Session is the Session returned by Dial. If nil, Dial returns a new
	// default Session.
	Session live.Session

	// DialErr, if non-nil, is returned as the error from Dial.
	DialErr error

	// DialCalls records every call to Dial in order.
	DialCalls []DialCall
}

// Dial records the call and returns Session, DialErr.
func (d *Dialer) Dial(ctx context.Context, cfg live.Config) (live.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.DialCalls = append(d.DialCalls, DialCall{Ctx: ctx, Cfg: cfg})
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	if d.Session != nil {
		return d.Session, nil
	}
	return NewSession(), nil
}

// Calls returns a copy of the recorded Dial calls. Thread-safe.
func (d *Dialer) Calls() []DialCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DialCall(nil), d.DialCalls...)
}

// Ensure Dialer implements live.Dialer at compile time.
var _ live.Dialer = (*Dialer)(nil)

// SendCall records a single invocation of Session.Send.
type SendCall struct {
	// Frame is a copy of the frame passed to Send.
	Frame live.Frame
}

// Session is a mock implementation of live.Session. Drive the inbound stream
// with Emit and end it with CloseEvents; Close from the consumer side only
// records the call.
type Session struct {
	mu sync.Mutex

	events    chan live.Event
	eventsEnd sync.Once

	// SendErr, if non-nil, is returned by every Send call.
	SendErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// SendCalls records every call to Send in order.
	SendCalls []SendCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// NewSession creates a Session with a buffered event channel.
func NewSession() *Session {
	return &Session{events: make(chan live.Event, 64)}
}

// Send records the call and returns SendErr.
func (s *Session) Send(f live.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := f
	cp.Data = append([]byte(nil), f.Data...)
	s.SendCalls = append(s.SendCalls, SendCall{Frame: cp})
	return s.SendErr
}

// Events returns the scripted event channel.
func (s *Session) Events() <-chan live.Event { return s.events }

// Close records the call and returns CloseErr. It does not end the event
// stream; tests decide when to call CloseEvents.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return s.CloseErr
}

// Emit pushes one event onto the stream.
func (s *Session) Emit(ev live.Event) {
	s.events <- ev
}

// CloseEvents delivers the terminal EventClosed with err and closes the event
// channel. Safe to call once.
func (s *Session) CloseEvents(err error) {
	s.eventsEnd.Do(func() {
		s.events <- live.Event{Kind: live.EventClosed, Err: err}
		close(s.events)
	})
}

// Sends returns a copy of the recorded Send calls. Thread-safe.
func (s *Session) Sends() []SendCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SendCall(nil), s.SendCalls...)
}

// Closes returns the number of Close calls so far. Thread-safe.
func (s *Session) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CloseCallCount
}

// Ensure Session implements live.Session at compile time.
var _ live.Session = (*Session)(nil)
