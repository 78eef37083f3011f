// Package gemini implements the live.Dialer interface for Google's Gemini
// Live API.
//
// It establishes a bidirectional WebSocket connection to the Gemini Live
// endpoint and exchanges JSON messages according to the BidiGenerateContent
// protocol. Microphone audio and camera snapshots are transmitted as
// base64-encoded media chunks; the model's synthesised speech arrives as
// base64 PCM inline data and is decoded before being surfaced as events.
package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/aurora-labs/maya/pkg/live"
)

// Compile-time assertions that Dialer and session satisfy the live interfaces.
var _ live.Dialer = (*Dialer)(nil)
var _ live.Session = (*session)(nil)

const (
	defaultModel   = "gemini-2.5-flash-native-audio-preview-09-2025"
	defaultBaseURL = "wss://generativelanguage.googleapis.com/ws"

	keepaliveInterval = 20 * time.Second
	keepaliveTimeout  = 5 * time.Second

	// eventBuf is the buffer depth of the session event channel. The
	// controller drains it continuously; the buffer absorbs bursts of small
	// audio chunks.
	eventBuf = 64
)

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Dialer.
type Option func(*Dialer)

// WithModel sets the Gemini model used for sessions.
func WithModel(model string) Option {
	return func(d *Dialer) { d.model = model }
}

// WithBaseURL overrides the base WebSocket URL. Primarily used in tests to
// point at a local mock server.
func WithBaseURL(url string) Option {
	return func(d *Dialer) { d.baseURL = url }
}

// ── Dialer ─────────────────────────────────────────────────────────────────────

// Dialer implements live.Dialer for Google's Gemini Live API.
type Dialer struct {
	apiKey  string
	model   string
	baseURL string
}

// New creates a new Gemini Live Dialer with the given API key and options.
func New(apiKey string, opts ...Option) *Dialer {
	d := &Dialer{
		apiKey:  apiKey,
		model:   defaultModel,
		baseURL: defaultBaseURL,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dial establishes a new Gemini Live session. The returned Session accepts
// Send calls immediately; frames are queued until the server acknowledges the
// setup message and are then flushed in order.
func (d *Dialer) Dial(ctx context.Context, cfg live.Config) (live.Session, error) {
	wsURL := fmt.Sprintf(
		"%s/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent?key=%s",
		d.baseURL, d.apiKey,
	)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Content-Type": []string{"application/json"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: dial: %w", err)
	}

	sessCtx, sessCancel := context.WithCancel(context.Background())
	sess := &session{
		conn:   conn,
		events: make(chan live.Event, eventBuf),
		done:   make(chan struct{}),
		ctx:    sessCtx,
		cancel: sessCancel,
	}

	if err := sess.sendSetup(d.model, cfg); err != nil {
		sessCancel()
		conn.Close(websocket.StatusInternalError, "setup failed")
		return nil, fmt.Errorf("gemini: setup: %w", err)
	}

	go sess.receiveLoop()
	go sess.keepaliveLoop()

	return sess, nil
}

// ── Protocol message types (outgoing) ─────────────────────────────────────────

type setupMessage struct {
	Setup setupConfig `json:"setup"`
}

type setupConfig struct {
	Model                    string           `json:"model"`
	GenerationConfig         generationConfig `json:"generationConfig"`
	SystemInstruction        *systemInstruct  `json:"systemInstruction,omitempty"`
	OutputAudioTranscription *emptyObject     `json:"outputAudioTranscription,omitempty"`
}

type emptyObject struct{}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type systemInstruct struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64-encoded
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []mediaChunk `json:"mediaChunks"`
}

type mediaChunk struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64-encoded
}

// ── Protocol message types (incoming) ─────────────────────────────────────────

type serverMessage struct {
	SetupComplete *json.RawMessage `json:"setupComplete,omitempty"`
	ServerContent *serverContent   `json:"serverContent,omitempty"`
	Error         *geminiError     `json:"error,omitempty"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

type serverContent struct {
	ModelTurn           *modelTurn     `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
}

type modelTurn struct {
	Parts []part `json:"parts"`
}

type transcription struct {
	Text string `json:"text"`
}

// ── session ────────────────────────────────────────────────────────────────────

type session struct {
	conn   *websocket.Conn
	events chan live.Event

	mu      sync.Mutex
	opened  bool
	closed  bool
	pending []live.Frame
	errVal  error

	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

// sendSetup sends the initial BidiGenerateContent setup message declaring the
// audio response modality, voice, persona instruction and output
// transcription.
func (s *session) sendSetup(model string, cfg live.Config) error {
	msg := setupMessage{
		Setup: setupConfig{
			Model: fmt.Sprintf("models/%s", model),
			GenerationConfig: generationConfig{
				ResponseModalities: []string{"audio"},
			},
		},
	}

	if cfg.Instructions != "" {
		msg.Setup.SystemInstruction = &systemInstruct{
			Parts: []part{{Text: cfg.Instructions}},
		}
	}

	if cfg.Voice != "" {
		msg.Setup.GenerationConfig.SpeechConfig = &speechConfig{
			VoiceConfig: voiceConfig{
				PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		}
	}

	if cfg.TranscribeOutput {
		msg.Setup.OutputAudioTranscription = &emptyObject{}
	}

	return s.writeJSON(msg)
}

// writeJSON marshals v and writes it as a text WebSocket message.
func (s *session) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("gemini: marshal: %w", err)
	}
	return s.conn.Write(s.ctx, websocket.MessageText, data)
}

// Send enqueues one outbound frame. Before the session has opened, frames are
// buffered and flushed in order on setupComplete; afterwards they are written
// immediately. A write failure loses that frame only — the session stays up
// and capture continues.
func (s *session) Send(f live.Frame) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("gemini: session closed")
	}
	if !s.opened {
		s.pending = append(s.pending, f)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	return s.writeFrame(f)
}

// writeFrame encodes a frame as a realtimeInput media chunk.
func (s *session) writeFrame(f live.Frame) error {
	msg := realtimeInputMessage{
		RealtimeInput: realtimeInput{
			MediaChunks: []mediaChunk{
				{
					MIMEType: f.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(f.Data),
				},
			},
		},
	}
	if err := s.writeJSON(msg); err != nil {
		return fmt.Errorf("gemini: send %s frame: %w", f.Kind, err)
	}
	return nil
}

// flushPending drains the pre-open queue in arrival order, then marks the
// session open. Frames submitted while the flush is running join the tail of
// the queue, so ordering is preserved end to end.
func (s *session) flushPending() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.opened = true
			s.pending = nil
			s.mu.Unlock()
			return
		}
		f := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		if err := s.writeFrame(f); err != nil {
			slog.Warn("gemini: flush queued frame failed", "kind", f.Kind.String(), "err", err)
		}
	}
}

// Events returns the inbound event stream.
func (s *session) Events() <-chan live.Event { return s.events }

// receiveLoop reads messages from the WebSocket and dispatches them. It owns
// the events channel: exactly one EventClosed is emitted and the channel is
// closed when the loop exits.
func (s *session) receiveLoop() {
	defer func() {
		_ = s.Close() // release the connection on any exit path
		s.emitClosed()
	}()

	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			// A cancelled session context means a local Close: clean exit.
			if s.ctx.Err() == nil {
				s.setErr(err)
			}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue // skip malformed frames
		}

		if !s.handleServerMessage(&msg) {
			return
		}
	}
}

// handleServerMessage dispatches one inbound message. It returns false when
// the message is terminal for the session.
func (s *session) handleServerMessage(msg *serverMessage) bool {
	if msg.Error != nil {
		text := msg.Error.Message
		if text == "" {
			text = "unknown error"
		}
		s.setErr(fmt.Errorf("gemini: %s", text))
		return false
	}

	if msg.SetupComplete != nil {
		s.flushPending()
		s.emit(live.Event{Kind: live.EventOpened})
	}

	if msg.ServerContent != nil {
		s.handleServerContent(msg.ServerContent)
	}

	return true
}

func (s *session) handleServerContent(sc *serverContent) {
	// Barge-in: surfaced before any further audio so the scheduler clears
	// ahead of subsequent chunks.
	if sc.Interrupted {
		s.emit(live.Event{Kind: live.EventInterrupted})
	}

	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData == nil {
				continue
			}
			pcm, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil || len(pcm) == 0 {
				// A corrupt chunk is dropped; playback continues with the next.
				if err != nil {
					slog.Warn("gemini: dropping undecodable audio chunk", "err", err)
				}
				continue
			}
			s.emit(live.Event{Kind: live.EventChunk, Audio: pcm})
		}
	}

	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		s.emit(live.Event{Kind: live.EventChunk, Text: sc.OutputTranscription.Text})
	}

	if sc.TurnComplete {
		s.emit(live.Event{Kind: live.EventTurnComplete})
	}
}

// emit delivers a non-terminal event, giving up if the session is torn down
// while the consumer is stalled.
func (s *session) emit(ev live.Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// emitClosed delivers the terminal EventClosed and closes the event channel.
// Runs exactly once, from the receive loop's exit path.
func (s *session) emitClosed() {
	s.events <- live.Event{Kind: live.EventClosed, Err: s.Err()}
	close(s.events)
}

// keepaliveLoop sends WebSocket pings to keep the Gemini Live connection
// alive for the duration of the session.
func (s *session) keepaliveLoop() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(s.ctx, keepaliveTimeout)
			_ = s.conn.Ping(pingCtx)
			cancel()
		}
	}
}

func (s *session) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errVal == nil {
		s.errVal = err
	}
}

// Err returns the error that terminated the session, or nil while it is
// running or after a clean close.
func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errVal
}

// Close terminates the session and releases the connection. Idempotent and
// safe to call before the session has opened.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.pending = nil
		s.mu.Unlock()

		s.cancel()    // unblocks receiveLoop and keepaliveLoop
		close(s.done) // signals keepaliveLoop via done channel
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}
