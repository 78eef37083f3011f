// Package live defines the transport abstraction for one duplex streaming
// session with the remote multimodal model.
//
// A [Session] is the single owner of connection state. Other components never
// touch the underlying connection; they interact through message passing
// only: [Session.Send] for outbound frames, the [Session.Events] stream for
// everything inbound, and [Session.Close] for teardown. Sessions are
// long-lived (the length of one conversation) and are not reconnected —
// a terminal [EventClosed] ends the session for good and the caller decides
// whether to open a brand-new one.
//
// All implementations must be safe for concurrent use.
package live

import "context"

// FrameKind classifies outbound frames.
type FrameKind int

const (
	// FrameAudio is a block of raw PCM16 mono microphone audio.
	FrameAudio FrameKind = iota

	// FrameImage is one compressed camera snapshot.
	FrameImage
)

// String returns the human-readable name of the frame kind.
func (k FrameKind) String() string {
	switch k {
	case FrameAudio:
		return "audio"
	case FrameImage:
		return "image"
	default:
		return "unknown"
	}
}

// Frame is one outbound transport frame. Data is the raw payload; the
// transport applies its own wire encoding (base64 for Gemini Live).
type Frame struct {
	Kind     FrameKind
	MIMEType string
	Data     []byte
}

// AudioFrame wraps a PCM16 mono block at the pipeline input rate in a Frame.
func AudioFrame(pcm []byte) Frame {
	return Frame{Kind: FrameAudio, MIMEType: "audio/pcm;rate=16000", Data: pcm}
}

// ImageFrame wraps a JPEG snapshot in a Frame.
func ImageFrame(jpegData []byte) Frame {
	return Frame{Kind: FrameImage, MIMEType: "image/jpeg", Data: jpegData}
}

// EventKind classifies inbound session events.
type EventKind int

const (
	// EventOpened signals that the session handshake completed. Frames sent
	// before this event were queued and have been flushed in order.
	EventOpened EventKind = iota

	// EventChunk carries a decoded audio payload, a text transcription
	// fragment, or both.
	EventChunk

	// EventInterrupted signals that the user pre-empted the model's response:
	// everything queued for playback must be discarded immediately.
	EventInterrupted

	// EventTurnComplete signals the model finished its current spoken turn.
	EventTurnComplete

	// EventClosed is terminal. Err is nil for a clean close and non-nil when
	// the session ended because of a transport or protocol failure. It is the
	// last event delivered; the event channel closes after it.
	EventClosed
)

// String returns the human-readable name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventChunk:
		return "chunk"
	case EventInterrupted:
		return "interrupted"
	case EventTurnComplete:
		return "turn-complete"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is one inbound session event.
type Event struct {
	Kind EventKind

	// Audio is decoded PCM16 mono at the output sample rate. Set only on
	// EventChunk, and possibly alongside Text.
	Audio []byte

	// Text is a transcription fragment of the model's spoken output. Set only
	// on EventChunk.
	Text string

	// Err describes why the session ended. Set only on EventClosed, and only
	// when the close was not clean.
	Err error
}

// Config is the session open request.
type Config struct {
	// Voice selects the prebuilt voice identity for synthesised speech.
	Voice string

	// Instructions is the persona/system instruction string.
	Instructions string

	// TranscribeOutput requests text transcription of the spoken response,
	// delivered as EventChunk text fragments.
	TranscribeOutput bool
}

// Session is one open duplex connection.
//
// Send must never block the capture path: frames submitted before the session
// is open are queued and flushed, in order, once the handshake completes.
// A Send error reports that one frame was lost; it is not terminal for the
// session, and capture continues.
type Session interface {
	// Send enqueues an outbound frame for transmission.
	Send(f Frame) error

	// Events returns the inbound event stream. Exactly one EventClosed is
	// delivered before the channel closes.
	Events() <-chan Event

	// Close requests graceful termination. Idempotent and safe to call
	// before the session has opened.
	Close() error
}

// Dialer opens sessions to the remote service.
//
// Implementations must be safe for concurrent use.
type Dialer interface {
	// Dial establishes a new session. Returns an error if the connection or
	// the initial handshake message cannot be sent (auth failure, network
	// error, ctx already cancelled). The caller owns the Session and must
	// call Close.
	Dial(ctx context.Context, cfg Config) (Session, error)
}
