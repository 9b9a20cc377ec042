package repositories

import (
	"context"
	"iter"
)

// RealtimeState is the lifecycle state of one upstream realtime connection
type RealtimeState int

const (
	RealtimeDisconnected RealtimeState = iota
	RealtimeConnected
	RealtimeConfigured
	RealtimeActive
	RealtimeClosed
)

func (s RealtimeState) String() string {
	switch s {
	case RealtimeDisconnected:
		return "DISCONNECTED"
	case RealtimeConnected:
		return "CONNECTED"
	case RealtimeConfigured:
		return "CONFIGURED"
	case RealtimeActive:
		return "ACTIVE"
	case RealtimeClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// RealtimeEventKind classifies upstream events independent of the
// provider's wire vocabulary
type RealtimeEventKind string

const (
	RealtimeEventSpeechStarted RealtimeEventKind = "speech_started"
	RealtimeEventSpeechStopped RealtimeEventKind = "speech_stopped"
	RealtimeEventCommitted     RealtimeEventKind = "committed"
	RealtimeEventTranscript    RealtimeEventKind = "transcript"
	RealtimeEventTextDelta     RealtimeEventKind = "text_delta"
	RealtimeEventTextDone      RealtimeEventKind = "text_done"
	RealtimeEventAudioDelta    RealtimeEventKind = "audio_delta"
	RealtimeEventResponseDone  RealtimeEventKind = "response_done"
	RealtimeEventError         RealtimeEventKind = "error"
	RealtimeEventOther         RealtimeEventKind = "other"
)

// RealtimeEvent is one decoded upstream event
type RealtimeEvent struct {
	Kind RealtimeEventKind
	// Type is the raw upstream event name
	Type string
	// Text carries the transcript, text delta or final text depending on Kind
	Text  string
	Audio []byte

	ErrorCode    string
	ErrorMessage string
}

// Terminal reports whether a single-turn event sequence ends after this event
func (e RealtimeEvent) Terminal() bool {
	return e.Kind == RealtimeEventResponseDone || e.Kind == RealtimeEventError
}

// TranscriptionConfig enables input transcription on the upstream session
type TranscriptionConfig struct {
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
}

// TurnDetectionConfig enables upstream voice activity detection
type TurnDetectionConfig struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitempty"`
}

// RealtimeSessionConfig is sent once per connection to configure the
// upstream session. A nil TurnDetection disables server VAD so the caller
// must commit explicitly.
type RealtimeSessionConfig struct {
	Instructions            string
	Modalities              []string
	InputAudioFormat        string
	OutputAudioFormat       string
	Transcription           *TranscriptionConfig
	TurnDetection           *TurnDetectionConfig
	Temperature             float64
	MaxResponseOutputTokens int
}

// ResponseOptions customizes one explicitly requested response
type ResponseOptions struct {
	Modalities []string
	// Instructions carry per-response context such as prior turns
	Instructions string
}

// RealtimeSession is a duplex connection to an upstream realtime audio API.
//
// State transitions: Connect moves DISCONNECTED to CONNECTED, Configure
// moves CONNECTED to CONFIGURED, the first audio frame moves to ACTIVE and
// Close moves any state to CLOSED. Close is idempotent.
type RealtimeSession interface {
	Connect(ctx context.Context) error
	Configure(ctx context.Context, cfg RealtimeSessionConfig) error
	// SendAudio forwards one frame without waiting for acknowledgment
	SendAudio(pcm []byte) error
	Commit() error
	ClearBuffer() error
	RequestResponse(opts ResponseOptions) error
	CancelResponse() error
	// Events reads upstream events. Unless keepOpen is set the sequence
	// ends after a response done or error event. Each call starts a new
	// sequence over the same connection.
	Events(ctx context.Context, keepOpen bool) iter.Seq2[RealtimeEvent, error]
	State() RealtimeState
	Close() error
}

// RealtimeSessionFactory creates a fresh, unconnected session
type RealtimeSessionFactory func() RealtimeSession
