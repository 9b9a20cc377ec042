package realtime

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/ob1hnk/triolingo/domain/repositories"
)

// Upstream event names
const (
	EventSessionUpdate  = "session.update"
	EventSessionCreated = "session.created"
	EventSessionUpdated = "session.updated"

	EventInputAudioAppend = "input_audio_buffer.append"
	EventInputAudioCommit = "input_audio_buffer.commit"
	EventInputAudioClear  = "input_audio_buffer.clear"

	EventSpeechStarted   = "input_audio_buffer.speech_started"
	EventSpeechStopped   = "input_audio_buffer.speech_stopped"
	EventAudioCommitted  = "input_audio_buffer.committed"
	EventTranscriptDone  = "conversation.item.input_audio_transcription.completed"
	EventResponseCreate  = "response.create"
	EventResponseCancel  = "response.cancel"
	EventResponseCreated = "response.created"
	EventTextDelta       = "response.text.delta"
	EventTextDone        = "response.text.done"
	EventAudioDelta      = "response.audio.delta"
	EventAudioDone       = "response.audio.done"
	EventResponseDone    = "response.done"
	EventError           = "error"
)

// envelope is used for initial JSON parsing to determine the event type
type envelope struct {
	Type string `json:"type"`
}

type serverEvent struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
	Delta      string `json:"delta"`
	Text       string `json:"text"`
	Error      *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type sessionUpdateEvent struct {
	Type    string         `json:"type"`
	Session sessionPayload `json:"session"`
}

type sessionPayload struct {
	Instructions            string                            `json:"instructions,omitempty"`
	Modalities              []string                          `json:"modalities,omitempty"`
	InputAudioFormat        string                            `json:"input_audio_format"`
	OutputAudioFormat       string                            `json:"output_audio_format"`
	InputAudioTranscription *repositories.TranscriptionConfig `json:"input_audio_transcription,omitempty"`
	// nil is sent as null, which disables server VAD upstream
	TurnDetection           *repositories.TurnDetectionConfig `json:"turn_detection"`
	Temperature             float64                           `json:"temperature"`
	MaxResponseOutputTokens int                               `json:"max_response_output_tokens,omitempty"`
}

type audioAppendEvent struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type typeOnlyEvent struct {
	Type string `json:"type"`
}

type responseCreateEvent struct {
	Type     string           `json:"type"`
	Response *responsePayload `json:"response,omitempty"`
}

type responsePayload struct {
	Modalities   []string `json:"modalities,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
}

func newSessionUpdate(cfg repositories.RealtimeSessionConfig) sessionUpdateEvent {
	return sessionUpdateEvent{
		Type: EventSessionUpdate,
		Session: sessionPayload{
			Instructions:            cfg.Instructions,
			Modalities:              cfg.Modalities,
			InputAudioFormat:        cfg.InputAudioFormat,
			OutputAudioFormat:       cfg.OutputAudioFormat,
			InputAudioTranscription: cfg.Transcription,
			TurnDetection:           cfg.TurnDetection,
			Temperature:             cfg.Temperature,
			MaxResponseOutputTokens: cfg.MaxResponseOutputTokens,
		},
	}
}

func newResponseCreate(opts repositories.ResponseOptions) responseCreateEvent {
	event := responseCreateEvent{Type: EventResponseCreate}
	if len(opts.Modalities) > 0 || opts.Instructions != "" {
		event.Response = &responsePayload{
			Modalities:   opts.Modalities,
			Instructions: opts.Instructions,
		}
	}
	return event
}

// decodeEvent maps one upstream frame to the provider neutral event
func decodeEvent(msg []byte) (repositories.RealtimeEvent, error) {
	var raw serverEvent
	if err := json.Unmarshal(msg, &raw); err != nil {
		return repositories.RealtimeEvent{}, fmt.Errorf("failed to parse upstream event: %w", err)
	}

	event := repositories.RealtimeEvent{Type: raw.Type}
	switch raw.Type {
	case EventSpeechStarted:
		event.Kind = repositories.RealtimeEventSpeechStarted
	case EventSpeechStopped:
		event.Kind = repositories.RealtimeEventSpeechStopped
	case EventAudioCommitted:
		event.Kind = repositories.RealtimeEventCommitted
	case EventTranscriptDone:
		event.Kind = repositories.RealtimeEventTranscript
		event.Text = raw.Transcript
	case EventTextDelta:
		event.Kind = repositories.RealtimeEventTextDelta
		event.Text = raw.Delta
	case EventTextDone:
		event.Kind = repositories.RealtimeEventTextDone
		event.Text = raw.Text
	case EventAudioDelta:
		event.Kind = repositories.RealtimeEventAudioDelta
		audio, err := base64.StdEncoding.DecodeString(raw.Delta)
		if err != nil {
			return event, fmt.Errorf("failed to decode audio delta: %w", err)
		}
		event.Audio = audio
	case EventResponseDone:
		event.Kind = repositories.RealtimeEventResponseDone
	case EventError:
		event.Kind = repositories.RealtimeEventError
		if raw.Error != nil {
			event.ErrorCode = raw.Error.Code
			if event.ErrorCode == "" {
				event.ErrorCode = raw.Error.Type
			}
			event.ErrorMessage = raw.Error.Message
		}
	default:
		event.Kind = repositories.RealtimeEventOther
	}
	return event, nil
}
