package websocket

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ob1hnk/triolingo/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Batch mode message types
const (
	MessageTypeSessionStart MessageType = "SESSION_START"
	MessageTypeAudioChunk   MessageType = "AUDIO_CHUNK"
	MessageTypeSessionEnd   MessageType = "SESSION_END"

	MessageTypeAck        MessageType = "ACK"
	MessageTypeProcessing MessageType = "PROCESSING"
	MessageTypeResult     MessageType = "RESULT"
	MessageTypeError      MessageType = "ERROR"
)

// Streaming mode message types
const (
	MessageTypeStreamStart  MessageType = "STREAM_START"
	MessageTypeStreamAudio  MessageType = "STREAM_AUDIO"
	MessageTypeStreamCommit MessageType = "STREAM_COMMIT"
	MessageTypeStreamStop   MessageType = "STREAM_STOP"

	MessageTypeStreamAck     MessageType = "STREAM_ACK"
	MessageTypeSpeechStarted MessageType = "SPEECH_STARTED"
	MessageTypeTranscript    MessageType = "TRANSCRIPT"
	MessageTypeTextDelta     MessageType = "TEXT_DELTA"
	MessageTypeStreamEnd     MessageType = "STREAM_END"
	MessageTypeResponseEnd   MessageType = "RESPONSE_END"
	MessageTypeStreamError   MessageType = "STREAM_ERROR"
)

// Error codes reported to clients
const (
	ErrorCodeSessionNotFound = "SESSION_NOT_FOUND"
	ErrorCodeDecode          = "DECODE_ERROR"
	ErrorCodeValidation      = "VALIDATION_ERROR"
	ErrorCodeProcessing      = "PROCESSING_ERROR"
	ErrorCodeNotStarted      = "NOT_STARTED"
	ErrorCodeUnknownType     = "UNKNOWN_TYPE"
	ErrorCodeInternal        = "INTERNAL_ERROR"
	ErrorCodeUpstream        = "UPSTREAM_ERROR"
	ErrorCodeStream          = "STREAM_ERROR"
)

const unknownSessionID = "unknown"

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

// SessionStartMessage opens a batch upload. Zero values select defaults.
type SessionStartMessage struct {
	BaseMessage
	AudioFormat string `json:"audio_format,omitempty"`
	SampleRate  int    `json:"sample_rate,omitempty"`
	Channels    int    `json:"channels,omitempty"`
	Language    string `json:"language,omitempty"`
}

// AudioChunkMessage carries one base64 encoded slice of the upload
type AudioChunkMessage struct {
	BaseMessage
	ChunkIndex *int   `json:"chunk_index"`
	AudioData  string `json:"audio_data"`
}

type SessionEndMessage struct {
	BaseMessage
}

type StreamStartMessage struct {
	BaseMessage
	Language string `json:"language,omitempty"`
}

// StreamAudioMessage carries one base64 encoded PCM16 frame
type StreamAudioMessage struct {
	BaseMessage
	AudioData string `json:"audio_data"`
}

type StreamCommitMessage struct {
	BaseMessage
}

type StreamStopMessage struct {
	BaseMessage
}

// AckMessage acknowledges a batch or stream request
type AckMessage struct {
	BaseMessage
	Message    string `json:"message"`
	ChunkIndex *int   `json:"chunk_index,omitempty"`
}

type ProcessingMessage struct {
	BaseMessage
	Status   string  `json:"status"`
	Progress float64 `json:"progress,omitempty"`
}

// ResultMessage carries the reply. Transcription is only set by two-stage
// pipelines.
type ResultMessage struct {
	BaseMessage
	Text          string  `json:"text"`
	Transcription *string `json:"transcription,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"error_message"`
}

type TranscriptMessage struct {
	BaseMessage
	Transcript string `json:"transcript"`
}

type TextDeltaMessage struct {
	BaseMessage
	Delta string `json:"delta"`
}

// StreamEndMessage closes one response with the accumulated text. Its type
// is STREAM_END or RESPONSE_END depending on the endpoint.
type StreamEndMessage struct {
	BaseMessage
	FullText string `json:"full_text"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses and validates an incoming message. Errors wrap
// entities.ErrValidation or entities.ErrUnknownType.
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON format: %v", entities.ErrValidation, err)
	}
	if base.Type == "" {
		return nil, fmt.Errorf("%w: type is required", entities.ErrValidation)
	}

	var msg interface{}
	switch base.Type {
	case MessageTypeSessionStart:
		msg = &SessionStartMessage{}
	case MessageTypeAudioChunk:
		msg = &AudioChunkMessage{}
	case MessageTypeSessionEnd:
		msg = &SessionEndMessage{}
	case MessageTypeStreamStart:
		msg = &StreamStartMessage{}
	case MessageTypeStreamAudio:
		msg = &StreamAudioMessage{}
	case MessageTypeStreamCommit:
		msg = &StreamCommitMessage{}
	case MessageTypeStreamStop:
		msg = &StreamStopMessage{}
	default:
		return nil, fmt.Errorf("%w: %s", entities.ErrUnknownType, base.Type)
	}

	if err := json.Unmarshal(messageBytes, msg); err != nil {
		return nil, fmt.Errorf("%w: invalid %s message: %v", entities.ErrValidation, base.Type, err)
	}
	if base.SessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", entities.ErrValidation)
	}

	switch m := msg.(type) {
	case *SessionStartMessage:
		if m.SampleRate < 0 {
			return nil, fmt.Errorf("%w: sample_rate must not be negative", entities.ErrValidation)
		}
		if m.Channels < 0 {
			return nil, fmt.Errorf("%w: channels must not be negative", entities.ErrValidation)
		}
	case *AudioChunkMessage:
		if m.ChunkIndex == nil {
			return nil, fmt.Errorf("%w: chunk_index is required", entities.ErrValidation)
		}
		if m.AudioData == "" {
			return nil, fmt.Errorf("%w: audio_data is required", entities.ErrValidation)
		}
	case *StreamAudioMessage:
		if m.AudioData == "" {
			return nil, fmt.Errorf("%w: audio_data is required", entities.ErrValidation)
		}
	}

	return msg, nil
}

// SessionIDOf best-effort extracts the session id of a raw message
func SessionIDOf(messageBytes []byte) string {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil || base.SessionID == "" {
		return ""
	}
	return base.SessionID
}

// DecodeAudio decodes a base64 audio payload
func DecodeAudio(data string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrDecode, err)
	}
	return decoded, nil
}

// ErrorCode maps an error to the stable code reported to clients
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, entities.ErrSessionNotFound):
		return ErrorCodeSessionNotFound
	case errors.Is(err, entities.ErrDecode):
		return ErrorCodeDecode
	case errors.Is(err, entities.ErrValidation):
		return ErrorCodeValidation
	case errors.Is(err, entities.ErrUnknownType):
		return ErrorCodeUnknownType
	case errors.Is(err, entities.ErrNotStarted):
		return ErrorCodeNotStarted
	case errors.Is(err, entities.ErrTranscription),
		errors.Is(err, entities.ErrGeneration),
		errors.Is(err, entities.ErrEmptyBuffer):
		return ErrorCodeProcessing
	case errors.Is(err, entities.ErrHandshake),
		errors.Is(err, entities.ErrConfiguration):
		return ErrorCodeUpstream
	default:
		return ErrorCodeInternal
	}
}

// CreateErrorMessage creates a standardized error message. msgType is
// ERROR for batch endpoints and STREAM_ERROR for streaming ones.
func CreateErrorMessage(msgType MessageType, sessionID, code, message string) *ErrorMessage {
	if sessionID == "" {
		sessionID = unknownSessionID
	}
	return &ErrorMessage{
		BaseMessage: BaseMessage{Type: msgType, SessionID: sessionID},
		Code:        code,
		Message:     message,
	}
}

// CreateAckMessage creates an ACK or STREAM_ACK message
func CreateAckMessage(msgType MessageType, sessionID, message string) *AckMessage {
	return &AckMessage{
		BaseMessage: BaseMessage{Type: msgType, SessionID: sessionID},
		Message:     message,
	}
}
