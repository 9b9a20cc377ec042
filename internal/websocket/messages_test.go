package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/ob1hnk/triolingo/domain/entities"
)

func TestMessageValidator_ValidateMessage(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name     string
		message  string
		wantErr  error
		wantType interface{}
	}{
		{
			name:     "session start with defaults",
			message:  `{"type": "SESSION_START", "session_id": "s1"}`,
			wantType: &SessionStartMessage{},
		},
		{
			name:     "session start with format",
			message:  `{"type": "SESSION_START", "session_id": "s1", "audio_format": "wav", "sample_rate": 24000, "channels": 2, "language": "en"}`,
			wantType: &SessionStartMessage{},
		},
		{
			name:    "negative sample rate",
			message: `{"type": "SESSION_START", "session_id": "s1", "sample_rate": -1}`,
			wantErr: entities.ErrValidation,
		},
		{
			name:     "audio chunk with index zero",
			message:  `{"type": "AUDIO_CHUNK", "session_id": "s1", "chunk_index": 0, "audio_data": "AAAA"}`,
			wantType: &AudioChunkMessage{},
		},
		{
			name:    "audio chunk without index",
			message: `{"type": "AUDIO_CHUNK", "session_id": "s1", "audio_data": "AAAA"}`,
			wantErr: entities.ErrValidation,
		},
		{
			name:    "audio chunk without data",
			message: `{"type": "AUDIO_CHUNK", "session_id": "s1", "chunk_index": 3}`,
			wantErr: entities.ErrValidation,
		},
		{
			name:    "chunk index of wrong type",
			message: `{"type": "AUDIO_CHUNK", "session_id": "s1", "chunk_index": "one", "audio_data": "AAAA"}`,
			wantErr: entities.ErrValidation,
		},
		{
			name:     "session end",
			message:  `{"type": "SESSION_END", "session_id": "s1"}`,
			wantType: &SessionEndMessage{},
		},
		{
			name:    "missing session id",
			message: `{"type": "SESSION_END"}`,
			wantErr: entities.ErrValidation,
		},
		{
			name:     "stream start",
			message:  `{"type": "STREAM_START", "session_id": "st", "language": "ko"}`,
			wantType: &StreamStartMessage{},
		},
		{
			name:    "stream audio without data",
			message: `{"type": "STREAM_AUDIO", "session_id": "st"}`,
			wantErr: entities.ErrValidation,
		},
		{
			name:     "stream commit",
			message:  `{"type": "STREAM_COMMIT", "session_id": "st"}`,
			wantType: &StreamCommitMessage{},
		},
		{
			name:     "stream stop",
			message:  `{"type": "STREAM_STOP", "session_id": "st"}`,
			wantType: &StreamStopMessage{},
		},
		{
			name:    "unknown type",
			message: `{"type": "PING", "session_id": "s1"}`,
			wantErr: entities.ErrUnknownType,
		},
		{
			name:    "missing type",
			message: `{"session_id": "s1"}`,
			wantErr: entities.ErrValidation,
		},
		{
			name:    "invalid JSON",
			message: `{"type": "SESSION_START",`,
			wantErr: entities.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := validator.ValidateMessage([]byte(tt.message))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got, want := fmt.Sprintf("%T", msg), fmt.Sprintf("%T", tt.wantType); got != want {
				t.Errorf("Expected %s, got %s", want, got)
			}
		})
	}
}

func TestMessageValidator_ParsesFields(t *testing.T) {
	msg, err := NewMessageValidator().ValidateMessage([]byte(
		`{"type": "AUDIO_CHUNK", "session_id": "s1", "chunk_index": 7, "audio_data": "AAAA"}`))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	chunk := msg.(*AudioChunkMessage)
	if chunk.SessionID != "s1" || *chunk.ChunkIndex != 7 || chunk.AudioData != "AAAA" {
		t.Errorf("Unexpected message: %+v", chunk)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: s1", entities.ErrSessionNotFound), ErrorCodeSessionNotFound},
		{fmt.Errorf("%w: bad", entities.ErrDecode), ErrorCodeDecode},
		{entities.ErrValidation, ErrorCodeValidation},
		{entities.ErrUnknownType, ErrorCodeUnknownType},
		{entities.ErrNotStarted, ErrorCodeNotStarted},
		{entities.ErrEmptyTranscription, ErrorCodeProcessing},
		{entities.ErrGeneration, ErrorCodeProcessing},
		{fmt.Errorf("%w: timeout", entities.ErrHandshake), ErrorCodeUpstream},
		{entities.ErrConfiguration, ErrorCodeUpstream},
		{errors.New("boom"), ErrorCodeInternal},
	}

	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.want {
			t.Errorf("ErrorCode(%v): expected %s, got %s", tt.err, tt.want, got)
		}
	}
}

func TestDecodeAudio(t *testing.T) {
	data, err := DecodeAudio("aGVsbG8=")
	if err != nil || string(data) != "hello" {
		t.Errorf("Expected 'hello', got %q (%v)", data, err)
	}
	if _, err := DecodeAudio("not base64!"); !errors.Is(err, entities.ErrDecode) {
		t.Errorf("Expected ErrDecode, got %v", err)
	}
}

func TestCreateErrorMessage(t *testing.T) {
	msg := CreateErrorMessage(MessageTypeStreamError, "", ErrorCodeNotStarted, "send STREAM_START first")

	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	var decoded map[string]interface{}
	json.Unmarshal(raw, &decoded)

	if decoded["type"] != "STREAM_ERROR" {
		t.Errorf("Expected type STREAM_ERROR, got %v", decoded["type"])
	}
	if decoded["session_id"] != unknownSessionID {
		t.Errorf("Expected session_id %q, got %v", unknownSessionID, decoded["session_id"])
	}
	if decoded["error_code"] != ErrorCodeNotStarted {
		t.Errorf("Expected error_code %s, got %v", ErrorCodeNotStarted, decoded["error_code"])
	}
	if decoded["error_message"] != "send STREAM_START first" {
		t.Errorf("Unexpected error_message %v", decoded["error_message"])
	}
}

func TestResultMessage_TranscriptionOmitted(t *testing.T) {
	raw, _ := json.Marshal(&ResultMessage{BaseMessage: BaseMessage{Type: MessageTypeResult, SessionID: "s1"}, Text: "hi"})
	var decoded map[string]interface{}
	json.Unmarshal(raw, &decoded)
	if _, ok := decoded["transcription"]; ok {
		t.Errorf("Expected no transcription field, got %v", decoded)
	}
}
