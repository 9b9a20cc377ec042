package entities

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when an audio session id is unknown.
	ErrSessionNotFound = errors.New("session not found")
	// ErrEmptyBuffer is returned when assembling a session with no chunks.
	ErrEmptyBuffer = errors.New("audio buffer is empty")
	ErrValidation  = errors.New("validation failed")
	ErrDecode      = errors.New("decode failed")
	ErrUnknownType = errors.New("unknown message type")
	// ErrNotStarted is returned when streaming audio arrives before a stream was started.
	ErrNotStarted = errors.New("stream not started")

	ErrTranscription      = errors.New("transcription failed")
	ErrEmptyTranscription = fmt.Errorf("%w: empty transcript", ErrTranscription)
	ErrGeneration         = errors.New("generation failed")

	// ErrHandshake means the upstream realtime connection never produced
	// its session created acknowledgment.
	ErrHandshake = errors.New("realtime handshake failed")
	// ErrConfiguration means the upstream rejected or did not acknowledge
	// the session configuration. The bridge must be discarded.
	ErrConfiguration    = errors.New("realtime session configuration failed")
	ErrConnectionClosed = errors.New("connection closed")
	ErrInvalidState     = errors.New("invalid realtime session state")

	ErrLetterNotFound = errors.New("letter not found")
)
