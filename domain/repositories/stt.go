package repositories

import (
	"context"

	"github.com/ob1hnk/triolingo/domain/entities"
)

// SpeechToText converts an utterance to text. Implementations return an
// error wrapping entities.ErrTranscription on empty or malformed results.
type SpeechToText interface {
	Transcribe(ctx context.Context, input entities.VoiceInput, language string) (string, error)
}

// TextToText produces a reply to text given the prior conversation.
// Implementations return an error wrapping entities.ErrGeneration on an
// empty result.
type TextToText interface {
	Respond(ctx context.Context, text string, history *entities.ConversationHistory) (string, error)
}

// SpeechToSpeech maps audio directly to a reply in one upstream call. It
// never exposes a transcript.
type SpeechToSpeech interface {
	RespondFromAudio(ctx context.Context, input entities.VoiceInput, history *entities.ConversationHistory, language string) (string, error)
}
