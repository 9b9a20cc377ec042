package repositories

import (
	"context"

	"github.com/ob1hnk/triolingo/domain/entities"
)

// LargeLanguageModel abstracts the completion backend. Routing, retries and
// provider fallback live behind it.
type LargeLanguageModel interface {
	// Complete returns the model's text reply for the given messages
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Transcribe converts audio to text
	Transcribe(ctx context.Context, req TranscriptionRequest) (string, error)
}

// CompletionRequest is one completion call
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature float32
	MaxTokens   int
}

// ChatMessage represents a single message in a completion request. Audio is
// attached inline when set.
type ChatMessage struct {
	Role    entities.MessageRole `json:"role"`
	Content string               `json:"content"`
	Audio   *entities.VoiceInput `json:"-"`
}

// TranscriptionRequest is one speech recognition call
type TranscriptionRequest struct {
	Model    string
	Audio    entities.VoiceInput
	Language string
	Prompt   string
}

// HistoryMessages converts a conversation history into chat messages
func HistoryMessages(history *entities.ConversationHistory) []ChatMessage {
	messages := make([]ChatMessage, 0, history.Len())
	for _, m := range history.All() {
		messages = append(messages, ChatMessage{Role: m.Role, Content: m.Content})
	}
	return messages
}
