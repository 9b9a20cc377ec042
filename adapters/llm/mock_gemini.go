package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ob1hnk/triolingo/domain/entities"
	"github.com/ob1hnk/triolingo/domain/repositories"
)

// MockLLM is an offline LargeLanguageModel for local runs without credentials
type MockLLM struct {
	logger *zap.Logger
}

// NewMockLLM creates a new mock backend
func NewMockLLM(logger *zap.Logger) *MockLLM {
	return &MockLLM{logger: logger}
}

// Complete implements repositories.LargeLanguageModel
func (m *MockLLM) Complete(ctx context.Context, req repositories.CompletionRequest) (string, error) {
	var last *repositories.ChatMessage
	for i := range req.Messages {
		if req.Messages[i].Role == entities.MessageRoleUser {
			last = &req.Messages[i]
		}
	}

	m.logger.Debug("Mock completion", zap.Int("messages", len(req.Messages)))

	switch {
	case last == nil:
		return "Hello! I'm Golem. What would you like to talk about?", nil
	case last.Audio != nil:
		return fmt.Sprintf("I heard you! That was %d bytes of %s audio. Tell me more?", last.Audio.Len(), last.Audio.Format()), nil
	default:
		return fmt.Sprintf("Thanks for telling me! I'm happy to hear '%s'. What else is on your mind?", last.Content), nil
	}
}

// Transcribe implements repositories.LargeLanguageModel
func (m *MockLLM) Transcribe(ctx context.Context, req repositories.TranscriptionRequest) (string, error) {
	if req.Audio.Len() == 0 {
		return "", fmt.Errorf("%w: no audio", entities.ErrTranscription)
	}
	m.logger.Debug("Mock transcription",
		zap.Int("audioBytes", req.Audio.Len()),
		zap.String("language", req.Language))
	return "hello golem", nil
}
