package stt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ob1hnk/triolingo/domain/entities"
)

// MockSpeechToText is a placeholder implementation for speech recognition
type MockSpeechToText struct {
	logger *zap.Logger
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{logger: logger}
}

// Transcribe implements repositories.SpeechToText
func (s *MockSpeechToText) Transcribe(ctx context.Context, input entities.VoiceInput, language string) (string, error) {
	if err := input.Validate(); err != nil {
		return "", err
	}

	s.logger.Info("Mock transcription",
		zap.Int("audioBytes", input.Len()),
		zap.String("language", language))

	return fmt.Sprintf("mock transcript of %d bytes", input.Len()), nil
}
