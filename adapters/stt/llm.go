package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ob1hnk/triolingo/domain/entities"
	"github.com/ob1hnk/triolingo/domain/repositories"
	"github.com/ob1hnk/triolingo/internal/audio"
)

// LLMSpeechToText transcribes through the completion backend's audio model
type LLMSpeechToText struct {
	llm    repositories.LargeLanguageModel
	model  string
	logger *zap.Logger
}

// NewLLMSpeechToText creates a transcriber. An empty model uses the backend default.
func NewLLMSpeechToText(llm repositories.LargeLanguageModel, model string, logger *zap.Logger) *LLMSpeechToText {
	return &LLMSpeechToText{llm: llm, model: model, logger: logger}
}

// Transcribe implements repositories.SpeechToText
func (s *LLMSpeechToText) Transcribe(ctx context.Context, input entities.VoiceInput, language string) (string, error) {
	if err := input.Validate(); err != nil {
		return "", err
	}

	data := input.Data()
	voice := entities.NewVoiceInput(data, audio.DetectFormat(data), input.SampleRate(), input.Channels(), input.Name())

	text, err := s.llm.Transcribe(ctx, repositories.TranscriptionRequest{
		Model:    s.model,
		Audio:    voice,
		Language: language,
	})
	if err != nil {
		if errors.Is(err, entities.ErrTranscription) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", entities.ErrTranscription, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", entities.ErrEmptyTranscription
	}

	s.logger.Info("Transcription completed",
		zap.String("language", language),
		zap.String("format", string(voice.Format())),
		zap.String("transcription", text))
	return text, nil
}
