package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ob1hnk/triolingo/domain/entities"
	"github.com/ob1hnk/triolingo/domain/repositories"
	"github.com/ob1hnk/triolingo/internal/audio"
)

// SpeechToSpeech answers an audio turn with a single multimodal completion
type SpeechToSpeech struct {
	llm    repositories.LargeLanguageModel
	config ResponderConfig
	logger *zap.Logger
}

// NewSpeechToSpeech creates an audio responder
func NewSpeechToSpeech(llm repositories.LargeLanguageModel, config ResponderConfig, logger *zap.Logger) *SpeechToSpeech {
	if config.SystemPrompt == "" {
		config.SystemPrompt = SpeechSystemPrompt
	}
	return &SpeechToSpeech{llm: llm, config: config, logger: logger}
}

// RespondFromAudio implements repositories.SpeechToSpeech
func (s *SpeechToSpeech) RespondFromAudio(ctx context.Context, input entities.VoiceInput, history *entities.ConversationHistory, language string) (string, error) {
	if err := input.Validate(); err != nil {
		return "", err
	}

	// the payload's own signature wins over the declared format
	data := input.Data()
	detected := audio.DetectFormat(data)
	voice := entities.NewVoiceInput(data, detected, input.SampleRate(), input.Channels(), input.Name())

	system := s.config.SystemPrompt
	if language != "" {
		system += fmt.Sprintf("\nThe player speaks language %q.", language)
	}

	messages := make([]repositories.ChatMessage, 0, history.Len()+2)
	messages = append(messages, repositories.ChatMessage{Role: entities.MessageRoleSystem, Content: system})
	messages = append(messages, repositories.HistoryMessages(history)...)
	messages = append(messages, repositories.ChatMessage{Role: entities.MessageRoleUser, Audio: &voice})

	reply, err := s.llm.Complete(ctx, repositories.CompletionRequest{
		Model:       s.config.Model,
		Messages:    messages,
		Temperature: s.config.Temperature,
		MaxTokens:   s.config.MaxTokens,
	})
	if err != nil {
		return "", wrapGeneration(err)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("%w: empty response", entities.ErrGeneration)
	}

	s.logger.Info("Audio response generated",
		zap.String("format", string(detected)),
		zap.Int("audioBytes", voice.Len()),
		zap.Int("historyLength", history.Len()))
	return reply, nil
}
