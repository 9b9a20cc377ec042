package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ob1hnk/triolingo/domain/entities"
	"github.com/ob1hnk/triolingo/domain/repositories"
)

// ResponderConfig tunes a responder built on a LargeLanguageModel
type ResponderConfig struct {
	SystemPrompt string
	Model        string
	Temperature  float32
	MaxTokens    int
}

// TextToText answers text turns through a LargeLanguageModel
type TextToText struct {
	llm    repositories.LargeLanguageModel
	config ResponderConfig
	logger *zap.Logger
}

// NewTextToText creates a text responder
func NewTextToText(llm repositories.LargeLanguageModel, config ResponderConfig, logger *zap.Logger) *TextToText {
	if config.SystemPrompt == "" {
		config.SystemPrompt = ConversationSystemPrompt
	}
	return &TextToText{llm: llm, config: config, logger: logger}
}

// Respond implements repositories.TextToText
func (t *TextToText) Respond(ctx context.Context, text string, history *entities.ConversationHistory) (string, error) {
	messages := make([]repositories.ChatMessage, 0, history.Len()+2)
	messages = append(messages, repositories.ChatMessage{Role: entities.MessageRoleSystem, Content: t.config.SystemPrompt})
	messages = append(messages, repositories.HistoryMessages(history)...)
	messages = append(messages, repositories.ChatMessage{Role: entities.MessageRoleUser, Content: text})

	reply, err := t.llm.Complete(ctx, repositories.CompletionRequest{
		Model:       t.config.Model,
		Messages:    messages,
		Temperature: t.config.Temperature,
		MaxTokens:   t.config.MaxTokens,
	})
	if err != nil {
		return "", wrapGeneration(err)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("%w: empty response", entities.ErrGeneration)
	}

	t.logger.Debug("Text response generated",
		zap.Int("historyLength", history.Len()),
		zap.String("responsePreview", preview(reply, 50)))
	return reply, nil
}

func wrapGeneration(err error) error {
	if errors.Is(err, entities.ErrGeneration) {
		return err
	}
	return fmt.Errorf("%w: %w", entities.ErrGeneration, err)
}
