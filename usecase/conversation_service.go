package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ob1hnk/triolingo/domain/entities"
	"github.com/ob1hnk/triolingo/domain/repositories"
)

// PipelineMode names the capability set a ConversationService was built with
type PipelineMode string

const (
	// PipelineTwoStage transcribes first and then generates from the text
	PipelineTwoStage PipelineMode = "two_stage"
	// PipelineSingleStage answers straight from the audio
	PipelineSingleStage PipelineMode = "single_stage"
)

// ConversationResult is the outcome of one processed utterance. Transcript
// is empty in single-stage mode.
type ConversationResult struct {
	Transcript string
	Response   string
}

// ConversationService orchestrates one conversation turn: it loads the
// history, runs the configured pipeline and records the turn.
type ConversationService struct {
	mode           PipelineMode
	speechToText   repositories.SpeechToText
	textToText     repositories.TextToText
	speechToSpeech repositories.SpeechToSpeech
	store          repositories.ConversationStore
	logger         *zap.Logger
}

// NewTwoStageConversation creates a service that transcribes the audio and
// answers the transcript
func NewTwoStageConversation(
	stt repositories.SpeechToText,
	ttt repositories.TextToText,
	store repositories.ConversationStore,
	logger *zap.Logger,
) *ConversationService {
	return &ConversationService{
		mode:         PipelineTwoStage,
		speechToText: stt,
		textToText:   ttt,
		store:        store,
		logger:       logger,
	}
}

// NewSingleStageConversation creates a service that answers the audio in
// one model call. Only assistant replies are recorded in history.
func NewSingleStageConversation(
	sts repositories.SpeechToSpeech,
	store repositories.ConversationStore,
	logger *zap.Logger,
) *ConversationService {
	return &ConversationService{
		mode:           PipelineSingleStage,
		speechToSpeech: sts,
		store:          store,
		logger:         logger,
	}
}

func (s *ConversationService) Mode() PipelineMode {
	return s.mode
}

// HasTranscript reports whether results carry the user's transcript
func (s *ConversationService) HasTranscript() bool {
	return s.mode == PipelineTwoStage
}

// Execute processes one utterance for conversationID. History is left
// untouched when any step fails.
func (s *ConversationService) Execute(ctx context.Context, input entities.VoiceInput, conversationID, language string) (*ConversationResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	history, err := s.store.Load(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	s.logger.Info("Processing conversation turn",
		zap.String("conversationID", conversationID),
		zap.String("mode", string(s.mode)),
		zap.String("format", string(input.Format())),
		zap.Int("audioSize", input.Len()),
		zap.Int("historyLength", history.Len()))

	var result *ConversationResult
	switch s.mode {
	case PipelineTwoStage:
		result, err = s.executeTwoStage(ctx, input, history, language)
	case PipelineSingleStage:
		result, err = s.executeSingleStage(ctx, input, history, language)
	default:
		err = fmt.Errorf("unknown pipeline mode %q", s.mode)
	}
	if err != nil {
		s.logger.Error("Conversation turn failed",
			zap.String("conversationID", conversationID),
			zap.Error(err))
		return nil, err
	}

	var turn []entities.ConversationMessage
	if s.mode == PipelineTwoStage {
		turn = append(turn, entities.ConversationMessage{Role: entities.MessageRoleUser, Content: result.Transcript})
	}
	turn = append(turn, entities.ConversationMessage{Role: entities.MessageRoleAssistant, Content: result.Response})

	if err := s.store.Append(ctx, conversationID, turn...); err != nil {
		return nil, fmt.Errorf("failed to record turn: %w", err)
	}

	s.logger.Info("Conversation turn completed",
		zap.String("conversationID", conversationID),
		zap.Int("responseLength", len(result.Response)))
	return result, nil
}

func (s *ConversationService) executeTwoStage(ctx context.Context, input entities.VoiceInput, history *entities.ConversationHistory, language string) (*ConversationResult, error) {
	transcript, err := s.speechToText.Transcribe(ctx, input, language)
	if err != nil {
		return nil, err
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, entities.ErrEmptyTranscription
	}

	s.logger.Info("Transcription completed", zap.String("text", transcript))

	response, err := s.textToText.Respond(ctx, transcript, history)
	if err != nil {
		return nil, err
	}
	return &ConversationResult{Transcript: transcript, Response: response}, nil
}

func (s *ConversationService) executeSingleStage(ctx context.Context, input entities.VoiceInput, history *entities.ConversationHistory, language string) (*ConversationResult, error) {
	response, err := s.speechToSpeech.RespondFromAudio(ctx, input, history, language)
	if err != nil {
		return nil, err
	}
	return &ConversationResult{Response: response}, nil
}

// History returns the current history of conversationID
func (s *ConversationService) History(ctx context.Context, conversationID string) (*entities.ConversationHistory, error) {
	return s.store.Load(ctx, conversationID)
}

// ClearSession drops the history of conversationID
func (s *ConversationService) ClearSession(ctx context.Context, conversationID string) error {
	if err := s.store.Clear(ctx, conversationID); err != nil {
		return err
	}
	s.logger.Debug("Conversation history cleared", zap.String("conversationID", conversationID))
	return nil
}
