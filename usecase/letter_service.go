package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ob1hnk/triolingo/domain/entities"
	"github.com/ob1hnk/triolingo/domain/repositories"
)

// LetterService generates reply letters and stores them
type LetterService struct {
	writer repositories.TextToText
	repo   repositories.LetterRepository
	logger *zap.Logger
}

// NewLetterService creates a letter service. writer is expected to be
// prompted for letter writing.
func NewLetterService(writer repositories.TextToText, repo repositories.LetterRepository, logger *zap.Logger) *LetterService {
	return &LetterService{writer: writer, repo: repo, logger: logger}
}

// Generate writes a reply to userLetter and saves both
func (s *LetterService) Generate(ctx context.Context, userID, userLetter, taskID string) (*entities.Letter, error) {
	letter := &entities.Letter{
		TaskID:     taskID,
		UserID:     userID,
		UserLetter: strings.TrimSpace(userLetter),
	}
	if err := letter.Validate(); err != nil {
		return nil, err
	}

	reply, err := s.writer.Respond(ctx, letter.UserLetter, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate letter response: %w", err)
	}
	letter.GeneratedResponseLetter = reply

	if _, err := s.repo.Save(ctx, letter); err != nil {
		return nil, fmt.Errorf("failed to save letter: %w", err)
	}

	s.logger.Info("Letter response generated",
		zap.String("letterID", letter.ID),
		zap.String("userID", userID),
		zap.Int("responseLength", len(reply)))
	return letter, nil
}

func (s *LetterService) Get(ctx context.Context, id string) (*entities.Letter, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *LetterService) ListByUser(ctx context.Context, userID string) ([]*entities.Letter, error) {
	return s.repo.ListByUser(ctx, userID)
}
