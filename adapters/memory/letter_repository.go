package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ob1hnk/triolingo/domain/entities"
)

// LetterRepository is an in-memory LetterRepository used when no database
// is configured
type LetterRepository struct {
	mu      sync.RWMutex
	letters map[string]entities.Letter
}

// NewLetterRepository creates an empty in-memory letter repository
func NewLetterRepository() *LetterRepository {
	return &LetterRepository{
		letters: make(map[string]entities.Letter),
	}
}

// Save implements repositories.LetterRepository
func (r *LetterRepository) Save(ctx context.Context, letter *entities.Letter) (string, error) {
	if letter == nil {
		return "", fmt.Errorf("%w: letter cannot be nil", entities.ErrValidation)
	}
	if err := letter.Validate(); err != nil {
		return "", err
	}

	now := time.Now()
	if letter.CreatedAt.IsZero() {
		letter.CreatedAt = now
	}
	letter.UpdatedAt = now
	letter.ID = uuid.NewString()

	r.mu.Lock()
	r.letters[letter.ID] = *letter
	r.mu.Unlock()

	return letter.ID, nil
}

// GetByID implements repositories.LetterRepository
func (r *LetterRepository) GetByID(ctx context.Context, id string) (*entities.Letter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	letter, ok := r.letters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", entities.ErrLetterNotFound, id)
	}
	return &letter, nil
}

// ListByUser implements repositories.LetterRepository, newest first
func (r *LetterRepository) ListByUser(ctx context.Context, userID string) ([]*entities.Letter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var letters []*entities.Letter
	for _, l := range r.letters {
		if l.UserID == userID {
			letter := l
			letters = append(letters, &letter)
		}
	}
	sort.Slice(letters, func(i, j int) bool {
		return letters[i].CreatedAt.After(letters[j].CreatedAt)
	})
	return letters, nil
}
