package repositories

import (
	"context"

	"github.com/ob1hnk/triolingo/domain/entities"
)

// ConversationStore owns conversation histories keyed by conversation id.
// Concurrent access to different ids must be safe.
type ConversationStore interface {
	// Load returns the history for id, or an empty one when none exists yet
	Load(ctx context.Context, conversationID string) (*entities.ConversationHistory, error)
	// Append adds messages to the end of the history in order
	Append(ctx context.Context, conversationID string, messages ...entities.ConversationMessage) error
	// Clear drops the whole history
	Clear(ctx context.Context, conversationID string) error
}

// LetterRepository defines data access methods for letters
type LetterRepository interface {
	Save(ctx context.Context, letter *entities.Letter) (string, error)
	GetByID(ctx context.Context, id string) (*entities.Letter, error)
	ListByUser(ctx context.Context, userID string) ([]*entities.Letter, error)
}
