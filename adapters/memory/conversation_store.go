package memory

import (
	"context"
	"sync"

	"github.com/ob1hnk/triolingo/domain/entities"
)

// ConversationStore keeps conversation histories in process memory
type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[string][]entities.ConversationMessage
}

// NewConversationStore creates an empty in-memory conversation store
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		conversations: make(map[string][]entities.ConversationMessage),
	}
}

// Load implements repositories.ConversationStore
func (s *ConversationStore) Load(ctx context.Context, conversationID string) (*entities.ConversationHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return entities.NewConversationHistory(conversationID, s.conversations[conversationID]...), nil
}

// Append implements repositories.ConversationStore
func (s *ConversationStore) Append(ctx context.Context, conversationID string, messages ...entities.ConversationMessage) error {
	if len(messages) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations[conversationID] = append(s.conversations[conversationID], messages...)
	return nil
}

// Clear implements repositories.ConversationStore
func (s *ConversationStore) Clear(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conversations, conversationID)
	return nil
}

// Count returns the number of conversations currently held
func (s *ConversationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}
