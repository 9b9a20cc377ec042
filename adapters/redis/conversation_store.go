package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ob1hnk/triolingo/domain/entities"
)

const (
	// Redis key prefix for conversation histories
	conversationKeyPrefix = "conversation:"
	// Default TTL for conversation keys
	defaultTTL = 24 * time.Hour
)

// ConversationStore keeps each history as a Redis list of JSON encoded
// messages so appends never rewrite earlier turns
type ConversationStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewConversationStore creates a Redis backed conversation store
func NewConversationStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ConversationStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ConversationStore{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// NewClient connects to Redis and verifies the connection
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return client, nil
}

// Load implements repositories.ConversationStore
func (s *ConversationStore) Load(ctx context.Context, conversationID string) (*entities.ConversationHistory, error) {
	values, err := s.client.LRange(ctx, s.key(conversationID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to load conversation %s: %w", conversationID, err)
	}

	messages := make([]entities.ConversationMessage, 0, len(values))
	for _, v := range values {
		var msg entities.ConversationMessage
		if err := json.Unmarshal([]byte(v), &msg); err != nil {
			s.logger.Warn("Skipping malformed conversation message",
				zap.String("conversationID", conversationID),
				zap.Error(err))
			continue
		}
		messages = append(messages, msg)
	}

	return entities.NewConversationHistory(conversationID, messages...), nil
}

// Append implements repositories.ConversationStore. The TTL is refreshed on
// every write.
func (s *ConversationStore) Append(ctx context.Context, conversationID string, messages ...entities.ConversationMessage) error {
	if len(messages) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(messages))
	for _, m := range messages {
		val, err := json.Marshal(m)
		if err != nil {
			return err
		}
		values = append(values, val)
	}

	key := s.key(conversationID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append to conversation %s: %w", conversationID, err)
	}
	return nil
}

// Clear implements repositories.ConversationStore
func (s *ConversationStore) Clear(ctx context.Context, conversationID string) error {
	if err := s.client.Del(ctx, s.key(conversationID)).Err(); err != nil {
		return fmt.Errorf("failed to clear conversation %s: %w", conversationID, err)
	}
	return nil
}

func (s *ConversationStore) key(conversationID string) string {
	return conversationKeyPrefix + conversationID
}
