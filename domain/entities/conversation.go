package entities

import (
	"iter"
	"strings"
)

// MessageRole represents the role of a message sender
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// ConversationMessage is a single role tagged turn fragment
type ConversationMessage struct {
	Role    MessageRole `json:"role" bson:"role"`
	Content string      `json:"content" bson:"content"`
}

// ConversationHistory is the append-only message log of one conversation.
// A history is owned by a single connection handler at a time and is not
// safe for concurrent mutation.
type ConversationHistory struct {
	ConversationID string
	messages       []ConversationMessage
}

// NewConversationHistory returns a history seeded with messages in order
func NewConversationHistory(conversationID string, messages ...ConversationMessage) *ConversationHistory {
	h := &ConversationHistory{
		ConversationID: conversationID,
		messages:       make([]ConversationMessage, 0, len(messages)),
	}
	h.messages = append(h.messages, messages...)
	return h
}

func (h *ConversationHistory) AddUser(text string) {
	h.append(MessageRoleUser, text)
}

func (h *ConversationHistory) AddAssistant(text string) {
	h.append(MessageRoleAssistant, text)
}

func (h *ConversationHistory) AddSystem(text string) {
	h.append(MessageRoleSystem, text)
}

func (h *ConversationHistory) append(role MessageRole, text string) {
	h.messages = append(h.messages, ConversationMessage{Role: role, Content: text})
}

// IsEmpty reports first turn semantics
func (h *ConversationHistory) IsEmpty() bool {
	return h == nil || len(h.messages) == 0
}

func (h *ConversationHistory) Len() int {
	if h == nil {
		return 0
	}
	return len(h.messages)
}

// Messages returns a copy of the messages in insertion order
func (h *ConversationHistory) Messages() []ConversationMessage {
	if h == nil {
		return nil
	}
	out := make([]ConversationMessage, len(h.messages))
	copy(out, h.messages)
	return out
}

// All iterates over the messages in insertion order.
func (h *ConversationHistory) All() iter.Seq2[int, ConversationMessage] {
	return func(yield func(int, ConversationMessage) bool) {
		if h == nil {
			return
		}
		for i, m := range h.messages {
			if !yield(i, m) {
				return
			}
		}
	}
}

// Transcript renders the history as "ROLE: content" lines, used when a
// backend only accepts prior turns as plain context text.
func (h *ConversationHistory) Transcript() string {
	var b strings.Builder
	for i, m := range h.All() {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.ToUpper(string(m.Role)))
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}
