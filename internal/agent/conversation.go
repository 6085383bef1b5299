// Package agent holds the conversation loop: command routing, mention
// handling, and the two-phase tool-calling orchestration.
package agent

import (
	"sync"

	"botpilot/internal/domain"
)

// ConversationStore keeps per-conversation message history in memory.
// Conversations are keyed by "<userID>:<chatID>" so the same user gets
// independent histories in different chats.
type ConversationStore struct {
	mu         sync.Mutex
	history    map[string][]domain.Message
	locks      map[string]*sync.Mutex
	maxContext int
}

func NewConversationStore(maxContext int) *ConversationStore {
	if maxContext <= 0 {
		maxContext = 10
	}
	return &ConversationStore{
		history:    make(map[string][]domain.Message),
		locks:      make(map[string]*sync.Mutex),
		maxContext: maxContext,
	}
}

// Lock serializes processing for one conversation key. Concurrent messages
// from the same user queue up instead of interleaving their histories.
// The returned function releases the lock.
func (s *ConversationStore) Lock(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Append adds a message and trims the history from the front once it exceeds
// twice the context setting, so a full exchange is kept per context slot.
func (s *ConversationStore) Append(key string, msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := append(s.history[key], msg)
	if limit := 2 * s.maxContext; len(h) > limit {
		h = h[len(h)-limit:]
	}
	s.history[key] = h
}

// Window returns the stored history for the key, already capped at twice
// the context setting by Append. The prompt carries the whole capped window.
func (s *ConversationStore) Window(key string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.history[key]
	out := make([]domain.Message, len(h))
	copy(out, h)
	return out
}

// Clear drops the history for a conversation key.
func (s *ConversationStore) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, key)
}

// ConversationKey builds the store key for a user in a chat.
func ConversationKey(userID, chatID string) string {
	return userID + ":" + chatID
}
