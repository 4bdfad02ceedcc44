package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jordanmt/career-compass/backend/internal/model/chat"
	"github.com/jordanmt/career-compass/backend/internal/model/memory"
)

// MemoryStore implements Store with in-process maps. Used by tests and as
// the dev fallback when no database path is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	chats    map[string]chat.Chat
	messages map[string][]chat.Message
	memories map[string][]memory.Item
	msgIDs   map[string]struct{}
}

// NewMemoryStore bootstraps an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chats:    make(map[string]chat.Chat),
		messages: make(map[string][]chat.Message),
		memories: make(map[string][]memory.Item),
		msgIDs:   make(map[string]struct{}),
	}
}

// GetChat retrieves a chat by identifier.
func (s *MemoryStore) GetChat(_ context.Context, id string) (chat.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[id]
	if !ok {
		return chat.Chat{}, ErrNotFound
	}
	return c, nil
}

// SaveChat inserts or updates a chat record.
func (s *MemoryStore) SaveChat(_ context.Context, c chat.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.chats[c.ID] = c
	return nil
}

// DeleteChat removes a chat and its messages and memory.
func (s *MemoryStore) DeleteChat(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[id]; !ok {
		return ErrNotFound
	}
	for _, m := range s.messages[id] {
		delete(s.msgIDs, m.ID)
	}
	delete(s.chats, id)
	delete(s.messages, id)
	delete(s.memories, id)
	return nil
}

// MessagesByChat returns stored turns in insertion order.
func (s *MemoryStore) MessagesByChat(_ context.Context, chatID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[chatID]
	copied := make([]chat.Message, len(msgs))
	copy(copied, msgs)
	return copied, nil
}

// SaveMessages appends turns. IDs and timestamps are filled when absent.
// A repeated id is rejected with ErrDuplicateID so replays behave the same
// way a primary-key collision does in the sqlite backend.
func (s *MemoryStore) SaveMessages(_ context.Context, msgs []chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if m.ID == "" {
			continue
		}
		if _, exists := s.msgIDs[m.ID]; exists {
			return fmt.Errorf("save message %s: %w", m.ID, ErrDuplicateID)
		}
		if _, exists := seen[m.ID]; exists {
			return fmt.Errorf("save message %s: %w", m.ID, ErrDuplicateID)
		}
		seen[m.ID] = struct{}{}
	}
	for _, m := range msgs {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now().UTC()
		}
		s.msgIDs[m.ID] = struct{}{}
		s.messages[m.ChatID] = append(s.messages[m.ChatID], m)
	}
	return nil
}

// MemoryByChat returns the stored memory snapshot for a chat.
func (s *MemoryStore) MemoryByChat(_ context.Context, chatID string) ([]memory.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.memories[chatID]
	copied := make([]memory.Item, len(items))
	copy(copied, items)
	return copied, nil
}

// SaveMemory replaces the memory snapshot for a chat.
func (s *MemoryStore) SaveMemory(_ context.Context, chatID string, items []memory.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]memory.Item, len(items))
	copy(copied, items)
	s.memories[chatID] = copied
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
