// Package memory keeps the bounded per-chat conversation window that gives
// personas continuity across turns and hand-offs.
package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jordanmt/career-compass/backend/internal/model/chat"
	memorymodel "github.com/jordanmt/career-compass/backend/internal/model/memory"
)

// DefaultCap bounds retained items per chat when no override is configured.
const DefaultCap = 50

// Persister writes memory snapshots. Persistence is best-effort: failures
// are logged and swallowed, never surfaced to Append callers.
type Persister interface {
	MemoryByChat(ctx context.Context, chatID string) ([]memorymodel.Item, error)
	SaveMemory(ctx context.Context, chatID string, items []memorymodel.Item) error
}

// Service owns the in-memory windows and schedules asynchronous writes.
type Service struct {
	mu    sync.RWMutex
	items map[string][]memorymodel.Item
	cap   int

	store   Persister
	pending chan string
}

// NewService builds the memory service. store may be nil to disable
// persistence entirely (tests).
func NewService(store Persister, capacity int) *Service {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Service{
		items:   make(map[string][]memorymodel.Item),
		cap:     capacity,
		store:   store,
		pending: make(chan string, 256),
	}
}

// Run drains the persistence queue until ctx is cancelled. Intended to be
// launched once from main in an errgroup.
func (s *Service) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case chatID := <-s.pending:
			s.persist(ctx, chatID)
		}
	}
}

// Hydrate loads the persisted snapshot for a chat if nothing is in memory
// yet. Used when a chat is touched after a process restart.
func (s *Service) Hydrate(ctx context.Context, chatID string) error {
	s.mu.RLock()
	_, loaded := s.items[chatID]
	s.mu.RUnlock()
	if loaded || s.store == nil {
		return nil
	}

	items, err := s.store.MemoryByChat(ctx, chatID)
	if err != nil {
		return fmt.Errorf("hydrate memory for chat %s: %w", chatID, err)
	}

	s.mu.Lock()
	if _, raced := s.items[chatID]; !raced {
		s.items[chatID] = items
	}
	s.mu.Unlock()
	return nil
}

// Append adds an item, enforcing the cap synchronously: once over capacity
// the oldest non-system entries are evicted first; system entries are never
// evicted. A persistence write is then scheduled best-effort.
func (s *Service) Append(chatID string, item memorymodel.Item) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.ChatID = chatID
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	window := append(s.items[chatID], item)
	for len(window) > s.cap {
		idx := oldestEvictable(window)
		if idx < 0 {
			break
		}
		window = append(window[:idx], window[idx+1:]...)
	}
	s.items[chatID] = window
	s.mu.Unlock()

	select {
	case s.pending <- chatID:
	default:
		// Queue full: drop the write, a later append will resnapshot.
		log.Printf("[memory] persistence queue full, skipping write for chat=%s", chatID)
	}
}

// oldestEvictable finds the first non-system item.
func oldestEvictable(window []memorymodel.Item) int {
	for i, item := range window {
		if item.Role != chat.RoleSystem {
			return i
		}
	}
	return -1
}

// Items returns a copy of the current window.
func (s *Service) Items(chatID string) []memorymodel.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.items[chatID]
	copied := make([]memorymodel.Item, len(items))
	copy(copied, items)
	return copied
}

// RecentContext joins the last n items into a deterministic context string
// for injection into the next run's instructions.
func (s *Service) RecentContext(chatID string, n int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.items[chatID]
	if n > 0 && len(items) > n {
		items = items[len(items)-n:]
	}

	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		if item.AgentName != "" {
			fmt.Fprintf(&b, "[%s] ", item.AgentName)
		}
		fmt.Fprintf(&b, "%s: %s", item.Role, item.Content)
	}
	return b.String()
}

// Topics recomputes the distinct topics seen, in first-seen order. Derived
// from item metadata on every call rather than maintained separately.
func (s *Service) Topics(chatID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var topics []string
	for _, item := range s.items[chatID] {
		for _, topic := range item.Topics {
			if _, dup := seen[topic]; dup {
				continue
			}
			seen[topic] = struct{}{}
			topics = append(topics, topic)
		}
	}
	return topics
}

// AgentsSeen recomputes the distinct personas that have spoken, in
// first-seen order.
func (s *Service) AgentsSeen(chatID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var agents []string
	for _, item := range s.items[chatID] {
		if item.AgentName == "" {
			continue
		}
		if _, dup := seen[item.AgentName]; dup {
			continue
		}
		seen[item.AgentName] = struct{}{}
		agents = append(agents, item.AgentName)
	}
	return agents
}

// LastAgent returns the persona of the most recent item, or empty. Used to
// rehydrate the active persona after a reload.
func (s *Service) LastAgent(chatID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.items[chatID]
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].AgentName != "" {
			return items[i].AgentName
		}
	}
	return ""
}

func (s *Service) persist(ctx context.Context, chatID string) {
	if s.store == nil {
		return
	}
	snapshot := s.Items(chatID)
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.SaveMemory(writeCtx, chatID, snapshot); err != nil {
		log.Printf("[memory] persist failed for chat=%s: %v", chatID, err)
	}
}
