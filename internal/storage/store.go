// Package storage persists chats, conversation turns and memory snapshots.
package storage

import (
	"context"
	"errors"

	"github.com/jordanmt/career-compass/backend/internal/model/chat"
	"github.com/jordanmt/career-compass/backend/internal/model/memory"
)

var (
	// ErrNotFound reports a missing chat.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID reports an insert whose id already exists. Finalization
	// relies on this to make run-id replays collapse into a no-op.
	ErrDuplicateID = errors.New("duplicate id")
)

// Store is the persistence collaborator consumed by the core. Each call is
// transactional on its own; callers compose retries where needed.
type Store interface {
	GetChat(ctx context.Context, id string) (chat.Chat, error)
	SaveChat(ctx context.Context, c chat.Chat) error
	DeleteChat(ctx context.Context, id string) error

	MessagesByChat(ctx context.Context, chatID string) ([]chat.Message, error)
	SaveMessages(ctx context.Context, msgs []chat.Message) error

	MemoryByChat(ctx context.Context, chatID string) ([]memory.Item, error)
	// SaveMemory replaces the stored memory window for a chat with the
	// supplied snapshot.
	SaveMemory(ctx context.Context, chatID string, items []memory.Item) error

	Close() error
}
