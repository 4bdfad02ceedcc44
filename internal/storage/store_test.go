package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanmt/career-compass/backend/internal/model/chat"
	"github.com/jordanmt/career-compass/backend/internal/model/memory"
	"github.com/jordanmt/career-compass/backend/internal/storage"
)

// runStoreSuite exercises the Store contract shared by both backends.
func runStoreSuite(t *testing.T, store storage.Store) {
	ctx := context.Background()

	t.Run("chat roundtrip", func(t *testing.T) {
		c := chat.Chat{ID: "chat-1", UserID: "user-1", Title: "first chat", Visibility: chat.VisibilityPrivate}
		require.NoError(t, store.SaveChat(ctx, c))

		got, err := store.GetChat(ctx, "chat-1")
		require.NoError(t, err)
		assert.Equal(t, "user-1", got.UserID)
		assert.Equal(t, "first chat", got.Title)
		assert.Equal(t, chat.VisibilityPrivate, got.Visibility)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("chat not found", func(t *testing.T) {
		_, err := store.GetChat(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("messages ordered", func(t *testing.T) {
		msgs := []chat.Message{
			{ID: "m1", ChatID: "chat-1", Role: chat.RoleUser, Parts: []chat.Part{chat.TextPart("hello")}},
			{ID: "m2", ChatID: "chat-1", Role: chat.RoleAssistant, Parts: []chat.Part{chat.TextPart("hi there")},
				AgentID: "triage", Status: chat.StatusComplete},
		}
		require.NoError(t, store.SaveMessages(ctx, msgs))

		got, err := store.MessagesByChat(ctx, "chat-1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "hello", got[0].Text())
		assert.Equal(t, "hi there", got[1].Text())
		assert.Equal(t, "triage", got[1].AgentID)
	})

	t.Run("duplicate message id rejected", func(t *testing.T) {
		// The run id doubles as the message id; a replayed save must
		// collide instead of producing a second copy of the turn.
		replay := chat.Message{ID: "m2", ChatID: "chat-1", Role: chat.RoleAssistant,
			Parts: []chat.Part{chat.TextPart("hi there")}, AgentID: "triage", Status: chat.StatusComplete}
		assert.ErrorIs(t, store.SaveMessages(ctx, []chat.Message{replay}), storage.ErrDuplicateID)

		got, err := store.MessagesByChat(ctx, "chat-1")
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("memory snapshot replaced", func(t *testing.T) {
		first := []memory.Item{
			{ID: "i1", ChatID: "chat-1", Role: chat.RoleUser, Content: "old", Topics: []string{"resume"}},
		}
		require.NoError(t, store.SaveMemory(ctx, "chat-1", first))

		second := []memory.Item{
			{ID: "i2", ChatID: "chat-1", Role: chat.RoleUser, Content: "new"},
			{ID: "i3", ChatID: "chat-1", Role: chat.RoleAssistant, Content: "reply",
				AgentName: "resume", Handoffs: []string{"resume"}},
		}
		require.NoError(t, store.SaveMemory(ctx, "chat-1", second))

		got, err := store.MemoryByChat(ctx, "chat-1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "new", got[0].Content)
		assert.Equal(t, "resume", got[1].AgentName)
		assert.Equal(t, []string{"resume"}, got[1].Handoffs)
	})

	t.Run("delete removes everything", func(t *testing.T) {
		require.NoError(t, store.DeleteChat(ctx, "chat-1"))

		_, err := store.GetChat(ctx, "chat-1")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		msgs, err := store.MessagesByChat(ctx, "chat-1")
		require.NoError(t, err)
		assert.Empty(t, msgs)

		items, err := store.MemoryByChat(ctx, "chat-1")
		require.NoError(t, err)
		assert.Empty(t, items)

		assert.ErrorIs(t, store.DeleteChat(ctx, "chat-1"), storage.ErrNotFound)
	})
}

func TestMemoryStore(t *testing.T) {
	store := storage.NewMemoryStore()
	defer store.Close()
	runStoreSuite(t, store)
}

func TestSQLiteStore(t *testing.T) {
	store, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()
	runStoreSuite(t, store)
}
