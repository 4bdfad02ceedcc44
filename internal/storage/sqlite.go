package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jordanmt/career-compass/backend/internal/model/chat"
	"github.com/jordanmt/career-compass/backend/internal/model/memory"
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	visibility TEXT NOT NULL DEFAULT 'private',
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	chat_id    TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	role       TEXT NOT NULL,
	parts      TEXT NOT NULL,
	agent_id   TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'complete',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, created_at);
CREATE TABLE IF NOT EXISTS memory_items (
	id         TEXT PRIMARY KEY,
	chat_id    TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	agent_name TEXT NOT NULL DEFAULT '',
	topics     TEXT NOT NULL DEFAULT '[]',
	handoffs   TEXT NOT NULL DEFAULT '[]',
	position   INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memory_chat ON memory_items(chat_id, position);
`

// SQLiteStore implements Store on a local sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema. A single writer connection avoids SQLITE_BUSY churn under the
// per-chat turn serialization this service already enforces.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// GetChat retrieves a chat by identifier.
func (s *SQLiteStore) GetChat(ctx context.Context, id string) (chat.Chat, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, visibility, created_at FROM chats WHERE id = ?`, id)
	var c chat.Chat
	var visibility string
	if err := row.Scan(&c.ID, &c.UserID, &c.Title, &visibility, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return chat.Chat{}, ErrNotFound
		}
		return chat.Chat{}, fmt.Errorf("get chat: %w", err)
	}
	c.Visibility = chat.Visibility(visibility)
	return c, nil
}

// SaveChat upserts a chat record.
func (s *SQLiteStore) SaveChat(ctx context.Context, c chat.Chat) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (id, user_id, title, visibility, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title, visibility = excluded.visibility`,
		c.ID, c.UserID, c.Title, string(c.Visibility), c.CreatedAt)
	if err != nil {
		return fmt.Errorf("save chat: %w", err)
	}
	return nil
}

// DeleteChat removes a chat, its messages and memory snapshot.
func (s *SQLiteStore) DeleteChat(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	_, _ = s.db.ExecContext(ctx, `DELETE FROM memory_items WHERE chat_id = ?`, id)
	return nil
}

// MessagesByChat returns stored turns ordered by creation time.
func (s *SQLiteStore) MessagesByChat(ctx context.Context, chatID string) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, role, parts, agent_id, status, created_at
		 FROM messages WHERE chat_id = ? ORDER BY created_at, rowid`, chatID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var m chat.Message
		var parts string
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &parts, &m.AgentID, &m.Status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if err := json.Unmarshal([]byte(parts), &m.Parts); err != nil {
			return nil, fmt.Errorf("decode message parts: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SaveMessages appends turns in one transaction.
func (s *SQLiteStore) SaveMessages(ctx context.Context, msgs []chat.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save messages: %w", err)
	}
	defer tx.Rollback()

	for _, m := range msgs {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now().UTC()
		}
		if m.Status == "" {
			m.Status = chat.StatusComplete
		}
		parts, err := json.Marshal(m.Parts)
		if err != nil {
			return fmt.Errorf("encode message parts: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, chat_id, role, parts, agent_id, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.ChatID, m.Role, string(parts), m.AgentID, m.Status, m.CreatedAt); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "unique constraint") {
				return fmt.Errorf("insert message %s: %w", m.ID, ErrDuplicateID)
			}
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return tx.Commit()
}

// MemoryByChat returns the stored memory snapshot ordered by position.
func (s *SQLiteStore) MemoryByChat(ctx context.Context, chatID string) ([]memory.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, role, content, agent_name, topics, handoffs, created_at
		 FROM memory_items WHERE chat_id = ? ORDER BY position`, chatID)
	if err != nil {
		return nil, fmt.Errorf("load memory: %w", err)
	}
	defer rows.Close()

	var items []memory.Item
	for rows.Next() {
		var item memory.Item
		var topics, handoffs string
		if err := rows.Scan(&item.ID, &item.ChatID, &item.Role, &item.Content,
			&item.AgentName, &topics, &handoffs, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory item: %w", err)
		}
		if err := json.Unmarshal([]byte(topics), &item.Topics); err != nil {
			return nil, fmt.Errorf("decode topics: %w", err)
		}
		if err := json.Unmarshal([]byte(handoffs), &item.Handoffs); err != nil {
			return nil, fmt.Errorf("decode handoffs: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SaveMemory replaces the memory snapshot for a chat.
func (s *SQLiteStore) SaveMemory(ctx context.Context, chatID string, items []memory.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save memory: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_items WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("clear memory: %w", err)
	}
	for i, item := range items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		topics, err := json.Marshal(item.Topics)
		if err != nil {
			return fmt.Errorf("encode topics: %w", err)
		}
		handoffs, err := json.Marshal(item.Handoffs)
		if err != nil {
			return fmt.Errorf("encode handoffs: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO memory_items (id, chat_id, role, content, agent_name, topics, handoffs, position, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, chatID, item.Role, item.Content, item.AgentName,
			string(topics), string(handoffs), i, item.CreatedAt); err != nil {
			return fmt.Errorf("insert memory item: %w", err)
		}
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
