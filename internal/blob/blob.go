// Package blob abstracts file storage for tool-generated documents.
package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Object describes one stored file.
type Object struct {
	URL      string `json:"url"`
	Pathname string `json:"pathname"`
}

// Store uploads opaque bytes and returns a client-reachable reference.
// Implementations must be safe for concurrent use.
type Store interface {
	Upload(ctx context.Context, data []byte, name, contentType string) (Object, error)
}

// LocalStore writes files under a directory and serves them by path. Cloud
// implementations plug in behind the Store interface.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates the storage directory if needed.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Upload writes the file under a unique prefix to avoid name collisions.
func (s *LocalStore) Upload(_ context.Context, data []byte, name, _ string) (Object, error) {
	safe := filepath.Base(name)
	if safe == "." || safe == "/" || safe == "" {
		safe = "file"
	}
	pathname := uuid.NewString()[:8] + "-" + safe
	if err := os.WriteFile(filepath.Join(s.dir, pathname), data, 0o644); err != nil {
		return Object{}, fmt.Errorf("write blob: %w", err)
	}
	return Object{URL: s.baseURL + "/files/" + pathname, Pathname: pathname}, nil
}

// Dir exposes the storage directory for the HTTP file server.
func (s *LocalStore) Dir() string { return s.dir }
