// Package memory stores frozen files in-memory for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Store keeps frozen files in a map and returns pseudo URIs. It is safe
// for concurrent use.
type Store struct {
	mu    sync.RWMutex
	data  map[string][]byte
	types map[string]string
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		data:  make(map[string][]byte),
		types: make(map[string]string),
	}
}

// PutObject records the content and returns a memory:// URI.
func (s *Store) PutObject(_ context.Context, path string, contentType string, data []byte) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[path] = append([]byte(nil), data...)
	s.types[path] = contentType
	return fmt.Sprintf("memory://%s", path), nil
}

// Get returns the stored content for a path.
func (s *Store) Get(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// ContentType returns the content type recorded for a path.
func (s *Store) ContentType(path string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.types[path]
}

// Paths lists every stored path in sorted order.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.data))
	for p := range s.data {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
