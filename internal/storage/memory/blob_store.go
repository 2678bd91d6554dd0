// Package memory contains in-memory storage implementations for tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// BlobStore keeps written objects in a map for inspection.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New returns a memory BlobStore.
func New() *BlobStore {
	return &BlobStore{objects: make(map[string][]byte)}
}

// PutObject stores the object and returns a mem:// URI.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read data: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = b
	return "mem://" + path, nil
}

// Object returns the stored bytes for a path.
func (s *BlobStore) Object(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objects[path]
	return b, ok
}

// Len reports how many objects have been stored.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
