// Package memory keeps catalog resources in-memory for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/JakeFAU/adcatalog/internal/storage"
)

// BlobStore stores resources in a map and returns memory:// URIs.
type BlobStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ storage.Store = (*BlobStore)(nil)

// NewBlobStore creates a new in-memory store.
func NewBlobStore() *BlobStore {
	return &BlobStore{data: make(map[string][]byte)}
}

// Put copies data into the store.
func (s *BlobStore) Put(_ context.Context, name string, _ string, data []byte) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("path is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = append([]byte(nil), data...)
	return fmt.Sprintf("memory://%s", name), nil
}

// Get returns a copy of the stored bytes.
func (s *BlobStore) Get(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, storage.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// Move re-keys src as dst.
func (s *BlobStore) Move(_ context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[src]
	if !ok {
		return fmt.Errorf("%s: %w", src, storage.ErrNotFound)
	}
	s.data[dst] = data
	delete(s.data, src)
	return nil
}

// List returns keys directly under prefix, sorted.
func (s *BlobStore) List(_ context.Context, prefix string) ([]string, error) {
	prefix = strings.Trim(prefix, "/")
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for name := range s.data {
		if path.Dir(name) == prefix || (prefix == "" && !strings.Contains(name, "/")) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete drops a key.
func (s *BlobStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[name]; !ok {
		return fmt.Errorf("%s: %w", name, storage.ErrNotFound)
	}
	delete(s.data, name)
	return nil
}

// Has reports whether name is stored.
func (s *BlobStore) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[name]
	return ok
}
