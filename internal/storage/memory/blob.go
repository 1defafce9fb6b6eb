package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/xenking/product-catalog/internal/domain/blob"
)

var _ blob.Store = (*BlobStore)(nil)

// BlobStore is a blob.Store held in memory.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string]blob.Object
}

// NewBlobStore returns an empty store.
func NewBlobStore() *BlobStore {
	return &BlobStore{objects: make(map[string]blob.Object)}
}

// Put stores a copy of obj under a generated path in dir.
func (s *BlobStore) Put(_ context.Context, dir string, obj blob.Object) (string, error) {
	p := blob.NewPath(dir, obj.Extension)
	obj.Data = bytes.Clone(obj.Data)

	s.mu.Lock()
	s.objects[p] = obj
	s.mu.Unlock()
	return p, nil
}

// Delete removes path; missing paths are ignored.
func (s *BlobStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	delete(s.objects, path)
	s.mu.Unlock()
	return nil
}

// Exists reports whether path is stored.
func (s *BlobStore) Exists(_ context.Context, path string) (bool, error) {
	s.mu.RLock()
	_, ok := s.objects[path]
	s.mu.RUnlock()
	return ok, nil
}

// Len returns the number of stored objects.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
