// Package memory is an in-memory storage.Storage implementation.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	apperrors "github.com/sandesh333-sw/Unyt/pkg/errors"
)

type object struct {
	contentType string
	data        []byte
}

// Storage keeps uploaded objects in a map.
type Storage struct {
	mu      sync.RWMutex
	objects map[string]object
	baseURL string
}

// New creates an empty in-memory storage serving URLs under baseURL.
func New(baseURL string) *Storage {
	return &Storage{
		objects: make(map[string]object),
		baseURL: baseURL,
	}
}

// Upload stores the object bytes under the given key.
func (s *Storage) Upload(ctx context.Context, key string, contentType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read object: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{contentType: contentType, data: data}
	return key, nil
}

// Delete removes the object if present.
func (s *Storage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// GetURL returns the serving URL for a stored object.
func (s *Storage) GetURL(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[key]; !ok {
		return "", apperrors.ErrNotFound
	}
	return s.baseURL + "/" + key, nil
}

// Get returns a stored object's bytes and content type. Test helper.
func (s *Storage) Get(key string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj.data, obj.contentType, ok
}
