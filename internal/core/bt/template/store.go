package template

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Store persists templates by name.
type Store interface {
	Save(ctx context.Context, t *Template) error
	// Load returns ErrTemplateNotFound for unknown names.
	Load(ctx context.Context, name string) (*Template, error)
	Delete(ctx context.Context, name string) error
	// List returns the stored names, sorted.
	List(ctx context.Context) ([]string, error)
}

func encode(t *Template) ([]byte, error) {
	if t == nil || t.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidTemplate)
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode template %s: %w", t.Name, err)
	}
	return data, nil
}

func decodeStored(name string, data []byte) (*Template, error) {
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode template %s: %w", name, err)
	}
	return &t, nil
}

// MemoryStore keeps encoded templates in process memory, so callers never
// share a *Template with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Save(_ context.Context, t *Template) error {
	data, err := encode(t)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[t.Name] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, name string) (*Template, error) {
	s.mu.RLock()
	data, ok := s.data[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return decodeStored(name, data)
}

func (s *MemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[name]; !ok {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	delete(s.data, name)
	return nil
}

func (s *MemoryStore) List(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.data)), nil
}
