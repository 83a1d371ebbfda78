package store

import (
	"context"
	"sync"

	"github.com/viant/deepresearch/service/dao"
)

// MemoryStore is a generic in-memory implementation of dao.Service.
// It keeps entities of type *T mapped by a comparable key K obtained from
// keySelector. An optional copier isolates stored values from callers.
type MemoryStore[K comparable, T any] struct {
	mu          sync.RWMutex
	records     map[K]*T
	keySelector func(*T) K
	copier      func(*T) *T
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore[K comparable, T any](keySelector func(*T) K) *MemoryStore[K, T] {
	return &MemoryStore[K, T]{
		records:     make(map[K]*T),
		keySelector: keySelector,
		copier:      func(v *T) *T { return v },
	}
}

// WithCopier makes Save and Load/List go through copier.
func (s *MemoryStore[K, T]) WithCopier(copier func(*T) *T) *MemoryStore[K, T] {
	if copier != nil {
		s.copier = copier
	}
	return s
}

// Save stores or overwrites a record.
func (s *MemoryStore[K, T]) Save(_ context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	var zero K
	key := s.keySelector(v)
	if key == zero {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = s.copier(v)
	return nil
}

// Load returns a record by key.
func (s *MemoryStore[K, T]) Load(_ context.Context, key K) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key]
	if !ok {
		return nil, dao.ErrNotFound
	}
	return s.copier(v), nil
}

// Delete removes a record.
func (s *MemoryStore[K, T]) Delete(_ context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return dao.ErrNotFound
	}
	delete(s.records, key)
	return nil
}

// List returns all stored records. Filtering is left to wrapping DAOs.
func (s *MemoryStore[K, T]) List(_ context.Context, _ ...*dao.Parameter) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*T, 0, len(s.records))
	for _, v := range s.records {
		out = append(out, s.copier(v))
	}
	return out, nil
}

// Update applies fn to the stored record under the write lock. fn may return
// an error to abort the update.
func (s *MemoryStore[K, T]) Update(_ context.Context, key K, fn func(current *T) (*T, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[key]
	if !ok {
		return dao.ErrNotFound
	}
	next, err := fn(s.copier(current))
	if err != nil {
		return err
	}
	s.records[key] = s.copier(next)
	return nil
}
