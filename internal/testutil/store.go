package testutil

import (
	"context"
	"sort"
	"sync"

	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/types"
)

// FilterFunc is a generic filter function type
type FilterFunc[T any] func(ctx context.Context, item T, filter interface{}) bool

// SortFunc is a generic sort function type
type SortFunc[T any] func(i, j T) bool

// InMemoryStore implements a generic in-memory store. Writes made inside a
// MockPostgresClient transaction are journaled and undone on rollback.
type InMemoryStore[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

// NewInMemoryStore creates a new InMemoryStore
func NewInMemoryStore[T any]() *InMemoryStore[T] {
	return &InMemoryStore[T]{
		items: make(map[string]T),
	}
}

// Create adds a new item to the store
func (s *InMemoryStore[T]) Create(ctx context.Context, id string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; exists {
		return ierr.NewErrorf("item %s already exists", id).
			Mark(ierr.ErrAlreadyExists)
	}

	s.items[id] = item
	s.journal(ctx, id, item, false)
	return nil
}

// Get retrieves an item by ID
func (s *InMemoryStore[T]) Get(ctx context.Context, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item, exists := s.items[id]; exists {
		return item, nil
	}

	var zero T
	return zero, ierr.NewErrorf("item %s not found", id).
		Mark(ierr.ErrNotFound)
}

// Find returns the first item accepted by match
func (s *InMemoryStore[T]) Find(match func(T) bool) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if match(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// List retrieves items based on filter
func (s *InMemoryStore[T]) List(ctx context.Context, filter interface{}, filterFn FilterFunc[T], sortFn SortFunc[T]) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []T
	for _, item := range s.items {
		if filterFn == nil || filterFn(ctx, item, filter) {
			result = append(result, item)
		}
	}

	if sortFn != nil {
		sort.Slice(result, func(i, j int) bool {
			return sortFn(result[i], result[j])
		})
	}

	// Apply pagination if filter implements BaseFilter
	if f, ok := filter.(types.BaseFilter); ok && !f.IsUnlimited() {
		start := f.GetOffset()
		if start >= len(result) {
			return []T{}, nil
		}

		end := start + f.GetLimit()
		if end > len(result) {
			end = len(result)
		}
		return result[start:end], nil
	}

	return result, nil
}

// Count returns the total number of items matching the filter
func (s *InMemoryStore[T]) Count(ctx context.Context, filter interface{}, filterFn FilterFunc[T]) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, item := range s.items {
		if filterFn == nil || filterFn(ctx, item, filter) {
			count++
		}
	}

	return count, nil
}

// Update updates an existing item
func (s *InMemoryStore[T]) Update(ctx context.Context, id string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, exists := s.items[id]
	if !exists {
		return ierr.NewErrorf("item %s not found", id).
			Mark(ierr.ErrNotFound)
	}

	s.items[id] = item
	s.journal(ctx, id, previous, true)
	return nil
}

// Mutate applies fn to the stored item under the store lock. fn returns the
// replacement, or an error to leave the item untouched.
func (s *InMemoryStore[T]) Mutate(ctx context.Context, id string, fn func(current T, exists bool) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.items[id]
	next, err := fn(current, exists)
	if err != nil {
		var zero T
		return zero, err
	}
	s.items[id] = next
	s.journal(ctx, id, current, exists)
	return next, nil
}

// Clear removes all items from the store
func (s *InMemoryStore[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T)
}

// journal records how to restore id if the surrounding transaction rolls back
func (s *InMemoryStore[T]) journal(ctx context.Context, id string, previous T, existed bool) {
	tx := txFromContext(ctx)
	if tx == nil {
		return
	}
	tx.record(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existed {
			s.items[id] = previous
		} else {
			delete(s.items, id)
		}
	})
}
