package testutil

import (
	"context"
	"time"

	"github.com/flexprice/retainer/internal/domain/invoice"
	ierr "github.com/flexprice/retainer/internal/errors"
)

// InMemoryCounterStore implements invoice.CounterRepository
type InMemoryCounterStore struct {
	*InMemoryStore[*invoice.Counter]
}

var _ invoice.CounterRepository = (*InMemoryCounterStore)(nil)

// NewInMemoryCounterStore creates a new in-memory invoice counter store
func NewInMemoryCounterStore() *InMemoryCounterStore {
	return &InMemoryCounterStore{
		InMemoryStore: NewInMemoryStore[*invoice.Counter](),
	}
}

func (s *InMemoryCounterStore) Increment(ctx context.Context, year, month int) (int64, error) {
	id := invoice.CounterID(year, month)
	next, err := s.Mutate(ctx, id, func(current *invoice.Counter, exists bool) (*invoice.Counter, error) {
		if !exists {
			return &invoice.Counter{ID: id, Year: year, Month: month, Counter: 1, UpdatedAt: time.Now().UTC()}, nil
		}
		c := *current
		c.Counter++
		c.UpdatedAt = time.Now().UTC()
		return &c, nil
	})
	if err != nil {
		return 0, err
	}
	return next.Counter, nil
}

func (s *InMemoryCounterStore) SetLastInvoiceNumber(ctx context.Context, year, month int, number string) error {
	id := invoice.CounterID(year, month)
	_, err := s.Mutate(ctx, id, func(current *invoice.Counter, exists bool) (*invoice.Counter, error) {
		if !exists {
			return nil, ierr.NewErrorf("invoice counter %s not found", id).Mark(ierr.ErrNotFound)
		}
		c := *current
		c.LastInvoiceNumber = number
		c.UpdatedAt = time.Now().UTC()
		return &c, nil
	})
	return err
}

func (s *InMemoryCounterStore) Get(ctx context.Context, year, month int) (*invoice.Counter, error) {
	c, err := s.InMemoryStore.Get(ctx, invoice.CounterID(year, month))
	if err != nil {
		return nil, err
	}
	out := *c
	return &out, nil
}
