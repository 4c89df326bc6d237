package testutil

import (
	"context"
	"time"

	"github.com/flexprice/retainer/internal/domain/invoice"
	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/types"
	"github.com/samber/lo"
)

// InMemoryInvoiceStore implements invoice.Repository
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]
}

var _ invoice.Repository = (*InMemoryInvoiceStore)(nil)

// NewInMemoryInvoiceStore creates a new in-memory invoice store
func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		InMemoryStore: NewInMemoryStore[*invoice.Invoice](),
	}
}

func live(inv *invoice.Invoice) bool {
	return inv.Status == types.StatusPublished && inv.InvoiceStatus != types.InvoiceStatusCancelled
}

// Create enforces the unique invoice number and live idempotency key indexes
func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return ierr.NewError("invoice cannot be nil").Mark(ierr.ErrValidation)
	}
	_, err := s.Mutate(ctx, inv.ID, func(_ *invoice.Invoice, exists bool) (*invoice.Invoice, error) {
		if exists {
			return nil, ierr.NewErrorf("invoice %s already exists", inv.ID).Mark(ierr.ErrAlreadyExists)
		}
		for _, other := range s.items {
			if other.InvoiceNumber == inv.InvoiceNumber {
				return nil, ierr.NewErrorf("invoice number %s already exists", inv.InvoiceNumber).
					WithHint("Invoice with same invoice number or idempotency key already exists").
					Mark(ierr.ErrAlreadyExists)
			}
			if live(other) && other.IdempotencyKey == inv.IdempotencyKey {
				return nil, ierr.NewErrorf("idempotency key %s already used", inv.IdempotencyKey).
					WithHint("Invoice with same invoice number or idempotency key already exists").
					Mark(ierr.ErrAlreadyExists)
			}
		}
		return inv.Copy(), nil
	})
	return err
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || inv.Status != types.StatusPublished {
		return nil, ierr.WithError(invoice.ErrInvoiceNotFound).
			WithHintf("invoice %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	return inv.Copy(), nil
}

func (s *InMemoryInvoiceStore) GetByIdempotencyKey(ctx context.Context, key string) (*invoice.Invoice, error) {
	inv, ok := s.Find(func(inv *invoice.Invoice) bool {
		return live(inv) && inv.IdempotencyKey == key
	})
	if !ok {
		return nil, ierr.WithError(invoice.ErrInvoiceNotFound).
			WithHintf("no invoice with idempotency key %s", key).
			Mark(ierr.ErrNotFound)
	}
	return inv.Copy(), nil
}

// Update mirrors the version conditional update of the postgres repository
func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	now := time.Now().UTC()
	_, err := s.Mutate(ctx, inv.ID, func(current *invoice.Invoice, exists bool) (*invoice.Invoice, error) {
		if !exists || current.Version != inv.Version || current.Status != types.StatusPublished {
			return nil, ierr.NewErrorf("invoice %s was modified concurrently", inv.ID).
				Mark(ierr.ErrVersionConflict)
		}
		next := inv.Copy()
		next.Version++
		next.Touch(ctx, now)
		return next, nil
	})
	if err != nil {
		return err
	}
	inv.Version++
	inv.Touch(ctx, now)
	return nil
}

func (s *InMemoryInvoiceStore) Delete(ctx context.Context, id string) error {
	_, err := s.Mutate(ctx, id, func(current *invoice.Invoice, exists bool) (*invoice.Invoice, error) {
		if !exists || current.Status != types.StatusPublished || current.InvoiceStatus != types.InvoiceStatusDraft {
			return nil, ierr.WithError(invoice.ErrInvoiceNotFound).
				WithHintf("no draft invoice %s to delete", id).
				Mark(ierr.ErrNotFound)
		}
		next := current.Copy()
		next.Status = types.StatusDeleted
		next.Version++
		next.Touch(ctx, time.Now().UTC())
		return next, nil
	})
	return err
}

func (s *InMemoryInvoiceStore) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}
	items, err := s.InMemoryStore.List(ctx, filter, invoiceFilterFn, invoiceSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(inv *invoice.Invoice, _ int) *invoice.Invoice { return inv.Copy() }), nil
}

func (s *InMemoryInvoiceStore) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}
	return s.InMemoryStore.Count(ctx, filter, invoiceFilterFn)
}

func invoiceFilterFn(ctx context.Context, inv *invoice.Invoice, filter interface{}) bool {
	f, ok := filter.(*types.InvoiceFilter)
	if !ok {
		return true
	}
	if string(inv.Status) != f.GetStatus() {
		return false
	}
	if len(f.InvoiceIDs) > 0 && !lo.Contains(f.InvoiceIDs, inv.ID) {
		return false
	}
	if f.ClientID != "" && inv.ClientID != f.ClientID {
		return false
	}
	if len(f.InvoiceStatus) > 0 && !lo.Contains(f.InvoiceStatus, inv.InvoiceStatus) {
		return false
	}
	if f.TimeRangeFilter != nil && !f.TimeRangeFilter.Contains(inv.IssueDate) {
		return false
	}
	if f.DueBefore != nil && types.FormatDate(inv.DueDate) >= *f.DueBefore {
		return false
	}
	return true
}

func invoiceSortFn(i, j *invoice.Invoice) bool {
	if i.CreatedAt.Equal(j.CreatedAt) {
		return i.ID > j.ID
	}
	return i.CreatedAt.After(j.CreatedAt)
}
