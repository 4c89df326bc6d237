package testutil

import (
	"context"
	"strings"
	"time"

	"github.com/flexprice/retainer/internal/domain/client"
	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/types"
	"github.com/samber/lo"
)

// InMemoryClientStore implements client.Repository
type InMemoryClientStore struct {
	*InMemoryStore[*client.Client]
}

var _ client.Repository = (*InMemoryClientStore)(nil)

// NewInMemoryClientStore creates a new in-memory client store
func NewInMemoryClientStore() *InMemoryClientStore {
	return &InMemoryClientStore{
		InMemoryStore: NewInMemoryStore[*client.Client](),
	}
}

func (s *InMemoryClientStore) Create(ctx context.Context, c *client.Client) error {
	if c == nil {
		return ierr.NewError("client cannot be nil").Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, c.ID, c.Copy())
}

func (s *InMemoryClientStore) Get(ctx context.Context, id string) (*client.Client, error) {
	c, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || c.Status != types.StatusPublished {
		return nil, ierr.WithError(client.ErrClientNotFound).
			WithHintf("client %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	if err := c.CheckIntegrity(); err != nil {
		return nil, err
	}
	return c.Copy(), nil
}

// Update mirrors the version conditional update of the postgres repository
func (s *InMemoryClientStore) Update(ctx context.Context, c *client.Client) error {
	now := time.Now().UTC()
	_, err := s.Mutate(ctx, c.ID, func(current *client.Client, exists bool) (*client.Client, error) {
		if !exists || current.Version != c.Version {
			return nil, ierr.NewErrorf("client %s was modified concurrently", c.ID).
				Mark(ierr.ErrVersionConflict)
		}
		next := c.Copy()
		next.Version++
		next.Touch(ctx, now)
		return next, nil
	})
	if err != nil {
		return err
	}
	c.Version++
	c.Touch(ctx, now)
	return nil
}

func (s *InMemoryClientStore) List(ctx context.Context, filter *types.ClientFilter) ([]*client.Client, error) {
	if filter == nil {
		filter = types.NewClientFilter()
	}
	items, err := s.InMemoryStore.List(ctx, filter, clientFilterFn, clientSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(c *client.Client, _ int) *client.Client { return c.Copy() }), nil
}

func (s *InMemoryClientStore) Count(ctx context.Context, filter *types.ClientFilter) (int, error) {
	if filter == nil {
		filter = types.NewClientFilter()
	}
	return s.InMemoryStore.Count(ctx, filter, clientFilterFn)
}

func clientFilterFn(ctx context.Context, c *client.Client, filter interface{}) bool {
	f, ok := filter.(*types.ClientFilter)
	if !ok {
		return true
	}
	if string(c.Status) != f.GetStatus() {
		return false
	}
	if len(f.ClientIDs) > 0 && !lo.Contains(f.ClientIDs, c.ID) {
		return false
	}
	if f.Email != "" && c.Email != f.Email {
		return false
	}
	if f.Name != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(f.Name)) {
		return false
	}
	return true
}

func clientSortFn(i, j *client.Client) bool {
	if i.CreatedAt.Equal(j.CreatedAt) {
		return i.ID > j.ID
	}
	return i.CreatedAt.After(j.CreatedAt)
}
