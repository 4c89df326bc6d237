package client

import (
	"context"

	"github.com/flexprice/retainer/internal/types"
)

// Repository defines the interface for client persistence operations
type Repository interface {
	// Create persists a new client
	Create(ctx context.Context, client *Client) error

	// Get retrieves a client by ID, validating the stored documents
	Get(ctx context.Context, id string) (*Client, error)

	// Update writes client if its stored version still equals client.Version,
	// then bumps client.Version. A stale version is ierr.ErrVersionConflict.
	Update(ctx context.Context, client *Client) error

	// List retrieves clients based on filter criteria
	List(ctx context.Context, filter *types.ClientFilter) ([]*Client, error)

	// Count returns the total count of clients based on filter criteria
	Count(ctx context.Context, filter *types.ClientFilter) (int, error)
}
