package invoice

import (
	"context"

	"github.com/flexprice/retainer/internal/types"
)

// Repository defines the interface for invoice persistence operations
type Repository interface {
	// Create persists a new invoice. A second live invoice with the same
	// idempotency key or number is ierr.ErrAlreadyExists.
	Create(ctx context.Context, inv *Invoice) error

	// Get retrieves an invoice by ID, validating its stored line items
	Get(ctx context.Context, id string) (*Invoice, error)

	// GetByIdempotencyKey returns the non cancelled invoice holding key
	GetByIdempotencyKey(ctx context.Context, key string) (*Invoice, error)

	// Update writes inv if its stored version still equals inv.Version,
	// then bumps inv.Version. A stale version is ierr.ErrVersionConflict.
	Update(ctx context.Context, inv *Invoice) error

	// Delete soft deletes a draft invoice
	Delete(ctx context.Context, id string) error

	// List retrieves invoices based on filter criteria
	List(ctx context.Context, filter *types.InvoiceFilter) ([]*Invoice, error)

	// Count returns the total count of invoices based on filter criteria
	Count(ctx context.Context, filter *types.InvoiceFilter) (int, error)
}
