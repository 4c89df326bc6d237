package invoice

import (
	"context"
	"fmt"
	"time"

	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/types"
)

// MinCounterYear is the first year an invoice number may be allocated for
const MinCounterYear = 2000

// Counter is the per-month invoice number sequence
type Counter struct {
	// ID is the YYYY-MM bucket key
	ID                string    `db:"id" json:"id"`
	Year              int       `db:"year" json:"year"`
	Month             int       `db:"month" json:"month"`
	Counter           int64     `db:"counter" json:"counter"`
	LastInvoiceNumber string    `db:"last_invoice_number" json:"last_invoice_number"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// CounterID returns the bucket key of a year and month
func CounterID(year, month int) string {
	return types.MonthKey(year, time.Month(month))
}

// FormatInvoiceNumber renders INV-{YYYY}-{MM}-{NNNN}. Counters past 9999
// keep all their digits.
func FormatInvoiceNumber(year, month int, counter int64) string {
	return fmt.Sprintf("INV-%04d-%02d-%04d", year, month, counter)
}

// ValidateBucket rejects a year or month no invoice can be numbered in
func ValidateBucket(year, month int) error {
	if month < 1 || month > 12 || year < MinCounterYear {
		return ierr.WithError(ErrInvalidBucket).
			WithHintf("invoice numbers need a month between 1 and 12 and a year from %d, got %d-%d", MinCounterYear, year, month).
			WithReportableDetails(map[string]any{
				"year":  year,
				"month": month,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CounterRepository persists the per-month invoice counters
type CounterRepository interface {
	// Increment atomically adds one to the counter of the bucket, creating it
	// with value 1 on first use, and returns the new value
	Increment(ctx context.Context, year, month int) (int64, error)

	// SetLastInvoiceNumber records the number most recently issued from the bucket
	SetLastInvoiceNumber(ctx context.Context, year, month int, number string) error

	// Get returns the counter of the bucket
	Get(ctx context.Context, year, month int) (*Counter, error)
}
