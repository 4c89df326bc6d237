package postgres

import (
	"context"
	"time"

	"github.com/flexprice/retainer/internal/domain/invoice"
	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/logger"
	"github.com/flexprice/retainer/internal/postgres"
)

type counterRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewCounterRepository creates the invoice counter repository
func NewCounterRepository(db postgres.IClient, logger *logger.Logger) invoice.CounterRepository {
	return &counterRepository{client: db, logger: logger}
}

func (r *counterRepository) Increment(ctx context.Context, year, month int) (int64, error) {
	id := invoice.CounterID(year, month)
	span := StartRepositorySpan(ctx, "invoice_counter", "increment", map[string]interface{}{
		"counter_id": id,
	})
	defer FinishSpan(span)

	query := `
	INSERT INTO invoice_counters (id, year, month, counter, last_invoice_number, updated_at)
	VALUES ($1, $2, $3, 1, '', $4)
	ON CONFLICT (id) DO UPDATE SET
		counter = invoice_counters.counter + 1,
		updated_at = EXCLUDED.updated_at
	RETURNING counter`

	var counter int64
	if err := r.client.Querier(ctx).QueryRowxContext(ctx, query, id, year, month, time.Now().UTC()).Scan(&counter); err != nil {
		SetSpanError(span, err)
		return 0, postgres.MapError(err, "invoice counter")
	}

	r.logger.Debugw("incremented invoice counter", "counter_id", id, "counter", counter)
	return counter, nil
}

func (r *counterRepository) SetLastInvoiceNumber(ctx context.Context, year, month int, number string) error {
	id := invoice.CounterID(year, month)
	span := StartRepositorySpan(ctx, "invoice_counter", "set_last_invoice_number", map[string]interface{}{
		"counter_id":     id,
		"invoice_number": number,
	})
	defer FinishSpan(span)

	query := `UPDATE invoice_counters SET last_invoice_number = $1, updated_at = $2 WHERE id = $3`
	result, err := r.client.Querier(ctx).ExecContext(ctx, query, number, time.Now().UTC(), id)
	if err != nil {
		SetSpanError(span, err)
		return postgres.MapError(err, "invoice counter")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return postgres.MapError(err, "invoice counter")
	}
	if rows == 0 {
		return ierr.NewErrorf("invoice counter %s not found", id).
			WithHintf("no invoice number has been allocated for %s", id).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *counterRepository) Get(ctx context.Context, year, month int) (*invoice.Counter, error) {
	id := invoice.CounterID(year, month)
	span := StartRepositorySpan(ctx, "invoice_counter", "get", map[string]interface{}{
		"counter_id": id,
	})
	defer FinishSpan(span)

	query := `SELECT id, year, month, counter, last_invoice_number, updated_at FROM invoice_counters WHERE id = $1`

	var c invoice.Counter
	if err := r.client.Querier(ctx).GetContext(ctx, &c, query, id); err != nil {
		SetSpanError(span, err)
		return nil, postgres.MapError(err, "invoice counter")
	}
	return &c, nil
}
