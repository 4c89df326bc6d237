package postgres

import (
	"context"
	"time"

	"github.com/flexprice/retainer/internal/cache"
	"github.com/flexprice/retainer/internal/domain/invoice"
	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/logger"
	"github.com/flexprice/retainer/internal/postgres"
	"github.com/flexprice/retainer/internal/types"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const invoiceColumns = `id, invoice_number, client_id, line_items, billing_period_start, billing_period_end,
	subtotal, tax_rate, tax_amount, total_amount, invoice_status, paid_amount, payment_difference,
	refunded_amount, issue_date, due_date, sent_at, paid_at, cancelled_at, idempotency_key, version,
	status, created_at, updated_at, created_by, updated_by`

type invoiceRow struct {
	ID                 string              `db:"id"`
	InvoiceNumber      string              `db:"invoice_number"`
	ClientID           string              `db:"client_id"`
	LineItems          []byte              `db:"line_items"`
	BillingPeriodStart *time.Time          `db:"billing_period_start"`
	BillingPeriodEnd   *time.Time          `db:"billing_period_end"`
	Subtotal           int64               `db:"subtotal"`
	TaxRate            decimal.Decimal     `db:"tax_rate"`
	TaxAmount          int64               `db:"tax_amount"`
	TotalAmount        int64               `db:"total_amount"`
	InvoiceStatus      types.InvoiceStatus `db:"invoice_status"`
	PaidAmount         *int64              `db:"paid_amount"`
	PaymentDifference  *int64              `db:"payment_difference"`
	RefundedAmount     int64               `db:"refunded_amount"`
	IssueDate          time.Time           `db:"issue_date"`
	DueDate            time.Time           `db:"due_date"`
	SentAt             *time.Time          `db:"sent_at"`
	PaidAt             *time.Time          `db:"paid_at"`
	CancelledAt        *time.Time          `db:"cancelled_at"`
	IdempotencyKey     string              `db:"idempotency_key"`
	Version            int64               `db:"version"`
	types.BaseModel
}

type invoiceRepository struct {
	client postgres.IClient
	logger *logger.Logger
	cache  cache.Cache
	loc    *time.Location
}

// NewInvoiceRepository creates an invoice repository. Invoices in a terminal
// status read outside a transaction are kept in c when it is not nil.
func NewInvoiceRepository(db postgres.IClient, logger *logger.Logger, c cache.Cache, loc *time.Location) invoice.Repository {
	if loc == nil {
		loc = time.UTC
	}
	return &invoiceRepository{client: db, logger: logger, cache: c, loc: loc}
}

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	span := StartRepositorySpan(ctx, "invoice", "create", map[string]interface{}{
		"invoice_id": inv.ID,
		"client_id":  inv.ClientID,
	})
	defer FinishSpan(span)

	items, err := encodeDocument(inv.LineItems, "invoice", "line_items")
	if err != nil {
		return err
	}

	query := `
	INSERT INTO invoices (
		id, invoice_number, client_id, line_items, billing_period_start, billing_period_end,
		subtotal, tax_rate, tax_amount, total_amount, invoice_status, paid_amount, payment_difference,
		refunded_amount, issue_date, due_date, sent_at, paid_at, cancelled_at, idempotency_key, version,
		status, created_at, updated_at, created_by, updated_by
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26
	)`

	r.logger.Debugw("creating invoice",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"client_id", inv.ClientID,
		"line_items_count", len(inv.LineItems))

	_, err = r.client.Querier(ctx).ExecContext(ctx, query,
		inv.ID,
		inv.InvoiceNumber,
		inv.ClientID,
		items,
		dateArg(inv.BillingPeriodStart),
		dateArg(inv.BillingPeriodEnd),
		inv.Subtotal,
		inv.TaxRate,
		inv.TaxAmount,
		inv.TotalAmount,
		inv.InvoiceStatus,
		inv.PaidAmount,
		inv.PaymentDifference,
		inv.RefundedAmount,
		dateArg(&inv.IssueDate),
		dateArg(&inv.DueDate),
		inv.SentAt,
		inv.PaidAt,
		inv.CancelledAt,
		inv.IdempotencyKey,
		inv.Version,
		inv.Status,
		inv.CreatedAt,
		inv.UpdatedAt,
		inv.CreatedBy,
		inv.UpdatedBy,
	)
	if err != nil {
		SetSpanError(span, err)
		mapped := postgres.MapError(err, "invoice")
		if ierr.IsAlreadyExists(mapped) {
			return ierr.WithError(mapped).
				WithHint("Invoice with same invoice number or idempotency key already exists").
				WithReportableDetails(map[string]any{
					"invoice_id":      inv.ID,
					"invoice_number":  inv.InvoiceNumber,
					"idempotency_key": inv.IdempotencyKey,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return mapped
	}
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	span := StartRepositorySpan(ctx, "invoice", "get", map[string]interface{}{
		"invoice_id": id,
	})
	defer FinishSpan(span)

	if cached := r.getCache(ctx, id); cached != nil {
		return cached, nil
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 AND status = $2`
	inv, err := r.getOne(ctx, query, id, types.StatusPublished)
	if err != nil {
		SetSpanError(span, err)
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(invoice.ErrInvoiceNotFound).
				WithHintf("invoice %s not found", id).
				WithReportableDetails(map[string]any{"invoice_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, err
	}

	r.setCache(ctx, inv)
	return inv, nil
}

func (r *invoiceRepository) GetByIdempotencyKey(ctx context.Context, key string) (*invoice.Invoice, error) {
	span := StartRepositorySpan(ctx, "invoice", "get_by_idempotency_key", map[string]interface{}{
		"idempotency_key": key,
	})
	defer FinishSpan(span)

	query := `SELECT ` + invoiceColumns + ` FROM invoices
	WHERE idempotency_key = $1 AND invoice_status <> $2 AND status = $3`
	inv, err := r.getOne(ctx, query, key, types.InvoiceStatusCancelled, types.StatusPublished)
	if err != nil {
		SetSpanError(span, err)
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(invoice.ErrInvoiceNotFound).
				WithHintf("no invoice with idempotency key %s", key).
				Mark(ierr.ErrNotFound)
		}
		return nil, err
	}
	return inv, nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	span := StartRepositorySpan(ctx, "invoice", "update", map[string]interface{}{
		"invoice_id": inv.ID,
		"version":    inv.Version,
	})
	defer FinishSpan(span)

	items, err := encodeDocument(inv.LineItems, "invoice", "line_items")
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	updatedBy := types.GetUserID(ctx)

	query := `
	UPDATE invoices SET
		line_items = $1,
		billing_period_start = $2,
		billing_period_end = $3,
		subtotal = $4,
		tax_rate = $5,
		tax_amount = $6,
		total_amount = $7,
		invoice_status = $8,
		paid_amount = $9,
		payment_difference = $10,
		refunded_amount = $11,
		due_date = $12,
		sent_at = $13,
		paid_at = $14,
		cancelled_at = $15,
		version = version + 1,
		updated_at = $16,
		updated_by = $17
	WHERE id = $18 AND version = $19 AND status = $20`

	r.logger.Debugw("updating invoice",
		"invoice_id", inv.ID,
		"invoice_status", inv.InvoiceStatus,
		"version", inv.Version)

	result, err := r.client.Querier(ctx).ExecContext(ctx, query,
		items,
		dateArg(inv.BillingPeriodStart),
		dateArg(inv.BillingPeriodEnd),
		inv.Subtotal,
		inv.TaxRate,
		inv.TaxAmount,
		inv.TotalAmount,
		inv.InvoiceStatus,
		inv.PaidAmount,
		inv.PaymentDifference,
		inv.RefundedAmount,
		dateArg(&inv.DueDate),
		inv.SentAt,
		inv.PaidAt,
		inv.CancelledAt,
		now,
		updatedBy,
		inv.ID,
		inv.Version,
		types.StatusPublished,
	)
	if err != nil {
		SetSpanError(span, err)
		return postgres.MapError(err, "invoice")
	}
	if err := checkVersionedUpdate(result, "invoice", inv.ID, inv.Version); err != nil {
		SetSpanError(span, err)
		return err
	}

	r.deleteCache(ctx, inv.ID)
	inv.Version++
	inv.UpdatedAt = now
	inv.UpdatedBy = updatedBy
	return nil
}

func (r *invoiceRepository) Delete(ctx context.Context, id string) error {
	span := StartRepositorySpan(ctx, "invoice", "delete", map[string]interface{}{
		"invoice_id": id,
	})
	defer FinishSpan(span)

	query := `
	UPDATE invoices SET
		status = $1,
		version = version + 1,
		updated_at = $2,
		updated_by = $3
	WHERE id = $4 AND invoice_status = $5 AND status = $6`

	r.logger.Debugw("deleting invoice", "invoice_id", id)

	result, err := r.client.Querier(ctx).ExecContext(ctx, query,
		types.StatusDeleted,
		time.Now().UTC(),
		types.GetUserID(ctx),
		id,
		types.InvoiceStatusDraft,
		types.StatusPublished,
	)
	if err != nil {
		SetSpanError(span, err)
		return postgres.MapError(err, "invoice")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return postgres.MapError(err, "invoice")
	}
	if rows == 0 {
		return ierr.WithError(invoice.ErrInvoiceNotFound).
			WithHintf("no draft invoice %s to delete", id).
			Mark(ierr.ErrNotFound)
	}
	r.deleteCache(ctx, id)
	return nil
}

func (r *invoiceRepository) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}

	span := StartRepositorySpan(ctx, "invoice", "list", map[string]interface{}{
		"client_id": filter.ClientID,
		"limit":     filter.GetLimit(),
		"offset":    filter.GetOffset(),
	})
	defer FinishSpan(span)

	w := r.where(filter)
	query := `SELECT ` + invoiceColumns + ` FROM invoices` + w.sql() +
		pageClause(filter, []string{"created_at", "updated_at", "issue_date", "due_date", "invoice_number"}, w)

	var rows []invoiceRow
	if err := r.client.Querier(ctx).SelectContext(ctx, &rows, query, w.args...); err != nil {
		SetSpanError(span, err)
		return nil, postgres.MapError(err, "invoice")
	}

	invoices := make([]*invoice.Invoice, 0, len(rows))
	for i := range rows {
		inv, err := r.toDomain(&rows[i])
		if err != nil {
			SetSpanError(span, err)
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

func (r *invoiceRepository) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}

	span := StartRepositorySpan(ctx, "invoice", "count", nil)
	defer FinishSpan(span)

	w := r.where(filter)
	var count int
	if err := r.client.Querier(ctx).GetContext(ctx, &count, `SELECT COUNT(*) FROM invoices`+w.sql(), w.args...); err != nil {
		SetSpanError(span, err)
		return 0, postgres.MapError(err, "invoice")
	}
	return count, nil
}

func (r *invoiceRepository) where(filter *types.InvoiceFilter) *whereBuilder {
	w := &whereBuilder{}
	w.add("status = $%d", filter.GetStatus())
	if len(filter.InvoiceIDs) > 0 {
		w.add("id = ANY($%d)", pq.Array(filter.InvoiceIDs))
	}
	if filter.ClientID != "" {
		w.add("client_id = $%d", filter.ClientID)
	}
	if len(filter.InvoiceStatus) > 0 {
		statuses := lo.Map(filter.InvoiceStatus, func(s types.InvoiceStatus, _ int) string { return string(s) })
		w.add("invoice_status = ANY($%d)", pq.Array(statuses))
	}
	if filter.TimeRangeFilter != nil {
		if filter.StartTime != nil {
			w.add("issue_date >= $%d", dateArg(filter.StartTime))
		}
		if filter.EndTime != nil {
			w.add("issue_date <= $%d", dateArg(filter.EndTime))
		}
	}
	if filter.DueBefore != nil {
		w.add("due_date < $%d", *filter.DueBefore)
	}
	return w
}

func (r *invoiceRepository) getOne(ctx context.Context, query string, args ...interface{}) (*invoice.Invoice, error) {
	var row invoiceRow
	if err := r.client.Querier(ctx).GetContext(ctx, &row, query, args...); err != nil {
		return nil, postgres.MapError(err, "invoice")
	}
	return r.toDomain(&row)
}

func (r *invoiceRepository) toDomain(row *invoiceRow) (*invoice.Invoice, error) {
	inv := &invoice.Invoice{
		ID:                 row.ID,
		InvoiceNumber:      row.InvoiceNumber,
		ClientID:           row.ClientID,
		BillingPeriodStart: row.BillingPeriodStart,
		BillingPeriodEnd:   row.BillingPeriodEnd,
		Subtotal:           row.Subtotal,
		TaxRate:            row.TaxRate,
		TaxAmount:          row.TaxAmount,
		TotalAmount:        row.TotalAmount,
		InvoiceStatus:      row.InvoiceStatus,
		PaidAmount:         row.PaidAmount,
		PaymentDifference:  row.PaymentDifference,
		RefundedAmount:     row.RefundedAmount,
		IssueDate:          row.IssueDate,
		DueDate:            row.DueDate,
		SentAt:             row.SentAt,
		PaidAt:             row.PaidAt,
		CancelledAt:        row.CancelledAt,
		IdempotencyKey:     row.IdempotencyKey,
		Version:            row.Version,
		BaseModel:          row.BaseModel,
	}
	if err := decodeDocument(row.LineItems, &inv.LineItems, "invoice", row.ID, "line_items"); err != nil {
		return nil, err
	}
	inv.NormalizeDates(r.loc)
	if err := inv.CheckIntegrity(); err != nil {
		r.logger.Errorw("stored invoice failed integrity check", "invoice_id", row.ID, "error", err)
		return nil, err
	}
	return inv, nil
}

func (r *invoiceRepository) getCache(ctx context.Context, id string) *invoice.Invoice {
	if r.cache == nil || r.client.TxFromContext(ctx) != nil {
		return nil
	}
	if value, found := r.cache.Get(ctx, cache.GenerateKey(cache.PrefixInvoice, id)); found {
		if inv, ok := value.(*invoice.Invoice); ok {
			return inv.Copy()
		}
	}
	return nil
}

// setCache keeps invoices that can no longer change. Reads inside a
// transaction may see writes that are later rolled back and are never cached.
func (r *invoiceRepository) setCache(ctx context.Context, inv *invoice.Invoice) {
	if r.cache == nil || r.client.TxFromContext(ctx) != nil || !inv.InvoiceStatus.IsTerminal() {
		return
	}
	r.cache.Set(ctx, cache.GenerateKey(cache.PrefixInvoice, inv.ID), inv.Copy(), 0)
}

func (r *invoiceRepository) deleteCache(ctx context.Context, id string) {
	if r.cache == nil {
		return
	}
	r.cache.Delete(ctx, cache.GenerateKey(cache.PrefixInvoice, id))
}
