package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/flexprice/retainer/internal/cache"
	"github.com/flexprice/retainer/internal/config"
	"github.com/flexprice/retainer/internal/domain/invoice"
	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/logger"
	"github.com/flexprice/retainer/internal/types"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var invoiceColumnNames = []string{
	"id", "invoice_number", "client_id", "line_items", "billing_period_start", "billing_period_end",
	"subtotal", "tax_rate", "tax_amount", "total_amount", "invoice_status", "paid_amount", "payment_difference",
	"refunded_amount", "issue_date", "due_date", "sent_at", "paid_at", "cancelled_at", "idempotency_key", "version",
	"status", "created_at", "updated_at", "created_by", "updated_by",
}

const storedLineItems = `[{"id":"inv_line_1","kind":"recurring","description":"Monthly retainer(1/1〜1/31)",
	"quantity":1,"unit_price":50000,"amount":50000,
	"period_start":"2025-01-01T00:00:00+09:00","period_end":"2025-01-31T00:00:00+09:00"}]`

func invoiceRowValues(status string, total int64, lineItems string) []driver.Value {
	utc := func(m time.Month, d int) time.Time { return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC) }
	return []driver.Value{
		"inv_1", "INV-2025-02-0001", "client_1", []byte(lineItems), utc(1, 1), utc(1, 31),
		int64(50000), "0.1", int64(5000), total, status, nil, nil,
		int64(0), utc(2, 1), utc(3, 3), nil, nil, nil, "client_invoice-abc", int64(2),
		"published", utc(2, 1), utc(2, 1), "op", "op",
	}
}

func newCache(t *testing.T) cache.Cache {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.Cache.Enabled = true
	return cache.NewInMemoryCache(cfg, logger.NewNopLogger())
}

func TestInvoiceRepositoryGet(t *testing.T) {
	db, mock := newMockClient(t)
	repo := NewInvoiceRepository(db, logger.NewNopLogger(), nil, jst)

	mock.ExpectQuery("SELECT (.+) FROM invoices WHERE id = \\$1").
		WithArgs("inv_1", "published").
		WillReturnRows(sqlmock.NewRows(invoiceColumnNames).AddRow(invoiceRowValues("sent", 55000, storedLineItems)...))

	inv, err := repo.Get(context.Background(), "inv_1")
	require.NoError(t, err)

	assert.Equal(t, "INV-2025-02-0001", inv.InvoiceNumber)
	assert.Equal(t, types.InvoiceStatusSent, inv.InvoiceStatus)
	assert.True(t, decimal.RequireFromString("0.10").Equal(inv.TaxRate))
	assert.Equal(t, types.NewDate(2025, 1, 31, jst), *inv.BillingPeriodEnd)
	assert.Equal(t, types.NewDate(2025, 2, 1, jst), inv.IssueDate)
	require.Len(t, inv.LineItems, 1)
	assert.Equal(t, types.LineItemKindRecurring, inv.LineItems[0].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepositoryGetRejectsInconsistentTotals(t *testing.T) {
	db, mock := newMockClient(t)
	repo := NewInvoiceRepository(db, logger.NewNopLogger(), nil, jst)

	mock.ExpectQuery("SELECT (.+) FROM invoices").
		WillReturnRows(sqlmock.NewRows(invoiceColumnNames).AddRow(invoiceRowValues("sent", 99999, storedLineItems)...))

	_, err := repo.Get(context.Background(), "inv_1")
	assert.True(t, ierr.IsDataIntegrity(err))
}

func TestInvoiceRepositoryGetNotFound(t *testing.T) {
	db, mock := newMockClient(t)
	repo := NewInvoiceRepository(db, logger.NewNopLogger(), nil, jst)

	mock.ExpectQuery("SELECT (.+) FROM invoices").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "inv_missing")
	assert.True(t, ierr.IsNotFound(err))
	assert.True(t, errors.Is(err, invoice.ErrInvoiceNotFound))
}

func TestInvoiceRepositoryCachesTerminalInvoices(t *testing.T) {
	db, mock := newMockClient(t)
	repo := NewInvoiceRepository(db, logger.NewNopLogger(), newCache(t), jst)

	mock.ExpectQuery("SELECT (.+) FROM invoices").
		WillReturnRows(sqlmock.NewRows(invoiceColumnNames).AddRow(invoiceRowValues("refunded", 55000, storedLineItems)...))

	first, err := repo.Get(context.Background(), "inv_1")
	require.NoError(t, err)
	second, err := repo.Get(context.Background(), "inv_1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.NotSame(t, first, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepositoryDoesNotCacheOpenInvoices(t *testing.T) {
	db, mock := newMockClient(t)
	repo := NewInvoiceRepository(db, logger.NewNopLogger(), newCache(t), jst)

	for i := 0; i < 2; i++ {
		mock.ExpectQuery("SELECT (.+) FROM invoices").
			WillReturnRows(sqlmock.NewRows(invoiceColumnNames).AddRow(invoiceRowValues("paid", 55000, storedLineItems)...))
	}

	_, err := repo.Get(context.Background(), "inv_1")
	require.NoError(t, err)
	_, err = repo.Get(context.Background(), "inv_1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepositoryCreateDuplicate(t *testing.T) {
	db, mock := newMockClient(t)
	repo := NewInvoiceRepository(db, logger.NewNopLogger(), nil, jst)

	inv, err := invoice.New(context.Background(), "client_1",
		[]*invoice.LineItem{invoice.NewLineItem(types.LineItemKindManual, "fee", 1, 1000)},
		decimal.Zero, types.NewDate(2025, 2, 1, jst), types.NewDate(2025, 3, 3, jst))
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO invoices").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "idx_invoices_idempotency_key"})

	err = repo.Create(context.Background(), inv)
	assert.True(t, ierr.IsAlreadyExists(err))
}

func TestInvoiceRepositoryCreatePassesDates(t *testing.T) {
	db, mock := newMockClient(t)
	repo := NewInvoiceRepository(db, logger.NewNopLogger(), nil, jst)

	inv, err := invoice.New(context.Background(), "client_1",
		[]*invoice.LineItem{invoice.NewLineItem(types.LineItemKindManual, "fee", 1, 1000)},
		decimal.Zero, types.NewDate(2025, 2, 1, jst), types.NewDate(2025, 3, 3, jst))
	require.NoError(t, err)
	inv.InvoiceNumber = "INV-2025-02-0001"

	args := make([]driver.Value, len(invoiceColumnNames))
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	args[14] = "2025-02-01"
	args[15] = "2025-03-03"
	mock.ExpectExec("INSERT INTO invoices").WithArgs(args...).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), inv))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepositoryUpdateStaleVersion(t *testing.T) {
	db, mock := newMockClient(t)
	repo := NewInvoiceRepository(db, logger.NewNopLogger(), nil, jst)

	inv := &invoice.Invoice{ID: "inv_1", Version: 3, InvoiceStatus: types.InvoiceStatusSent}
	mock.ExpectExec("UPDATE invoices SET").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), inv)
	assert.True(t, ierr.IsVersionConflict(err))
	assert.Equal(t, int64(3), inv.Version)
}

func TestInvoiceRepositoryDeleteOnlyDrafts(t *testing.T) {
	db, mock := newMockClient(t)
	repo := NewInvoiceRepository(db, logger.NewNopLogger(), nil, jst)

	mock.ExpectExec("UPDATE invoices SET").
		WithArgs("deleted", sqlmock.AnyArg(), sqlmock.AnyArg(), "inv_1", "draft", "published").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "inv_1")
	assert.True(t, ierr.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepositoryListFilters(t *testing.T) {
	db, mock := newMockClient(t)
	repo := NewInvoiceRepository(db, logger.NewNopLogger(), nil, jst)

	filter := types.NewNoLimitInvoiceFilter()
	filter.ClientID = "client_1"
	filter.InvoiceStatus = []types.InvoiceStatus{types.InvoiceStatusSent}
	filter.DueBefore = lo.ToPtr("2025-03-04")

	mock.ExpectQuery("SELECT (.+) FROM invoices WHERE status = \\$1 AND client_id = \\$2 AND invoice_status = ANY\\(\\$3\\) AND due_date < \\$4 ORDER BY created_at DESC, id DESC$").
		WillReturnRows(sqlmock.NewRows(invoiceColumnNames).AddRow(invoiceRowValues("sent", 55000, storedLineItems)...))

	invoices, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, invoices, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
