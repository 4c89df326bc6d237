package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterRepositoryIncrement(t *testing.T) {
	db, mock := newMockClient(t)
	repo := NewCounterRepository(db, logger.NewNopLogger())

	mock.ExpectQuery("INSERT INTO invoice_counters (.+) ON CONFLICT \\(id\\) DO UPDATE").
		WithArgs("2025-02", 2025, 2, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"counter"}).AddRow(int64(7)))

	counter, err := repo.Increment(context.Background(), 2025, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(7), counter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCounterRepositorySetLastInvoiceNumber(t *testing.T) {
	db, mock := newMockClient(t)
	repo := NewCounterRepository(db, logger.NewNopLogger())

	mock.ExpectExec("UPDATE invoice_counters SET last_invoice_number").
		WithArgs("INV-2025-02-0007", sqlmock.AnyArg(), "2025-02").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetLastInvoiceNumber(context.Background(), 2025, 2, "INV-2025-02-0007"))

	mock.ExpectExec("UPDATE invoice_counters SET last_invoice_number").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.SetLastInvoiceNumber(context.Background(), 2025, 3, "INV-2025-03-0001")
	assert.True(t, ierr.IsNotFound(err))
}

func TestCounterRepositoryGet(t *testing.T) {
	db, mock := newMockClient(t)
	repo := NewCounterRepository(db, logger.NewNopLogger())

	mock.ExpectQuery("SELECT (.+) FROM invoice_counters WHERE id = \\$1").
		WithArgs("2025-02").
		WillReturnRows(sqlmock.NewRows([]string{"id", "year", "month", "counter", "last_invoice_number", "updated_at"}).
			AddRow("2025-02", 2025, 2, int64(7), "INV-2025-02-0007", time.Now()))

	c, err := repo.Get(context.Background(), 2025, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.Counter)
	assert.Equal(t, "INV-2025-02-0007", c.LastInvoiceNumber)

	mock.ExpectQuery("SELECT (.+) FROM invoice_counters").WillReturnError(sql.ErrNoRows)
	_, err = repo.Get(context.Background(), 2025, 3)
	assert.True(t, ierr.IsNotFound(err))
}
