package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/retainer/internal/logger"
	"github.com/flexprice/retainer/internal/postgres"
	"github.com/flexprice/retainer/internal/types"
)

var _ postgres.IClient = (*MockPostgresClient)(nil) // Ensure MockPostgresClient implements IClient

type ctxKey string

const ctxMockTx ctxKey = "ctx_mock_tx"

// mockTx is the undo journal of one in-memory transaction
type mockTx struct {
	mu   sync.Mutex
	undo []func()
	tx   *postgres.Tx
}

func (t *mockTx) record(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.undo = append(t.undo, fn)
}

func (t *mockTx) mark() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.undo)
}

// rollbackTo undoes every write recorded after mark, newest first
func (t *mockTx) rollbackTo(mark int) {
	t.mu.Lock()
	pending := t.undo[mark:]
	t.undo = t.undo[:mark]
	t.mu.Unlock()

	for i := len(pending) - 1; i >= 0; i-- {
		pending[i]()
	}
}

func txFromContext(ctx context.Context) *mockTx {
	if ctx == nil {
		return nil
	}
	tx, _ := ctx.Value(ctxMockTx).(*mockTx)
	return tx
}

// MockPostgresClient runs transactions against the in-memory stores.
// Top level transactions are serialized, retried like the real client and
// rolled back through the store journals on error.
type MockPostgresClient struct {
	mu         sync.Mutex
	logger     *logger.Logger
	maxRetries int
}

// NewMockPostgresClient creates a new mock postgres client
func NewMockPostgresClient(logger *logger.Logger) *MockPostgresClient {
	return &MockPostgresClient{
		logger:     logger,
		maxRetries: 3,
	}
}

// WithTx executes the given function within a transaction
func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	// Nested calls behave like savepoints
	if tx := txFromContext(ctx); tx != nil {
		mark := tx.mark()
		if err := fn(ctx); err != nil {
			tx.rollbackTo(mark)
			return err
		}
		return nil
	}

	return postgres.RunWithRetry(ctx, c.logger, c.maxRetries, func() error {
		c.mu.Lock()
		defer c.mu.Unlock()

		tx := &mockTx{tx: &postgres.Tx{ID: types.GenerateUUID()}}
		txCtx := context.WithValue(ctx, ctxMockTx, tx)
		txCtx = context.WithValue(txCtx, types.CtxDBTransaction, tx.tx)

		if err := fn(txCtx); err != nil {
			tx.rollbackTo(0)
			return err
		}
		return nil
	})
}

// TxFromContext returns the transaction from context if it exists
func (c *MockPostgresClient) TxFromContext(ctx context.Context) *postgres.Tx {
	if tx, ok := postgres.GetTx(ctx); ok {
		return tx
	}
	return nil
}

// Querier is unused by the in-memory stores
func (c *MockPostgresClient) Querier(ctx context.Context) postgres.Querier {
	return nil
}
