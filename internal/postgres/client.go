package postgres

import (
	"context"

	"go.uber.org/fx"
)

// IClient defines the interface for postgres client operations
type IClient interface {
	// WithTx wraps the given function in a transaction
	WithTx(ctx context.Context, fn func(context.Context) error) error

	// TxFromContext returns the transaction from context if it exists
	TxFromContext(ctx context.Context) *Tx

	// Querier returns the current transaction if in a transaction, or the pool
	Querier(ctx context.Context) Querier
}

// Client adapts DB to IClient
type Client struct {
	db *DB
}

// Module provides an fx.Option to integrate the postgres client with the application
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewDB,
			NewClient,
		),
	)
}

// NewClient creates the transaction-managing client over db
func NewClient(db *DB) IClient {
	return &Client{db: db}
}

func (c *Client) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return c.db.WithTx(ctx, fn)
}

func (c *Client) TxFromContext(ctx context.Context) *Tx {
	if tx, ok := GetTx(ctx); ok {
		return tx
	}
	return nil
}

func (c *Client) Querier(ctx context.Context) Querier {
	return c.db.GetQuerier(ctx)
}
