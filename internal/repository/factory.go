package repository

import (
	"github.com/flexprice/retainer/internal/cache"
	"github.com/flexprice/retainer/internal/config"
	"github.com/flexprice/retainer/internal/domain/client"
	"github.com/flexprice/retainer/internal/domain/invoice"
	"github.com/flexprice/retainer/internal/logger"
	"github.com/flexprice/retainer/internal/postgres"
	postgresRepo "github.com/flexprice/retainer/internal/repository/postgres"
	"go.uber.org/fx"
)

// Module provides the postgres backed repositories
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewClientRepository,
			NewInvoiceRepository,
			NewCounterRepository,
		),
	)
}

func NewClientRepository(db postgres.IClient, cfg *config.Configuration, logger *logger.Logger) (client.Repository, error) {
	loc, err := cfg.Billing.GetLocation()
	if err != nil {
		return nil, err
	}
	return postgresRepo.NewClientRepository(db, logger, loc), nil
}

func NewInvoiceRepository(db postgres.IClient, cfg *config.Configuration, logger *logger.Logger, c cache.Cache) (invoice.Repository, error) {
	loc, err := cfg.Billing.GetLocation()
	if err != nil {
		return nil, err
	}
	return postgresRepo.NewInvoiceRepository(db, logger, c, loc), nil
}

func NewCounterRepository(db postgres.IClient, logger *logger.Logger) invoice.CounterRepository {
	return postgresRepo.NewCounterRepository(db, logger)
}
