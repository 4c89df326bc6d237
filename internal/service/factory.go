package service

import (
	"github.com/flexprice/retainer/internal/clock"
	"github.com/flexprice/retainer/internal/config"
	"github.com/flexprice/retainer/internal/domain/client"
	"github.com/flexprice/retainer/internal/domain/invoice"
	"github.com/flexprice/retainer/internal/domain/proration"
	"github.com/flexprice/retainer/internal/logger"
	"github.com/flexprice/retainer/internal/pdf"
	"github.com/flexprice/retainer/internal/postgres"
	"github.com/flexprice/retainer/internal/publisher"
	"go.uber.org/fx"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger     *logger.Logger
	Config     *config.Configuration
	DB         postgres.IClient
	Clock      clock.Clock
	Calculator proration.Calculator
	Renderer   pdf.Renderer

	// Repositories
	ClientRepo  client.Repository
	InvoiceRepo invoice.Repository
	CounterRepo invoice.CounterRepository

	// Publishers
	EventPublisher publisher.EventPublisher
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	clk clock.Clock,
	calculator proration.Calculator,
	renderer pdf.Renderer,
	clientRepo client.Repository,
	invoiceRepo invoice.Repository,
	counterRepo invoice.CounterRepository,
	eventPublisher publisher.EventPublisher,
) ServiceParams {
	return ServiceParams{
		Logger:         logger,
		Config:         config,
		DB:             db,
		Clock:          clk,
		Calculator:     calculator,
		Renderer:       renderer,
		ClientRepo:     clientRepo,
		InvoiceRepo:    invoiceRepo,
		CounterRepo:    counterRepo,
		EventPublisher: eventPublisher,
	}
}

// Module provides the service params and every service built from them
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewServiceParams,
			NewBillingService,
			NewSequenceService,
			NewClientService,
			NewInvoiceService,
			NewPaymentService,
		),
	)
}
