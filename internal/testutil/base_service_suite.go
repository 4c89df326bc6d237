package testutil

import (
	"context"
	"time"

	"github.com/flexprice/retainer/internal/clock"
	"github.com/flexprice/retainer/internal/config"
	"github.com/flexprice/retainer/internal/domain/client"
	"github.com/flexprice/retainer/internal/domain/invoice"
	"github.com/flexprice/retainer/internal/logger"
	"github.com/flexprice/retainer/internal/postgres"
	"github.com/flexprice/retainer/internal/types"
	"github.com/flexprice/retainer/internal/validator"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	ClientRepo  client.Repository
	InvoiceRepo invoice.Repository
	CounterRepo invoice.CounterRepository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	publisher *InMemoryPublisherService
	renderer  *MockRenderer
	db        *MockPostgresClient
	logger    *logger.Logger
	config    *config.Configuration
	location  *time.Location
	clock     *clock.Fake
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = types.LogLevelInfo
	s.config = cfg

	var err error
	s.logger, err = logger.NewLogger(cfg)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}

	s.location, err = cfg.Billing.GetLocation()
	if err != nil {
		s.T().Fatalf("failed to load billing location: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.setupStores()
	s.clock = clock.NewFake(time.Date(2025, 2, 1, 10, 0, 0, 0, s.location))
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		ClientRepo:  NewInMemoryClientStore(),
		InvoiceRepo: NewInMemoryInvoiceStore(),
		CounterRepo: NewInMemoryCounterStore(),
	}

	s.db = NewMockPostgresClient(s.logger)
	s.publisher = NewInMemoryEventPublisher()
	s.renderer = NewMockRenderer()
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.ClientRepo.(*InMemoryClientStore).Clear()
	s.stores.InvoiceRepo.(*InMemoryInvoiceStore).Clear()
	s.stores.CounterRepo.(*InMemoryCounterStore).Clear()
	s.publisher.Clear()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetPublisher returns the test event publisher
func (s *BaseServiceTestSuite) GetPublisher() *InMemoryPublisherService {
	return s.publisher
}

// GetRenderer returns the test invoice renderer
func (s *BaseServiceTestSuite) GetRenderer() *MockRenderer {
	return s.renderer
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() postgres.IClient {
	return s.db
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetClock returns the fake clock, set to 2025-02-01 10:00 in the billing location
func (s *BaseServiceTestSuite) GetClock() *clock.Fake {
	return s.clock
}

// GetLocation returns the billing location
func (s *BaseServiceTestSuite) GetLocation() *time.Location {
	return s.location
}

// Date returns midnight of the given day in the billing location
func (s *BaseServiceTestSuite) Date(year int, month time.Month, day int) time.Time {
	return types.NewDate(year, month, day, s.location)
}

// GetUUID returns a new UUID string
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}
