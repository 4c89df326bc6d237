package service

import (
	"context"

	"github.com/flexprice/retainer/internal/api/dto"
	"github.com/flexprice/retainer/internal/domain/client"
	"github.com/flexprice/retainer/internal/domain/invoice"
	"github.com/flexprice/retainer/internal/domain/proration"
	"github.com/flexprice/retainer/internal/testutil"
)

// newTestParams wires every service dependency to the suite's in-memory stores
func newTestParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:         s.GetLogger(),
		Config:         s.GetConfig(),
		DB:             s.GetDB(),
		Clock:          s.GetClock(),
		Calculator:     proration.NewCalculator(),
		Renderer:       s.GetRenderer(),
		ClientRepo:     stores.ClientRepo,
		InvoiceRepo:    stores.InvoiceRepo,
		CounterRepo:    stores.CounterRepo,
		EventPublisher: s.GetPublisher(),
	}
}

// retainerClientRequest is a client paying ¥50,000 a month from 2025-01-01
// with an initial installment of ¥100,000 due 2025-01-15
func retainerClientRequest(name string, withInstallment bool) dto.CreateClientRequest {
	req := dto.CreateClientRequest{
		Name:  name,
		Email: "billing@example.com",
		FeeSchedule: []dto.FeeScheduleEntryRequest{
			{EffectiveFrom: "2025-01-01", MonthlyAmount: 50000, Description: "Retainer"},
		},
	}
	if withInstallment {
		req.Installments = []dto.InstallmentRequest{
			{Label: "initial", Description: "Initial payment", Amount: 100000, DueDate: "2025-01-15"},
		}
	}
	return req
}

func createTestClient(s *testutil.BaseServiceTestSuite, req dto.CreateClientRequest) *client.Client {
	resp, err := NewClientService(newTestParams(s)).CreateClient(s.GetContext(), req)
	s.Require().NoError(err)
	return resp.Client
}

// failingInvoiceRepo fails Create with err
type failingInvoiceRepo struct {
	invoice.Repository
	err error
}

func (r *failingInvoiceRepo) Create(ctx context.Context, inv *invoice.Invoice) error {
	return r.err
}

// conflictingClientRepo fails the first conflicts Update calls with err
type conflictingClientRepo struct {
	client.Repository
	conflicts int
	calls     int
	err       error
}

func (r *conflictingClientRepo) Update(ctx context.Context, c *client.Client) error {
	r.calls++
	if r.conflicts < 0 || r.calls <= r.conflicts {
		return r.err
	}
	return r.Repository.Update(ctx, c)
}
