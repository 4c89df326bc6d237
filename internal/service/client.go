package service

import (
	"context"

	"github.com/flexprice/retainer/internal/api/dto"
	"github.com/flexprice/retainer/internal/domain/client"
	"github.com/flexprice/retainer/internal/domain/invoice"
	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/types"
	"github.com/samber/lo"
)

// ClientService manages onboarding and the billing terms of clients
type ClientService interface {
	CreateClient(ctx context.Context, req dto.CreateClientRequest) (*dto.ClientResponse, error)
	GetClient(ctx context.Context, id string) (*dto.ClientResponse, error)
	ListClients(ctx context.Context, filter *types.ClientFilter) (*dto.ListClientsResponse, error)

	// ChangeFee closes the current fee schedule entry and opens a new one
	ChangeFee(ctx context.Context, id string, req dto.ChangeFeeRequest) (*dto.ClientResponse, error)

	// SetInstallments replaces the unpaid installments. Paid installments and
	// those charged by an open invoice are kept.
	SetInstallments(ctx context.Context, id string, req dto.SetInstallmentsRequest) (*dto.ClientResponse, error)
}

type clientService struct {
	ServiceParams
}

func NewClientService(params ServiceParams) ClientService {
	return &clientService{
		ServiceParams: params,
	}
}

func (s *clientService) CreateClient(ctx context.Context, req dto.CreateClientRequest) (*dto.ClientResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c, err := req.ToClient(ctx, billingLocation(s.Config))
	if err != nil {
		return nil, err
	}

	if err := s.ClientRepo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.Logger.Infow("created client",
		"client_id", c.ID,
		"fee_entries", len(c.FeeSchedule),
		"installments", len(c.Installments),
	)
	return &dto.ClientResponse{Client: c}, nil
}

func (s *clientService) GetClient(ctx context.Context, id string) (*dto.ClientResponse, error) {
	if id == "" {
		return nil, ierr.NewError("client_id is required").
			WithHint("Please provide a client id").
			Mark(ierr.ErrValidation)
	}

	c, err := s.ClientRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.ClientResponse{Client: c}, nil
}

func (s *clientService) ListClients(ctx context.Context, filter *types.ClientFilter) (*dto.ListClientsResponse, error) {
	if filter == nil {
		filter = types.NewClientFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	clients, err := s.ClientRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	count, err := s.ClientRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(clients, func(c *client.Client, _ int) *dto.ClientResponse {
		return &dto.ClientResponse{Client: c}
	})

	return types.NewListResponse(items, count, filter.GetLimit(), filter.GetOffset()), nil
}

func (s *clientService) ChangeFee(ctx context.Context, id string, req dto.ChangeFeeRequest) (*dto.ClientResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	from, err := types.ParseDate(req.EffectiveFrom, billingLocation(s.Config))
	if err != nil {
		return nil, err
	}

	var updated *client.Client
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		c, err := s.ClientRepo.Get(ctx, id)
		if err != nil {
			return err
		}

		// paid coverage is never re-priced
		if c.LastPaidPeriodEnd != nil && !from.After(*c.LastPaidPeriodEnd) {
			return ierr.NewErrorf("fee change on %s falls inside the paid period ending %s",
				types.FormatDate(from), types.FormatDate(*c.LastPaidPeriodEnd)).
				WithHint("A fee change must start after the last paid period").
				WithReportableDetails(map[string]any{
					"client_id":            c.ID,
					"effective_from":       types.FormatDate(from),
					"last_paid_period_end": types.FormatDate(*c.LastPaidPeriodEnd),
				}).
				Mark(ierr.ErrInvalidOperation)
		}

		// days billed by an open invoice keep their price too
		open, err := s.openInvoices(ctx, c.ID)
		if err != nil {
			return err
		}
		for _, inv := range open {
			if inv.BillingPeriodEnd == nil || from.After(*inv.BillingPeriodEnd) {
				continue
			}
			return ierr.WithError(client.ErrFeeChangeInvoiced).
				WithHintf("invoice %s (%s) bills through %s, settle or cancel it before changing the fee from %s",
					inv.InvoiceNumber, inv.InvoiceStatus,
					types.FormatDate(*inv.BillingPeriodEnd), types.FormatDate(from)).
				WithReportableDetails(map[string]any{
					"client_id":          c.ID,
					"effective_from":     types.FormatDate(from),
					"open_invoice_id":    inv.ID,
					"billing_period_end": types.FormatDate(*inv.BillingPeriodEnd),
				}).
				Mark(ierr.ErrInvalidOperation)
		}

		schedule, err := c.FeeSchedule.ChangeFee(from, req.MonthlyAmount, req.Description)
		if err != nil {
			return err
		}
		c.FeeSchedule = schedule

		if err := s.ClientRepo.Update(ctx, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("changed client fee",
		"client_id", id,
		"effective_from", req.EffectiveFrom,
		"monthly_amount", req.MonthlyAmount,
	)
	return &dto.ClientResponse{Client: updated}, nil
}

func (s *clientService) SetInstallments(ctx context.Context, id string, req dto.SetInstallmentsRequest) (*dto.ClientResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	planned, err := req.ToInstallments(billingLocation(s.Config))
	if err != nil {
		return nil, err
	}

	var updated *client.Client
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		c, err := s.ClientRepo.Get(ctx, id)
		if err != nil {
			return err
		}

		open, err := s.openInvoices(ctx, c.ID)
		if err != nil {
			return err
		}
		chargedBy := make(map[string]*invoice.Invoice)
		for _, inv := range open {
			for _, instID := range inv.InstallmentIDs() {
				chargedBy[instID] = inv
			}
		}

		// paid installments and those an open invoice charges stay as they are
		kept := lo.Filter(c.Installments, func(inst client.Installment, _ int) bool {
			return inst.Paid || chargedBy[inst.ID] != nil
		})
		for _, inst := range kept {
			if inst.Paid {
				continue
			}
			if _, replaced := lo.Find(planned, func(p client.Installment) bool {
				return p.Label == inst.Label
			}); !replaced {
				continue
			}
			inv := chargedBy[inst.ID]
			return ierr.WithError(client.ErrInstallmentInvoiced).
				WithHintf("the %s installment is charged by invoice %s (%s), settle or cancel it first",
					inst.Label, inv.InvoiceNumber, inv.InvoiceStatus).
				WithReportableDetails(map[string]any{
					"client_id":       c.ID,
					"installment_id":  inst.ID,
					"open_invoice_id": inv.ID,
				}).
				Mark(ierr.ErrInvalidOperation)
		}
		c.Installments = append(kept, planned...)

		if err := client.ValidateInstallments(c.Installments); err != nil {
			return err
		}

		if err := s.ClientRepo.Update(ctx, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("replaced client installments",
		"client_id", id,
		"installments", len(updated.Installments),
	)
	return &dto.ClientResponse{Client: updated}, nil
}
