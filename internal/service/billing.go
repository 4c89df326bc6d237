package service

import (
	"context"
	"time"

	"github.com/flexprice/retainer/internal/config"
	"github.com/flexprice/retainer/internal/domain/client"
	"github.com/flexprice/retainer/internal/domain/invoice"
	"github.com/flexprice/retainer/internal/domain/proration"
	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// BillingService works out what a client owes on an issue date
type BillingService interface {
	// CutoffFor returns the last day of recurring coverage billed on issueDate
	CutoffFor(issueDate time.Time) time.Time

	// GenerateRecurringLineItem returns the prorated recurring fee owed up to
	// the cutoff of issueDate, nil when nothing is owed
	GenerateRecurringLineItem(ctx context.Context, c *client.Client, issueDate time.Time) (*invoice.LineItem, error)

	// SelectDueInstallments returns one line item per unpaid installment due on or before issueDate
	SelectDueInstallments(c *client.Client, issueDate time.Time) []*invoice.LineItem

	// PrepareLineItems combines the recurring fee and the due installments
	PrepareLineItems(ctx context.Context, c *client.Client, issueDate time.Time) ([]*invoice.LineItem, error)

	// ComputeTotals computes subtotal, tax and total of items
	ComputeTotals(items []*invoice.LineItem, taxRate decimal.Decimal) (*invoice.Totals, error)

	// DefaultTaxRate is the configured flat tax rate
	DefaultTaxRate() (decimal.Decimal, error)

	// DueDateFor applies the configured payment term to issueDate
	DueDateFor(issueDate time.Time) time.Time
}

type billingService struct {
	ServiceParams
	location *time.Location
}

func NewBillingService(params ServiceParams) BillingService {
	return &billingService{
		ServiceParams: params,
		location:      billingLocation(params.Config),
	}
}

// billingLocation is the calendar every billing date is counted in. The
// configuration is validated on load, UTC only covers hand-built configs.
func billingLocation(cfg *config.Configuration) *time.Location {
	if cfg == nil {
		return time.UTC
	}
	loc, err := cfg.Billing.GetLocation()
	if err != nil {
		return time.UTC
	}
	return loc
}

func (s *billingService) CutoffFor(issueDate time.Time) time.Time {
	issue := types.AsDate(issueDate, s.location)
	if s.Config.Billing.CutoffMode == types.CutoffModeCurrentMonth {
		return types.EndOfMonth(issue)
	}
	return types.AddDays(types.StartOfMonth(issue), -1)
}

func (s *billingService) GenerateRecurringLineItem(ctx context.Context, c *client.Client, issueDate time.Time) (*invoice.LineItem, error) {
	if c == nil {
		return nil, ierr.NewError("client is required").
			WithHint("Please provide the client to bill").
			Mark(ierr.ErrValidation)
	}
	if issueDate.IsZero() {
		return nil, ierr.NewError("issue date is required").
			WithHint("Please provide the invoice issue date").
			Mark(ierr.ErrValidation)
	}

	cutoff := s.CutoffFor(issueDate)
	result, err := s.Calculator.CalculateUnpaid(ctx, proration.UnpaidParams{
		Schedule:          c.FeeSchedule,
		LastPaidPeriodEnd: c.LastPaidPeriodEnd,
		Cutoff:            cutoff,
		Location:          s.location,
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		s.Logger.Debugw("no recurring fee owed",
			"client_id", c.ID,
			"issue_date", types.FormatDate(issueDate),
			"cutoff", types.FormatDate(cutoff),
		)
		return nil, nil
	}

	item := invoice.NewLineItem(types.LineItemKindRecurring, result.Label, 1, result.Total)
	item.PeriodStart = lo.ToPtr(result.PeriodStart)
	item.PeriodEnd = lo.ToPtr(result.PeriodEnd)

	s.Logger.Debugw("computed recurring fee",
		"client_id", c.ID,
		"period_start", types.FormatDate(result.PeriodStart),
		"period_end", types.FormatDate(result.PeriodEnd),
		"charges", len(result.Charges),
		"amount", result.Total,
	)
	return item, nil
}

func (s *billingService) SelectDueInstallments(c *client.Client, issueDate time.Time) []*invoice.LineItem {
	if c == nil {
		return nil
	}
	due := client.SelectDueInstallments(c.Installments, types.AsDate(issueDate, s.location))
	return lo.Map(due, func(inst client.Installment, _ int) *invoice.LineItem {
		item := invoice.NewLineItem(types.LineItemKindInstallment, inst.DisplayDescription(), 1, inst.Amount)
		item.InstallmentID = lo.ToPtr(inst.ID)
		return item
	})
}

func (s *billingService) PrepareLineItems(ctx context.Context, c *client.Client, issueDate time.Time) ([]*invoice.LineItem, error) {
	recurring, err := s.GenerateRecurringLineItem(ctx, c, issueDate)
	if err != nil {
		return nil, err
	}

	items := make([]*invoice.LineItem, 0, 1+len(c.Installments))
	if recurring != nil {
		items = append(items, recurring)
	}
	items = append(items, s.SelectDueInstallments(c, issueDate)...)
	return items, nil
}

func (s *billingService) ComputeTotals(items []*invoice.LineItem, taxRate decimal.Decimal) (*invoice.Totals, error) {
	return invoice.ComputeTotals(items, taxRate)
}

func (s *billingService) DefaultTaxRate() (decimal.Decimal, error) {
	rate, err := s.Config.Billing.GetTaxRate()
	if err != nil {
		return decimal.Zero, ierr.WithError(err).
			WithHint("The configured tax rate is not a decimal number").
			Mark(ierr.ErrSystem)
	}
	if err := invoice.ValidateTaxRate(rate); err != nil {
		return decimal.Zero, err
	}
	return rate, nil
}

func (s *billingService) DueDateFor(issueDate time.Time) time.Time {
	return types.AddDays(types.AsDate(issueDate, s.location), s.Config.Billing.PaymentTermDays)
}
