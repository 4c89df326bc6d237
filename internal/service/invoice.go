package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/flexprice/retainer/internal/api/dto"
	"github.com/flexprice/retainer/internal/domain/client"
	"github.com/flexprice/retainer/internal/domain/invoice"
	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/idempotency"
	"github.com/flexprice/retainer/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
)

type InvoiceService interface {
	// GenerateInvoice drafts and numbers the invoice a client owes on the
	// issue date. A repeated request returns the invoice already drafted.
	GenerateInvoice(ctx context.Context, req dto.GenerateInvoiceRequest) (*dto.InvoiceResponse, error)
	GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error)
	UpdateDraftInvoice(ctx context.Context, id string, req dto.UpdateDraftInvoiceRequest) (*dto.InvoiceResponse, error)
	IssueInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	CancelInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	DeleteInvoice(ctx context.Context, id string) error

	// MarkOverdueInvoices moves every sent invoice past its due date to overdue
	MarkOverdueInvoices(ctx context.Context) (*dto.MarkOverdueResponse, error)

	// GenerateInvoices runs GenerateInvoice for many clients concurrently
	GenerateInvoices(ctx context.Context, req dto.GenerateInvoicesRequest) (*dto.GenerateInvoicesResponse, error)

	// RenderInvoice produces the document of an invoice
	RenderInvoice(ctx context.Context, id string) ([]byte, error)
}

type invoiceService struct {
	ServiceParams
	billing  BillingService
	sequence SequenceService
	idempGen *idempotency.Generator
	location *time.Location
}

func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{
		ServiceParams: params,
		billing:       NewBillingService(params),
		sequence:      NewSequenceService(params),
		idempGen:      idempotency.NewGenerator(),
		location:      billingLocation(params.Config),
	}
}

func (s *invoiceService) GenerateInvoice(ctx context.Context, req dto.GenerateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	parsed, err := req.Parse(s.location)
	if err != nil {
		return nil, err
	}

	taxRate, err := s.taxRateOrDefault(parsed.TaxRate)
	if err != nil {
		return nil, err
	}

	dueDate := s.billing.DueDateFor(parsed.IssueDate)
	if parsed.DueDate != nil {
		dueDate = *parsed.DueDate
	}

	var (
		result  *invoice.Invoice
		created bool
	)
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		created = false

		c, err := s.ClientRepo.Get(ctx, req.ClientID)
		if err != nil {
			return err
		}

		items, err := s.billing.PrepareLineItems(ctx, c, parsed.IssueDate)
		if err != nil {
			return err
		}
		items = append(items, parsed.ManualLineItems...)
		if len(items) == 0 {
			return ierr.WithError(invoice.ErrNothingToInvoice).
				WithHintf("client %s owes nothing as of %s", c.ID, types.FormatDate(parsed.IssueDate)).
				WithReportableDetails(map[string]any{
					"client_id":  c.ID,
					"issue_date": types.FormatDate(parsed.IssueDate),
				}).
				Mark(ierr.ErrInvalidOperation)
		}

		inv, err := invoice.New(ctx, c.ID, items, taxRate, parsed.IssueDate, dueDate)
		if err != nil {
			return err
		}
		inv.IdempotencyKey = s.idempotencyKey(inv)

		existing, err := s.InvoiceRepo.GetByIdempotencyKey(ctx, inv.IdempotencyKey)
		if err == nil {
			if !existing.SameCharges(inv) {
				return ierr.WithError(invoice.ErrChargesDiffer).
					WithHintf("invoice %s (%s) already bills this period with other charges, use update-draft to change it",
						existing.InvoiceNumber, existing.InvoiceStatus).
					WithReportableDetails(map[string]any{
						"client_id":      c.ID,
						"invoice_id":     existing.ID,
						"invoice_status": existing.InvoiceStatus,
					}).
					Mark(ierr.ErrAlreadyExists)
			}
			s.Logger.Infow("invoice already generated",
				"client_id", c.ID,
				"invoice_id", existing.ID,
				"invoice_number", existing.InvoiceNumber,
			)
			result = existing
			return nil
		}
		if !ierr.IsNotFound(err) {
			return err
		}

		if err := s.checkNoOpenOverlap(ctx, c, inv); err != nil {
			return err
		}

		number, err := s.sequence.AllocateInvoiceNumber(ctx, inv.IssueDate.Year(), int(inv.IssueDate.Month()))
		if err != nil {
			return err
		}
		inv.InvoiceNumber = number

		if err := inv.Validate(); err != nil {
			return err
		}
		if err := s.InvoiceRepo.Create(ctx, inv); err != nil {
			return err
		}

		result = inv
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.Logger.Infow("generated invoice",
			"client_id", result.ClientID,
			"invoice_id", result.ID,
			"invoice_number", result.InvoiceNumber,
			"total_amount", result.TotalAmount,
		)
		s.publishInvoiceEvent(ctx, types.EventInvoiceGenerated, result)
	}
	return dto.NewInvoiceResponse(result), nil
}

// idempotencyKey identifies an invoice by its client, its recurring coverage
// and its installments. Invoices with manual charges only fall back to their
// issue date and line contents.
func (s *invoiceService) idempotencyKey(inv *invoice.Invoice) string {
	installments := inv.InstallmentIDs()
	if inv.BillingPeriodStart == nil && len(installments) == 0 {
		lines := lo.Map(inv.LineItems, func(item *invoice.LineItem, _ int) string {
			return fmt.Sprintf("%s:%dx%d", item.Description, item.Quantity, item.UnitPrice)
		})
		return s.idempGen.ManualInvoiceKey(inv.ClientID, types.FormatDate(inv.IssueDate), lines)
	}

	var start, end string
	if inv.BillingPeriodStart != nil && inv.BillingPeriodEnd != nil {
		start = types.FormatDate(*inv.BillingPeriodStart)
		end = types.FormatDate(*inv.BillingPeriodEnd)
	}
	return s.idempGen.ClientInvoiceKey(inv.ClientID, start, end, installments)
}

// checkNoOpenOverlap refuses to charge a recurring day or an installment that
// an open invoice of the client already charges
func (s *invoiceService) checkNoOpenOverlap(ctx context.Context, c *client.Client, inv *invoice.Invoice) error {
	open, err := s.openInvoices(ctx, c.ID)
	if err != nil {
		return err
	}

	for _, other := range open {
		if !inv.Overlaps(other) {
			continue
		}
		return ierr.WithError(invoice.ErrOverlappingInvoice).
			WithHintf("invoice %s (%s) already charges part of this invoice, cancel or settle it first",
				other.InvoiceNumber, other.InvoiceStatus).
			WithReportableDetails(map[string]any{
				"client_id":          c.ID,
				"open_invoice_id":    other.ID,
				"open_invoice_state": other.InvoiceStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	return nil
}

// openInvoices lists the draft, sent and overdue invoices of a client
func (p ServiceParams) openInvoices(ctx context.Context, clientID string) ([]*invoice.Invoice, error) {
	filter := types.NewNoLimitInvoiceFilter()
	filter.ClientID = clientID
	filter.InvoiceStatus = []types.InvoiceStatus{
		types.InvoiceStatusDraft,
		types.InvoiceStatusSent,
		types.InvoiceStatusOverdue,
	}
	return p.InvoiceRepo.List(ctx, filter)
}

func (s *invoiceService) taxRateOrDefault(override *decimal.Decimal) (decimal.Decimal, error) {
	if override == nil {
		return s.billing.DefaultTaxRate()
	}
	if err := invoice.ValidateTaxRate(*override); err != nil {
		return decimal.Zero, err
	}
	return *override, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	invoices, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	count, err := s.InvoiceRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.InvoiceResponse, len(invoices))
	for i, inv := range invoices {
		items[i] = dto.NewInvoiceResponse(inv)
	}

	return types.NewListResponse(items, count, filter.GetLimit(), filter.GetOffset()), nil
}

func (s *invoiceService) UpdateDraftInvoice(ctx context.Context, id string, req dto.UpdateDraftInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	override, err := req.ParsedTaxRate()
	if err != nil {
		return nil, err
	}

	var updated *invoice.Invoice
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		inv, err := s.InvoiceRepo.Get(ctx, id)
		if err != nil {
			return err
		}

		taxRate := inv.TaxRate
		if override != nil {
			if err := invoice.ValidateTaxRate(*override); err != nil {
				return err
			}
			taxRate = *override
		}

		kept := lo.Filter(inv.LineItems, func(item *invoice.LineItem, _ int) bool {
			return item.Kind != types.LineItemKindManual
		})
		items := append(kept, req.LineItems()...)

		if err := inv.ReplaceLineItems(items, taxRate); err != nil {
			return err
		}
		if err := inv.Validate(); err != nil {
			return err
		}
		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("updated draft invoice",
		"invoice_id", updated.ID,
		"line_items", len(updated.LineItems),
		"total_amount", updated.TotalAmount,
	)
	return dto.NewInvoiceResponse(updated), nil
}

// transition loads an invoice, applies mutate and writes it back in one
// transaction. The write is skipped when mutate reports no change.
func (s *invoiceService) transition(ctx context.Context, id string, mutate func(inv *invoice.Invoice, now time.Time) (bool, error)) (*invoice.Invoice, error) {
	var updated *invoice.Invoice
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		updated = nil
		inv, err := s.InvoiceRepo.Get(ctx, id)
		if err != nil {
			return err
		}
		changed, err := mutate(inv, s.Clock.Now().UTC())
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *invoiceService) IssueInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	inv, err := s.transition(ctx, id, func(inv *invoice.Invoice, now time.Time) (bool, error) {
		if err := inv.TransitionTo(types.InvoiceStatusSent); err != nil {
			return false, err
		}
		inv.SentAt = lo.ToPtr(now)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("issued invoice",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"due_date", types.FormatDate(inv.DueDate),
	)
	s.publishInvoiceEvent(ctx, types.EventInvoiceIssued, inv)
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) CancelInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	inv, err := s.transition(ctx, id, func(inv *invoice.Invoice, now time.Time) (bool, error) {
		if err := inv.TransitionTo(types.InvoiceStatusCancelled); err != nil {
			return false, err
		}
		inv.CancelledAt = lo.ToPtr(now)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("cancelled invoice",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
	)
	s.publishInvoiceEvent(ctx, types.EventInvoiceCancelled, inv)
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) DeleteInvoice(ctx context.Context, id string) error {
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		inv, err := s.InvoiceRepo.Get(ctx, id)
		if err != nil {
			return err
		}
		if inv.IsImmutable() {
			return ierr.WithError(invoice.ErrInvoiceImmutable).
				WithHintf("invoice %s is %s and cannot be deleted", inv.InvoiceNumber, inv.InvoiceStatus).
				Mark(ierr.ErrInvalidOperation)
		}
		if inv.InvoiceStatus != types.InvoiceStatusDraft {
			return ierr.NewErrorf("invoice %s is %s", inv.InvoiceNumber, inv.InvoiceStatus).
				WithHint("Only draft invoices can be deleted, cancel the invoice instead").
				WithReportableDetails(map[string]any{
					"invoice_id":     inv.ID,
					"invoice_status": inv.InvoiceStatus,
				}).
				Mark(ierr.ErrInvalidOperation)
		}
		return s.InvoiceRepo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.Logger.Infow("deleted draft invoice", "invoice_id", id)
	return nil
}

func (s *invoiceService) MarkOverdueInvoices(ctx context.Context) (*dto.MarkOverdueResponse, error) {
	today := types.TruncateToDay(s.Clock.Now(), s.location)

	filter := types.NewNoLimitInvoiceFilter()
	filter.InvoiceStatus = []types.InvoiceStatus{types.InvoiceStatusSent}
	filter.DueBefore = lo.ToPtr(types.FormatDate(today))

	candidates, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	resp := &dto.MarkOverdueResponse{Invoices: make([]*dto.InvoiceResponse, 0, len(candidates))}
	for _, candidate := range candidates {
		inv, err := s.transition(ctx, candidate.ID, func(inv *invoice.Invoice, _ time.Time) (bool, error) {
			// paid or cancelled since it was listed
			if !inv.IsOverdue(today) {
				return false, nil
			}
			return true, inv.TransitionTo(types.InvoiceStatusOverdue)
		})
		if err != nil {
			return resp, err
		}
		if inv == nil {
			continue
		}

		s.Logger.Infow("invoice overdue",
			"invoice_id", inv.ID,
			"invoice_number", inv.InvoiceNumber,
			"due_date", types.FormatDate(inv.DueDate),
		)
		s.publishInvoiceEvent(ctx, types.EventInvoiceOverdue, inv)
		resp.Invoices = append(resp.Invoices, dto.NewInvoiceResponse(inv))
	}
	return resp, nil
}

type bulkOutcome struct {
	index    int
	clientID string
	invoice  *dto.InvoiceResponse
	err      error
}

func (s *invoiceService) GenerateInvoices(ctx context.Context, req dto.GenerateInvoicesRequest) (*dto.GenerateInvoicesResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := types.ParseDate(req.IssueDate, s.location); err != nil {
		return nil, err
	}

	clientIDs := lo.Uniq(req.ClientIDs)
	if len(clientIDs) == 0 {
		clients, err := s.ClientRepo.List(ctx, types.NewNoLimitClientFilter())
		if err != nil {
			return nil, err
		}
		clientIDs = lo.Map(clients, func(c *client.Client, _ int) string { return c.ID })
	}

	workers := s.Config.Billing.BulkConcurrency
	if workers < 1 {
		workers = 1
	}

	p := pool.NewWithResults[bulkOutcome]().WithMaxGoroutines(workers)
	for i, clientID := range clientIDs {
		p.Go(func() bulkOutcome {
			inv, err := s.GenerateInvoice(ctx, dto.GenerateInvoiceRequest{
				ClientID:  clientID,
				IssueDate: req.IssueDate,
			})
			return bulkOutcome{index: i, clientID: clientID, invoice: inv, err: err}
		})
	}
	outcomes := p.Wait()
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].index < outcomes[j].index })

	resp := &dto.GenerateInvoicesResponse{
		Generated: make([]*dto.InvoiceResponse, 0, len(outcomes)),
		Skipped:   make([]string, 0),
		Failed:    make([]dto.BulkGenerateFailure, 0),
	}
	for _, o := range outcomes {
		switch {
		case o.err == nil:
			resp.Generated = append(resp.Generated, o.invoice)
		case ierr.Is(o.err, invoice.ErrNothingToInvoice), ierr.Is(o.err, invoice.ErrChargesDiffer):
			resp.Skipped = append(resp.Skipped, o.clientID)
		default:
			s.Logger.Errorw("failed to generate invoice",
				"client_id", o.clientID,
				"issue_date", req.IssueDate,
				"error", o.err,
			)
			resp.Failed = append(resp.Failed, dto.BulkGenerateFailure{
				ClientID: o.clientID,
				Error:    ierr.DisplayMessage(o.err),
			})
		}
	}

	s.Logger.Infow("bulk invoice generation finished",
		"issue_date", req.IssueDate,
		"clients", len(clientIDs),
		"generated", len(resp.Generated),
		"skipped", len(resp.Skipped),
		"failed", len(resp.Failed),
	)
	return resp, nil
}

func (s *invoiceService) RenderInvoice(ctx context.Context, id string) ([]byte, error) {
	if s.Renderer == nil {
		return nil, ierr.NewError("no invoice renderer configured").
			WithHint("Invoice documents are not available in this deployment").
			Mark(ierr.ErrSystem)
	}

	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	doc, err := s.Renderer.Render(ctx, inv)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("failed to render invoice %s", inv.InvoiceNumber).
			Mark(ierr.ErrSystem)
	}
	return doc, nil
}
