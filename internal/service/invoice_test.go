package service

import (
	"errors"
	"testing"
	"time"

	"github.com/flexprice/retainer/internal/api/dto"
	"github.com/flexprice/retainer/internal/domain/client"
	"github.com/flexprice/retainer/internal/domain/invoice"
	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/testutil"
	"github.com/flexprice/retainer/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type InvoiceServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  InvoiceService
	payments PaymentService
}

func TestInvoiceService(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestParams(&s.BaseServiceTestSuite)
	s.service = NewInvoiceService(params)
	s.payments = NewPaymentService(params)
}

func (s *InvoiceServiceSuite) generate(clientID, issueDate string) *invoice.Invoice {
	resp, err := s.service.GenerateInvoice(s.GetContext(), dto.GenerateInvoiceRequest{
		ClientID:  clientID,
		IssueDate: issueDate,
	})
	s.Require().NoError(err)
	return resp.Invoice
}

func (s *InvoiceServiceSuite) issue(id string) *invoice.Invoice {
	resp, err := s.service.IssueInvoice(s.GetContext(), id)
	s.Require().NoError(err)
	return resp.Invoice
}

// paidThrough marks the client's recurring fee as paid up to end
func (s *InvoiceServiceSuite) paidThrough(c *client.Client, end string) {
	d, err := types.ParseDate(end, s.GetLocation())
	s.Require().NoError(err)
	c.LastPaidPeriodEnd = lo.ToPtr(d)
	s.Require().NoError(s.GetStores().ClientRepo.Update(s.GetContext(), c))
}

func (s *InvoiceServiceSuite) TestGenerateInvoice() {
	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", true))

	inv := s.generate(c.ID, "2025-02-01")

	s.Equal("INV-2025-02-0001", inv.InvoiceNumber)
	s.Equal(c.ID, inv.ClientID)
	s.Equal(types.InvoiceStatusDraft, inv.InvoiceStatus)
	s.Equal(s.Date(2025, 2, 1), inv.IssueDate)
	s.Equal(s.Date(2025, 3, 3), inv.DueDate)
	s.Equal(s.Date(2025, 1, 1), *inv.BillingPeriodStart)
	s.Equal(s.Date(2025, 1, 31), *inv.BillingPeriodEnd)
	s.NotEmpty(inv.IdempotencyKey)

	s.Require().Len(inv.LineItems, 2)
	s.Equal("Retainer(1/1〜1/31)", inv.LineItems[0].Description)
	s.Equal(int64(50000), inv.LineItems[0].Amount)
	s.Equal(c.Installments[0].ID, *inv.LineItems[1].InstallmentID)
	s.Equal(int64(100000), inv.LineItems[1].Amount)

	s.Equal(int64(150000), inv.Subtotal)
	s.True(inv.TaxRate.Equal(decimal.RequireFromString("0.10")))
	s.Equal(int64(15000), inv.TaxAmount)
	s.Equal(int64(165000), inv.TotalAmount)

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(inv.InvoiceNumber, stored.InvoiceNumber)

	events := s.GetPublisher().EventsNamed(types.EventInvoiceGenerated)
	s.Require().Len(events, 1)
	s.Equal(inv.ID, events[0].InvoiceID)
	s.Equal(c.ID, events[0].ClientID)
	s.Contains(string(events[0].Payload), "INV-2025-02-0001")
}

func (s *InvoiceServiceSuite) TestGenerateInvoiceWithOverrides() {
	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))

	resp, err := s.service.GenerateInvoice(s.GetContext(), dto.GenerateInvoiceRequest{
		ClientID:  c.ID,
		IssueDate: "2025-02-01",
		DueDate:   lo.ToPtr("2025-02-15"),
		TaxRate:   lo.ToPtr("0.08"),
		ManualLineItems: []dto.ManualLineItemRequest{
			{Description: "Travel", Quantity: 2, UnitPrice: 5000},
		},
	})
	s.NoError(err)

	inv := resp.Invoice
	s.Equal(s.Date(2025, 2, 15), inv.DueDate)
	s.Require().Len(inv.LineItems, 2)
	s.Equal(types.LineItemKindManual, inv.LineItems[1].Kind)
	s.Equal(int64(60000), inv.Subtotal)
	s.Equal(int64(4800), inv.TaxAmount)
	s.Equal(int64(64800), inv.TotalAmount)
}

func (s *InvoiceServiceSuite) TestGenerateInvoiceValidation() {
	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))

	tests := []struct {
		name string
		req  dto.GenerateInvoiceRequest
	}{
		{"missing client", dto.GenerateInvoiceRequest{IssueDate: "2025-02-01"}},
		{"missing issue date", dto.GenerateInvoiceRequest{ClientID: c.ID}},
		{"malformed issue date", dto.GenerateInvoiceRequest{ClientID: c.ID, IssueDate: "02/01/2025"}},
		{"tax rate above one", dto.GenerateInvoiceRequest{ClientID: c.ID, IssueDate: "2025-02-01", TaxRate: lo.ToPtr("1.5")}},
		{"tax rate not a number", dto.GenerateInvoiceRequest{ClientID: c.ID, IssueDate: "2025-02-01", TaxRate: lo.ToPtr("ten")}},
		{"manual item without description", dto.GenerateInvoiceRequest{
			ClientID: c.ID, IssueDate: "2025-02-01",
			ManualLineItems: []dto.ManualLineItemRequest{{Quantity: 1, UnitPrice: 100}},
		}},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.GenerateInvoice(s.GetContext(), tt.req)
			s.True(ierr.IsValidation(err), "expected validation error, got %v", err)
		})
	}

	_, err := s.service.GenerateInvoice(s.GetContext(), dto.GenerateInvoiceRequest{
		ClientID: "client_missing", IssueDate: "2025-02-01",
	})
	s.True(ierr.IsNotFound(err))
	s.Empty(s.GetPublisher().GetEvents())
}

func (s *InvoiceServiceSuite) TestGenerateInvoiceIsIdempotent() {
	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", true))

	first := s.generate(c.ID, "2025-02-01")
	second := s.generate(c.ID, "2025-02-01")

	s.Equal(first.ID, second.ID)
	s.Equal("INV-2025-02-0001", second.InvoiceNumber)

	counter, err := s.GetStores().CounterRepo.Get(s.GetContext(), 2025, 2)
	s.NoError(err)
	s.Equal(int64(1), counter.Counter)

	listed, err := s.service.ListInvoices(s.GetContext(), nil)
	s.NoError(err)
	s.Len(listed.Items, 1)
	s.Len(s.GetPublisher().EventsNamed(types.EventInvoiceGenerated), 1)
}

func (s *InvoiceServiceSuite) TestGenerateInvoiceRejectsOtherChargesForSamePeriod() {
	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))
	first := s.generate(c.ID, "2025-02-01")

	_, err := s.service.GenerateInvoice(s.GetContext(), dto.GenerateInvoiceRequest{
		ClientID:  c.ID,
		IssueDate: "2025-02-01",
		TaxRate:   lo.ToPtr("0.08"),
		ManualLineItems: []dto.ManualLineItemRequest{
			{Description: "Extra", Quantity: 1, UnitPrice: 9000},
		},
	})
	s.True(errors.Is(err, invoice.ErrChargesDiffer))
	s.True(ierr.IsAlreadyExists(err))

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), first.ID)
	s.NoError(err)
	s.Len(stored.LineItems, 1)
	s.Equal(first.TotalAmount, stored.TotalAmount)
	s.True(stored.TaxRate.Equal(first.TaxRate))

	counter, err := s.GetStores().CounterRepo.Get(s.GetContext(), 2025, 2)
	s.NoError(err)
	s.Equal(int64(1), counter.Counter)

	// a repeat of the original request still returns the draft
	s.Equal(first.ID, s.generate(c.ID, "2025-02-01").ID)

	// the bulk run reports the client as already invoiced
	_, err = s.service.UpdateDraftInvoice(s.GetContext(), first.ID, dto.UpdateDraftInvoiceRequest{
		ManualLineItems: []dto.ManualLineItemRequest{
			{Description: "Extra", Quantity: 1, UnitPrice: 9000},
		},
	})
	s.Require().NoError(err)
	bulk, err := s.service.GenerateInvoices(s.GetContext(), dto.GenerateInvoicesRequest{IssueDate: "2025-02-01"})
	s.NoError(err)
	s.Empty(bulk.Generated)
	s.Empty(bulk.Failed)
	s.Equal([]string{c.ID}, bulk.Skipped)
}

func (s *InvoiceServiceSuite) TestGenerateInvoiceNothingToInvoice() {
	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))
	s.paidThrough(c, "2025-01-31")

	_, err := s.service.GenerateInvoice(s.GetContext(), dto.GenerateInvoiceRequest{
		ClientID:  c.ID,
		IssueDate: "2025-02-20",
	})
	s.True(errors.Is(err, invoice.ErrNothingToInvoice))
	s.True(ierr.IsInvalidOperation(err))

	_, err = s.GetStores().CounterRepo.Get(s.GetContext(), 2025, 2)
	s.True(ierr.IsNotFound(err), "no number may be allocated for an empty invoice")
	s.Empty(s.GetPublisher().GetEvents())
}

func (s *InvoiceServiceSuite) TestGenerateInvoiceRefusesOverlapWithOpenInvoice() {
	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))

	first := s.generate(c.ID, "2025-02-01")

	_, err := s.service.GenerateInvoice(s.GetContext(), dto.GenerateInvoiceRequest{
		ClientID:  c.ID,
		IssueDate: "2025-03-01",
	})
	s.True(errors.Is(err, invoice.ErrOverlappingInvoice))
	s.True(ierr.IsInvalidOperation(err))

	_, err = s.GetStores().CounterRepo.Get(s.GetContext(), 2025, 3)
	s.True(ierr.IsNotFound(err))

	_, err = s.service.CancelInvoice(s.GetContext(), first.ID)
	s.NoError(err)

	second := s.generate(c.ID, "2025-03-01")
	s.Equal("INV-2025-03-0001", second.InvoiceNumber)
	s.Equal(s.Date(2025, 1, 1), *second.BillingPeriodStart)
	s.Equal(s.Date(2025, 2, 28), *second.BillingPeriodEnd)
	s.Equal(int64(100000), second.Subtotal)
}

func (s *InvoiceServiceSuite) TestGenerateInvoiceRollsBackNumberOnFailure() {
	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))

	params := newTestParams(&s.BaseServiceTestSuite)
	params.InvoiceRepo = &failingInvoiceRepo{
		Repository: s.GetStores().InvoiceRepo,
		err:        ierr.NewError("disk full").Mark(ierr.ErrDatabase),
	}
	failing := NewInvoiceService(params)

	_, err := failing.GenerateInvoice(s.GetContext(), dto.GenerateInvoiceRequest{
		ClientID:  c.ID,
		IssueDate: "2025-02-01",
	})
	s.Error(err)

	_, err = s.GetStores().CounterRepo.Get(s.GetContext(), 2025, 2)
	s.True(ierr.IsNotFound(err))

	inv := s.generate(c.ID, "2025-02-01")
	s.Equal("INV-2025-02-0001", inv.InvoiceNumber)
}

func (s *InvoiceServiceSuite) TestNumbersAreSequentialAcrossClients() {
	a := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))
	b := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Globex", false))

	s.Equal("INV-2025-02-0001", s.generate(a.ID, "2025-02-01").InvoiceNumber)
	s.Equal("INV-2025-02-0002", s.generate(b.ID, "2025-02-01").InvoiceNumber)
}

func (s *InvoiceServiceSuite) TestUpdateDraftInvoice() {
	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))
	inv := s.generate(c.ID, "2025-02-01")

	resp, err := s.service.UpdateDraftInvoice(s.GetContext(), inv.ID, dto.UpdateDraftInvoiceRequest{
		ManualLineItems: []dto.ManualLineItemRequest{
			{Description: "Travel", Quantity: 2, UnitPrice: 5000},
		},
		TaxRate: lo.ToPtr("0.08"),
	})
	s.NoError(err)
	s.Require().Len(resp.LineItems, 2)
	s.Equal(types.LineItemKindRecurring, resp.LineItems[0].Kind)
	s.Equal(int64(60000), resp.Subtotal)
	s.Equal(int64(64800), resp.TotalAmount)
	s.Equal(inv.InvoiceNumber, resp.InvoiceNumber)
	s.Equal(int64(2), resp.Version)

	// replacing the manual items again drops the previous ones
	resp, err = s.service.UpdateDraftInvoice(s.GetContext(), inv.ID, dto.UpdateDraftInvoiceRequest{})
	s.NoError(err)
	s.Len(resp.LineItems, 1)
	s.Equal(int64(54000), resp.TotalAmount)

	s.issue(inv.ID)
	_, err = s.service.UpdateDraftInvoice(s.GetContext(), inv.ID, dto.UpdateDraftInvoiceRequest{})
	s.True(errors.Is(err, invoice.ErrInvoiceImmutable))
	s.True(ierr.IsInvalidOperation(err))
}

func (s *InvoiceServiceSuite) TestIssueInvoice() {
	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))
	inv := s.generate(c.ID, "2025-02-01")

	issued := s.issue(inv.ID)
	s.Equal(types.InvoiceStatusSent, issued.InvoiceStatus)
	s.Require().NotNil(issued.SentAt)
	s.Equal(s.GetClock().Now().UTC(), *issued.SentAt)
	s.Len(s.GetPublisher().EventsNamed(types.EventInvoiceIssued), 1)

	_, err := s.service.IssueInvoice(s.GetContext(), inv.ID)
	s.True(ierr.IsInvalidOperation(err))

	_, err = s.service.IssueInvoice(s.GetContext(), "inv_missing")
	s.True(ierr.IsNotFound(err))
}

func (s *InvoiceServiceSuite) TestCancelInvoice() {
	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))

	draft := s.generate(c.ID, "2025-02-01")
	resp, err := s.service.CancelInvoice(s.GetContext(), draft.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusCancelled, resp.InvoiceStatus)
	s.NotNil(resp.CancelledAt)
	s.Len(s.GetPublisher().EventsNamed(types.EventInvoiceCancelled), 1)

	_, err = s.service.CancelInvoice(s.GetContext(), draft.ID)
	s.True(ierr.IsInvalidOperation(err))

	sent := s.generate(c.ID, "2025-02-01")
	s.NotEqual(draft.ID, sent.ID)
	s.issue(sent.ID)
	_, err = s.payments.ConfirmPayment(s.GetContext(), sent.ID, sent.TotalAmount)
	s.Require().NoError(err)

	_, err = s.service.CancelInvoice(s.GetContext(), sent.ID)
	s.True(errors.Is(err, invoice.ErrInvoiceImmutable))
	s.True(ierr.IsInvalidOperation(err))

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), sent.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, stored.InvoiceStatus)
}

func (s *InvoiceServiceSuite) TestDeleteInvoice() {
	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))

	draft := s.generate(c.ID, "2025-02-01")
	s.NoError(s.service.DeleteInvoice(s.GetContext(), draft.ID))
	_, err := s.service.GetInvoice(s.GetContext(), draft.ID)
	s.True(ierr.IsNotFound(err))

	sent := s.generate(c.ID, "2025-02-01")
	s.Equal("INV-2025-02-0002", sent.InvoiceNumber)
	s.issue(sent.ID)
	err = s.service.DeleteInvoice(s.GetContext(), sent.ID)
	s.True(ierr.IsInvalidOperation(err))
	s.False(errors.Is(err, invoice.ErrInvoiceImmutable))

	_, err = s.payments.ConfirmPayment(s.GetContext(), sent.ID, sent.TotalAmount)
	s.Require().NoError(err)
	err = s.service.DeleteInvoice(s.GetContext(), sent.ID)
	s.True(errors.Is(err, invoice.ErrInvoiceImmutable))

	err = s.service.DeleteInvoice(s.GetContext(), "inv_missing")
	s.True(ierr.IsNotFound(err))
}

func (s *InvoiceServiceSuite) TestMarkOverdueInvoices() {
	a := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))
	b := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Globex", false))
	d := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Initech", false))

	late := s.issue(s.generate(a.ID, "2025-02-01").ID)
	s.Equal(s.Date(2025, 3, 3), late.DueDate)

	resp, err := s.service.GenerateInvoice(s.GetContext(), dto.GenerateInvoiceRequest{
		ClientID: b.ID, IssueDate: "2025-02-01", DueDate: lo.ToPtr("2025-03-31"),
	})
	s.Require().NoError(err)
	notYet := s.issue(resp.ID)

	draft := s.generate(d.ID, "2025-02-01")

	// due today is not overdue yet
	s.GetClock().Set(s.Date(2025, 3, 3).Add(23 * time.Hour))
	marked, err := s.service.MarkOverdueInvoices(s.GetContext())
	s.NoError(err)
	s.Empty(marked.Invoices)

	s.GetClock().Set(s.Date(2025, 3, 4))
	marked, err = s.service.MarkOverdueInvoices(s.GetContext())
	s.NoError(err)
	s.Require().Len(marked.Invoices, 1)
	s.Equal(late.ID, marked.Invoices[0].ID)
	s.Equal(types.InvoiceStatusOverdue, marked.Invoices[0].InvoiceStatus)
	s.Len(s.GetPublisher().EventsNamed(types.EventInvoiceOverdue), 1)

	for id, want := range map[string]types.InvoiceStatus{
		late.ID:   types.InvoiceStatusOverdue,
		notYet.ID: types.InvoiceStatusSent,
		draft.ID:  types.InvoiceStatusDraft,
	} {
		got, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), id)
		s.NoError(err)
		s.Equal(want, got.InvoiceStatus)
	}

	marked, err = s.service.MarkOverdueInvoices(s.GetContext())
	s.NoError(err)
	s.Empty(marked.Invoices)

	// an overdue invoice stays payable
	_, err = s.payments.ConfirmPayment(s.GetContext(), late.ID, late.TotalAmount)
	s.NoError(err)
}

func (s *InvoiceServiceSuite) TestGenerateInvoicesInBulk() {
	owes := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", true))
	settled := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Globex", false))
	s.paidThrough(settled, "2025-01-31")

	resp, err := s.service.GenerateInvoices(s.GetContext(), dto.GenerateInvoicesRequest{
		ClientIDs: []string{owes.ID, settled.ID, "client_missing", owes.ID},
		IssueDate: "2025-02-01",
	})
	s.NoError(err)

	s.Require().Len(resp.Generated, 1)
	s.Equal(owes.ID, resp.Generated[0].ClientID)
	s.Equal(int64(165000), resp.Generated[0].TotalAmount)
	s.Equal([]string{settled.ID}, resp.Skipped)
	s.Require().Len(resp.Failed, 1)
	s.Equal("client_missing", resp.Failed[0].ClientID)
	s.NotEmpty(resp.Failed[0].Error)

	// all clients, the drafted invoice is returned again
	resp, err = s.service.GenerateInvoices(s.GetContext(), dto.GenerateInvoicesRequest{IssueDate: "2025-02-01"})
	s.NoError(err)
	s.Require().Len(resp.Generated, 1)
	s.Equal("INV-2025-02-0001", resp.Generated[0].InvoiceNumber)
	s.Equal([]string{settled.ID}, resp.Skipped)
	s.Empty(resp.Failed)

	_, err = s.service.GenerateInvoices(s.GetContext(), dto.GenerateInvoicesRequest{IssueDate: "tomorrow"})
	s.True(ierr.IsValidation(err))
}

func (s *InvoiceServiceSuite) TestGenerateInvoicesNumbersEveryClientOnce() {
	ids := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		ids = append(ids, createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Client", false)).ID)
	}

	resp, err := s.service.GenerateInvoices(s.GetContext(), dto.GenerateInvoicesRequest{
		ClientIDs: ids,
		IssueDate: "2025-02-01",
	})
	s.NoError(err)
	s.Require().Len(resp.Generated, 12)

	numbers := lo.Map(resp.Generated, func(inv *dto.InvoiceResponse, _ int) string { return inv.InvoiceNumber })
	s.Len(lo.Uniq(numbers), 12)
	for i, inv := range resp.Generated {
		s.Equal(ids[i], inv.ClientID)
	}

	counter, err := s.GetStores().CounterRepo.Get(s.GetContext(), 2025, 2)
	s.NoError(err)
	s.Equal(int64(12), counter.Counter)
}

func (s *InvoiceServiceSuite) TestListInvoices() {
	a := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))
	b := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Globex", false))
	invA := s.generate(a.ID, "2025-02-01")
	s.generate(b.ID, "2025-02-01")
	s.issue(invA.ID)

	filter := types.NewInvoiceFilter()
	filter.ClientID = a.ID
	resp, err := s.service.ListInvoices(s.GetContext(), filter)
	s.NoError(err)
	s.Require().Len(resp.Items, 1)
	s.Equal(invA.ID, resp.Items[0].ID)
	s.Equal(1, resp.Pagination.Total)

	byStatus := types.NewInvoiceFilter()
	byStatus.InvoiceStatus = []types.InvoiceStatus{types.InvoiceStatusDraft}
	resp, err = s.service.ListInvoices(s.GetContext(), byStatus)
	s.NoError(err)
	s.Require().Len(resp.Items, 1)
	s.Equal(b.ID, resp.Items[0].ClientID)

	invalid := types.NewInvoiceFilter()
	invalid.InvoiceStatus = []types.InvoiceStatus{"unknown"}
	_, err = s.service.ListInvoices(s.GetContext(), invalid)
	s.True(ierr.IsValidation(err))
}

func (s *InvoiceServiceSuite) TestRenderInvoice() {
	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))
	inv := s.generate(c.ID, "2025-02-01")

	s.GetRenderer().On("Render", mock.Anything, mock.Anything).Return([]byte("doc"), nil).Once()

	doc, err := s.service.RenderInvoice(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal([]byte("doc"), doc)
	s.GetRenderer().AssertExpectations(s.T())

	s.GetRenderer().On("Render", mock.Anything, mock.Anything).Return(nil, errors.New("template missing")).Once()
	_, err = s.service.RenderInvoice(s.GetContext(), inv.ID)
	s.True(ierr.Is(err, ierr.ErrSystem))

	_, err = s.service.RenderInvoice(s.GetContext(), "inv_missing")
	s.True(ierr.IsNotFound(err))

	params := newTestParams(&s.BaseServiceTestSuite)
	params.Renderer = nil
	_, err = NewInvoiceService(params).RenderInvoice(s.GetContext(), inv.ID)
	s.True(ierr.Is(err, ierr.ErrSystem))
}

func (s *InvoiceServiceSuite) TestPublishFailureDoesNotFailGeneration() {
	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))
	s.GetPublisher().FailWith(errors.New("broker down"))

	inv := s.generate(c.ID, "2025-02-01")
	s.Equal("INV-2025-02-0001", inv.InvoiceNumber)
	s.Empty(s.GetPublisher().GetEvents())
}
