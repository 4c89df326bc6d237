package service

import (
	"errors"
	"testing"

	"github.com/flexprice/retainer/internal/api/dto"
	"github.com/flexprice/retainer/internal/domain/client"
	"github.com/flexprice/retainer/internal/domain/invoice"
	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/testutil"
	"github.com/flexprice/retainer/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type PaymentServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  PaymentService
	invoices InvoiceService
}

func TestPaymentService(t *testing.T) {
	suite.Run(t, new(PaymentServiceSuite))
}

func (s *PaymentServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestParams(&s.BaseServiceTestSuite)
	s.service = NewPaymentService(params)
	s.invoices = NewInvoiceService(params)
}

// sentInvoice generates and issues a tax free invoice
func (s *PaymentServiceSuite) sentInvoice(clientID, issueDate string, manual ...dto.ManualLineItemRequest) *invoice.Invoice {
	resp, err := s.invoices.GenerateInvoice(s.GetContext(), dto.GenerateInvoiceRequest{
		ClientID:        clientID,
		IssueDate:       issueDate,
		TaxRate:         lo.ToPtr("0"),
		ManualLineItems: manual,
	})
	s.Require().NoError(err)

	issued, err := s.invoices.IssueInvoice(s.GetContext(), resp.ID)
	s.Require().NoError(err)
	return issued.Invoice
}

func (s *PaymentServiceSuite) storedClient(id string) *client.Client {
	c, err := s.GetStores().ClientRepo.Get(s.GetContext(), id)
	s.Require().NoError(err)
	return c
}

func (s *PaymentServiceSuite) storedInvoice(id string) *invoice.Invoice {
	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), id)
	s.Require().NoError(err)
	return inv
}

func (s *PaymentServiceSuite) TestOverpaymentIsAccumulated() {
	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))
	inv := s.sentInvoice(c.ID, "2025-02-01")
	s.Equal(int64(50000), inv.TotalAmount)

	res, err := s.service.ConfirmPayment(s.GetContext(), inv.ID, 55000)
	s.NoError(err)
	s.Equal(int64(5000), res.Difference)
	s.True(res.PeriodAdvanced)
	s.Empty(res.InstallmentsPaid)

	stored := s.storedInvoice(inv.ID)
	s.Equal(types.InvoiceStatusPaid, stored.InvoiceStatus)
	s.Equal(int64(55000), *stored.PaidAmount)
	s.Equal(int64(5000), *stored.PaymentDifference)
	s.Equal(s.GetClock().Now().UTC(), *stored.PaidAt)

	after := s.storedClient(c.ID)
	s.Equal(int64(5000), after.AccumulatedDifference)
	s.Equal(s.Date(2025, 1, 31), *after.LastPaidPeriodEnd)
	s.Equal(int64(2), after.Version)

	events := s.GetPublisher().EventsNamed(types.EventInvoicePaid)
	s.Require().Len(events, 1)
	s.Equal(inv.ID, events[0].InvoiceID)
}

func (s *PaymentServiceSuite) TestFollowUpMonthStartsAfterPaidPeriod() {
	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))
	jan := s.sentInvoice(c.ID, "2025-02-01")
	_, err := s.service.ConfirmPayment(s.GetContext(), jan.ID, 55000)
	s.Require().NoError(err)

	feb := s.sentInvoice(c.ID, "2025-03-01")
	s.Equal("INV-2025-03-0001", feb.InvoiceNumber)
	s.Require().Len(feb.LineItems, 1)
	s.Equal("Retainer(2/1〜2/28)", feb.LineItems[0].Description)
	s.Equal(int64(50000), feb.TotalAmount)

	res, err := s.service.ConfirmPayment(s.GetContext(), feb.ID, 50000)
	s.NoError(err)
	s.Zero(res.Difference)

	after := s.storedClient(c.ID)
	s.Equal(int64(5000), after.AccumulatedDifference)
	s.Equal(s.Date(2025, 2, 28), *after.LastPaidPeriodEnd)
}

func (s *PaymentServiceSuite) TestAccumulatedDifferenceIsConserved() {
	req := retainerClientRequest("Acme", false)
	req.FeeSchedule = nil
	c := createTestClient(&s.BaseServiceTestSuite, req)

	first := s.sentInvoice(c.ID, "2025-02-01", dto.ManualLineItemRequest{Description: "Workshop", Quantity: 1, UnitPrice: 1000})
	second := s.sentInvoice(c.ID, "2025-02-01", dto.ManualLineItemRequest{Description: "Audit", Quantity: 1, UnitPrice: 2000})
	s.NotEqual(first.ID, second.ID)
	s.Nil(first.BillingPeriodEnd)

	_, err := s.service.ConfirmPayment(s.GetContext(), first.ID, 1000)
	s.NoError(err)
	_, err = s.service.ConfirmPayment(s.GetContext(), second.ID, 2500)
	s.NoError(err)

	var sum int64
	for _, id := range []string{first.ID, second.ID} {
		sum += *s.storedInvoice(id).PaymentDifference
	}

	after := s.storedClient(c.ID)
	s.Equal(int64(500), after.AccumulatedDifference)
	s.Equal(sum, after.AccumulatedDifference)
	s.Nil(after.LastPaidPeriodEnd)
}

func (s *PaymentServiceSuite) TestUnderpaymentIsNegativeDifference() {
	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))
	inv := s.sentInvoice(c.ID, "2025-02-01")

	res, err := s.service.ConfirmPayment(s.GetContext(), inv.ID, 48000)
	s.NoError(err)
	s.Equal(int64(-2000), res.Difference)
	s.Equal(int64(-2000), s.storedClient(c.ID).AccumulatedDifference)
}

func (s *PaymentServiceSuite) TestInstallmentIsPaidByReference() {
	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", true))
	inv := s.sentInvoice(c.ID, "2025-02-01")
	s.Equal(int64(150000), inv.TotalAmount)

	res, err := s.service.ConfirmPayment(s.GetContext(), inv.ID, 150000)
	s.NoError(err)
	s.Equal([]string{c.Installments[0].ID}, res.InstallmentsPaid)

	after := s.storedClient(c.ID)
	s.Require().Len(after.Installments, 1)
	s.True(after.Installments[0].Paid)
	s.Equal(inv.ID, *after.Installments[0].PaidByInvoiceID)
	s.NotNil(after.Installments[0].PaidAt)

	next := s.sentInvoice(c.ID, "2025-03-01")
	s.Require().Len(next.LineItems, 1)
	s.Equal(types.LineItemKindRecurring, next.LineItems[0].Kind)
}

func (s *PaymentServiceSuite) TestDraftIsNotPayable() {
	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))
	draft, err := s.invoices.GenerateInvoice(s.GetContext(), dto.GenerateInvoiceRequest{
		ClientID:  c.ID,
		IssueDate: "2025-02-01",
	})
	s.Require().NoError(err)

	_, err = s.service.ConfirmPayment(s.GetContext(), draft.ID, 55000)
	s.True(errors.Is(err, invoice.ErrInvoiceNotPayable))
	s.True(ierr.IsInvalidOperation(err))

	after := s.storedClient(c.ID)
	s.Zero(after.AccumulatedDifference)
	s.Nil(after.LastPaidPeriodEnd)
	s.Empty(s.GetPublisher().EventsNamed(types.EventInvoicePaid))
}

func (s *PaymentServiceSuite) TestPaymentIsAppliedOnce() {
	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))
	inv := s.sentInvoice(c.ID, "2025-02-01")

	_, err := s.service.ConfirmPayment(s.GetContext(), inv.ID, 55000)
	s.Require().NoError(err)

	_, err = s.service.ConfirmPayment(s.GetContext(), inv.ID, 55000)
	s.True(errors.Is(err, invoice.ErrInvoiceImmutable))

	s.Equal(int64(5000), s.storedClient(c.ID).AccumulatedDifference)
	s.Len(s.GetPublisher().EventsNamed(types.EventInvoicePaid), 1)
}

func (s *PaymentServiceSuite) TestConfirmPaymentValidation() {
	_, err := s.service.ConfirmPayment(s.GetContext(), "", 1000)
	s.True(ierr.IsValidation(err))

	_, err = s.service.ConfirmPayment(s.GetContext(), "inv_1", -1)
	s.True(ierr.IsValidation(err))

	_, err = s.service.ConfirmPayment(s.GetContext(), "inv_missing", 1000)
	s.True(ierr.IsNotFound(err))
}

func (s *PaymentServiceSuite) TestFailedClientWriteLeavesInvoiceUntouched() {
	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))
	inv := s.sentInvoice(c.ID, "2025-02-01")

	params := newTestParams(&s.BaseServiceTestSuite)
	params.ClientRepo = &conflictingClientRepo{
		Repository: s.GetStores().ClientRepo,
		conflicts:  -1,
		err:        ierr.NewError("disk full").Mark(ierr.ErrDatabase),
	}

	_, err := NewPaymentService(params).ConfirmPayment(s.GetContext(), inv.ID, 55000)
	s.Error(err)
	s.False(ierr.IsTransient(err))

	stored := s.storedInvoice(inv.ID)
	s.Equal(types.InvoiceStatusSent, stored.InvoiceStatus)
	s.Nil(stored.PaidAmount)
	s.Equal(inv.Version, stored.Version)

	after := s.storedClient(c.ID)
	s.Zero(after.AccumulatedDifference)
	s.Nil(after.LastPaidPeriodEnd)
	s.Empty(s.GetPublisher().EventsNamed(types.EventInvoicePaid))
}

func (s *PaymentServiceSuite) TestConflictingPaymentIsRetried() {
	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))
	inv := s.sentInvoice(c.ID, "2025-02-01")

	repo := &conflictingClientRepo{
		Repository: s.GetStores().ClientRepo,
		conflicts:  1,
		err:        ierr.NewError("client modified concurrently").Mark(ierr.ErrVersionConflict),
	}
	params := newTestParams(&s.BaseServiceTestSuite)
	params.ClientRepo = repo

	res, err := NewPaymentService(params).ConfirmPayment(s.GetContext(), inv.ID, 55000)
	s.NoError(err)
	s.Equal(int64(5000), res.Difference)
	s.Equal(2, repo.calls)

	stored := s.storedInvoice(inv.ID)
	s.Equal(types.InvoiceStatusPaid, stored.InvoiceStatus)
	s.Equal(inv.Version+1, stored.Version)
	s.Equal(int64(5000), s.storedClient(c.ID).AccumulatedDifference)
}

func (s *PaymentServiceSuite) TestExhaustedRetriesAreTransient() {
	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))
	inv := s.sentInvoice(c.ID, "2025-02-01")

	repo := &conflictingClientRepo{
		Repository: s.GetStores().ClientRepo,
		conflicts:  -1,
		err:        ierr.NewError("client modified concurrently").Mark(ierr.ErrVersionConflict),
	}
	params := newTestParams(&s.BaseServiceTestSuite)
	params.ClientRepo = repo

	_, err := NewPaymentService(params).ConfirmPayment(s.GetContext(), inv.ID, 55000)
	s.True(ierr.IsTransient(err))
	s.Equal(4, repo.calls)

	s.Equal(types.InvoiceStatusSent, s.storedInvoice(inv.ID).InvoiceStatus)
	s.Zero(s.storedClient(c.ID).AccumulatedDifference)
}

func (s *PaymentServiceSuite) TestRecordRefund() {
	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))
	inv := s.sentInvoice(c.ID, "2025-02-01")
	_, err := s.service.ConfirmPayment(s.GetContext(), inv.ID, 55000)
	s.Require().NoError(err)

	resp, err := s.service.RecordRefund(s.GetContext(), dto.RecordRefundRequest{InvoiceID: inv.ID, Amount: 5000})
	s.NoError(err)
	s.Equal(types.InvoiceStatusPartiallyRefunded, resp.InvoiceStatus)
	s.Equal(int64(5000), resp.RefundedAmount)
	s.Len(s.GetPublisher().EventsNamed(types.EventInvoicePartialRefunded), 1)

	_, err = s.service.RecordRefund(s.GetContext(), dto.RecordRefundRequest{InvoiceID: inv.ID, Amount: 50001})
	s.True(errors.Is(err, invoice.ErrInvalidInvoiceAmount))
	s.True(ierr.IsValidation(err))

	resp, err = s.service.RecordRefund(s.GetContext(), dto.RecordRefundRequest{InvoiceID: inv.ID, Amount: 50000})
	s.NoError(err)
	s.Equal(types.InvoiceStatusRefunded, resp.InvoiceStatus)
	s.Equal(int64(55000), resp.RefundedAmount)
	s.Len(s.GetPublisher().EventsNamed(types.EventInvoiceRefunded), 1)

	_, err = s.service.RecordRefund(s.GetContext(), dto.RecordRefundRequest{InvoiceID: inv.ID, Amount: 1})
	s.Error(err)

	// refunds leave the client's balance and paid period alone
	after := s.storedClient(c.ID)
	s.Equal(int64(5000), after.AccumulatedDifference)
	s.Equal(s.Date(2025, 1, 31), *after.LastPaidPeriodEnd)
}

func (s *PaymentServiceSuite) TestRecordRefundValidation() {
	_, err := s.service.RecordRefund(s.GetContext(), dto.RecordRefundRequest{InvoiceID: "inv_1", Amount: 0})
	s.True(ierr.IsValidation(err))

	_, err = s.service.RecordRefund(s.GetContext(), dto.RecordRefundRequest{InvoiceID: "inv_missing", Amount: 10})
	s.True(ierr.IsNotFound(err))

	c := createTestClient(&s.BaseServiceTestSuite, retainerClientRequest("Acme", false))
	draft, err := s.invoices.GenerateInvoice(s.GetContext(), dto.GenerateInvoiceRequest{ClientID: c.ID, IssueDate: "2025-02-01"})
	s.Require().NoError(err)
	_, err = s.service.RecordRefund(s.GetContext(), dto.RecordRefundRequest{InvoiceID: draft.ID, Amount: 10})
	s.True(ierr.IsInvalidOperation(err))
}
