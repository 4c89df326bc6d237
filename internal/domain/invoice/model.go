package invoice

import (
	"context"
	"time"

	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Invoice is a bill issued to one client
type Invoice struct {
	// ID is the unique identifier for the invoice
	ID string `db:"id" json:"id"`

	// InvoiceNumber is the human readable INV-YYYY-MM-NNNN number
	InvoiceNumber string `db:"invoice_number" json:"invoice_number"`

	ClientID string `db:"client_id" json:"client_id"`

	LineItems []*LineItem `db:"-" json:"line_items"`

	// BillingPeriodStart and BillingPeriodEnd bound the recurring charge.
	// Both are nil when the invoice only carries installments or manual items.
	BillingPeriodStart *time.Time `db:"billing_period_start" json:"billing_period_start,omitempty"`
	BillingPeriodEnd   *time.Time `db:"billing_period_end" json:"billing_period_end,omitempty"`

	Subtotal    int64           `db:"subtotal" json:"subtotal"`
	TaxRate     decimal.Decimal `db:"tax_rate" json:"tax_rate"`
	TaxAmount   int64           `db:"tax_amount" json:"tax_amount"`
	TotalAmount int64           `db:"total_amount" json:"total_amount"`

	InvoiceStatus types.InvoiceStatus `db:"invoice_status" json:"invoice_status"`

	// PaidAmount is the amount the operator confirmed as received
	PaidAmount *int64 `db:"paid_amount" json:"paid_amount,omitempty"`

	// PaymentDifference is PaidAmount - TotalAmount
	PaymentDifference *int64 `db:"payment_difference" json:"payment_difference,omitempty"`

	RefundedAmount int64 `db:"refunded_amount" json:"refunded_amount"`

	IssueDate   time.Time  `db:"issue_date" json:"issue_date"`
	DueDate     time.Time  `db:"due_date" json:"due_date"`
	SentAt      *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	PaidAt      *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`

	// IdempotencyKey is unique among non cancelled invoices
	IdempotencyKey string `db:"idempotency_key" json:"idempotency_key"`

	Version int64 `db:"version" json:"version"`

	types.BaseModel
}

// New creates a draft invoice for the client with its totals computed
func New(ctx context.Context, clientID string, items []*LineItem, taxRate decimal.Decimal, issueDate, dueDate time.Time) (*Invoice, error) {
	inv := &Invoice{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		ClientID:      clientID,
		LineItems:     items,
		InvoiceStatus: types.InvoiceStatusDraft,
		IssueDate:     issueDate,
		DueDate:       dueDate,
		Version:       1,
		BaseModel:     types.GetDefaultBaseModel(ctx),
	}
	inv.deriveBillingPeriod()
	if err := inv.ApplyTotals(taxRate); err != nil {
		return nil, err
	}
	return inv, nil
}

// ApplyTotals recomputes subtotal, tax and total from the line items
func (i *Invoice) ApplyTotals(taxRate decimal.Decimal) error {
	totals, err := ComputeTotals(i.LineItems, taxRate)
	if err != nil {
		return err
	}
	i.Subtotal = totals.Subtotal
	i.TaxRate = totals.TaxRate
	i.TaxAmount = totals.TaxAmount
	i.TotalAmount = totals.Total
	return nil
}

// deriveBillingPeriod takes the billing period from the recurring line item
func (i *Invoice) deriveBillingPeriod() {
	i.BillingPeriodStart, i.BillingPeriodEnd = nil, nil
	for _, item := range i.LineItems {
		if item.Kind != types.LineItemKindRecurring || item.PeriodStart == nil || item.PeriodEnd == nil {
			continue
		}
		i.BillingPeriodStart = lo.ToPtr(*item.PeriodStart)
		i.BillingPeriodEnd = lo.ToPtr(*item.PeriodEnd)
	}
}

// ReplaceLineItems swaps the line items of a draft and recomputes its totals
func (i *Invoice) ReplaceLineItems(items []*LineItem, taxRate decimal.Decimal) error {
	if i.InvoiceStatus != types.InvoiceStatusDraft {
		return ierr.WithError(ErrInvoiceImmutable).
			WithHintf("invoice %s is %s, only drafts can be edited", i.ID, i.InvoiceStatus).
			Mark(ierr.ErrInvalidOperation)
	}
	i.LineItems = items
	i.deriveBillingPeriod()
	return i.ApplyTotals(taxRate)
}

// Validate validates the invoice
func (i *Invoice) Validate() error {
	if i.ClientID == "" {
		return ierr.NewError("client_id is required").
			WithHint("Please provide the client the invoice is issued to").
			Mark(ierr.ErrValidation)
	}

	if err := i.InvoiceStatus.Validate(); err != nil {
		return err
	}

	if len(i.LineItems) == 0 {
		return ierr.WithError(ErrNothingToInvoice).
			WithHint("an invoice needs at least one line item").
			Mark(ierr.ErrValidation)
	}

	if i.IssueDate.IsZero() || i.DueDate.IsZero() {
		return ierr.NewError("issue_date and due_date are required").
			WithHint("Please provide the issue and due dates").
			Mark(ierr.ErrValidation)
	}

	if i.DueDate.Before(i.IssueDate) {
		return ierr.NewError("due_date must not be before issue_date").
			WithHint("Please provide a due date on or after the issue date").
			WithReportableDetails(map[string]any{
				"issue_date": types.FormatDate(i.IssueDate),
				"due_date":   types.FormatDate(i.DueDate),
			}).
			Mark(ierr.ErrValidation)
	}

	if i.BillingPeriodStart != nil && i.BillingPeriodEnd != nil && i.BillingPeriodEnd.Before(*i.BillingPeriodStart) {
		return ierr.NewError("billing_period_end must not be before billing_period_start").
			WithHint("Please provide a valid billing period").
			Mark(ierr.ErrValidation)
	}

	totals, err := ComputeTotals(i.LineItems, i.TaxRate)
	if err != nil {
		return err
	}
	if totals.Subtotal != i.Subtotal || totals.TaxAmount != i.TaxAmount || totals.Total != i.TotalAmount {
		return ierr.WithError(ErrInvalidInvoiceAmount).
			WithHint("invoice totals do not match its line items").
			WithReportableDetails(map[string]any{
				"subtotal":          i.Subtotal,
				"expected_subtotal": totals.Subtotal,
				"tax_amount":        i.TaxAmount,
				"expected_tax":      totals.TaxAmount,
				"total_amount":      i.TotalAmount,
				"expected_total":    totals.Total,
			}).
			Mark(ierr.ErrValidation)
	}

	if i.RefundedAmount < 0 {
		return ierr.WithError(ErrInvalidInvoiceAmount).
			WithHint("refunded amount must be non negative").
			Mark(ierr.ErrValidation)
	}

	return nil
}

// CheckIntegrity verifies an invoice read back from the store
func (i *Invoice) CheckIntegrity() error {
	if err := i.Validate(); err != nil {
		return ierr.WithError(err).
			WithHintf("stored invoice %s is corrupt", i.ID).
			Mark(ierr.ErrDataIntegrity)
	}
	return nil
}

// NormalizeDates re-anchors the calendar dates of the invoice to midnight in loc
func (i *Invoice) NormalizeDates(loc *time.Location) {
	i.IssueDate = types.AsDate(i.IssueDate, loc)
	i.DueDate = types.AsDate(i.DueDate, loc)
	if i.BillingPeriodStart != nil {
		i.BillingPeriodStart = lo.ToPtr(types.AsDate(*i.BillingPeriodStart, loc))
	}
	if i.BillingPeriodEnd != nil {
		i.BillingPeriodEnd = lo.ToPtr(types.AsDate(*i.BillingPeriodEnd, loc))
	}
	for _, item := range i.LineItems {
		if item.PeriodStart != nil {
			item.PeriodStart = lo.ToPtr(types.AsDate(*item.PeriodStart, loc))
		}
		if item.PeriodEnd != nil {
			item.PeriodEnd = lo.ToPtr(types.AsDate(*item.PeriodEnd, loc))
		}
	}
}

// InstallmentIDs returns the client installments charged by this invoice
func (i *Invoice) InstallmentIDs() []string {
	ids := make([]string, 0)
	for _, item := range i.LineItems {
		if item.InstallmentID != nil {
			ids = append(ids, *item.InstallmentID)
		}
	}
	return ids
}

// IsOpen reports whether the invoice may still be paid or edited
func (i *Invoice) IsOpen() bool {
	switch i.InvoiceStatus {
	case types.InvoiceStatusDraft, types.InvoiceStatusSent, types.InvoiceStatusOverdue:
		return true
	default:
		return false
	}
}

// Overlaps reports whether i and other charge a common recurring day or a
// common installment
func (i *Invoice) Overlaps(other *Invoice) bool {
	if i.BillingPeriodStart != nil && i.BillingPeriodEnd != nil &&
		other.BillingPeriodStart != nil && other.BillingPeriodEnd != nil &&
		!i.BillingPeriodStart.After(*other.BillingPeriodEnd) &&
		!other.BillingPeriodStart.After(*i.BillingPeriodEnd) {
		return true
	}
	return len(lo.Intersect(i.InstallmentIDs(), other.InstallmentIDs())) > 0
}

// SameCharges reports whether other bills the same lines at the same tax
// rate and due date as i
func (i *Invoice) SameCharges(other *Invoice) bool {
	if !i.TaxRate.Equal(other.TaxRate) || !i.DueDate.Equal(other.DueDate) ||
		len(i.LineItems) != len(other.LineItems) {
		return false
	}
	for n, item := range i.LineItems {
		o := other.LineItems[n]
		if item.Kind != o.Kind ||
			item.Description != o.Description ||
			item.Quantity != o.Quantity ||
			item.UnitPrice != o.UnitPrice ||
			lo.FromPtr(item.InstallmentID) != lo.FromPtr(o.InstallmentID) {
			return false
		}
	}
	return true
}

// IsImmutable reports whether the invoice rejects edits, cancellation and deletion
func (i *Invoice) IsImmutable() bool {
	return i.InvoiceStatus.IsImmutable()
}

// IsOverdue reports whether a sent invoice is past its due date on day today
func (i *Invoice) IsOverdue(today time.Time) bool {
	return i.InvoiceStatus == types.InvoiceStatusSent && today.After(i.DueDate)
}

// TransitionTo moves the invoice to status to if the lifecycle allows it
func (i *Invoice) TransitionTo(to types.InvoiceStatus) error {
	if err := types.ValidateInvoiceStatusTransition(i.InvoiceStatus, to); err != nil {
		if i.IsImmutable() {
			return ierr.WithError(ErrInvoiceImmutable).
				WithHintf("invoice %s is %s and cannot become %s", i.ID, i.InvoiceStatus, to).
				Mark(ierr.ErrInvalidOperation)
		}
		return err
	}
	i.InvoiceStatus = to
	return nil
}

// Copy returns a deep copy of the invoice
func (i *Invoice) Copy() *Invoice {
	if i == nil {
		return nil
	}
	out := *i
	out.LineItems = make([]*LineItem, len(i.LineItems))
	for idx, item := range i.LineItems {
		out.LineItems[idx] = item.copy()
	}
	copyTime := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		return lo.ToPtr(*t)
	}
	copyInt := func(v *int64) *int64 {
		if v == nil {
			return nil
		}
		return lo.ToPtr(*v)
	}
	out.BillingPeriodStart = copyTime(i.BillingPeriodStart)
	out.BillingPeriodEnd = copyTime(i.BillingPeriodEnd)
	out.SentAt = copyTime(i.SentAt)
	out.PaidAt = copyTime(i.PaidAt)
	out.CancelledAt = copyTime(i.CancelledAt)
	out.PaidAmount = copyInt(i.PaidAmount)
	out.PaymentDifference = copyInt(i.PaymentDifference)
	return &out
}
