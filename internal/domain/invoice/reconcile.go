package invoice

import (
	"time"

	"github.com/flexprice/retainer/internal/domain/client"
	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/types"
	"github.com/samber/lo"
)

// ReconcileResult holds the invoice and client as they are after a payment
// or refund has been applied
type ReconcileResult struct {
	Invoice *Invoice       `json:"invoice"`
	Client  *client.Client `json:"client"`

	// Difference is PaidAmount - TotalAmount of the reconciled payment
	Difference int64 `json:"difference"`

	// PeriodAdvanced is true when the client's last paid period end moved
	PeriodAdvanced bool `json:"period_advanced"`

	// InstallmentsPaid lists the client installments flipped to paid
	InstallmentsPaid []string `json:"installments_paid,omitempty"`
}

// Reconcile applies an operator confirmed payment to copies of inv and c.
// Neither argument is modified; on error nothing is applied.
func Reconcile(inv *Invoice, c *client.Client, paidAmount int64, now time.Time) (*ReconcileResult, error) {
	if inv == nil || c == nil {
		return nil, ierr.NewError("invoice and client are required").
			WithHint("Please provide the invoice and the client to reconcile").
			Mark(ierr.ErrValidation)
	}

	if inv.ClientID != c.ID {
		return nil, ierr.WithError(ErrClientMismatch).
			WithHintf("invoice %s belongs to client %s, not %s", inv.ID, inv.ClientID, c.ID).
			Mark(ierr.ErrValidation)
	}

	if paidAmount < 0 {
		return nil, ierr.NewError("paid amount must be non negative").
			WithHint("Please provide the amount actually received").
			WithReportableDetails(map[string]any{
				"paid_amount": paidAmount,
			}).
			Mark(ierr.ErrValidation)
	}

	if !inv.InvoiceStatus.IsPayable() {
		if inv.IsImmutable() {
			return nil, ierr.WithError(ErrInvoiceImmutable).
				WithHintf("invoice %s is already %s", inv.InvoiceNumber, inv.InvoiceStatus).
				Mark(ierr.ErrInvalidOperation)
		}
		return nil, ierr.WithError(ErrInvoiceNotPayable).
			WithHintf("invoice %s is %s, only sent or overdue invoices can be paid", inv.InvoiceNumber, inv.InvoiceStatus).
			WithReportableDetails(map[string]any{
				"invoice_id":     inv.ID,
				"invoice_status": inv.InvoiceStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	updatedInv := inv.Copy()
	updatedClient := c.Copy()
	result := &ReconcileResult{Invoice: updatedInv, Client: updatedClient}

	if inv.BillingPeriodEnd != nil {
		end := *inv.BillingPeriodEnd
		marker := c.LastPaidPeriodEnd
		switch {
		case marker == nil || end.After(*marker):
			updatedClient.LastPaidPeriodEnd = lo.ToPtr(end)
			result.PeriodAdvanced = true
		case end.Before(*marker):
			return nil, ierr.WithError(ErrPeriodRegression).
				WithHintf("invoice %s covers up to %s but client %s is already paid through %s",
					inv.InvoiceNumber, types.FormatDate(end), c.ID, types.FormatDate(*marker)).
				WithReportableDetails(map[string]any{
					"invoice_id":           inv.ID,
					"billing_period_end":   types.FormatDate(end),
					"last_paid_period_end": types.FormatDate(*marker),
				}).
				Mark(ierr.ErrInvalidOperation)
		}
	}

	for _, id := range inv.InstallmentIDs() {
		if err := updatedClient.MarkInstallmentPaid(id, inv.ID, now); err != nil {
			return nil, err
		}
		result.InstallmentsPaid = append(result.InstallmentsPaid, id)
	}

	diff := paidAmount - inv.TotalAmount
	updatedInv.PaidAmount = lo.ToPtr(paidAmount)
	updatedInv.PaymentDifference = lo.ToPtr(diff)
	updatedInv.PaidAt = lo.ToPtr(now)
	if err := updatedInv.TransitionTo(types.InvoiceStatusPaid); err != nil {
		return nil, err
	}
	updatedClient.AccumulatedDifference += diff
	result.Difference = diff

	return result, nil
}

// Refund records a refund of amount against a copy of inv. The refundable
// base is the confirmed paid amount, else the invoice total. Refunds never
// touch the client's balance or paid period.
func Refund(inv *Invoice, amount int64) (*Invoice, error) {
	if inv == nil {
		return nil, ierr.NewError("invoice is required").
			WithHint("Please provide the invoice to refund").
			Mark(ierr.ErrValidation)
	}

	if amount <= 0 {
		return nil, ierr.NewError("refund amount must be positive").
			WithHint("Please provide a positive refund amount").
			WithReportableDetails(map[string]any{
				"amount": amount,
			}).
			Mark(ierr.ErrValidation)
	}

	base := inv.TotalAmount
	if inv.PaidAmount != nil {
		base = *inv.PaidAmount
	}

	refunded := inv.RefundedAmount + amount
	if refunded > base {
		return nil, ierr.WithError(ErrInvalidInvoiceAmount).
			WithHintf("refunding %d would exceed the refundable %d (already refunded %d)", amount, base, inv.RefundedAmount).
			WithReportableDetails(map[string]any{
				"invoice_id":      inv.ID,
				"amount":          amount,
				"refunded_amount": inv.RefundedAmount,
				"refundable":      base,
			}).
			Mark(ierr.ErrValidation)
	}

	target := types.InvoiceStatusPartiallyRefunded
	if refunded == base {
		target = types.InvoiceStatusRefunded
	}

	out := inv.Copy()
	if out.InvoiceStatus != target {
		if err := types.ValidateInvoiceStatusTransition(out.InvoiceStatus, target); err != nil {
			return nil, err
		}
	}
	out.InvoiceStatus = target
	out.RefundedAmount = refunded
	return out, nil
}
