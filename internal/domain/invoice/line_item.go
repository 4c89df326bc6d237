package invoice

import (
	"time"

	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/types"
)

// LineItem is one charged row of an invoice. Amounts are minor currency units.
type LineItem struct {
	ID          string             `json:"id"`
	Kind        types.LineItemKind `json:"kind"`
	Description string             `json:"description"`
	Quantity    int64              `json:"quantity"`
	UnitPrice   int64              `json:"unit_price"`
	Amount      int64              `json:"amount"`
	// InstallmentID links an installment line item to the client installment it charges
	InstallmentID *string    `json:"installment_id,omitempty"`
	PeriodStart   *time.Time `json:"period_start,omitempty"`
	PeriodEnd     *time.Time `json:"period_end,omitempty"`
}

// NewLineItem creates a line item with Amount = quantity × unitPrice
func NewLineItem(kind types.LineItemKind, description string, quantity, unitPrice int64) *LineItem {
	return &LineItem{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
		Kind:        kind,
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Amount:      quantity * unitPrice,
	}
}

// Validate validates the invoice line item
func (li *LineItem) Validate() error {
	if err := li.Kind.Validate(); err != nil {
		return err
	}

	if li.Description == "" {
		return ierr.NewError("invoice line item validation failed").
			WithHint("description is required").
			Mark(ierr.ErrValidation)
	}

	if li.Quantity < 0 || li.UnitPrice < 0 || li.Amount < 0 {
		return ierr.WithError(ErrInvalidInvoiceAmount).
			WithHint("quantity, unit price and amount must be non negative").
			WithReportableDetails(map[string]any{
				"description": li.Description,
				"quantity":    li.Quantity,
				"unit_price":  li.UnitPrice,
				"amount":      li.Amount,
			}).
			Mark(ierr.ErrValidation)
	}

	if li.Amount != li.Quantity*li.UnitPrice {
		return ierr.WithError(ErrInvalidInvoiceAmount).
			WithHintf("amount %d must equal quantity %d × unit price %d", li.Amount, li.Quantity, li.UnitPrice).
			Mark(ierr.ErrValidation)
	}

	if li.Kind == types.LineItemKindInstallment && li.InstallmentID == nil {
		return ierr.NewError("invoice line item validation failed").
			WithHint("installment line items must reference their installment").
			Mark(ierr.ErrValidation)
	}

	if li.PeriodStart != nil && li.PeriodEnd != nil && li.PeriodEnd.Before(*li.PeriodStart) {
		return ierr.NewError("invoice line item validation failed").
			WithHint("period_end must be after period_start").
			Mark(ierr.ErrValidation)
	}

	return nil
}

func (li *LineItem) copy() *LineItem {
	out := *li
	if li.InstallmentID != nil {
		id := *li.InstallmentID
		out.InstallmentID = &id
	}
	if li.PeriodStart != nil {
		t := *li.PeriodStart
		out.PeriodStart = &t
	}
	if li.PeriodEnd != nil {
		t := *li.PeriodEnd
		out.PeriodEnd = &t
	}
	return &out
}
