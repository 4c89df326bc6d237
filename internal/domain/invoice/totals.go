package invoice

import (
	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/shopspring/decimal"
)

// Totals is the money summary of a set of line items
type Totals struct {
	Subtotal  int64           `json:"subtotal"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	TaxAmount int64           `json:"tax_amount"`
	Total     int64           `json:"total"`
}

// ComputeTotals sums the line items and applies the flat tax rate.
// TaxAmount = round(Subtotal × taxRate), half away from zero.
func ComputeTotals(items []*LineItem, taxRate decimal.Decimal) (*Totals, error) {
	if err := ValidateTaxRate(taxRate); err != nil {
		return nil, err
	}

	var subtotal int64
	for _, item := range items {
		if item == nil {
			continue
		}
		if err := item.Validate(); err != nil {
			return nil, err
		}
		subtotal += item.Amount
	}

	tax := CalculateTax(subtotal, taxRate)
	return &Totals{
		Subtotal:  subtotal,
		TaxRate:   taxRate,
		TaxAmount: tax,
		Total:     subtotal + tax,
	}, nil
}

// CalculateTax rounds subtotal × rate to whole minor units
func CalculateTax(subtotal int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(subtotal).Mul(rate).Round(0).IntPart()
}

// ValidateTaxRate rejects rates outside [0, 1]
func ValidateTaxRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return ierr.WithError(ErrInvalidTaxRate).
			WithHintf("tax rate %s must be between 0 and 1", rate.String()).
			Mark(ierr.ErrValidation)
	}
	return nil
}
