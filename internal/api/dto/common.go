package dto

import (
	"time"

	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// parseDate parses a YYYY-MM-DD request field as a calendar day in loc
func parseDate(field, value string, loc *time.Location) (time.Time, error) {
	d, err := types.ParseDate(value, loc)
	if err != nil {
		return time.Time{}, ierr.WithError(err).
			WithHintf("%s must be a date in YYYY-MM-DD format", field).
			WithReportableDetails(map[string]any{
				field: value,
			}).
			Mark(ierr.ErrValidation)
	}
	return d, nil
}

func parseOptionalDate(field string, value *string, loc *time.Location) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	d, err := parseDate(field, *value, loc)
	if err != nil {
		return nil, err
	}
	return lo.ToPtr(d), nil
}

// parseTaxRate parses an optional decimal tax rate override
func parseTaxRate(value *string) (*decimal.Decimal, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	rate, err := decimal.NewFromString(*value)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("tax_rate must be a decimal number such as 0.10").
			WithReportableDetails(map[string]any{
				"tax_rate": *value,
			}).
			Mark(ierr.ErrValidation)
	}
	return &rate, nil
}
