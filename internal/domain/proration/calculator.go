package proration

import (
	"context"
	"fmt"
	"time"

	"github.com/flexprice/retainer/internal/types"
	"github.com/shopspring/decimal"
)

// Calculator computes the recurring fee a client owes up to a cutoff.
type Calculator interface {
	// CalculateUnpaid returns nil when nothing is owed.
	CalculateUnpaid(ctx context.Context, params UnpaidParams) (*UnpaidResult, error)
}

// NewCalculator creates the day-count calculator.
func NewCalculator() Calculator {
	return &dayCountCalculator{}
}

// dayCountCalculator walks the unpaid range month by month and prorates every
// schedule segment by owed days over the days of its month.
type dayCountCalculator struct{}

func (c *dayCountCalculator) CalculateUnpaid(ctx context.Context, params UnpaidParams) (*UnpaidResult, error) {
	loc := params.Location
	if loc == nil {
		loc = params.Cutoff.Location()
	}

	cutoff := types.AsDate(params.Cutoff, loc)
	schedule := params.Schedule

	start := unpaidStart(params, cutoff, loc)
	if start.After(cutoff) {
		return nil, nil
	}

	segments, err := schedule.Segments(start, cutoff)
	if err != nil {
		return nil, err
	}

	result := &UnpaidResult{
		PeriodStart: start,
		PeriodEnd:   cutoff,
	}

	for month := types.StartOfMonth(start); !month.After(cutoff); month = types.NextMonth(month) {
		owedFrom := types.MaxDate(month, start)
		owedTo := types.MinDate(types.EndOfMonth(month), cutoff)
		daysInMonth := types.DaysInMonth(month.Year(), month.Month())

		for _, seg := range segments {
			from := types.MaxDate(seg.Start, owedFrom)
			to := types.MinDate(seg.End, owedTo)
			if to.Before(from) {
				continue
			}

			owed := types.DaysInclusive(from, to)
			charge := MonthCharge{
				Start:         from,
				End:           to,
				OwedDays:      owed,
				DaysInMonth:   daysInMonth,
				MonthlyAmount: seg.Entry.MonthlyAmount,
				FullMonth:     owed == daysInMonth,
				Description:   seg.Entry.Description,
			}
			charge.Amount = Prorate(seg.Entry.MonthlyAmount, owed, daysInMonth)

			result.Charges = append(result.Charges, charge)
			result.Total += charge.Amount
			result.Description = seg.Entry.Description
		}
	}

	if len(result.Charges) == 0 {
		return nil, nil
	}

	result.Label = FormatLabel(result.Description, result.PeriodStart, result.PeriodEnd)
	return result, nil
}

// unpaidStart is the day after the last paid day, else the first scheduled
// day, else the first day of the cutoff month.
func unpaidStart(params UnpaidParams, cutoff time.Time, loc *time.Location) time.Time {
	if params.LastPaidPeriodEnd != nil {
		return types.AddDays(types.AsDate(*params.LastPaidPeriodEnd, loc), 1)
	}
	if first, ok := params.Schedule.FirstEffectiveFrom(); ok {
		return types.AsDate(first, loc)
	}
	return types.StartOfMonth(cutoff)
}

// Prorate charges the full monthly amount for a full month and
// round(monthly × owed / daysInMonth), half away from zero, otherwise.
func Prorate(monthly int64, owedDays, daysInMonth int) int64 {
	if owedDays <= 0 || daysInMonth <= 0 {
		return 0
	}
	if owedDays >= daysInMonth {
		return monthly
	}
	return decimal.NewFromInt(monthly).
		Mul(decimal.NewFromInt(int64(owedDays))).
		Div(decimal.NewFromInt(int64(daysInMonth))).
		Round(0).
		IntPart()
}

// FormatLabel renders "{description}({m}/{d}〜{m}/{d})", with years when the
// period crosses into another calendar year.
func FormatLabel(description string, start, end time.Time) string {
	if start.Year() != end.Year() {
		return fmt.Sprintf("%s(%d/%d/%d〜%d/%d/%d)", description,
			start.Year(), int(start.Month()), start.Day(),
			end.Year(), int(end.Month()), end.Day())
	}
	return fmt.Sprintf("%s(%d/%d〜%d/%d)", description,
		int(start.Month()), start.Day(),
		int(end.Month()), end.Day())
}
