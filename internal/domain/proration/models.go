package proration

import (
	"time"

	"github.com/flexprice/retainer/internal/domain/client"
)

// UnpaidParams holds the input of an unpaid-period calculation.
type UnpaidParams struct {
	Schedule          client.FeeSchedule // Recurring fee history of the client
	LastPaidPeriodEnd *time.Time         // Last day already paid, nil before the first payment
	Cutoff            time.Time          // Last day to bill, inclusive
	Location          *time.Location     // Calendar all days are counted in
}

// MonthCharge is the charge of one schedule segment inside one calendar month.
type MonthCharge struct {
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	OwedDays      int       `json:"owed_days"`
	DaysInMonth   int       `json:"days_in_month"`
	MonthlyAmount int64     `json:"monthly_amount"`
	Amount        int64     `json:"amount"`
	FullMonth     bool      `json:"full_month"`
	Description   string    `json:"description"`
}

// UnpaidResult is the recurring fee owed for [PeriodStart, PeriodEnd].
type UnpaidResult struct {
	PeriodStart time.Time     `json:"period_start"`
	PeriodEnd   time.Time     `json:"period_end"`
	Charges     []MonthCharge `json:"charges"`
	Total       int64         `json:"total"`
	// Description of the entry charged last
	Description string `json:"description"`
	// Label is the line item text, e.g. "Retainer(1/1〜1/31)"
	Label string `json:"label"`
}
