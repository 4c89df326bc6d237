package dto

import (
	"context"
	"time"

	"github.com/flexprice/retainer/internal/domain/client"
	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/types"
	"github.com/flexprice/retainer/internal/validator"
)

// FeeScheduleEntryRequest is one recurring fee of a client definition
type FeeScheduleEntryRequest struct {
	// effective_from is the first day the fee applies, YYYY-MM-DD
	EffectiveFrom string `json:"effective_from" yaml:"effective_from" validate:"required,date"`

	// effective_to is the exclusive end of the fee, omitted for the current fee
	EffectiveTo *string `json:"effective_to,omitempty" yaml:"effective_to,omitempty" validate:"omitempty,date"`

	// monthly_amount is the monthly fee in minor currency units
	MonthlyAmount int64 `json:"monthly_amount" yaml:"monthly_amount" validate:"min=0"`

	// description is the line item text of the fee
	Description string `json:"description" yaml:"description" validate:"required,max=255"`
}

// InstallmentRequest is one one-time charge of a client definition
type InstallmentRequest struct {
	Label       types.InstallmentLabel `json:"label" yaml:"label" validate:"required"`
	Description string                 `json:"description,omitempty" yaml:"description,omitempty" validate:"omitempty,max=255"`
	Amount      int64                  `json:"amount" yaml:"amount" validate:"min=0"`
	DueDate     string                 `json:"due_date" yaml:"due_date" validate:"required,date"`

	// paid imports an installment already settled before onboarding
	Paid bool `json:"paid,omitempty" yaml:"paid,omitempty"`
}

// CreateClientRequest onboards a client with its fee schedule and installment plan
type CreateClientRequest struct {
	Name         string                    `json:"name" yaml:"name" validate:"required,max=255"`
	Email        string                    `json:"email,omitempty" yaml:"email,omitempty" validate:"omitempty,email"`
	FeeSchedule  []FeeScheduleEntryRequest `json:"fee_schedule" yaml:"fee_schedule" validate:"dive"`
	Installments []InstallmentRequest      `json:"installments,omitempty" yaml:"installments,omitempty" validate:"max=3,dive"`
}

func (r *CreateClientRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// ToClient builds the client, parsing every date in loc
func (r *CreateClientRequest) ToClient(ctx context.Context, loc *time.Location) (*client.Client, error) {
	schedule, err := toFeeSchedule(r.FeeSchedule, loc)
	if err != nil {
		return nil, err
	}
	installments, err := toInstallments(r.Installments, loc)
	if err != nil {
		return nil, err
	}
	c := client.New(ctx, r.Name, r.Email, schedule, installments)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func toFeeSchedule(entries []FeeScheduleEntryRequest, loc *time.Location) (client.FeeSchedule, error) {
	schedule := make(client.FeeSchedule, 0, len(entries))
	for _, e := range entries {
		from, err := parseDate("effective_from", e.EffectiveFrom, loc)
		if err != nil {
			return nil, err
		}
		to, err := parseOptionalDate("effective_to", e.EffectiveTo, loc)
		if err != nil {
			return nil, err
		}
		schedule = append(schedule, client.FeeScheduleEntry{
			EffectiveFrom: from,
			EffectiveTo:   to,
			MonthlyAmount: e.MonthlyAmount,
			Description:   e.Description,
		})
	}
	return schedule, nil
}

func toInstallments(reqs []InstallmentRequest, loc *time.Location) ([]client.Installment, error) {
	installments := make([]client.Installment, 0, len(reqs))
	for _, r := range reqs {
		due, err := parseDate("due_date", r.DueDate, loc)
		if err != nil {
			return nil, err
		}
		installments = append(installments, client.Installment{
			ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INSTALLMENT),
			Label:       r.Label,
			Description: r.Description,
			Amount:      r.Amount,
			DueDate:     due,
			Paid:        r.Paid,
		})
	}
	return installments, nil
}

// ChangeFeeRequest ends the current fee and starts a new one
type ChangeFeeRequest struct {
	EffectiveFrom string `json:"effective_from" validate:"required,date"`
	MonthlyAmount int64  `json:"monthly_amount" validate:"min=0"`
	Description   string `json:"description" validate:"required,max=255"`
}

func (r *ChangeFeeRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// SetInstallmentsRequest replaces the unpaid part of an installment plan
type SetInstallmentsRequest struct {
	Installments []InstallmentRequest `json:"installments" validate:"max=3,dive"`
}

func (r *SetInstallmentsRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	for i, inst := range r.Installments {
		if inst.Paid {
			return ierr.NewErrorf("installments[%d] is marked paid", i).
				WithHint("Installments are paid by confirming the invoice that charges them").
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

// ToInstallments parses the plan in loc
func (r *SetInstallmentsRequest) ToInstallments(loc *time.Location) ([]client.Installment, error) {
	return toInstallments(r.Installments, loc)
}

// ClientResponse represents the response for client operations
type ClientResponse struct {
	*client.Client
}

// ListClientsResponse represents the response for listing clients
type ListClientsResponse = types.ListResponse[*ClientResponse]
