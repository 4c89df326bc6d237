package client

import (
	"context"
	"time"

	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/types"
	"github.com/samber/lo"
)

// Client is a billed party with a recurring fee schedule and up to three
// one-time installments
type Client struct {
	// ID is the unique identifier for the client
	ID string `db:"id" json:"id"`

	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`

	// FeeSchedule holds the recurring monthly fee over time, ordered by start date
	FeeSchedule FeeSchedule `db:"fee_schedule" json:"fee_schedule"`

	// Installments is the one-time charge plan of the client
	Installments []Installment `db:"installments" json:"installments"`

	// LastPaidPeriodEnd is the last calendar day whose recurring fee has been
	// invoiced and paid. Nil until the first recurring payment is reconciled.
	LastPaidPeriodEnd *time.Time `db:"last_paid_period_end" json:"last_paid_period_end,omitempty"`

	// AccumulatedDifference is the signed running total of payment differences,
	// positive when the client paid more than invoiced
	AccumulatedDifference int64 `db:"accumulated_difference" json:"accumulated_difference"`

	// Version is bumped on every update and guards against lost updates
	Version int64 `db:"version" json:"version"`

	types.BaseModel
}

// Installment is a one-time lump-sum charge with its own due date
type Installment struct {
	ID              string                 `json:"id"`
	Label           types.InstallmentLabel `json:"label"`
	Description     string                 `json:"description"`
	Amount          int64                  `json:"amount"`
	DueDate         time.Time              `json:"due_date"`
	Paid            bool                   `json:"paid"`
	PaidAt          *time.Time             `json:"paid_at,omitempty"`
	PaidByInvoiceID *string                `json:"paid_by_invoice_id,omitempty"`
}

// New creates a client in its onboarding state
func New(ctx context.Context, name, email string, schedule FeeSchedule, installments []Installment) *Client {
	for i := range installments {
		if installments[i].ID == "" {
			installments[i].ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INSTALLMENT)
		}
	}
	return &Client{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CLIENT),
		Name:         name,
		Email:        email,
		FeeSchedule:  schedule,
		Installments: installments,
		Version:      1,
		BaseModel:    types.GetDefaultBaseModel(ctx),
	}
}

// Validate checks operator input before it is persisted
func (c *Client) Validate() error {
	if c.Name == "" {
		return ierr.NewError("client name is required").
			WithHint("Please provide the client name").
			Mark(ierr.ErrValidation)
	}
	if err := c.FeeSchedule.Validate(); err != nil {
		return err
	}
	return ValidateInstallments(c.Installments)
}

// CheckIntegrity verifies a stored client. Any violation is reported as
// corrupt data rather than as bad input.
func (c *Client) CheckIntegrity() error {
	if err := c.FeeSchedule.check(); err != nil {
		return ierr.WithError(err).
			WithHintf("stored fee schedule of client %s is corrupt", c.ID).
			Mark(ierr.ErrDataIntegrity)
	}
	if err := checkInstallments(c.Installments); err != nil {
		return ierr.WithError(err).
			WithHintf("stored installments of client %s are corrupt", c.ID).
			Mark(ierr.ErrDataIntegrity)
	}
	return nil
}

// NormalizeDates re-anchors every calendar date of the client to midnight in loc
func (c *Client) NormalizeDates(loc *time.Location) {
	for i := range c.FeeSchedule {
		e := &c.FeeSchedule[i]
		e.EffectiveFrom = types.AsDate(e.EffectiveFrom, loc)
		if e.EffectiveTo != nil {
			e.EffectiveTo = lo.ToPtr(types.AsDate(*e.EffectiveTo, loc))
		}
	}
	for i := range c.Installments {
		c.Installments[i].DueDate = types.AsDate(c.Installments[i].DueDate, loc)
	}
	if c.LastPaidPeriodEnd != nil {
		c.LastPaidPeriodEnd = lo.ToPtr(types.AsDate(*c.LastPaidPeriodEnd, loc))
	}
}

// Copy returns a deep copy, so that pure computations never alias stored state
func (c *Client) Copy() *Client {
	if c == nil {
		return nil
	}
	out := *c
	out.FeeSchedule = make(FeeSchedule, len(c.FeeSchedule))
	for i, e := range c.FeeSchedule {
		if e.EffectiveTo != nil {
			e.EffectiveTo = lo.ToPtr(*e.EffectiveTo)
		}
		out.FeeSchedule[i] = e
	}
	out.Installments = make([]Installment, len(c.Installments))
	for i, inst := range c.Installments {
		if inst.PaidAt != nil {
			inst.PaidAt = lo.ToPtr(*inst.PaidAt)
		}
		if inst.PaidByInvoiceID != nil {
			inst.PaidByInvoiceID = lo.ToPtr(*inst.PaidByInvoiceID)
		}
		out.Installments[i] = inst
	}
	if c.LastPaidPeriodEnd != nil {
		out.LastPaidPeriodEnd = lo.ToPtr(*c.LastPaidPeriodEnd)
	}
	return &out
}

// FindInstallment returns the installment with the given id
func (c *Client) FindInstallment(id string) (*Installment, bool) {
	for i := range c.Installments {
		if c.Installments[i].ID == id {
			return &c.Installments[i], true
		}
	}
	return nil, false
}

// MarkInstallmentPaid flips the paid flag of the installment charged by invoiceID
func (c *Client) MarkInstallmentPaid(id, invoiceID string, at time.Time) error {
	inst, ok := c.FindInstallment(id)
	if !ok {
		return ierr.WithError(ErrInstallmentNotFound).
			WithHintf("invoice %s charges installment %s which client %s does not have", invoiceID, id, c.ID).
			WithReportableDetails(map[string]any{
				"client_id":      c.ID,
				"installment_id": id,
				"invoice_id":     invoiceID,
			}).
			Mark(ierr.ErrDataIntegrity)
	}
	if inst.Paid {
		return ierr.WithError(ErrInstallmentAlreadyPaid).
			WithHintf("installment %s was already paid", id).
			WithReportableDetails(map[string]any{
				"installment_id":     id,
				"paid_by_invoice_id": lo.FromPtr(inst.PaidByInvoiceID),
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	inst.Paid = true
	inst.PaidAt = lo.ToPtr(at)
	inst.PaidByInvoiceID = lo.ToPtr(invoiceID)
	return nil
}
