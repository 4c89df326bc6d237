package client

import (
	"sort"
	"time"

	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/types"
	"github.com/samber/lo"
)

// SelectDueInstallments returns the unpaid installments due on or before
// issueDate, earliest due date first. Nothing is mutated.
func SelectDueInstallments(installments []Installment, issueDate time.Time) []Installment {
	due := lo.Filter(installments, func(inst Installment, _ int) bool {
		return !inst.Paid && !inst.DueDate.After(issueDate)
	})
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].DueDate.Before(due[j].DueDate)
	})
	return due
}

// ValidateInstallments checks an installment plan submitted by an operator
func ValidateInstallments(installments []Installment) error {
	if err := checkInstallments(installments); err != nil {
		return ierr.WithError(err).
			WithHintf("A client has at most %d installments, each with a distinct label, a due date and a non-negative amount",
				types.MaxInstallmentsPerClient).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func checkInstallments(installments []Installment) error {
	if len(installments) > types.MaxInstallmentsPerClient {
		return ierr.WithError(ErrInvalidInstallments).
			WithMessagef("%d installments given", len(installments)).
			Error()
	}

	ids := make(map[string]struct{}, len(installments))
	labels := make(map[types.InstallmentLabel]struct{}, len(installments))
	for i, inst := range installments {
		if inst.ID == "" {
			return ierr.WithError(ErrInvalidInstallments).
				WithMessagef("installment %d has no id", i).
				Error()
		}
		if _, dup := ids[inst.ID]; dup {
			return ierr.WithError(ErrInvalidInstallments).
				WithMessagef("installment id %s is duplicated", inst.ID).
				Error()
		}
		ids[inst.ID] = struct{}{}

		if err := inst.Label.Validate(); err != nil {
			return ierr.WithError(ErrInvalidInstallments).
				WithMessagef("installment %d has label %q", i, inst.Label).
				Error()
		}
		if _, dup := labels[inst.Label]; dup {
			return ierr.WithError(ErrInvalidInstallments).
				WithMessagef("installment label %s is duplicated", inst.Label).
				Error()
		}
		labels[inst.Label] = struct{}{}

		if inst.Amount < 0 {
			return ierr.WithError(ErrInvalidInstallments).
				WithMessagef("installment %d has negative amount %d", i, inst.Amount).
				Error()
		}
		if inst.DueDate.IsZero() {
			return ierr.WithError(ErrInvalidInstallments).
				WithMessagef("installment %d has no due date", i).
				Error()
		}
		// imported clients may carry installments settled outside the system,
		// so a paid installment needs no paying invoice
		if !inst.Paid && inst.PaidByInvoiceID != nil {
			return ierr.WithError(ErrInvalidInstallments).
				WithMessagef("installment %d names a paying invoice but is unpaid", i).
				Error()
		}
	}
	return nil
}

// DisplayDescription is the line item text of the installment
func (inst Installment) DisplayDescription() string {
	if inst.Description != "" {
		return inst.Description
	}
	switch inst.Label {
	case types.InstallmentLabelInitial:
		return "Initial payment"
	case types.InstallmentLabelIntermediate:
		return "Intermediate payment"
	case types.InstallmentLabelFinal:
		return "Final payment"
	default:
		return string(inst.Label)
	}
}
