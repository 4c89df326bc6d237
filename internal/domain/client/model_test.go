package client

import (
	"context"
	"errors"
	"testing"
	"time"

	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plan() []Installment {
	return []Installment{
		{ID: "inst_final", Label: types.InstallmentLabelFinal, Amount: 300000, DueDate: d(2025, 6, 30)},
		{ID: "inst_initial", Label: types.InstallmentLabelInitial, Amount: 100000, DueDate: d(2025, 1, 15)},
		{ID: "inst_mid", Label: types.InstallmentLabelIntermediate, Amount: 200000, DueDate: d(2025, 3, 31)},
	}
}

func TestSelectDueInstallments(t *testing.T) {
	installments := plan()

	due := SelectDueInstallments(installments, d(2025, 3, 31))
	require.Len(t, due, 2)
	assert.Equal(t, "inst_initial", due[0].ID)
	assert.Equal(t, "inst_mid", due[1].ID)

	installments[1].Paid = true
	installments[1].PaidByInvoiceID = lo.ToPtr("inv_1")
	due = SelectDueInstallments(installments, d(2025, 3, 31))
	require.Len(t, due, 1)
	assert.Equal(t, "inst_mid", due[0].ID)

	assert.Empty(t, SelectDueInstallments(installments, d(2025, 1, 1)))
}

func TestValidateInstallments(t *testing.T) {
	assert.NoError(t, ValidateInstallments(plan()))

	tooMany := append(plan(), Installment{ID: "inst_x", Label: types.InstallmentLabelFinal, Amount: 1, DueDate: d(2025, 7, 1)})
	err := ValidateInstallments(tooMany)
	assert.True(t, ierr.IsValidation(err))
	assert.True(t, errors.Is(err, ErrInvalidInstallments))

	dupLabel := plan()
	dupLabel[2].Label = types.InstallmentLabelFinal
	assert.Error(t, ValidateInstallments(dupLabel))

	negative := plan()
	negative[0].Amount = -1
	assert.Error(t, ValidateInstallments(negative))

	badLabel := plan()
	badLabel[0].Label = "bonus"
	assert.Error(t, ValidateInstallments(badLabel))

	settledBeforeImport := plan()
	settledBeforeImport[1].Paid = true
	assert.NoError(t, ValidateInstallments(settledBeforeImport))

	unpaidWithPayer := plan()
	unpaidWithPayer[1].PaidByInvoiceID = lo.ToPtr("inv_1")
	assert.True(t, errors.Is(ValidateInstallments(unpaidWithPayer), ErrInvalidInstallments))
}

func TestMarkInstallmentPaid(t *testing.T) {
	c := &Client{ID: "client_1", Installments: plan()}
	at := d(2025, 2, 5)

	require.NoError(t, c.MarkInstallmentPaid("inst_initial", "inv_1", at))
	inst, ok := c.FindInstallment("inst_initial")
	require.True(t, ok)
	assert.True(t, inst.Paid)
	assert.Equal(t, "inv_1", *inst.PaidByInvoiceID)
	assert.Equal(t, at, *inst.PaidAt)

	err := c.MarkInstallmentPaid("inst_initial", "inv_2", at)
	assert.True(t, ierr.IsInvalidOperation(err))
	assert.True(t, errors.Is(err, ErrInstallmentAlreadyPaid))

	err = c.MarkInstallmentPaid("inst_missing", "inv_2", at)
	assert.True(t, ierr.IsDataIntegrity(err))
}

func TestCopyDoesNotAlias(t *testing.T) {
	c := New(context.Background(), "Acme", "billing@acme.test", twoStepSchedule(), plan())
	c.LastPaidPeriodEnd = lo.ToPtr(d(2025, 1, 31))

	cp := c.Copy()
	cp.FeeSchedule[0].MonthlyAmount = 1
	*cp.FeeSchedule[0].EffectiveTo = d(2026, 1, 1)
	cp.Installments[0].Paid = true
	*cp.LastPaidPeriodEnd = d(2025, 2, 28)

	assert.Equal(t, int64(50000), c.FeeSchedule[0].MonthlyAmount)
	assert.Equal(t, d(2025, 3, 16), *c.FeeSchedule[0].EffectiveTo)
	assert.False(t, c.Installments[0].Paid)
	assert.Equal(t, d(2025, 1, 31), *c.LastPaidPeriodEnd)
}

func TestNewAssignsIdentifiers(t *testing.T) {
	installments := []Installment{{Label: types.InstallmentLabelInitial, Amount: 1, DueDate: d(2025, 1, 1)}}
	c := New(context.Background(), "Acme", "", nil, installments)

	assert.Contains(t, c.ID, types.UUID_PREFIX_CLIENT+"_")
	assert.Contains(t, c.Installments[0].ID, types.UUID_PREFIX_INSTALLMENT+"_")
	assert.Equal(t, int64(1), c.Version)
	assert.Equal(t, types.StatusPublished, c.Status)
	require.NoError(t, c.Validate())
}

func TestCheckIntegrityMarksCorruption(t *testing.T) {
	c := &Client{
		ID:   "client_1",
		Name: "Acme",
		FeeSchedule: FeeSchedule{
			{EffectiveFrom: d(2025, 1, 1), MonthlyAmount: 1},
			{EffectiveFrom: d(2025, 2, 1), MonthlyAmount: 2},
		},
	}
	err := c.CheckIntegrity()
	assert.True(t, ierr.IsDataIntegrity(err))
	assert.False(t, ierr.IsValidation(err))
}

func TestNormalizeDates(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	c := &Client{
		FeeSchedule:       FeeSchedule{{EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.FixedZone("JST", 9*3600))}},
		LastPaidPeriodEnd: lo.ToPtr(time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)),
	}
	c.NormalizeDates(tokyo)

	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, tokyo), c.FeeSchedule[0].EffectiveFrom)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, tokyo), *c.LastPaidPeriodEnd)
}
