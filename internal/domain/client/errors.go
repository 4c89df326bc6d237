package client

import "errors"

var (
	// ErrClientNotFound is returned when a client is not found
	ErrClientNotFound = errors.New("client not found")

	// ErrScheduleOverlap means more than one fee schedule entry covers the same day
	ErrScheduleOverlap = errors.New("fee schedule entries overlap")

	// ErrInvalidFeeSchedule is returned for malformed fee schedule entries
	ErrInvalidFeeSchedule = errors.New("invalid fee schedule")

	// ErrInvalidInstallments is returned for a malformed installment plan
	ErrInvalidInstallments = errors.New("invalid installments")

	// ErrInstallmentNotFound is returned when an invoice references an unknown installment
	ErrInstallmentNotFound = errors.New("installment not found")

	// ErrInstallmentAlreadyPaid is returned when an installment would be paid twice
	ErrInstallmentAlreadyPaid = errors.New("installment already paid")

	// ErrInstallmentInvoiced is returned when an installment charged by an open
	// invoice would be replaced
	ErrInstallmentInvoiced = errors.New("installment is charged by an open invoice")

	// ErrFeeChangeInvoiced is returned when a fee change would re-price days
	// that an open invoice already bills
	ErrFeeChangeInvoiced = errors.New("fee change overlaps an open invoice")
)
