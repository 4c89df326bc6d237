package invoice

import "errors"

var (
	// ErrInvoiceNotFound is returned when an invoice is not found
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrInvalidInvoiceAmount is returned when line item or total amounts are invalid
	ErrInvalidInvoiceAmount = errors.New("invalid invoice amount")

	// ErrInvalidTaxRate is returned for a tax rate outside [0, 1]
	ErrInvalidTaxRate = errors.New("invalid tax rate")

	// ErrInvoiceImmutable is returned when a paid or refunded invoice would change
	ErrInvoiceImmutable = errors.New("invoice is immutable")

	// ErrInvoiceNotPayable is returned when a payment targets an invoice that is not sent or overdue
	ErrInvoiceNotPayable = errors.New("invoice is not payable")

	// ErrPeriodRegression is returned when a payment would move a client's
	// last paid period end backwards
	ErrPeriodRegression = errors.New("billing period end precedes the last paid period end")

	// ErrClientMismatch is returned when an invoice is reconciled against another client
	ErrClientMismatch = errors.New("invoice belongs to another client")

	// ErrInvalidBucket is returned for an invoice counter year or month out of range
	ErrInvalidBucket = errors.New("invalid invoice counter bucket")

	// ErrNothingToInvoice is returned when a client owes nothing as of the issue date
	ErrNothingToInvoice = errors.New("nothing to invoice")

	// ErrOverlappingInvoice is returned when an open invoice already charges
	// part of the same recurring period or the same installment
	ErrOverlappingInvoice = errors.New("an open invoice already charges this period or installment")

	// ErrChargesDiffer is returned when an invoice for the same period and
	// installments exists with different lines, tax rate or due date
	ErrChargesDiffer = errors.New("an invoice with different charges already exists for this period")
)
