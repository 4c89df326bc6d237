package service

import (
	"context"

	"github.com/flexprice/retainer/internal/domain/invoice"
)

// SequenceService hands out invoice numbers, gap free within a month
type SequenceService interface {
	// AllocateInvoiceNumber returns the next INV-YYYY-MM-NNNN number of the bucket.
	// Inside an enclosing transaction the allocation rolls back with it.
	AllocateInvoiceNumber(ctx context.Context, year, month int) (string, error)
}

type sequenceService struct {
	ServiceParams
}

func NewSequenceService(params ServiceParams) SequenceService {
	return &sequenceService{
		ServiceParams: params,
	}
}

func (s *sequenceService) AllocateInvoiceNumber(ctx context.Context, year, month int) (string, error) {
	if err := invoice.ValidateBucket(year, month); err != nil {
		return "", err
	}

	var number string
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		next, err := s.CounterRepo.Increment(ctx, year, month)
		if err != nil {
			return err
		}
		number = invoice.FormatInvoiceNumber(year, month, next)
		return s.CounterRepo.SetLastInvoiceNumber(ctx, year, month, number)
	})
	if err != nil {
		return "", err
	}

	s.Logger.Debugw("allocated invoice number",
		"year", year,
		"month", month,
		"invoice_number", number,
	)
	return number, nil
}
