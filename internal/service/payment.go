package service

import (
	"context"

	"github.com/flexprice/retainer/internal/api/dto"
	"github.com/flexprice/retainer/internal/domain/invoice"
	"github.com/flexprice/retainer/internal/types"
)

// PaymentService applies operator confirmed payments and refunds
type PaymentService interface {
	// ConfirmPayment reconciles paidAmount against a sent or overdue invoice
	// and writes invoice and client in one transaction
	ConfirmPayment(ctx context.Context, invoiceID string, paidAmount int64) (*invoice.ReconcileResult, error)

	// RecordRefund returns part or all of what was paid for an invoice
	RecordRefund(ctx context.Context, req dto.RecordRefundRequest) (*dto.InvoiceResponse, error)
}

type paymentService struct {
	ServiceParams
}

func NewPaymentService(params ServiceParams) PaymentService {
	return &paymentService{
		ServiceParams: params,
	}
}

func (s *paymentService) ConfirmPayment(ctx context.Context, invoiceID string, paidAmount int64) (*invoice.ReconcileResult, error) {
	req := dto.ConfirmPaymentRequest{InvoiceID: invoiceID, PaidAmount: paidAmount}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var result *invoice.ReconcileResult
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		inv, err := s.InvoiceRepo.Get(ctx, invoiceID)
		if err != nil {
			return err
		}

		c, err := s.ClientRepo.Get(ctx, inv.ClientID)
		if err != nil {
			return err
		}

		res, err := invoice.Reconcile(inv, c, paidAmount, s.Clock.Now().UTC())
		if err != nil {
			return err
		}

		// both writes are conditional on the versions read above
		if err := s.InvoiceRepo.Update(ctx, res.Invoice); err != nil {
			return err
		}
		if err := s.ClientRepo.Update(ctx, res.Client); err != nil {
			return err
		}

		result = res
		return nil
	})
	if err != nil {
		s.Logger.Warnw("payment not applied",
			"invoice_id", invoiceID,
			"paid_amount", paidAmount,
			"error", err,
		)
		return nil, err
	}

	s.Logger.Infow("confirmed payment",
		"invoice_id", result.Invoice.ID,
		"invoice_number", result.Invoice.InvoiceNumber,
		"client_id", result.Client.ID,
		"paid_amount", paidAmount,
		"difference", result.Difference,
		"accumulated_difference", result.Client.AccumulatedDifference,
		"period_advanced", result.PeriodAdvanced,
	)
	s.publishInvoiceEvent(ctx, types.EventInvoicePaid, result.Invoice)
	return result, nil
}

func (s *paymentService) RecordRefund(ctx context.Context, req dto.RecordRefundRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var refunded *invoice.Invoice
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		inv, err := s.InvoiceRepo.Get(ctx, req.InvoiceID)
		if err != nil {
			return err
		}

		next, err := invoice.Refund(inv, req.Amount)
		if err != nil {
			return err
		}

		if err := s.InvoiceRepo.Update(ctx, next); err != nil {
			return err
		}
		refunded = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	eventName := types.EventInvoicePartialRefunded
	if refunded.InvoiceStatus == types.InvoiceStatusRefunded {
		eventName = types.EventInvoiceRefunded
	}

	s.Logger.Infow("recorded refund",
		"invoice_id", refunded.ID,
		"amount", req.Amount,
		"refunded_amount", refunded.RefundedAmount,
		"invoice_status", refunded.InvoiceStatus,
	)
	s.publishInvoiceEvent(ctx, eventName, refunded)
	return dto.NewInvoiceResponse(refunded), nil
}
