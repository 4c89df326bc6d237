package dto

import (
	"github.com/flexprice/retainer/internal/domain/invoice"
	"github.com/flexprice/retainer/internal/validator"
)

// ConfirmPaymentRequest records the amount an operator saw arrive for an invoice
type ConfirmPaymentRequest struct {
	InvoiceID string `json:"invoice_id" validate:"required"`

	// paid_amount is the amount actually received in minor currency units
	PaidAmount int64 `json:"paid_amount" validate:"min=0"`
}

func (r *ConfirmPaymentRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// RecordRefundRequest records money returned to a client
type RecordRefundRequest struct {
	InvoiceID string `json:"invoice_id" validate:"required"`
	Amount    int64  `json:"amount" validate:"gt=0"`
}

func (r *RecordRefundRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// PaymentResponse is the state of invoice and client after a payment
type PaymentResponse struct {
	Invoice          *InvoiceResponse `json:"invoice"`
	Client           *ClientResponse  `json:"client"`
	Difference       int64            `json:"difference"`
	PeriodAdvanced   bool             `json:"period_advanced"`
	InstallmentsPaid []string         `json:"installments_paid,omitempty"`
}

// NewPaymentResponse converts a reconciliation result
func NewPaymentResponse(res *invoice.ReconcileResult) *PaymentResponse {
	if res == nil {
		return nil
	}
	return &PaymentResponse{
		Invoice:          NewInvoiceResponse(res.Invoice),
		Client:           &ClientResponse{Client: res.Client},
		Difference:       res.Difference,
		PeriodAdvanced:   res.PeriodAdvanced,
		InstallmentsPaid: res.InstallmentsPaid,
	}
}
