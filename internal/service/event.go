package service

import (
	"context"

	"github.com/flexprice/retainer/internal/domain/invoice"
	"github.com/flexprice/retainer/internal/types"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// invoiceEventPayload is the body of every invoice lifecycle event
type invoiceEventPayload struct {
	InvoiceID         string              `json:"invoice_id"`
	InvoiceNumber     string              `json:"invoice_number"`
	ClientID          string              `json:"client_id"`
	InvoiceStatus     types.InvoiceStatus `json:"invoice_status"`
	TotalAmount       int64               `json:"total_amount"`
	PaidAmount        *int64              `json:"paid_amount,omitempty"`
	PaymentDifference *int64              `json:"payment_difference,omitempty"`
	RefundedAmount    int64               `json:"refunded_amount,omitempty"`
	DueDate           string              `json:"due_date"`
}

// publishInvoiceEvent is fire and forget. Failures are logged, never returned.
func (p ServiceParams) publishInvoiceEvent(ctx context.Context, eventName string, inv *invoice.Invoice) {
	if p.EventPublisher == nil || inv == nil {
		return
	}

	payload, err := json.Marshal(invoiceEventPayload{
		InvoiceID:         inv.ID,
		InvoiceNumber:     inv.InvoiceNumber,
		ClientID:          inv.ClientID,
		InvoiceStatus:     inv.InvoiceStatus,
		TotalAmount:       inv.TotalAmount,
		PaidAmount:        inv.PaidAmount,
		PaymentDifference: inv.PaymentDifference,
		RefundedAmount:    inv.RefundedAmount,
		DueDate:           types.FormatDate(inv.DueDate),
	})
	if err != nil {
		p.Logger.Errorw("failed to marshal event payload", "event_name", eventName, "error", err)
		return
	}

	event := &types.BillingEvent{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EVENT),
		EventName: eventName,
		ClientID:  inv.ClientID,
		InvoiceID: inv.ID,
		UserID:    types.GetUserID(ctx),
		Timestamp: p.Clock.Now().UTC(),
		Payload:   payload,
	}
	if err := p.EventPublisher.Publish(ctx, event); err != nil {
		p.Logger.Errorf("failed to publish %s event: %v", event.EventName, err)
	}
}
