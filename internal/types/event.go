package types

import (
	"encoding/json"
	"time"
)

// BillingEvent is the envelope published for invoice lifecycle changes.
// Notification and document collaborators consume it from the event topic.
type BillingEvent struct {
	ID        string          `json:"id"`
	EventName string          `json:"event_name"`
	ClientID  string          `json:"client_id"`
	InvoiceID string          `json:"invoice_id"`
	UserID    string          `json:"user_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// invoice event names
const (
	EventInvoiceGenerated       = "invoice.generated"
	EventInvoiceIssued          = "invoice.issued"
	EventInvoicePaid            = "invoice.paid"
	EventInvoiceOverdue         = "invoice.overdue"
	EventInvoiceCancelled       = "invoice.cancelled"
	EventInvoiceRefunded        = "invoice.refunded"
	EventInvoicePartialRefunded = "invoice.partially_refunded"
)
