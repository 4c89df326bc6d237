package dto

import (
	"time"

	"github.com/flexprice/retainer/internal/domain/invoice"
	"github.com/flexprice/retainer/internal/types"
	"github.com/flexprice/retainer/internal/validator"
	"github.com/shopspring/decimal"
)

// ManualLineItemRequest is an operator entered charge
type ManualLineItemRequest struct {
	Description string `json:"description" yaml:"description" validate:"required,max=255"`
	Quantity    int64  `json:"quantity" yaml:"quantity" validate:"min=0"`
	UnitPrice   int64  `json:"unit_price" yaml:"unit_price" validate:"min=0"`
}

func toManualLineItems(reqs []ManualLineItemRequest) []*invoice.LineItem {
	items := make([]*invoice.LineItem, 0, len(reqs))
	for _, r := range reqs {
		items = append(items, invoice.NewLineItem(types.LineItemKindManual, r.Description, r.Quantity, r.UnitPrice))
	}
	return items
}

// GenerateInvoiceRequest drafts the invoice a client owes on issue_date
type GenerateInvoiceRequest struct {
	ClientID string `json:"client_id" validate:"required"`

	// issue_date is the invoice date, YYYY-MM-DD. It decides the billing cutoff.
	IssueDate string `json:"issue_date" validate:"required,date"`

	// due_date defaults to issue_date plus the configured payment term
	DueDate *string `json:"due_date,omitempty" validate:"omitempty,date"`

	// tax_rate overrides the configured flat rate, e.g. "0.08"
	TaxRate *string `json:"tax_rate,omitempty"`

	ManualLineItems []ManualLineItemRequest `json:"manual_line_items,omitempty" validate:"dive"`
}

func (r *GenerateInvoiceRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// ParsedGenerateInvoice is a GenerateInvoiceRequest with its fields parsed
type ParsedGenerateInvoice struct {
	IssueDate       time.Time
	DueDate         *time.Time
	TaxRate         *decimal.Decimal
	ManualLineItems []*invoice.LineItem
}

// Parse converts the request fields, interpreting dates in loc
func (r *GenerateInvoiceRequest) Parse(loc *time.Location) (*ParsedGenerateInvoice, error) {
	issue, err := parseDate("issue_date", r.IssueDate, loc)
	if err != nil {
		return nil, err
	}
	due, err := parseOptionalDate("due_date", r.DueDate, loc)
	if err != nil {
		return nil, err
	}
	rate, err := parseTaxRate(r.TaxRate)
	if err != nil {
		return nil, err
	}
	return &ParsedGenerateInvoice{
		IssueDate:       issue,
		DueDate:         due,
		TaxRate:         rate,
		ManualLineItems: toManualLineItems(r.ManualLineItems),
	}, nil
}

// UpdateDraftInvoiceRequest replaces the manual line items or the tax rate of a draft.
// Recurring and installment items are kept.
type UpdateDraftInvoiceRequest struct {
	ManualLineItems []ManualLineItemRequest `json:"manual_line_items" validate:"dive"`
	TaxRate         *string                 `json:"tax_rate,omitempty"`
}

func (r *UpdateDraftInvoiceRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// LineItems returns the parsed manual line items
func (r *UpdateDraftInvoiceRequest) LineItems() []*invoice.LineItem {
	return toManualLineItems(r.ManualLineItems)
}

// ParsedTaxRate returns the tax rate override, nil when the current rate stays
func (r *UpdateDraftInvoiceRequest) ParsedTaxRate() (*decimal.Decimal, error) {
	return parseTaxRate(r.TaxRate)
}

// GenerateInvoicesRequest runs generation for many clients on one issue date
type GenerateInvoicesRequest struct {
	// client_ids limits the run, all clients are billed when empty
	ClientIDs []string `json:"client_ids,omitempty" validate:"dive,required"`
	IssueDate string   `json:"issue_date" validate:"required,date"`
}

func (r *GenerateInvoicesRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// InvoiceResponse represents the response for invoice operations
type InvoiceResponse struct {
	*invoice.Invoice
}

// NewInvoiceResponse wraps inv, nil stays nil
func NewInvoiceResponse(inv *invoice.Invoice) *InvoiceResponse {
	if inv == nil {
		return nil
	}
	return &InvoiceResponse{Invoice: inv}
}

// ListInvoicesResponse represents the response for listing invoices
type ListInvoicesResponse = types.ListResponse[*InvoiceResponse]

// BulkGenerateFailure is a client whose invoice could not be generated
type BulkGenerateFailure struct {
	ClientID string `json:"client_id"`
	Error    string `json:"error"`
}

// GenerateInvoicesResponse summarizes a bulk generation run
type GenerateInvoicesResponse struct {
	Generated []*InvoiceResponse `json:"generated"`
	// Skipped lists clients that owe nothing on the issue date
	Skipped []string              `json:"skipped"`
	Failed  []BulkGenerateFailure `json:"failed"`
}

// MarkOverdueResponse lists the invoices moved to overdue
type MarkOverdueResponse struct {
	Invoices []*InvoiceResponse `json:"invoices"`
}
