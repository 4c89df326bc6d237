package types

import (
	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/samber/lo"
)

// InvoiceStatus represents the current state of an invoice in its lifecycle
type InvoiceStatus string

const (
	// InvoiceStatusDraft is editable and may be deleted
	InvoiceStatusDraft InvoiceStatus = "draft"
	// InvoiceStatusSent has been issued to the client and awaits payment
	InvoiceStatusSent InvoiceStatus = "sent"
	// InvoiceStatusPaid has a reconciled payment and is immutable
	InvoiceStatusPaid InvoiceStatus = "paid"
	// InvoiceStatusOverdue was sent and is past its due date
	InvoiceStatusOverdue InvoiceStatus = "overdue"
	// InvoiceStatusCancelled no longer counts towards anything
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
	// InvoiceStatusRefunded had its whole payment reversed
	InvoiceStatusRefunded InvoiceStatus = "refunded"
	// InvoiceStatusPartiallyRefunded had part of its payment reversed
	InvoiceStatusPartiallyRefunded InvoiceStatus = "partially_refunded"
)

var invoiceStatusTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft: {
		InvoiceStatusSent,
		InvoiceStatusCancelled,
	},
	InvoiceStatusSent: {
		InvoiceStatusPaid,
		InvoiceStatusOverdue,
		InvoiceStatusCancelled,
		InvoiceStatusRefunded,
		InvoiceStatusPartiallyRefunded,
	},
	InvoiceStatusOverdue: {
		InvoiceStatusPaid,
		InvoiceStatusCancelled,
	},
	InvoiceStatusPaid: {
		InvoiceStatusRefunded,
		InvoiceStatusPartiallyRefunded,
	},
	InvoiceStatusPartiallyRefunded: {
		InvoiceStatusRefunded,
	},
}

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) Validate() error {
	allowed := []InvoiceStatus{
		InvoiceStatusDraft,
		InvoiceStatusSent,
		InvoiceStatusPaid,
		InvoiceStatusOverdue,
		InvoiceStatusCancelled,
		InvoiceStatusRefunded,
		InvoiceStatusPartiallyRefunded,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid invoice status").
			WithHint("Please provide a valid invoice status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsImmutable reports whether an invoice in this status rejects edits and deletion
func (s InvoiceStatus) IsImmutable() bool {
	return s == InvoiceStatusPaid ||
		s == InvoiceStatusRefunded ||
		s == InvoiceStatusPartiallyRefunded
}

// IsTerminal reports whether no further status change is possible
func (s InvoiceStatus) IsTerminal() bool {
	return len(invoiceStatusTransitions[s]) == 0
}

// IsPayable reports whether a payment may be confirmed against this status
func (s InvoiceStatus) IsPayable() bool {
	return s == InvoiceStatusSent || s == InvoiceStatusOverdue
}

// CanTransitionTo reports whether the state machine allows from -> to
func (s InvoiceStatus) CanTransitionTo(to InvoiceStatus) bool {
	return lo.Contains(invoiceStatusTransitions[s], to)
}

// ValidateInvoiceStatusTransition rejects transitions the state machine forbids
func ValidateInvoiceStatusTransition(from, to InvoiceStatus) error {
	if from.CanTransitionTo(to) {
		return nil
	}
	return ierr.NewErrorf("invoice status transition %s -> %s is not allowed", from, to).
		WithHintf("An invoice in status %s cannot become %s", from, to).
		WithReportableDetails(map[string]any{
			"from":    from,
			"to":      to,
			"allowed": invoiceStatusTransitions[from],
		}).
		Mark(ierr.ErrInvalidOperation)
}

// LineItemKind tells where a line item came from
type LineItemKind string

const (
	LineItemKindRecurring   LineItemKind = "recurring"
	LineItemKindInstallment LineItemKind = "installment"
	LineItemKindManual      LineItemKind = "manual"
)

func (k LineItemKind) Validate() error {
	allowed := []LineItemKind{
		LineItemKindRecurring,
		LineItemKindInstallment,
		LineItemKindManual,
	}
	if !lo.Contains(allowed, k) {
		return ierr.NewError("invalid line item kind").
			WithHint("Please provide a valid line item kind").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// InvoiceFilter represents the filter options for listing invoices
type InvoiceFilter struct {
	*QueryFilter
	*TimeRangeFilter

	InvoiceIDs    []string        `json:"invoice_ids,omitempty"`
	ClientID      string          `json:"client_id,omitempty"`
	InvoiceStatus []InvoiceStatus `json:"invoice_status,omitempty"`
	// DueBefore restricts results to invoices whose due date is strictly before it
	DueBefore *string `json:"due_before,omitempty"`
}

// NewInvoiceFilter creates a new invoice filter with default options
func NewInvoiceFilter() *InvoiceFilter {
	return &InvoiceFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

// NewNoLimitInvoiceFilter creates a new invoice filter without pagination
func NewNoLimitInvoiceFilter() *InvoiceFilter {
	return &InvoiceFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

func (f *InvoiceFilter) Validate() error {
	if f == nil {
		return nil
	}
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}
	if f.TimeRangeFilter != nil {
		if err := f.TimeRangeFilter.Validate(); err != nil {
			return err
		}
	}
	for _, s := range f.InvoiceStatus {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (f *InvoiceFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

func (f *InvoiceFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return 0
	}
	return f.QueryFilter.GetOffset()
}

func (f *InvoiceFilter) GetSort() string {
	if f.QueryFilter == nil {
		return FILTER_DEFAULT_SORT
	}
	return f.QueryFilter.GetSort()
}

func (f *InvoiceFilter) GetOrder() string {
	if f.QueryFilter == nil {
		return FILTER_DEFAULT_ORDER
	}
	return f.QueryFilter.GetOrder()
}

func (f *InvoiceFilter) GetStatus() string {
	if f.QueryFilter == nil {
		return string(StatusPublished)
	}
	return f.QueryFilter.GetStatus()
}

func (f *InvoiceFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return false
	}
	return f.QueryFilter.IsUnlimited()
}
