package types

import (
	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/samber/lo"
)

// InstallmentLabel names the position of a one-time charge in a client's plan
type InstallmentLabel string

const (
	InstallmentLabelInitial      InstallmentLabel = "initial"
	InstallmentLabelIntermediate InstallmentLabel = "intermediate"
	InstallmentLabelFinal        InstallmentLabel = "final"
)

// MaxInstallmentsPerClient bounds the one-time charge plan of a client
const MaxInstallmentsPerClient = 3

func (l InstallmentLabel) String() string {
	return string(l)
}

func (l InstallmentLabel) Validate() error {
	allowed := []InstallmentLabel{
		InstallmentLabelInitial,
		InstallmentLabelIntermediate,
		InstallmentLabelFinal,
	}
	if !lo.Contains(allowed, l) {
		return ierr.NewError("invalid installment label").
			WithHint("Installment label must be one of initial, intermediate or final").
			WithReportableDetails(map[string]any{
				"label":   l,
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ClientFilter represents the filter options for listing clients
type ClientFilter struct {
	*QueryFilter

	ClientIDs []string `json:"client_ids,omitempty"`
	Email     string   `json:"email,omitempty"`
	// Name matches clients whose name contains it, case insensitive
	Name string `json:"name,omitempty"`
}

// NewClientFilter creates a new client filter with default options
func NewClientFilter() *ClientFilter {
	return &ClientFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

// NewNoLimitClientFilter creates a new client filter without pagination
func NewNoLimitClientFilter() *ClientFilter {
	return &ClientFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

func (f *ClientFilter) Validate() error {
	if f == nil || f.QueryFilter == nil {
		return nil
	}
	return f.QueryFilter.Validate()
}

func (f *ClientFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

func (f *ClientFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return 0
	}
	return f.QueryFilter.GetOffset()
}

func (f *ClientFilter) GetSort() string {
	if f.QueryFilter == nil {
		return FILTER_DEFAULT_SORT
	}
	return f.QueryFilter.GetSort()
}

func (f *ClientFilter) GetOrder() string {
	if f.QueryFilter == nil {
		return FILTER_DEFAULT_ORDER
	}
	return f.QueryFilter.GetOrder()
}

func (f *ClientFilter) GetStatus() string {
	if f.QueryFilter == nil {
		return string(StatusPublished)
	}
	return f.QueryFilter.GetStatus()
}

func (f *ClientFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return false
	}
	return f.QueryFilter.IsUnlimited()
}
