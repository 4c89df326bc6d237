package types

import (
	"time"

	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/samber/lo"
)

const (
	FILTER_DEFAULT_LIMIT = 50
	FILTER_DEFAULT_SORT  = "created_at"
	FILTER_DEFAULT_ORDER = "desc"

	OrderDesc = "desc"
	OrderAsc  = "asc"
)

// BaseFilter defines common filtering capabilities
type BaseFilter interface {
	GetLimit() int
	GetOffset() int
	GetStatus() string
	GetSort() string
	GetOrder() string
	Validate() error
	IsUnlimited() bool
}

// QueryFilter represents a generic query filter with optional fields
type QueryFilter struct {
	Limit  *int    `json:"limit,omitempty" validate:"omitempty,min=1,max=1000"`
	Offset *int    `json:"offset,omitempty" validate:"omitempty,min=0"`
	Status *Status `json:"status,omitempty"`
	Sort   *string `json:"sort,omitempty"`
	Order  *string `json:"order,omitempty" validate:"omitempty,oneof=asc desc"`
}

// NewDefaultQueryFilter defines default values for query filters
func NewDefaultQueryFilter() *QueryFilter {
	return &QueryFilter{
		Limit:  lo.ToPtr(FILTER_DEFAULT_LIMIT),
		Offset: lo.ToPtr(0),
		Status: lo.ToPtr(StatusPublished),
		Sort:   lo.ToPtr(FILTER_DEFAULT_SORT),
		Order:  lo.ToPtr(FILTER_DEFAULT_ORDER),
	}
}

// NewNoLimitQueryFilter returns a filter with no pagination limits
func NewNoLimitQueryFilter() *QueryFilter {
	return &QueryFilter{
		Limit:  nil,
		Offset: lo.ToPtr(0),
		Status: lo.ToPtr(StatusPublished),
		Sort:   lo.ToPtr(FILTER_DEFAULT_SORT),
		Order:  lo.ToPtr(FILTER_DEFAULT_ORDER),
	}
}

// IsUnlimited returns true if this is an unlimited query
func (f QueryFilter) IsUnlimited() bool {
	return f.Limit == nil
}

// GetLimit returns the limit value, zero for unlimited queries
func (f QueryFilter) GetLimit() int {
	if f.IsUnlimited() {
		return 0
	}
	return *f.Limit
}

func (f QueryFilter) GetOffset() int {
	if f.Offset == nil {
		return 0
	}
	return *f.Offset
}

func (f QueryFilter) GetSort() string {
	if f.Sort == nil {
		return FILTER_DEFAULT_SORT
	}
	return *f.Sort
}

func (f QueryFilter) GetOrder() string {
	if f.Order == nil {
		return FILTER_DEFAULT_ORDER
	}
	return *f.Order
}

func (f QueryFilter) GetStatus() string {
	if f.Status == nil {
		return string(StatusPublished)
	}
	return string(*f.Status)
}

// Validate validates the filter fields
func (f QueryFilter) Validate() error {
	if f.Limit != nil && (*f.Limit < 1 || *f.Limit > 1000) {
		return ierr.NewError("limit must be between 1 and 1000").
			WithHint("Please provide a limit between 1 and 1000").
			Mark(ierr.ErrValidation)
	}
	if f.Offset != nil && *f.Offset < 0 {
		return ierr.NewError("offset must be non-negative").
			WithHint("Please provide a non-negative offset").
			Mark(ierr.ErrValidation)
	}
	if f.Order != nil && *f.Order != OrderAsc && *f.Order != OrderDesc {
		return ierr.NewError("order must be either 'asc' or 'desc'").
			WithHint("Please provide a valid sort order").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// TimeRangeFilter adds time range filtering capabilities
type TimeRangeFilter struct {
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// Validate validates the time range filter
func (f TimeRangeFilter) Validate() error {
	if f.StartTime != nil && f.EndTime != nil && f.EndTime.Before(*f.StartTime) {
		return ierr.NewError("end_time must be after start_time").
			WithHint("Please provide a valid time range").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Contains reports whether t falls inside the range, bounds inclusive
func (f TimeRangeFilter) Contains(t time.Time) bool {
	if f.StartTime != nil && t.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && t.After(*f.EndTime) {
		return false
	}
	return true
}
