package types

// PaginationResponse describes the page a list response holds
type PaginationResponse struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ListResponse is one page of items plus the total matching the filter
type ListResponse[T any] struct {
	Items      []T                `json:"items"`
	Pagination PaginationResponse `json:"pagination"`
}

// NewListResponse wraps a page of items. Limit is zero for unlimited queries.
// Items is never nil so an empty page encodes as [].
func NewListResponse[T any](items []T, total, limit, offset int) *ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return &ListResponse[T]{
		Items: items,
		Pagination: PaginationResponse{
			Total:  total,
			Limit:  limit,
			Offset: offset,
		},
	}
}
