// Package dto provides Data Transfer Objects for API requests/responses.
package dto

// IDResponse is returned by endpoints that create a row.
type IDResponse struct {
	ID int `json:"id"`
}

// ListResponse wraps list results.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// NewListResponse builds a ListResponse; a nil slice renders as [].
func NewListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Total: len(items)}
}
