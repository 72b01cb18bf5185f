package common

import "net/http"

// Page holds a page of documents plus the pagination metadata list endpoints
// return alongside them.
type Page[T any] struct {
	Docs        []T   `json:"docs"`
	TotalDocs   int64 `json:"totalDocs"`
	Limit       int   `json:"limit"`
	Page        int   `json:"page"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// NewPage computes the derived pagination fields from the total row count.
func NewPage[T any](docs []T, total int64, page, limit int) Page[T] {
	if docs == nil {
		docs = []T{}
	}
	if limit < 1 {
		limit = 1
	}
	if page < 1 {
		page = 1
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return Page[T]{
		Docs:        docs,
		TotalDocs:   total,
		Limit:       limit,
		Page:        page,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

// ParsePagination extracts page and limit parameters from query values.
func ParsePagination(r *http.Request, defaultLimit int) (page, limit int) {
	page = 1
	limit = defaultLimit
	if p := AtoiDefault(r.URL.Query().Get("page"), 0); p > 0 {
		page = p
	}
	if l := AtoiDefault(r.URL.Query().Get("limit"), 0); l > 0 {
		limit = l
	}
	return
}

// Offset converts one-based page/limit pagination into a row offset.
func Offset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}
