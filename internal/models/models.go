// package models defines the data model for the works translation client
package models

import (
	"time"
)

// Page is the paginated envelope used by list endpoints.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// DefaultPageQuery is the first page of fifty items.
var DefaultPageQuery = PageQuery{Limit: 50, Offset: 0}

// Pages returns the number of pages needed to show total items at size per page (always at least one).
func Pages(total, size int) int {
	if size <= 0 || total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// HistoryEntry is a path visited through the view router.
type HistoryEntry struct {
	ID        int64
	Path      string
	VisitedAt time.Time
}
