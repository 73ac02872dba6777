package shared

import "math"

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPagination computes pagination metadata. Out of range pages are clamped.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	switch {
	case totalPages == 0:
		page = 1
	case page > totalPages:
		page = totalPages
	}
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Bounds returns the half-open index range of the current page.
// The arithmetic never overflows, whatever the page number.
func (p Pagination) Bounds() (start, end int) {
	if p.Total <= 0 || p.PerPage <= 0 {
		return 0, 0
	}
	skipped := p.Page - 1
	if skipped < 0 {
		skipped = 0
	}
	if skipped > p.Total/p.PerPage {
		return p.Total, p.Total
	}
	start = skipped * p.PerPage
	if p.PerPage > p.Total-start {
		return start, p.Total
	}
	return start, start + p.PerPage
}

// HasPrev reports whether a previous page exists.
func (p Pagination) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a following page exists.
func (p Pagination) HasNext() bool { return p.Page < p.TotalPages }
