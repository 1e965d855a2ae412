package domain

import "math"

// PageRequest selects a 1-indexed page of a result set.
type PageRequest struct {
	Page    int
	PerPage int
}

// NewPageRequest normalizes page and perPage; non-positive values fall back to page 1 and defaultPerPage.
func NewPageRequest(page, perPage, defaultPerPage int) PageRequest {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage < 1 {
		perPage = 1
	}
	return PageRequest{Page: page, PerPage: perPage}
}

// Offset is the number of rows preceding the requested page.
// It saturates at math.MaxInt for pages too far out to address.
func (r PageRequest) Offset() int {
	if r.Page <= 1 || r.PerPage <= 0 {
		return 0
	}
	if r.Page-1 > math.MaxInt/r.PerPage {
		return math.MaxInt
	}
	return (r.Page - 1) * r.PerPage
}

// Limit is the maximum number of rows on the requested page.
func (r PageRequest) Limit() int {
	return r.PerPage
}

// Page is one slice of an ordered result set.
// Pages past the end carry no items but are not an error.
type Page[T any] struct {
	Items   []T
	Page    int
	PerPage int
	Total   int
}

func NewPage[T any](req PageRequest, items []T, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Page: req.Page, PerPage: req.PerPage, Total: total}
}

// Pages is the number of non-empty pages.
func (p Page[T]) Pages() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 0
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

func (p Page[T]) HasNext() bool {
	return p.Page < p.Pages()
}

func (p Page[T]) HasPrev() bool {
	return p.Page > 1
}

// NextNum is the next page number, or 0 when there is none.
func (p Page[T]) NextNum() int {
	if !p.HasNext() {
		return 0
	}
	return p.Page + 1
}

// PrevNum is the previous page number, or 0 when there is none.
func (p Page[T]) PrevNum() int {
	if !p.HasPrev() {
		return 0
	}
	return p.Page - 1
}

// Paginate slices an already ordered list.
func Paginate[T any](items []T, req PageRequest) Page[T] {
	req = NewPageRequest(req.Page, req.PerPage, 1)
	total := len(items)
	start := req.Offset()
	if start < 0 || start >= total {
		return NewPage[T](req, nil, total)
	}
	end := start + req.Limit()
	if end > total || end < start {
		end = total
	}
	out := make([]T, end-start)
	copy(out, items[start:end])
	return NewPage(req, out, total)
}
