package shared

import "strconv"

// maxPlainPages is the largest page count rendered without ellipses.
const maxPlainPages = 7

// Ellipsis is the text rendered for a gap between page links.
const Ellipsis = "…"

// PageMarker is either a page number or an ellipsis placeholder.
type PageMarker struct {
	Number   int
	Ellipsis bool
}

// String renders the marker label.
func (m PageMarker) String() string {
	if m.Ellipsis {
		return Ellipsis
	}
	return strconv.Itoa(m.Number)
}

func pageMarker(n int) PageMarker { return PageMarker{Number: n} }

var gap = PageMarker{Ellipsis: true}

// PageMarkers lists the page links to render for current out of total pages.
func PageMarkers(current, total int) []PageMarker {
	if total < 1 {
		total = 1
	}
	if total <= maxPlainPages {
		markers := make([]PageMarker, 0, total)
		for i := 1; i <= total; i++ {
			markers = append(markers, pageMarker(i))
		}
		return markers
	}
	switch {
	case current <= 4:
		return []PageMarker{pageMarker(1), pageMarker(2), pageMarker(3), pageMarker(4), pageMarker(5), gap, pageMarker(total)}
	case current >= total-3:
		return []PageMarker{pageMarker(1), gap, pageMarker(total - 4), pageMarker(total - 3), pageMarker(total - 2), pageMarker(total - 1), pageMarker(total)}
	default:
		return []PageMarker{pageMarker(1), gap, pageMarker(current - 1), pageMarker(current), pageMarker(current + 1), gap, pageMarker(total)}
	}
}

// Pagination describes the position within a paginated listing.
type Pagination struct {
	Page       int
	TotalPages int
}

// NewPagination clamps page into 1..totalPages.
func NewPagination(page, totalPages int) Pagination {
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	return Pagination{Page: page, TotalPages: totalPages}
}

// Markers returns the page links for the current position.
func (p Pagination) Markers() []PageMarker {
	return PageMarkers(p.Page, p.TotalPages)
}

// HasPrev reports whether a previous page exists.
func (p Pagination) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a next page exists.
func (p Pagination) HasNext() bool { return p.Page < p.TotalPages }

// Prev returns the previous page; ok is false on the first page.
func (p Pagination) Prev() (int, bool) {
	if !p.HasPrev() {
		return p.Page, false
	}
	return p.Page - 1, true
}

// Next returns the next page; ok is false on the last page.
func (p Pagination) Next() (int, bool) {
	if !p.HasNext() {
		return p.Page, false
	}
	return p.Page + 1, true
}

// Select returns n when it differs from the current page and exists.
func (p Pagination) Select(n int) (int, bool) {
	if n == p.Page || n < 1 || n > p.TotalPages {
		return p.Page, false
	}
	return n, true
}

// PageAction names a navigation control.
type PageAction string

const (
	PagePrev   PageAction = "prev"
	PageNext   PageAction = "next"
	PageSelect PageAction = "select"
)

// Navigate resolves action against p and invokes onChange only when the page changes.
func (p Pagination) Navigate(action PageAction, n int, onChange func(int)) bool {
	var (
		target int
		ok     bool
	)
	switch action {
	case PagePrev:
		target, ok = p.Prev()
	case PageNext:
		target, ok = p.Next()
	case PageSelect:
		target, ok = p.Select(n)
	}
	if ok && onChange != nil {
		onChange(target)
	}
	return ok
}
