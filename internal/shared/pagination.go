package shared

const (
	// DefaultPageSize applies when a listing asks for no limit.
	DefaultPageSize = 50
	// MaxPageSize caps any single listing.
	MaxPageSize = 200
)

// Page is a normalised limit/offset window.
type Page struct {
	Limit  int
	Offset int
}

// NewPage clamps limit to (0, MaxPageSize] and offset to >= 0.
func NewPage(limit, offset int) Page {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}

// Slice returns the bounds of the page within n items.
func (p Page) Slice(n int) (start, end int) {
	start = min(p.Offset, n)
	end = min(start+p.Limit, n)
	return start, end
}
