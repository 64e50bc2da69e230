package model

// Pagination defaults
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
	MaxPage         = 1 << 20
)

// Pagination represents common pagination parameters
type Pagination struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}

// Limit returns the clamped page size.
func (p Pagination) Limit() int {
	switch {
	case p.PageSize <= 0:
		return DefaultPageSize
	case p.PageSize > MaxPageSize:
		return MaxPageSize
	}
	return p.PageSize
}

// Offset returns the row offset for a one-based page number. Pages past
// MaxPage are treated as MaxPage.
func (p Pagination) Offset() int {
	page := p.Page
	switch {
	case page <= 1:
		return 0
	case page > MaxPage:
		page = MaxPage
	}
	return (page - 1) * p.Limit()
}
