package pagination

// PageParams holds offset pagination inputs for list endpoints that report totals.
type PageParams struct {
	Page int
	Size int
}

// Page describes the window returned alongside a list result.
type Page struct {
	Page       int   `json:"page"`
	Size       int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// Normalize clamps page to >= 1 and size to the shared limits.
func (p PageParams) Normalize() PageParams {
	if p.Page <= 0 {
		p.Page = 1
	}
	p.Size = NormalizeLimit(p.Size)
	return p
}

// Offset returns the number of rows to skip for the normalized page.
func (p PageParams) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Size
}

// NewPage computes the total page count for total rows.
func NewPage(params PageParams, total int64) Page {
	n := params.Normalize()
	pages := int((total + int64(n.Size) - 1) / int64(n.Size))
	return Page{
		Page:       n.Page,
		Size:       n.Size,
		Total:      total,
		TotalPages: pages,
	}
}
