package core

// PaginatedResponse slices an in-memory result set into pages for
// presentation. Pages are 1-indexed.
type PaginatedResponse struct {
	Data     []Row
	Page     int
	PageSize int
	Total    int
}

// Paginate creates a paginated view over data.
func Paginate(data []Row, page, pageSize int) *PaginatedResponse {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	return &PaginatedResponse{
		Data:     data,
		Page:     page,
		PageSize: pageSize,
		Total:    len(data),
	}
}

// TotalPages returns the number of pages.
func (p *PaginatedResponse) TotalPages() int {
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// HasPrevious reports whether a page precedes the current one.
func (p *PaginatedResponse) HasPrevious() bool {
	return p.Page > 1
}

// HasNext reports whether a page follows the current one.
func (p *PaginatedResponse) HasNext() bool {
	return p.Page < p.TotalPages()
}

// GetPage returns the rows of the given page, or the current page when
// page is zero. Out-of-range pages return an empty slice.
func (p *PaginatedResponse) GetPage(page int) []Row {
	if page == 0 {
		page = p.Page
	}
	if page < 1 || page > p.TotalPages() {
		return nil
	}

	start := (page - 1) * p.PageSize
	end := start + p.PageSize
	if end > p.Total {
		end = p.Total
	}
	return p.Data[start:end]
}

// ToMap returns the pagination metadata, plus the current page's rows
// when includeData is set.
func (p *PaginatedResponse) ToMap(includeData bool) map[string]any {
	out := map[string]any{
		"page":         p.Page,
		"page_size":    p.PageSize,
		"total":        p.Total,
		"total_pages":  p.TotalPages(),
		"has_previous": p.HasPrevious(),
		"has_next":     p.HasNext(),
	}
	if includeData {
		out["data"] = p.GetPage(0)
	}
	return out
}
