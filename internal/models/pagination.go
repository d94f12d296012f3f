package models

import "math"

// maxOffset bounds the SQL offset so huge page numbers cannot overflow it.
const maxOffset = math.MaxInt32

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Total       int  `json:"total"`
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// NewPagination derives page counts from a total. page and limit are expected to be normalised.
func NewPagination(page, limit, total int) *Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return &Pagination{
		Total:       total,
		Page:        page,
		Limit:       limit,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

// PageWindow clamps page/limit and returns the SQL offset.
func PageWindow(page, limit, defaultLimit, maxLimit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	if limit > maxOffset {
		limit = maxOffset
	}
	if page-1 > maxOffset/limit {
		page = maxOffset/limit + 1
	}
	return page, limit, (page - 1) * limit
}
