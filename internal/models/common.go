package models

// Pagination describes list metadata in API responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes derived pagination values.
func NewPagination(page, pageSize, totalItems int) *Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	totalPages := totalItems / pageSize
	if totalItems%pageSize != 0 {
		totalPages++
	}
	return &Pagination{Page: page, PageSize: pageSize, TotalItems: totalItems, TotalPages: totalPages}
}

// Scope identifies the tenant and acting user behind every core operation.
// Operations missing either id are rejected before touching storage.
type Scope struct {
	SchoolID string `json:"school_id"`
	ActorID  string `json:"actor_id"`
}

// Valid reports whether the scope carries both the tenant and actor ids.
func (s Scope) Valid() bool {
	return s.SchoolID != "" && s.ActorID != ""
}
