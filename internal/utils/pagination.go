package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskflow-api/internal/constants"
)

// PaginationParams holds the pagination parameters
type PaginationParams struct {
	Page   int
	Limit  int
	Offset int
	// Enabled is false when the request carried neither page nor limit;
	// the whole collection is returned then.
	Enabled bool
}

// PaginationResponse represents the pagination metadata in API responses
type PaginationResponse struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// GetPaginationParams extracts and validates pagination parameters from the request
func GetPaginationParams(c *gin.Context) PaginationParams {
	pageStr, hasPage := c.GetQuery("page")
	limitStr, hasLimit := c.GetQuery("limit")

	page, _ := strconv.Atoi(pageStr)
	limit, _ := strconv.Atoi(limitStr)

	return NewPaginationParams(page, limit, hasPage || hasLimit)
}

// NewPaginationParams clamps page into 1..MaxPage and limit into
// 1..MaxPageSize. A missing or non-positive limit uses DefaultPageSize.
func NewPaginationParams(page, limit int, enabled bool) PaginationParams {
	page = min(max(page, 1), constants.MaxPage)
	if limit < constants.MinPageSize {
		limit = constants.DefaultPageSize
	}
	limit = min(limit, constants.MaxPageSize)

	return PaginationParams{
		Page:    page,
		Limit:   limit,
		Offset:  (page - 1) * limit,
		Enabled: enabled,
	}
}

// Response builds the pagination metadata for total matching rows.
func (p PaginationParams) Response(total int64) PaginationResponse {
	if !p.Enabled {
		return PaginationResponse{Page: 1, Limit: int(total), Total: total}
	}
	return PaginationResponse{Page: p.Page, Limit: p.Limit, Total: total}
}
