package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// Page holds validated pagination parameters
type Page struct {
	Page     int
	PageSize int
}

// Offset returns the row offset of the page
func (p Page) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// TotalPages returns how many pages total rows span
func (p Page) TotalPages(total int64) int {
	return (int(total) + p.PageSize - 1) / p.PageSize
}

// ParsePage reads page and page_size from the query, defaulting to 1 and 20.
// page_size above 100 is ignored.
func ParsePage(c *gin.Context) Page {
	page := 1      // Default page number
	pageSize := 20 // Default page size
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}
	return Page{Page: page, PageSize: pageSize}
}
