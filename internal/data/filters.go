package data

import (
	"math"
	"strings"

	"github.com/aoideee/bookreviews/internal/validator"
)

// Filters holds pagination parameters extracted from URL query strings.
type Filters struct {
	Page  int // Current page number (1-indexed)
	Limit int // Number of records per page
}

// NewFilters builds Filters from raw page/limit values, clamping them into
// the accepted range.
func NewFilters(page, limit int) Filters {
	page, limit = validator.ClampPagination(page, limit)
	return Filters{Page: page, Limit: limit}
}

// limit returns the SQL LIMIT value.
func (f Filters) limit() int { return f.Limit }

// offset returns the SQL OFFSET value derived from Page and Limit.
func (f Filters) offset() int { return (f.Page - 1) * f.Limit }

// Metadata contains pagination information returned alongside list responses.
type Metadata struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalItems   int  `json:"totalItems"`
	ItemsPerPage int  `json:"itemsPerPage"`
	HasNext      bool `json:"hasNext"`
	HasPrev      bool `json:"hasPrev"`
}

// CalculateMetadata computes page metadata from the filtered record count.
// Pages past the end keep their requested number and simply report no next page.
func CalculateMetadata(totalRecords int, filters Filters) Metadata {
	totalPages := int(math.Ceil(float64(totalRecords) / float64(filters.Limit)))
	return Metadata{
		CurrentPage:  filters.Page,
		TotalPages:   totalPages,
		TotalItems:   totalRecords,
		ItemsPerPage: filters.Limit,
		HasNext:      filters.Page < totalPages,
		HasPrev:      filters.Page > 1,
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern turns s into an ILIKE pattern matching s anywhere,
// with LIKE wildcards in s matched literally.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
