// Package paging plans page/limit/offset values for list queries. Page and
// limit arrive as untrusted query parameters, so coercion never yields zero,
// negative or unbounded values.
package paging

import (
	"math"
	"strconv"
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 50
	MaxLimit     = 100
)

// Page describes one page of a list result.
type Page struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalCount int64 `json:"totalCount"`
	TotalPages int   `json:"totalPages"`
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Plan computes page metadata. totalPages is never below one.
func Plan(page, limit int, totalCount int64) Page {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if totalCount < 0 {
		totalCount = 0
	}
	totalPages := int((totalCount + int64(limit) - 1) / int64(limit))
	if totalPages < 1 {
		totalPages = 1
	}
	return Page{
		Page:       page,
		Limit:      limit,
		TotalCount: totalCount,
		TotalPages: totalPages,
	}
}

// CoercePage returns def for blank, non-finite or non-positive input,
// otherwise the floored value.
func CoercePage(raw string, def int) int {
	v, ok := positive(raw)
	if !ok {
		return def
	}
	return v
}

// CoerceLimit returns def for blank, non-finite or non-positive input,
// otherwise the floored value capped at max.
func CoerceLimit(raw string, def, max int) int {
	v, ok := positive(raw)
	if !ok {
		return def
	}
	if v > max {
		return max
	}
	return v
}

func positive(raw string) (int, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Floor(f)
	if f < 1 {
		return 0, false
	}
	if f > math.MaxInt32 {
		return math.MaxInt32, true
	}
	return int(f), true
}
