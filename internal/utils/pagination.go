// Package utils provides small helpers for list endpoints: query parsing
// and page arithmetic. They carry no domain knowledge.
package utils

import "strconv"

// Page defaults applied by ParsePage.
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// AtoiDefault parses s as an int, returning def when s is empty or invalid.
// Surrounding whitespace is not trimmed.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ParsePage turns raw page and page_size query values into a 1-based page
// and a size clamped to [1, MaxPageSize].
func ParsePage(rawPage, rawSize string) (page, size int) {
	page = AtoiDefault(rawPage, DefaultPage)
	if page < 1 {
		page = 1
	}
	size = AtoiDefault(rawSize, DefaultPageSize)
	if size < 1 {
		size = 1
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// Offset returns the row offset of page for the given size.
func Offset(page, size int) int {
	if page < 1 || size < 1 {
		return 0
	}
	return (page - 1) * size
}

// TotalPages is ceil(total/size); zero when either is non-positive.
func TotalPages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}
