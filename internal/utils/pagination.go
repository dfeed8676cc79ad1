// Package utils holds small helpers shared by the HTTP and service layers.
package utils

import (
	"math"
	"strconv"
)

// Page bounds for the public post list.
const (
	DefaultPageSize = 10
	MaxPageSize     = 50
	// MaxPage keeps Offset from overflowing int.
	MaxPage = math.MaxInt / MaxPageSize
)

// AtoiDefault parses s as an int, returning def when s is empty or invalid.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Window is a normalized 1-based page of pageSize rows.
type Window struct {
	Page     int
	PageSize int
}

// NewWindow clamps page to [1, MaxPage] and pageSize to [1, MaxPageSize]. A
// non-positive pageSize becomes DefaultPageSize.
func NewWindow(page, pageSize int) Window {
	switch {
	case page < 1:
		page = 1
	case page > MaxPage:
		page = MaxPage
	}
	switch {
	case pageSize <= 0:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return Window{Page: page, PageSize: pageSize}
}

// ParseWindow builds a Window from raw query values.
func ParseWindow(page, pageSize string) Window {
	return NewWindow(AtoiDefault(page, 1), AtoiDefault(pageSize, DefaultPageSize))
}

// Offset is the number of rows before the window.
func (w Window) Offset() int { return (w.Page - 1) * w.PageSize }

// TotalPages returns how many windows of this size cover total rows.
func (w Window) TotalPages(total int64) int {
	if total <= 0 {
		return 0
	}
	return int((total + int64(w.PageSize) - 1) / int64(w.PageSize))
}
