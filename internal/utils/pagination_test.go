package utils

import (
	"math"
	"strconv"
	"testing"
)

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		{"", 10, 10},
		{"42", 0, 42},
		{"-3", 1, -3},
		{"x", 5, 5},
		{" 2", 7, 7}, // no trim
		{"999999999999999999999999", -1, -1},
	}
	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestParseWindow_Clamps(t *testing.T) {
	cases := []struct {
		page, size string
		want       Window
	}{
		{"", "", Window{1, DefaultPageSize}},
		{"0", "0", Window{1, DefaultPageSize}},
		{"-4", "5", Window{1, 5}},
		{"3", "500", Window{3, MaxPageSize}},
		{"2", "abc", Window{2, DefaultPageSize}},
		{strconv.Itoa(math.MaxInt), "20", Window{MaxPage, 20}},
	}
	for _, tc := range cases {
		if got := ParseWindow(tc.page, tc.size); got != tc.want {
			t.Fatalf("ParseWindow(%q, %q) = %+v; want %+v", tc.page, tc.size, got, tc.want)
		}
	}
}

func TestWindow_OffsetAndTotalPages(t *testing.T) {
	w := NewWindow(3, 10)
	if w.Offset() != 20 {
		t.Fatalf("Offset = %d; want 20", w.Offset())
	}
	if got := w.TotalPages(0); got != 0 {
		t.Fatalf("TotalPages(0) = %d", got)
	}
	if got := w.TotalPages(21); got != 3 {
		t.Fatalf("TotalPages(21) = %d; want 3", got)
	}
	if got := w.TotalPages(30); got != 3 {
		t.Fatalf("TotalPages(30) = %d; want 3", got)
	}
}

func TestWindow_HugePageDoesNotOverflow(t *testing.T) {
	for _, size := range []int{1, DefaultPageSize, MaxPageSize} {
		w := NewWindow(math.MaxInt, size)
		if off := w.Offset(); off < 0 {
			t.Fatalf("size %d: Offset = %d, overflowed", size, off)
		}
	}
}
