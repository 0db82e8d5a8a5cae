package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query       string
		wantPage    int
		wantPerPage int
	}{
		{"", 1, 50},
		{"?page=3&per_page=20", 3, 20},
		{"?per_page=1000", 1, 200},
		{"?page=0&per_page=-5", 1, 50},
		{"?page=abc&per_page=xyz", 1, 50},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p := ParsePagination(httptest.NewRequest(http.MethodGet, "/api/alerts/history"+tt.query, nil))
			if p.Page != tt.wantPage || p.PerPage != tt.wantPerPage {
				t.Errorf("got page=%d per_page=%d, want %d/%d", p.Page, p.PerPage, tt.wantPage, tt.wantPerPage)
			}
		})
	}
}

func TestPaginationParams_OffsetAndTotalPages(t *testing.T) {
	p := PaginationParams{Page: 3, PerPage: 25}
	if p.Offset() != 50 {
		t.Errorf("Offset() = %d, want 50", p.Offset())
	}

	tests := []struct {
		total int64
		want  int
	}{
		{0, 0},
		{1, 1},
		{25, 1},
		{26, 2},
		{100, 4},
	}
	for _, tt := range tests {
		if got := p.TotalPages(tt.total); got != tt.want {
			t.Errorf("TotalPages(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}

	if (PaginationParams{}).TotalPages(10) != 0 {
		t.Error("zero per_page should yield zero pages")
	}
}
