package params

import (
	"net/url"
	"testing"
)

func TestParsePaginationDefaults(t *testing.T) {
	p := ParsePagination(url.Values{})
	if p.Limit != 15 || p.Page != 1 || p.Offset != 0 {
		t.Fatalf("defaults: %+v", p)
	}
}

func TestParsePaginationClampsAndIgnoresGarbage(t *testing.T) {
	cases := []struct {
		name       string
		query      string
		wantLimit  int
		wantPage   int
		wantOffset int
	}{
		{"valid", "limit=10&page=3", 10, 3, 20},
		{"limit too big", "limit=500", 30, 1, 0},
		{"limit zero", "limit=0", 15, 1, 0},
		{"negative page", "page=-2", 15, 1, 0},
		{"garbage", "limit=abc&page=xyz", 15, 1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := url.ParseQuery(tc.query)
			if err != nil {
				t.Fatalf("parse query: %v", err)
			}
			p := ParsePagination(q)
			if p.Limit != tc.wantLimit || p.Page != tc.wantPage || p.Offset != tc.wantOffset {
				t.Fatalf("got %+v", p)
			}
		})
	}
}

func TestComputeMeta(t *testing.T) {
	p := Pagination{Limit: 10, Page: 2, Offset: 10}
	p.ComputeMeta(35)

	if p.Total != 35 || p.TotalPages != 4 {
		t.Fatalf("totals: %+v", p)
	}
	if !p.HasPrev || !p.HasNext {
		t.Fatalf("neighbors: %+v", p)
	}

	last := Pagination{Limit: 10, Page: 4}
	last.ComputeMeta(35)
	if last.HasNext {
		t.Fatalf("last page claims a next page: %+v", last)
	}
}
