package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithQuery(query string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest("GET", "/?"+query, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", DefaultLimit, 0},
		{"explicit", "limit=50&offset=10", 50, 10},
		{"limit capped", "limit=5000", MaxLimit, 0},
		{"negative values ignored", "limit=-1&offset=-5", DefaultLimit, 0},
		{"non-numeric ignored", "limit=abc&offset=xyz", DefaultLimit, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := FromContext(contextWithQuery(tt.query))
			if p.Limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", p.Limit, tt.wantLimit)
			}
			if p.Offset != tt.wantOffset {
				t.Errorf("offset = %d, want %d", p.Offset, tt.wantOffset)
			}
		})
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse([]int{1, 2, 3}, 10, 3, 0)
	if !resp.HasMore {
		t.Error("expected has_more with 10 total and first page of 3")
	}

	resp = NewResponse([]int{1}, 1, 20, 0)
	if resp.HasMore {
		t.Error("expected no more pages with total 1")
	}
}

func TestParams_Paging(t *testing.T) {
	p := Params{Limit: 20, Offset: 40}
	if !p.HasNext(100) {
		t.Error("expected next page at offset 40 of 100")
	}
	if p.HasNext(60) {
		t.Error("expected no next page at offset 40 of 60")
	}
	if p.NextOffset() != 60 {
		t.Errorf("NextOffset = %d, want 60", p.NextOffset())
	}
}
