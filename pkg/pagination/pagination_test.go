package pagination_test

import (
	"net/http/httptest"
	"testing"

	"visit-tracker/pkg/pagination"

	"github.com/gin-gonic/gin"
)

func TestParse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name  string
		query string
		page  int
		limit int
	}{
		{"defaults", "", 1, 20},
		{"explicit", "?page=3&limit=10", 3, 10},
		{"negative page", "?page=-2", 1, 20},
		{"limit capped", "?limit=1000", 1, 100},
		{"garbage", "?page=abc&limit=xyz", 1, 20},
		{"zero limit", "?limit=0", 1, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/"+tt.query, nil)

			p := pagination.Parse(c)
			if p.Page != tt.page || p.Limit != tt.limit {
				t.Fatalf("got page=%d limit=%d, want %d/%d", p.Page, p.Limit, tt.page, tt.limit)
			}
		})
	}
}
