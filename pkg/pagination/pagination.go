// Package pagination reads page and limit query parameters.
package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
	MinLimit     = 1
)

type Params struct {
	Page  int
	Limit int
}

// Parse never fails: missing or malformed values fall back to the defaults and limit is capped.
func Parse(c *gin.Context) Params {
	return Params{
		Page:  queryInt(c, "page", DefaultPage, 1, 0),
		Limit: queryInt(c, "limit", DefaultLimit, MinLimit, MaxLimit),
	}
}

// queryInt returns def for values below min. A max of 0 means unbounded.
func queryInt(c *gin.Context, key string, def, min, max int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < min {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}
