package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// queryInt reads an integer query parameter, falling back to def on a
// missing or malformed value.
func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// queryCSV splits a comma-separated query parameter into trimmed, non-empty
// tokens.
func queryCSV(c *gin.Context, name string) []string {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
