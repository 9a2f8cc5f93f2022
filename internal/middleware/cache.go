package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// SnapshotCache lets only the requesting browser cache a response.
// Snapshot files are immutable once written.
func SnapshotCache(maxAge time.Duration) gin.HandlerFunc {
	value := fmt.Sprintf("private, max-age=%d, immutable", int(maxAge.Seconds()))
	return func(c *gin.Context) {
		c.Header("Cache-Control", value)
		c.Next()
	}
}
