package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dolos-sec/dolos/internal/blocklist"
	"github.com/dolos-sec/dolos/internal/version"
)

// HealthHandler responds with service metadata for uptime checks. The
// degraded flag reports whether the block registry has fallen back to its
// in-memory store.
func HealthHandler(registry *blocklist.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		degraded := registry != nil && registry.Degraded()
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"service":    version.Name,
			"version":    version.Version,
			"git_commit": version.GitCommit,
			"build_time": version.BuildTime,
			"degraded":   degraded,
		})
	}
}
