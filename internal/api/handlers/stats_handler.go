package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dolos-sec/dolos/internal/stats"
)

// StatsHandler serves the aggregated dashboard.
type StatsHandler struct {
	stats *stats.Aggregator
}

func NewStatsHandler(agg *stats.Aggregator) *StatsHandler {
	return &StatsHandler{stats: agg}
}

// Dashboard returns aggregate statistics. The optional "from" and "to"
// query parameters are RFC 3339 timestamps; the default window is the
// last 24 hours.
func (h *StatsHandler) Dashboard(c *gin.Context) {
	now := time.Now()
	from := now.Add(-24 * time.Hour)
	to := now

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'from' timestamp"})
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'to' timestamp"})
			return
		}
		to = t
	}
	if to.Before(from) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'to' must not precede 'from'"})
		return
	}

	c.JSON(http.StatusOK, h.stats.Stats(from, to))
}
