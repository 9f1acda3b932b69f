package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gopost/internal/logger"
)

// getStats handles GET /api/v1/stats
func (r *Router) getStats(c *gin.Context) {
	contentStats, err := r.contents.GetStats(c.Request.Context())
	if err != nil {
		r.handleDomainError(c, err, "get content stats")
		return
	}

	queueStats, err := r.queue.GetStats(c.Request.Context())
	if err != nil {
		r.handleDomainError(c, err, "get queue stats")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"content": contentStats,
		"queue":   queueStats,
	})
}

// runRecycling handles POST /api/v1/recycling/run, a manual trigger for the
// sweep the cron scheduler normally runs.
func (r *Router) runRecycling(c *gin.Context) {
	recycled, err := r.recycler.RunOnce(c.Request.Context())
	if err != nil {
		r.handleDomainError(c, err, "run recycling sweep")
		return
	}

	r.logger.Info("Manual recycling sweep finished", logger.Int("recycled", recycled))
	c.JSON(http.StatusOK, gin.H{"recycled": recycled})
}
