package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gopost/internal/logger"
)

type approveRequest struct {
	ScheduledAt *time.Time `json:"scheduled_at"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// approveContent handles POST /api/v1/content/:id/approve
func (r *Router) approveContent(c *gin.Context) {
	// An empty body means "approve with the default schedule".
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	content, err := r.reviews.Approve(c.Request.Context(), c.Param("id"), req.ScheduledAt)
	if err != nil {
		r.handleDomainError(c, err, "approve content")
		return
	}

	r.logger.Info("Content approved via API",
		logger.String("content_id", content.ID),
	)
	c.JSON(http.StatusOK, content)
}

// rejectContent handles POST /api/v1/content/:id/reject
func (r *Router) rejectContent(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	content, err := r.reviews.Reject(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		r.handleDomainError(c, err, "reject content")
		return
	}

	r.logger.Info("Content rejected via API",
		logger.String("content_id", content.ID),
		logger.Int("retry_count", content.RetryCount),
	)
	c.JSON(http.StatusOK, content)
}

// publishNowContent handles POST /api/v1/content/:id/publish-now. Pending
// content is approved for the current moment; already-approved content has
// its schedule pulled in, so the fan-out posts immediately either way.
func (r *Router) publishNowContent(c *gin.Context) {
	content, err := r.reviews.PublishNow(c.Request.Context(), c.Param("id"))
	if err != nil {
		r.handleDomainError(c, err, "publish content")
		return
	}

	r.logger.Info("Content queued for immediate publish",
		logger.String("content_id", content.ID),
	)
	c.JSON(http.StatusOK, content)
}
