package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/logger"
)

// handleDomainError translates lifecycle errors into HTTP responses. Anything
// unrecognized is a 500 with a generic message; the detail goes to the log.
func (r *Router) handleDomainError(c *gin.Context, err error, operation string) {
	var quotaErr *domain.QuotaError
	switch {
	case errors.As(err, &quotaErr):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": quotaErr.Error(),
			"used":  quotaErr.Used,
			"limit": quotaErr.Limit,
		})
	case errors.Is(err, domain.ErrQuotaExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrInvalidContent),
		errors.Is(err, domain.ErrRejectionReasonRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrStaleState),
		errors.Is(err, domain.ErrClientInactive),
		errors.Is(err, domain.ErrRetriesExhausted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		r.logger.Error("Request failed",
			logger.String("operation", operation),
			logger.String("path", c.Request.URL.Path),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to " + operation})
	}
}

// parseLimit reads the limit query parameter with a default and a cap.
func parseLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
