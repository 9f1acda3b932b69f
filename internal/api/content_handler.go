package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/intake"
	"github.com/jonesrussell/gopost/internal/logger"
)

// submitContent handles POST /api/v1/content
func (r *Router) submitContent(c *gin.Context) {
	var draft intake.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	content, err := r.intake.Submit(c.Request.Context(), draft)
	if err != nil {
		r.handleDomainError(c, err, "submit content")
		return
	}

	r.logger.Info("Content submission accepted",
		logger.String("content_id", content.ID),
		logger.String("client_id", content.ClientID),
	)
	c.JSON(http.StatusCreated, content)
}

// getContent handles GET /api/v1/content/:id
func (r *Router) getContent(c *gin.Context) {
	content, err := r.contents.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		r.handleDomainError(c, err, "get content")
		return
	}
	c.JSON(http.StatusOK, content)
}

// listContent handles GET /api/v1/content?client_id=&status=&limit=
func (r *Router) listContent(c *gin.Context) {
	clientID := c.Query("client_id")
	status := domain.ContentStatus(c.Query("status"))
	limit := parseLimit(c)

	var (
		items []domain.Content
		err   error
	)
	switch {
	case clientID != "":
		items, err = r.contents.ListByClient(c.Request.Context(), clientID, status, limit)
	case status != "":
		items, err = r.contents.ListByStatus(c.Request.Context(), status, limit)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "client_id or status query parameter is required"})
		return
	}
	if err != nil {
		r.handleDomainError(c, err, "list content")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"content": items,
		"count":   len(items),
	})
}

// listClients handles GET /api/v1/clients
func (r *Router) listClients(c *gin.Context) {
	clients, err := r.clients.ListActive(c.Request.Context())
	if err != nil {
		r.handleDomainError(c, err, "list clients")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"clients": clients,
		"count":   len(clients),
	})
}

// getClient handles GET /api/v1/clients/:id
func (r *Router) getClient(c *gin.Context) {
	client, err := r.clients.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		r.handleDomainError(c, err, "get client")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"client":          client,
		"posts_remaining": client.PostsRemaining(),
	})
}
